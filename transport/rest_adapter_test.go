package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-backoffice/core"
	goerrors "github.com/goliatone/go-errors"
)

func TestRESTAdapter_DoSendsMethodHeadersAndQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST method, got %s", r.Method)
		}
		if got := r.URL.Query().Get("startDate"); got != "2024-03-09T00:00:00.000-03:00" {
			t.Errorf("expected startDate query, got %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("expected json content type, got %q", got)
		}
		if got := r.Header.Get("X-Trace"); got != "abc" {
			t.Errorf("expected custom header, got %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"phone":"5511"}` {
			t.Errorf("unexpected body %q", body)
		}
		w.Header().Set("X-Result", "ok")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	adapter := NewRESTAdapter(server.Client())
	res, err := adapter.Do(context.Background(), core.TransportRequest{
		Method:  http.MethodPost,
		URL:     server.URL,
		Query:   map[string]string{"startDate": "2024-03-09T00:00:00.000-03:00"},
		Headers: map[string]string{"X-Trace": "abc"},
		Body:    []byte(`{"phone":"5511"}`),
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if res.StatusCode != http.StatusAccepted || !res.Successful() {
		t.Fatalf("expected 202, got %d", res.StatusCode)
	}
	if res.Headers["X-Result"] != "ok" || string(res.Body) != "[]" {
		t.Fatalf("unexpected response %#v", res)
	}
}

func TestRESTAdapter_NonSuccessIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	res, err := NewRESTAdapter(server.Client()).Do(context.Background(), core.TransportRequest{URL: server.URL})
	if err != nil {
		t.Fatalf("expected status to be returned, got %v", err)
	}
	if res.Successful() || res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 response, got %d", res.StatusCode)
	}
}

func TestRESTAdapter_TimeoutReturnsExternalError(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	_, err := NewRESTAdapter(server.Client()).Do(context.Background(), core.TransportRequest{
		URL:     server.URL,
		Timeout: 20 * time.Millisecond,
	})
	if !core.HasTextCode(err, core.ErrorExternalFailure) {
		t.Fatalf("expected external failure, got %v", err)
	}
}

type deadlineDoer struct {
	deadline time.Time
	ok       bool
}

func (d *deadlineDoer) Do(req *http.Request) (*http.Response, error) {
	d.deadline, d.ok = req.Context().Deadline()
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(`{}`)), Header: http.Header{}}, nil
}

func TestRESTAdapter_RequestTimeoutIsNotCappedByClient(t *testing.T) {
	client, ok := NewRESTAdapter(nil).Client.(*http.Client)
	if !ok {
		t.Fatalf("expected default *http.Client, got %T", NewRESTAdapter(nil).Client)
	}
	if client.Timeout != 0 {
		t.Fatalf("expected no client-level timeout, got %s", client.Timeout)
	}

	doer := &deadlineDoer{}
	started := time.Now()
	if _, err := NewRESTAdapter(doer).Do(context.Background(), core.TransportRequest{
		URL:     "https://hooks.example/agenda",
		Timeout: 45 * time.Second,
	}); err != nil {
		t.Fatalf("do: %v", err)
	}
	if !doer.ok || doer.deadline.Sub(started) < 40*time.Second {
		t.Fatalf("expected request deadline near 45s, got %v (set %v)", doer.deadline.Sub(started), doer.ok)
	}

	if _, err := NewRESTAdapter(doer).Do(context.Background(), core.TransportRequest{URL: "https://hooks.example/agenda"}); err != nil {
		t.Fatalf("do without timeout: %v", err)
	}
	if !doer.ok {
		t.Fatalf("expected a fallback deadline when neither request nor context sets one")
	}
}

func TestRESTAdapter_ResponseLimitReturnsRichError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("12345"))
	}))
	defer server.Close()

	adapter := NewRESTAdapter(server.Client())
	adapter.MaxResponseBodyBytes = 4

	_, err := adapter.Do(context.Background(), core.TransportRequest{Method: http.MethodGet, URL: server.URL})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryExternal || rich.Code != http.StatusBadGateway {
		t.Fatalf("unexpected envelope %#v", rich)
	}
}

func TestRESTAdapter_RequiresURL(t *testing.T) {
	_, err := NewRESTAdapter(nil).Do(context.Background(), core.TransportRequest{})
	if !core.HasTextCode(err, core.ErrorBadInput) {
		t.Fatalf("expected bad input, got %v", err)
	}
	var adapter *RESTAdapter
	if _, err := adapter.Do(context.Background(), core.TransportRequest{URL: "http://x"}); !core.HasTextCode(err, core.ErrorInternal) {
		t.Fatalf("expected internal error for nil adapter, got %v", err)
	}
}
