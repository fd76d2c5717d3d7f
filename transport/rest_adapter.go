// Package transport carries webhook requests over HTTP.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-backoffice/core"
	goerrors "github.com/goliatone/go-errors"
)

const (
	KindREST = "rest"

	// fallbackTimeout bounds a request that carries neither a Timeout nor a
	// context deadline.
	fallbackTimeout  = 30 * time.Second
	defaultBodyLimit = int64(10 << 20)
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RESTAdapter performs one HTTP exchange per call. It never retries and
// returns any status code as a response; the dispatcher judges success.
type RESTAdapter struct {
	Client               HTTPDoer
	DefaultHeaders       map[string]string
	MaxResponseBodyBytes int64
}

// NewRESTAdapter wraps client, or a plain http.Client when client is nil.
// Deadlines come from the request context, so the default client has no
// Timeout of its own.
func NewRESTAdapter(client HTTPDoer) *RESTAdapter {
	if client == nil {
		client = &http.Client{}
	}
	return &RESTAdapter{
		Client:               client,
		DefaultHeaders:       map[string]string{"Accept": "application/json"},
		MaxResponseBodyBytes: defaultBodyLimit,
	}
}

func (*RESTAdapter) Kind() string { return KindREST }

func (a *RESTAdapter) Do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if a == nil || a.Client == nil {
		return core.TransportResponse{}, fail(nil, goerrors.CategoryInternal, "transport: rest adapter requires an http client", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := req.Timeout
	if _, ok := ctx.Deadline(); !ok && timeout <= 0 {
		timeout = fallbackTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	httpReq, err := a.newRequest(ctx, req)
	if err != nil {
		return core.TransportResponse{}, err
	}
	target := map[string]any{"method": httpReq.Method, "url": httpReq.URL.String()}

	started := time.Now()
	httpRes, err := a.Client.Do(httpReq)
	if err != nil {
		return core.TransportResponse{}, fail(err, goerrors.CategoryExternal, "transport: execute http request", target)
	}
	defer httpRes.Body.Close()

	body, err := a.readBody(httpRes)
	if err != nil {
		return core.TransportResponse{}, err
	}
	headers := make(map[string]string, len(httpRes.Header))
	for key, values := range httpRes.Header {
		headers[key] = strings.Join(values, ",")
	}
	return core.TransportResponse{
		StatusCode: httpRes.StatusCode,
		Headers:    headers,
		Body:       body,
		Metadata: map[string]any{
			"duration_ms": time.Since(started).Milliseconds(),
			"kind":        KindREST,
		},
	}, nil
}

// newRequest builds the outgoing request. Per-request headers override the
// adapter defaults and a body is always sent as JSON.
func (a *RESTAdapter) newRequest(ctx context.Context, req core.TransportRequest) (*http.Request, error) {
	rawURL := strings.TrimSpace(req.URL)
	if rawURL == "" {
		return nil, fail(nil, goerrors.CategoryBadInput, "transport: request url is required", nil)
	}
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, fail(err, goerrors.CategoryBadInput, "transport: invalid request url", map[string]any{"url": rawURL})
	}
	if len(req.Query) > 0 {
		values := target.Query()
		for key, value := range req.Query {
			if key = strings.TrimSpace(key); key != "" {
				values.Set(key, value)
			}
		}
		target.RawQuery = values.Encode()
	}

	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fail(err, goerrors.CategoryBadInput, "transport: create http request", map[string]any{"method": method, "url": target.String()})
	}

	setHeaders(httpReq.Header, a.DefaultHeaders)
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	setHeaders(httpReq.Header, req.Headers)
	if key := strings.TrimSpace(req.Idempotency); key != "" {
		httpReq.Header.Set("Idempotency-Key", key)
	}
	return httpReq, nil
}

func (a *RESTAdapter) readBody(res *http.Response) ([]byte, error) {
	limit := a.MaxResponseBodyBytes
	if limit <= 0 {
		limit = defaultBodyLimit
	}
	meta := map[string]any{"status_code": res.StatusCode}
	body, err := io.ReadAll(io.LimitReader(res.Body, limit+1))
	if err != nil {
		return nil, fail(err, goerrors.CategoryExternal, "transport: read response body", meta)
	}
	if int64(len(body)) > limit {
		meta["response_limit_b"] = limit
		return nil, fail(nil, goerrors.CategoryExternal, fmt.Sprintf("transport: response body exceeds limit of %d bytes", limit), meta)
	}
	return body, nil
}

func setHeaders(dst http.Header, src map[string]string) {
	for key, value := range src {
		if key = strings.TrimSpace(key); key != "" {
			dst.Set(key, strings.TrimSpace(value))
		}
	}
}

// fail builds a go-errors envelope tagged with the adapter kind. Bad input
// maps to ErrorBadInput and upstream trouble to ErrorExternalFailure.
func fail(cause error, category goerrors.Category, message string, meta map[string]any) error {
	if meta == nil {
		meta = map[string]any{}
	}
	meta["adapter"] = KindREST

	code := core.ErrorInternal
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		code = core.ErrorBadInput
	case goerrors.CategoryExternal:
		code = core.ErrorExternalFailure
	}
	if cause != nil {
		return core.WrapError(cause, category, message, code, meta)
	}
	return core.NewError(message, category, code, meta)
}

var _ core.TransportAdapter = (*RESTAdapter)(nil)
