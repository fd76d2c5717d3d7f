package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/goliatone/go-backoffice/core"
	filestore "github.com/goliatone/go-backoffice/store/file"
	bosync "github.com/goliatone/go-backoffice/sync"
	"github.com/goliatone/go-backoffice/webhooks"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeCalendar struct {
	mu      sync.Mutex
	events  map[core.Category][]core.CalendarEvent
	filters []core.DateFilter
	nextID  int
}

func newFakeCalendar() *fakeCalendar {
	return &fakeCalendar{events: map[core.Category][]core.CalendarEvent{
		core.CategoryMentoria: {
			{ID: "m1", Summary: "Mentoria Ana", Start: "2024-06-01T09:00:00-03:00", End: "2024-06-01T10:00:00-03:00"},
		},
		core.CategoryVenda: {
			{ID: "v2", Summary: "Venda Bruno", Start: "2024-06-01T14:00:00-03:00", End: "2024-06-01T15:00:00-03:00"},
			{ID: "v1", Summary: "Venda Carla", Start: "2024-06-01T08:00:00-03:00", End: "2024-06-01T09:00:00-03:00"},
		},
	}}
}

func (f *fakeCalendar) FetchEvents(_ context.Context, category core.Category, filter core.DateFilter) ([]core.CalendarEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	return core.CloneEvents(f.events[category]), nil
}

func (f *fakeCalendar) RefreshEventsViaPost(ctx context.Context, category core.Category, filter core.DateFilter) ([]core.CalendarEvent, error) {
	return f.FetchEvents(ctx, category, filter)
}

func (f *fakeCalendar) AddEvent(_ context.Context, form core.EventForm, category core.Category) core.MutationResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	start, end := form.Timestamps(core.AgendaLocation(core.DefaultUTCOffsetMinutes))
	f.events[category] = append(f.events[category], core.CalendarEvent{
		ID:      "new-" + string(rune('0'+f.nextID)),
		Summary: form.Summary,
		Start:   start,
		End:     end,
	})
	return core.MutationResult{Kind: core.MutationAdd, Status: core.MutationSucceeded, Category: category}
}

func (f *fakeCalendar) EditEvent(_ context.Context, id string, form core.EventForm, category core.Category) core.MutationResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, event := range f.events[category] {
		if event.ID == id {
			f.events[category][i].Summary = form.Summary
			return core.MutationResult{Kind: core.MutationEdit, Status: core.MutationSucceeded, Category: category, EventID: id}
		}
	}
	return core.MutationResult{Kind: core.MutationEdit, Status: core.MutationNotFound, Category: category, EventID: id, StatusCode: 404}
}

func (f *fakeCalendar) DeleteEvent(_ context.Context, id string, category core.Category) core.MutationResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	events := f.events[category]
	for i, event := range events {
		if event.ID == id {
			f.events[category] = append(events[:i:i], events[i+1:]...)
			return core.MutationResult{Kind: core.MutationDelete, Status: core.MutationSucceeded, Category: category, EventID: id}
		}
	}
	return core.MutationResult{Kind: core.MutationDelete, Status: core.MutationNotFound, Category: category, EventID: id, StatusCode: 404}
}

type fakeBot struct {
	phones []string
	err    error
}

func (b *fakeBot) SendMessage(_ context.Context, phone string, _ string, _ int) (webhooks.Report, error) {
	b.phones = append(b.phones, phone)
	return webhooks.Report{Operation: core.OperationMessage, Success: b.err == nil}, b.err
}

func (b *fakeBot) PauseBot(_ context.Context, phone string, _ *int) (webhooks.Report, error) {
	b.phones = append(b.phones, phone)
	if b.err != nil {
		return webhooks.Report{
			Operation: core.OperationPauseBot,
			Attempts:  []webhooks.Attempt{{}, {}, {}},
			LastError: b.err,
		}, b.err
	}
	return webhooks.Report{Operation: core.OperationPauseBot, Success: true, StatusCode: 200}, nil
}

func (b *fakeBot) StartBot(_ context.Context, phone string) (webhooks.Report, error) {
	b.phones = append(b.phones, phone)
	return webhooks.Report{Operation: core.OperationStartBot, Success: true}, nil
}

func doJSON(t *testing.T, router http.Handler, method string, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

type errorBody struct {
	Error struct {
		Message  string `json:"message"`
		TextCode string `json:"text_code"`
	} `json:"error"`
}

func TestHealth(t *testing.T) {
	router := NewServer().Router()
	rec := doJSON(t, router, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}
	if rec := doJSON(t, router, http.MethodGet, "/v1/endpoints", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected endpoint routes to be absent without a service, got %d", rec.Code)
	}
}

func TestEndpointRoutes_SaveAndList(t *testing.T) {
	store, err := filestore.NewStore(filepath.Join(t.TempDir(), "endpoints.json"))
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	svc, err := core.NewService(core.Config{}, core.WithOverrideStore(store))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	router := NewServer(WithEndpoints(svc)).Router()

	rec := doJSON(t, router, http.MethodPut, "/v1/endpoints", map[string]string{"pausaBot": "https://x/pause"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}

	var listed struct {
		Endpoints map[string]string `json:"endpoints"`
	}
	decodeBody(t, doJSON(t, router, http.MethodGet, "/v1/endpoints", nil), &listed)
	if listed.Endpoints["pausaBot"] != "https://x/pause" {
		t.Fatalf("expected saved override, got %q", listed.Endpoints["pausaBot"])
	}
	if listed.Endpoints["iniciaBot"] != core.DefaultWebhookBase+"/inicia_bot" {
		t.Fatalf("expected default start endpoint, got %q", listed.Endpoints["iniciaBot"])
	}

	persisted, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load store: %v", err)
	}
	if persisted[core.OperationPauseBot] != "https://x/pause" {
		t.Fatalf("expected override on disk, got %#v", persisted)
	}

	rec = doJSON(t, router, http.MethodPut, "/v1/endpoints", map[string]string{"nope": "https://x"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown key, got %d", rec.Code)
	}

	var groups struct {
		Groups []core.EndpointGroupView `json:"groups"`
	}
	decodeBody(t, doJSON(t, router, http.MethodGet, "/v1/endpoints/groups", nil), &groups)
	if len(groups.Groups) == 0 {
		t.Fatalf("expected endpoint groups")
	}
}

func TestAgendaRoutes_ListSwitchesCategoryAndFilters(t *testing.T) {
	cal := newFakeCalendar()
	coordinator := bosync.NewCoordinator(cal)
	router := NewServer(WithAgenda(coordinator)).Router()

	rec := doJSON(t, router, http.MethodGet, "/v1/agenda/venda-ci/events?date=2024-06-01", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	var view struct {
		Category string               `json:"category"`
		Events   []core.CalendarEvent `json:"events"`
		Total    int                  `json:"total"`
	}
	decodeBody(t, rec, &view)
	if view.Category != string(core.CategoryVenda) {
		t.Fatalf("expected venda view, got %q", view.Category)
	}
	if len(view.Events) != 2 || view.Events[0].ID != "v1" {
		t.Fatalf("expected venda events ordered by start, got %#v", view.Events)
	}
	last := cal.filters[len(cal.filters)-1]
	if last.Date != "2024-06-01" {
		t.Fatalf("expected date filter to reach the calendar, got %#v", last)
	}

	decodeBody(t, doJSON(t, router, http.MethodGet, "/v1/agenda/venda-ci/events?q=carla", nil), &view)
	if len(view.Events) != 1 || view.Events[0].ID != "v1" || view.Total != 2 {
		t.Fatalf("expected search match out of two, got %#v (total %d)", view.Events, view.Total)
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/agenda/outra/events", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown category, got %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodGet, "/v1/agenda/venda-ci/events?date=06-01-2024", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed date, got %d", rec.Code)
	}
}

func TestAgendaRoutes_Mutations(t *testing.T) {
	cal := newFakeCalendar()
	coordinator := bosync.NewCoordinator(cal)
	router := NewServer(WithAgenda(coordinator)).Router()

	rec := doJSON(t, router, http.MethodPost, "/v1/agenda/mentoria-ci/events", core.EventForm{
		Date:      "2024-06-01",
		StartTime: "11:00",
		EndTime:   "12:00",
		Summary:   "Mentoria Nova",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Result core.MutationResult `json:"result"`
		Agenda bosync.Snapshot     `json:"agenda"`
	}
	decodeBody(t, rec, &created)
	if created.Result.Status != core.MutationSucceeded {
		t.Fatalf("expected success, got %#v", created.Result)
	}
	if len(created.Agenda.Events) != 2 {
		t.Fatalf("expected reconciling read to show the new event, got %#v", created.Agenda.Events)
	}

	rec = doJSON(t, router, http.MethodPost, "/v1/agenda/mentoria-ci/events", core.EventForm{Date: "2024-06-01"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid form, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPut, "/v1/agenda/mentoria-ci/events/m1", core.EventForm{
		Date:      "2024-06-01",
		StartTime: "09:00",
		EndTime:   "10:00",
		Summary:   "Mentoria Ana (remarcada)",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on edit, got %d %s", rec.Code, rec.Body.String())
	}

	if rec := doJSON(t, router, http.MethodDelete, "/v1/agenda/mentoria-ci/events/m1", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on delete, got %d %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, router, http.MethodDelete, "/v1/agenda/mentoria-ci/events/m1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", rec.Code)
	}
	var failure errorBody
	decodeBody(t, rec, &failure)
	if failure.Error.TextCode != core.ErrorCalendarEventNotFound {
		t.Fatalf("expected not found text code, got %q", failure.Error.TextCode)
	}
}

// gatedBody signals on the first read and then blocks until released, which
// parks a request inside its handler.
type gatedBody struct {
	raw      *bytes.Reader
	started  chan struct{}
	release  chan struct{}
	signaled sync.Once
}

func (b *gatedBody) Read(p []byte) (int, error) {
	b.signaled.Do(func() {
		close(b.started)
		<-b.release
	})
	return b.raw.Read(p)
}

func TestAgendaRoutes_OverlappingRequestsKeepRouteCategory(t *testing.T) {
	cal := newFakeCalendar()
	coordinator := bosync.NewCoordinator(cal)
	router := NewServer(WithAgenda(coordinator)).Router()

	if rec := doJSON(t, router, http.MethodGet, "/v1/agenda/venda-ci/events", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}

	raw, err := json.Marshal(core.EventForm{Date: "2024-06-02", StartTime: "10:00", EndTime: "11:00", Summary: "Venda Nova"})
	if err != nil {
		t.Fatalf("marshal form: %v", err)
	}
	body := &gatedBody{raw: bytes.NewReader(raw), started: make(chan struct{}), release: make(chan struct{})}
	req := httptest.NewRequest(http.MethodPost, "/v1/agenda/venda-ci/events", body)
	req.Header.Set("Content-Type", "application/json")
	posted := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		router.ServeHTTP(posted, req)
	}()
	<-body.started

	listed := doJSON(t, router, http.MethodGet, "/v1/agenda/mentoria-ci/events", nil)
	if listed.Code != http.StatusOK {
		t.Fatalf("expected 200 on overlapping list, got %d %s", listed.Code, listed.Body.String())
	}
	close(body.release)
	<-done

	if posted.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", posted.Code, posted.Body.String())
	}
	var created struct {
		Result core.MutationResult `json:"result"`
		Agenda bosync.Snapshot     `json:"agenda"`
	}
	decodeBody(t, posted, &created)
	if created.Result.Category != core.CategoryVenda || created.Agenda.Category != core.CategoryVenda {
		t.Fatalf("expected add and view on venda, got result %q view %q", created.Result.Category, created.Agenda.Category)
	}

	cal.mu.Lock()
	defer cal.mu.Unlock()
	for _, event := range cal.events[core.CategoryMentoria] {
		if event.Summary == "Venda Nova" {
			t.Fatalf("expected event to stay out of mentoria, got %#v", cal.events[core.CategoryMentoria])
		}
	}
	if got := len(cal.events[core.CategoryVenda]); got != 3 {
		t.Fatalf("expected new event in venda, got %d events", got)
	}
}

func TestAgendaRoutes_ExportICS(t *testing.T) {
	coordinator := bosync.NewCoordinator(newFakeCalendar())
	router := NewServer(WithAgenda(coordinator)).Router()

	rec := doJSON(t, router, http.MethodGet, "/v1/agenda/venda-ci/events.ics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Fatalf("expected calendar content type, got %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "BEGIN:VCALENDAR") || strings.Count(body, "BEGIN:VEVENT") != 2 {
		t.Fatalf("expected two events in export, got %s", body)
	}
}

func TestBotRoutes(t *testing.T) {
	bot := &fakeBot{}
	router := NewServer(WithBot(bot)).Router()

	rec := doJSON(t, router, http.MethodPost, "/v1/bot/pause", map[string]any{"phone": "11987654321", "duration": 60})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	if rec := doJSON(t, router, http.MethodPost, "/v1/bot/start", map[string]any{"phone": "11987654321"}); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on start, got %d", rec.Code)
	}
	if rec := doJSON(t, router, http.MethodPost, "/v1/bot/message", map[string]any{"phone": "11987654321", "message": "oi"}); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on message, got %d", rec.Code)
	}
	if len(bot.phones) != 3 {
		t.Fatalf("expected three bot calls, got %d", len(bot.phones))
	}

	bot.err = context.DeadlineExceeded
	rec = doJSON(t, router, http.MethodPost, "/v1/bot/pause", map[string]any{"phone": "11987654321"})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 for exhausted delivery, got %d", rec.Code)
	}
	var failed struct {
		Success bool           `json:"success"`
		Report  map[string]any `json:"report"`
	}
	decodeBody(t, rec, &failed)
	if failed.Success || failed.Report["attempts"] != float64(3) {
		t.Fatalf("unexpected failure body %#v", failed)
	}
}
