package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-backoffice/core"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

const maxLoggedBody = 2048

type Service struct {
	transport core.TransportAdapter
	resolver  core.EndpointResolver
	location  *time.Location
	timeout   time.Duration
	logger    core.Logger
	metrics   core.MetricsRecorder
	observer  *core.Observer
}

type Option func(*Service)

func WithLogger(logger core.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(s *Service) {
		s.metrics = recorder
	}
}

// WithLocation sets the zone used for day bounds and form timestamps.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithConfig applies the calendar section of the service config.
func WithConfig(cfg core.CalendarConfig) Option {
	return func(s *Service) {
		s.location = cfg.Location()
		if cfg.ReadTimeout() > 0 {
			s.timeout = cfg.ReadTimeout()
		}
	}
}

func NewService(transport core.TransportAdapter, resolver core.EndpointResolver, opts ...Option) *Service {
	s := &Service{
		transport: transport,
		resolver:  resolver,
		location:  core.AgendaLocation(core.DefaultUTCOffsetMinutes),
		timeout:   10 * time.Second,
		logger:    glog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.observer = core.NewObserver(s.logger, s.metrics, "calendar")
	return s
}

func (s *Service) Location() *time.Location {
	return s.location
}

// FetchEvents reads the category's agenda with a GET. An active filter adds
// start and end query parameters for the civil day.
func (s *Service) FetchEvents(ctx context.Context, category core.Category, filter core.DateFilter) (events []core.CalendarEvent, err error) {
	startedAt := time.Now()
	url := s.resolve(core.OperationAgenda, category)
	defer func() {
		s.observer.Observe(ctx, startedAt, "fetch", err, map[string]any{
			"category": string(category),
			"endpoint": url,
			"filter":   filter.String(),
			"count":    len(events),
		})
	}()

	req := core.TransportRequest{Method: http.MethodGet, URL: url, Timeout: s.timeout}
	if start, end, ok := filter.Bounds(s.location); ok {
		req.Query = map[string]string{"start": start, "end": end}
	}
	events, err = s.read(ctx, req, core.ErrorCalendarReadFailed, "calendar: fetch events")
	return events, err
}

// RefreshEventsViaPost reads the same endpoint with a POST whose body carries
// the day bounds. Its failures carry a text code distinct from FetchEvents.
func (s *Service) RefreshEventsViaPost(ctx context.Context, category core.Category, filter core.DateFilter) (events []core.CalendarEvent, err error) {
	startedAt := time.Now()
	url := s.resolve(core.OperationAgenda, category)
	defer func() {
		s.observer.Observe(ctx, startedAt, "refresh_post", err, map[string]any{
			"category": string(category),
			"endpoint": url,
			"filter":   filter.String(),
			"count":    len(events),
		})
	}()

	payload := map[string]string{}
	if start, end, ok := filter.Bounds(s.location); ok {
		payload["start"] = start
		payload["end"] = end
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, core.WrapError(err, goerrors.CategoryInternal, "calendar: encode refresh payload", core.ErrorCalendarRefreshFailed, nil)
	}
	req := core.TransportRequest{Method: http.MethodPost, URL: url, Body: body, Timeout: s.timeout}
	events, err = s.read(ctx, req, core.ErrorCalendarRefreshFailed, "calendar: refresh events via post")
	return events, err
}

func (s *Service) read(ctx context.Context, req core.TransportRequest, textCode string, message string) ([]core.CalendarEvent, error) {
	if s.transport == nil {
		return nil, core.NewError(message+": transport is not configured", goerrors.CategoryInternal, textCode, nil)
	}
	if strings.TrimSpace(req.URL) == "" {
		return nil, core.NewError(message+": endpoint is not configured", goerrors.CategoryInternal, textCode, nil)
	}
	res, err := s.transport.Do(ctx, req)
	if err != nil {
		return nil, core.WrapError(err, goerrors.CategoryExternal, message, textCode, map[string]any{"url": req.URL})
	}
	if !res.Successful() {
		return nil, core.NewError(
			fmt.Sprintf("%s: endpoint responded with status %d", message, res.StatusCode),
			goerrors.CategoryExternal,
			textCode,
			map[string]any{"url": req.URL, "status_code": res.StatusCode},
		)
	}
	events, err := decodeEvents(res.Body)
	if err != nil {
		return nil, core.WrapError(err, goerrors.CategoryExternal, message+": malformed response", textCode, map[string]any{"url": req.URL})
	}
	return events, nil
}

// decodeEvents accepts a JSON array of events. An empty body or a JSON value
// that is not an array yields an empty list; invalid JSON is an error.
func decodeEvents(body []byte) ([]core.CalendarEvent, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return []core.CalendarEvent{}, nil
	}
	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("response is not valid json")
	}
	if trimmed[0] != '[' {
		return []core.CalendarEvent{}, nil
	}
	var events []core.CalendarEvent
	if err := json.Unmarshal(trimmed, &events); err != nil {
		return nil, err
	}
	if events == nil {
		events = []core.CalendarEvent{}
	}
	return events, nil
}

type eventPayload struct {
	ID          string `json:"id,omitempty"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Email       string `json:"email"`
}

func (s *Service) formPayload(id string, form core.EventForm) eventPayload {
	start, end := form.Timestamps(s.location)
	return eventPayload{
		ID:          id,
		Summary:     form.Summary,
		Description: form.Description,
		Start:       start,
		End:         end,
		Email:       form.Email,
	}
}

func (s *Service) AddEvent(ctx context.Context, form core.EventForm, category core.Category) core.MutationResult {
	result := core.MutationResult{Kind: core.MutationAdd, Category: category}
	if err := form.Validate(); err != nil {
		return s.rejected(ctx, result, err)
	}
	return s.mutate(ctx, result, core.OperationAgendaAdd, s.formPayload("", form))
}

func (s *Service) EditEvent(ctx context.Context, id string, form core.EventForm, category core.Category) core.MutationResult {
	result := core.MutationResult{Kind: core.MutationEdit, Category: category, EventID: strings.TrimSpace(id)}
	if result.EventID == "" {
		return s.rejected(ctx, result, core.NewValidationError("id", "event id is required"))
	}
	if err := form.Validate(); err != nil {
		return s.rejected(ctx, result, err)
	}
	return s.mutate(ctx, result, core.OperationAgendaEdit, s.formPayload(result.EventID, form))
}

func (s *Service) DeleteEvent(ctx context.Context, id string, category core.Category) core.MutationResult {
	result := core.MutationResult{Kind: core.MutationDelete, Category: category, EventID: strings.TrimSpace(id)}
	if result.EventID == "" {
		return s.rejected(ctx, result, core.NewValidationError("id", "event id is required"))
	}
	return s.mutate(ctx, result, core.OperationAgendaDel, map[string]string{"id": result.EventID})
}

func (s *Service) rejected(ctx context.Context, result core.MutationResult, err error) core.MutationResult {
	result.Status = core.MutationFailed
	result.Err = err
	s.record(ctx, result, "")
	return result
}

// mutate sends a single POST. Mutations are not retried; a duplicate add is
// worse than a reported failure.
func (s *Service) mutate(ctx context.Context, result core.MutationResult, key core.OperationKey, payload any) core.MutationResult {
	url := s.resolve(key, result.Category)
	body, err := json.Marshal(payload)
	if err != nil {
		result.Status = core.MutationFailed
		result.Err = core.WrapError(err, goerrors.CategoryInternal, "calendar: encode payload", core.ErrorCalendarMutationFailed, nil)
		s.record(ctx, result, url)
		return result
	}
	if s.transport == nil || url == "" {
		result.Status = core.MutationFailed
		result.Err = core.NewError("calendar: mutation endpoint is not configured", goerrors.CategoryInternal, core.ErrorCalendarMutationFailed, map[string]any{
			"operation": string(key),
		})
		s.record(ctx, result, url)
		return result
	}

	res, err := s.transport.Do(ctx, core.TransportRequest{
		Method:  http.MethodPost,
		URL:     url,
		Body:    body,
		Timeout: s.timeout,
	})
	result.StatusCode = res.StatusCode
	result.Body = truncate(string(res.Body), maxLoggedBody)
	switch {
	case err != nil:
		result.Status = core.MutationFailed
		result.Err = core.WrapError(err, goerrors.CategoryExternal, "calendar: "+string(result.Kind)+" event", core.ErrorCalendarMutationFailed, map[string]any{
			"url": url,
		})
	case IsNotFound(res.StatusCode, res.Body):
		result.Status = core.MutationNotFound
		result.Err = core.NewError("calendar: event not found", goerrors.CategoryNotFound, core.ErrorCalendarEventNotFound, map[string]any{
			"event_id": result.EventID,
			"url":      url,
		})
	case !res.Successful():
		result.Status = core.MutationFailed
		result.Err = core.NewError(
			fmt.Sprintf("calendar: %s event responded with status %d", result.Kind, res.StatusCode),
			goerrors.CategoryExternal,
			core.ErrorCalendarMutationFailed,
			map[string]any{"url": url, "status_code": res.StatusCode},
		)
	default:
		result.Status = core.MutationSucceeded
	}
	s.record(ctx, result, url)
	return result
}

// record logs not-found as a warning and other failures as errors, with the
// response body attached for diagnosis.
func (s *Service) record(ctx context.Context, result core.MutationResult, url string) {
	operation := string(result.Kind)
	s.observer.Count(ctx, operation+".total", 1, map[string]string{
		"operation": operation,
		"status":    string(result.Status),
		"category":  string(result.Category),
	})
	fields := map[string]any{
		"category":    string(result.Category),
		"event_id":    result.EventID,
		"endpoint":    url,
		"status_code": result.StatusCode,
	}
	switch result.Status {
	case core.MutationSucceeded:
		s.observer.Log(ctx, "info", "calendar "+operation+" succeeded", fields)
	case core.MutationNotFound:
		fields["body"] = result.Body
		s.observer.Log(ctx, "warn", "calendar "+operation+" target not found", fields)
	default:
		fields["body"] = result.Body
		if result.Err != nil {
			fields["error"] = result.Err.Error()
		}
		s.observer.Log(ctx, "error", "calendar "+operation+" failed", fields)
	}
}

func (s *Service) resolve(key core.OperationKey, category core.Category) string {
	if s.resolver == nil {
		return ""
	}
	return strings.TrimSpace(s.resolver.Resolve(key, category))
}

var notFoundMarkers = []string{"not found", "not_found", "notfound", "não encontrado", "nao encontrado"}

// IsNotFound reports whether a mutation response says the target event no
// longer exists: HTTP 404, a JSON object with notFound=true,
// status="not_found" or a top-level message or error carrying a not-found
// phrase, or a plain-text reply with that phrase. A successful JSON object is
// never scanned as a whole, since it may echo event fields. Array bodies are
// event lists.
func IsNotFound(statusCode int, body []byte) bool {
	if statusCode == http.StatusNotFound {
		return true
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] == '[' {
		return false
	}
	var marker struct {
		NotFound bool   `json:"notFound"`
		Status   string `json:"status"`
		Message  any    `json:"message"`
		Error    any    `json:"error"`
	}
	if trimmed[0] == '{' && json.Unmarshal(trimmed, &marker) == nil {
		success := statusCode >= 200 && statusCode < 300
		if marker.NotFound {
			return true
		}
		status := strings.ToLower(strings.TrimSpace(marker.Status))
		if status == "not_found" || status == "notfound" || status == "not found" {
			return true
		}
		for _, field := range []any{marker.Message, marker.Error} {
			if text, ok := field.(string); ok && hasNotFoundPhrase(text) {
				return true
			}
		}
		if success {
			return false
		}
	}
	return hasNotFoundPhrase(string(trimmed))
}

func hasNotFoundPhrase(text string) bool {
	text = strings.ToLower(text)
	for _, phrase := range notFoundMarkers {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}
