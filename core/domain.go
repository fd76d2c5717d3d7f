package core

import (
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	// DateLayout is the civil date layout used by filters and forms.
	DateLayout = "2006-01-02"
	// BoundLayout renders day bounds with millisecond precision and offset.
	BoundLayout = "2006-01-02T15:04:05.000-07:00"
	// EventTimeLayout renders event start/end without fractional seconds.
	EventTimeLayout = "2006-01-02T15:04:05-07:00"
	// clockLayout accepts "9:00" on input; output is always zero-padded.
	clockLayout = "15:04"

	DefaultUTCOffsetMinutes = -180
)

// AgendaLocation returns the fixed zone all agenda timestamps are expressed in.
func AgendaLocation(offsetMinutes int) *time.Location {
	offset := offsetMinutes * 60
	sign := "+"
	if offsetMinutes < 0 {
		sign = "-"
		offsetMinutes = -offsetMinutes
	}
	return time.FixedZone(fmt.Sprintf("UTC%s%02d:%02d", sign, offsetMinutes/60, offsetMinutes%60), offset)
}

type Attendee struct {
	Email          string `json:"email"`
	DisplayName    string `json:"displayName,omitempty"`
	ResponseStatus string `json:"responseStatus,omitempty"`
}

// CalendarEvent mirrors the record returned by the remote event store.
// Start and End are kept as the store sent them.
type CalendarEvent struct {
	ID          string     `json:"id"`
	Summary     string     `json:"summary"`
	Description string     `json:"description,omitempty"`
	Start       string     `json:"start"`
	End         string     `json:"end"`
	Attendees   []Attendee `json:"attendees,omitempty"`
}

func (e CalendarEvent) StartTime() (time.Time, error) {
	return parseEventTime(e.Start)
}

func (e CalendarEvent) EndTime() (time.Time, error) {
	return parseEventTime(e.End)
}

func parseEventTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{time.RFC3339Nano, BoundLayout, EventTimeLayout, "2006-01-02T15:04:05", DateLayout} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("core: invalid event time %q", value)
}

func CloneEvents(events []CalendarEvent) []CalendarEvent {
	if events == nil {
		return nil
	}
	out := make([]CalendarEvent, len(events))
	for i, event := range events {
		out[i] = event
		if event.Attendees != nil {
			out[i].Attendees = append([]Attendee(nil), event.Attendees...)
		}
	}
	return out
}

// EventForm is the user supplied shape for creating or editing an event.
type EventForm struct {
	Date        string `json:"date"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Email       string `json:"email"`
}

func (f EventForm) Validate() error {
	if strings.TrimSpace(f.Summary) == "" {
		return NewValidationError("summary", "summary is required")
	}
	if _, err := time.Parse(DateLayout, strings.TrimSpace(f.Date)); err != nil {
		return NewValidationError("date", "date must be YYYY-MM-DD")
	}
	start, err := time.Parse(clockLayout, strings.TrimSpace(f.StartTime))
	if err != nil {
		return NewValidationError("startTime", "start time must be HH:MM")
	}
	end, err := time.Parse(clockLayout, strings.TrimSpace(f.EndTime))
	if err != nil {
		return NewValidationError("endTime", "end time must be HH:MM")
	}
	if end.Before(start) {
		return NewValidationError("endTime", "end time must not precede start time")
	}
	return nil
}

// Timestamps renders the form's start and end in the agenda offset, as
// date+"T"+HH:MM+":00"+offset. Clock values are zero-padded, so "9:00"
// renders as 09:00.
func (f EventForm) Timestamps(loc *time.Location) (string, string) {
	date := strings.TrimSpace(f.Date)
	suffix := offsetSuffix(loc)
	return date + "T" + clock(f.StartTime) + ":00" + suffix,
		date + "T" + clock(f.EndTime) + ":00" + suffix
}

func clock(value string) string {
	value = strings.TrimSpace(value)
	parsed, err := time.Parse(clockLayout, value)
	if err != nil {
		return value
	}
	return parsed.Format(clockLayout)
}

func offsetSuffix(loc *time.Location) string {
	if loc == nil {
		loc = AgendaLocation(DefaultUTCOffsetMinutes)
	}
	return time.Date(2000, 1, 1, 0, 0, 0, 0, loc).Format("-07:00")
}

// DateFilter restricts reads to a single civil day. The zero value means no
// filter.
type DateFilter struct {
	Date string `json:"date"`
}

func NewDateFilter(day time.Time) DateFilter {
	return DateFilter{Date: day.Format(DateLayout)}
}

func ParseDateFilter(value string) (DateFilter, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return DateFilter{}, nil
	}
	if _, err := time.Parse(DateLayout, value); err != nil {
		return DateFilter{}, WrapError(err, goerrors.CategoryBadInput, "core: date filter must be YYYY-MM-DD", ErrorBadInput, map[string]any{
			"date": value,
		})
	}
	return DateFilter{Date: value}, nil
}

func (f DateFilter) IsZero() bool {
	return strings.TrimSpace(f.Date) == ""
}

func (f DateFilter) String() string {
	if f.IsZero() {
		return "all"
	}
	return f.Date
}

// Bounds returns the first and last representable millisecond of the day in
// the given location.
func (f DateFilter) Bounds(loc *time.Location) (string, string, bool) {
	if f.IsZero() {
		return "", "", false
	}
	if loc == nil {
		loc = AgendaLocation(DefaultUTCOffsetMinutes)
	}
	day, err := time.ParseInLocation(DateLayout, strings.TrimSpace(f.Date), loc)
	if err != nil {
		return "", "", false
	}
	start := day
	end := day.Add(24*time.Hour - time.Millisecond)
	return start.Format(BoundLayout), end.Format(BoundLayout), true
}

type MutationKind string

const (
	MutationAdd    MutationKind = "add"
	MutationEdit   MutationKind = "edit"
	MutationDelete MutationKind = "delete"
)

type MutationStatus string

const (
	MutationSucceeded MutationStatus = "success"
	MutationNotFound  MutationStatus = "not_found"
	MutationFailed    MutationStatus = "failure"
)

// MutationResult is the typed outcome of a single calendar mutation.
type MutationResult struct {
	Kind       MutationKind   `json:"kind"`
	Status     MutationStatus `json:"status"`
	Category   Category       `json:"category"`
	EventID    string         `json:"event_id,omitempty"`
	StatusCode int            `json:"status_code,omitempty"`
	Body       string         `json:"body,omitempty"`
	Err        error          `json:"-"`
}

func (r MutationResult) OK() bool {
	return r.Status == MutationSucceeded
}

func (r MutationResult) NotFound() bool {
	return r.Status == MutationNotFound
}

type NotificationLevel string

const (
	NotificationSuccess NotificationLevel = "success"
	NotificationError   NotificationLevel = "error"
)

// Notification is a transient, dismissable message for the operator.
type Notification struct {
	Level    NotificationLevel `json:"level"`
	Message  string            `json:"message"`
	Category Category          `json:"category"`
	At       time.Time         `json:"at"`
}
