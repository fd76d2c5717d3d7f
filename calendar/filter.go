package calendar

import (
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-backoffice/core"
)

// EventQuery narrows an already fetched list. A zero Day keeps every day.
type EventQuery struct {
	Day      core.DateFilter
	Search   string
	Location *time.Location
}

// FilterEvents keeps events starting on the query day whose summary,
// description or attendee emails contain the search term, ordered by start.
// Events with an unparseable start sort last and are dropped by a day filter.
func FilterEvents(events []core.CalendarEvent, query EventQuery) []core.CalendarEvent {
	loc := query.Location
	if loc == nil {
		loc = core.AgendaLocation(core.DefaultUTCOffsetMinutes)
	}
	search := strings.ToLower(strings.TrimSpace(query.Search))

	type candidate struct {
		event core.CalendarEvent
		start time.Time
		ok    bool
	}
	matched := make([]candidate, 0, len(events))
	for _, event := range events {
		start, err := event.StartTime()
		parsed := err == nil
		if !query.Day.IsZero() {
			if !parsed || start.In(loc).Format(core.DateLayout) != query.Day.Date {
				continue
			}
		}
		if search != "" && !matchesSearch(event, search) {
			continue
		}
		matched = append(matched, candidate{event: event, start: start, ok: parsed})
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].ok != matched[j].ok {
			return matched[i].ok
		}
		return matched[i].start.Before(matched[j].start)
	})

	out := make([]core.CalendarEvent, 0, len(matched))
	for _, item := range matched {
		out = append(out, item.event)
	}
	return out
}

func matchesSearch(event core.CalendarEvent, search string) bool {
	if strings.Contains(strings.ToLower(event.Summary), search) {
		return true
	}
	if strings.Contains(strings.ToLower(event.Description), search) {
		return true
	}
	for _, attendee := range event.Attendees {
		if strings.Contains(strings.ToLower(attendee.Email), search) {
			return true
		}
	}
	return false
}
