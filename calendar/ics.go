package calendar

import (
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/goliatone/go-backoffice/core"
)

const icsProductID = "-//goliatone//go-backoffice//PT"

// ExportICS renders events as an iCalendar document. Events whose start or
// end cannot be parsed are skipped.
func ExportICS(events []core.CalendarEvent, name string, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(icsProductID)
	if name = strings.TrimSpace(name); name != "" {
		cal.SetXWRCalName(name)
	}
	if stamp.IsZero() {
		stamp = time.Now()
	}

	for _, event := range events {
		start, err := event.StartTime()
		if err != nil {
			continue
		}
		end, err := event.EndTime()
		if err != nil {
			continue
		}
		uid := strings.TrimSpace(event.ID)
		if uid == "" {
			uid = start.UTC().Format("20060102T150405Z") + "@go-backoffice"
		}
		vevent := cal.AddEvent(uid)
		vevent.SetDtStampTime(stamp.UTC())
		vevent.SetStartAt(start.UTC())
		vevent.SetEndAt(end.UTC())
		vevent.SetSummary(event.Summary)
		if description := strings.TrimSpace(event.Description); description != "" {
			vevent.SetDescription(description)
		}
		for _, attendee := range event.Attendees {
			email := strings.TrimSpace(attendee.Email)
			if email == "" {
				continue
			}
			params := []ical.PropertyParameter{}
			if attendee.DisplayName != "" {
				params = append(params, ical.WithCN(attendee.DisplayName))
			}
			vevent.AddAttendee(email, params...)
		}
	}
	return cal.Serialize()
}
