package widgets

import (
	"html/template"
	"strings"
	"time"

	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/aggregator"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/layout"
)

const DefaultMaxEvents = 7

type CalendarConfig struct {
	EntityID  string `json:"entityId"`
	Title     string `json:"title"`
	MaxEvents int    `json:"maxEvents"`
	DaysAhead int    `json:"daysAhead"`
}

func (c *CalendarConfig) Normalize() { c.EntityID = strings.TrimSpace(c.EntityID) }

func renderCalendar(w layout.WidgetEntry, cfg layout.Config, data *Data) template.HTML {
	var c CalendarConfig
	if !w.DecodeConfig(&c) || strings.TrimSpace(c.EntityID) == "" {
		return Placeholder("calendar", "Select a calendar")
	}
	var (
		events []aggregator.CalendarEvent
		ok     bool
	)
	if data != nil {
		events, ok = data.Events[c.EntityID]
	}
	if !ok {
		return Placeholder("calendar", "No calendar data")
	}
	limit := c.MaxEvents
	if limit <= 0 {
		limit = DefaultMaxEvents
	}
	upcoming := UpcomingEvents(events, data.now(), limit)

	name := ""
	if st, ok := data.State(c.EntityID); ok {
		name = st.FriendlyName()
	}
	var b strings.Builder
	if len(upcoming) == 0 {
		b.WriteString(`<div class="calendar-empty">No upcoming events</div>`)
	} else {
		b.WriteString(`<ul class="calendar-events">`)
		for _, e := range upcoming {
			b.WriteString(`<li class="calendar-event">`)
			b.WriteString(mdi("clock-outline", "event-icon"))
			b.WriteString(`<span class="event-time">` + esc(formatEventStart(e, data)) + `</span>`)
			b.WriteString(`<span class="event-title">` + esc(e.Summary) + `</span>`)
			b.WriteString(`</li>`)
		}
		b.WriteString(`</ul>`)
	}
	return frame("calendar", title(w, c.Title, name), b.String())
}

// UpcomingEvents keeps events that have not ended by now, in input order,
// at most limit of them.
func UpcomingEvents(events []aggregator.CalendarEvent, now time.Time, limit int) []aggregator.CalendarEvent {
	out := make([]aggregator.CalendarEvent, 0, min(len(events), limit))
	for _, e := range events {
		if len(out) >= limit {
			break
		}
		if e.End.Before(now) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func formatEventStart(e aggregator.CalendarEvent, data *Data) string {
	if e.AllDay {
		return e.Start.Format("Mon 02 Jan")
	}
	return e.Start.In(data.loc()).Format("Mon 02 Jan 15:04")
}
