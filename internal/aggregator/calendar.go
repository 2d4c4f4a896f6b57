package aggregator

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/hass"
)

// serviceResponse is the result of a call_service with return_response.
type serviceResponse struct {
	Response map[string]json.RawMessage `json:"response"`
}

func (r serviceResponse) entity(entityID string) (json.RawMessage, bool) {
	if raw, ok := r.Response[entityID]; ok {
		return raw, true
	}
	for k, raw := range r.Response {
		if strings.EqualFold(k, entityID) {
			return raw, true
		}
	}
	return nil, false
}

type calendarEventsBody struct {
	Events []struct {
		Start       string `json:"start"`
		End         string `json:"end"`
		Summary     string `json:"summary"`
		Description string `json:"description"`
		Location    string `json:"location"`
	} `json:"events"`
}

// FetchCalendarEvents returns the events of a calendar entity overlapping
// [start, end], in the order the calendar returned them.
func (s *Service) FetchCalendarEvents(ctx context.Context, dashboardID, entityID string, start, end time.Time) ([]CalendarEvent, error) {
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return nil, validationErr("Entity ID is required")
	}
	return run(ctx, s, "calendar", dashboardID, func(ctx context.Context, conn hass.Conn) ([]CalendarEvent, error) {
		res, err := callService(ctx, conn, "calendar", "get_events", entityID, map[string]any{
			"start_date_time": start.Format(time.RFC3339),
			"end_date_time":   end.Format(time.RFC3339),
		}, true)
		if err != nil {
			return nil, err
		}
		if err := res.Err("Failed to fetch calendar events"); err != nil {
			return nil, err
		}
		var resp serviceResponse
		if err := res.Decode(&resp); err != nil {
			return nil, err
		}
		raw, ok := resp.entity(entityID)
		if !ok {
			return []CalendarEvent{}, nil
		}
		var body calendarEventsBody
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, err
		}
		out := make([]CalendarEvent, 0, len(body.Events))
		for _, e := range body.Events {
			st, allDay, ok := parseDateOrTime(e.Start, s.loc)
			if !ok {
				continue
			}
			en, _, ok := parseDateOrTime(e.End, s.loc)
			if !ok {
				en = st
				if allDay {
					en = st.AddDate(0, 0, 1)
				}
			}
			out = append(out, CalendarEvent{
				Summary:     e.Summary,
				Description: e.Description,
				Location:    e.Location,
				Start:       st,
				End:         en,
				AllDay:      allDay,
			})
		}
		return out, nil
	})
}
