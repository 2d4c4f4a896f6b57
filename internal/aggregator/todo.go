package aggregator

import (
	"context"
	"strings"
	"time"

	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/hass"
)

type todoListResult struct {
	Items []struct {
		UID         string `json:"uid"`
		Summary     string `json:"summary"`
		Status      string `json:"status"`
		Description string `json:"description"`
		Due         string `json:"due"`
	} `json:"items"`
}

// FetchTodoItems returns the items of a todo list entity in list order.
func (s *Service) FetchTodoItems(ctx context.Context, dashboardID, entityID string) ([]TodoItem, error) {
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return nil, validationErr("Entity ID is required")
	}
	return run(ctx, s, "todo", dashboardID, func(ctx context.Context, conn hass.Conn) ([]TodoItem, error) {
		res, err := conn.Exchange(ctx, hass.Command{"type": "todo/item/list", "entity_id": entityID})
		if err != nil {
			return nil, err
		}
		if err := res.Err("Failed to fetch todo items"); err != nil {
			return nil, err
		}
		var body todoListResult
		if err := res.Decode(&body); err != nil {
			return nil, err
		}
		out := make([]TodoItem, 0, len(body.Items))
		for _, it := range body.Items {
			item := TodoItem{UID: it.UID, Summary: it.Summary, Status: it.Status, Description: it.Description}
			if due, _, ok := parseDateOrTime(it.Due, s.loc); ok {
				item.Due = &due
			}
			out = append(out, item)
		}
		return out, nil
	})
}

// parseDateOrTime parses either a bare date (interpreted in loc) or a
// timestamp. dateOnly reports which form was found.
func parseDateOrTime(v string, loc *time.Location) (t time.Time, dateOnly bool, ok bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false, false
	}
	if d, err := time.ParseInLocation(time.DateOnly, v, loc); err == nil {
		return d, true, true
	}
	if ts := hass.ParseTime(v); !ts.IsZero() {
		return ts, false, true
	}
	if ts, err := time.ParseInLocation("2006-01-02T15:04:05", v, loc); err == nil {
		return ts, false, true
	}
	return time.Time{}, false, false
}
