package aggregator

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/hass"
)

// compressedState is the row format of history/history_during_period.
// Fields repeated from the previous row are omitted by the server.
type compressedState struct {
	State       any             `json:"s"`
	Attributes  json.RawMessage `json:"a"`
	LastUpdated *float64        `json:"lu"`
	LastChanged *float64        `json:"lc"`
}

type historyQuery struct {
	entityIDs  []string
	start, end time.Time
	attributes bool
}

func (q historyQuery) command() hass.Command {
	cmd := hass.Command{
		"type":                     "history/history_during_period",
		"start_time":               q.start.UTC().Format(time.RFC3339),
		"entity_ids":               q.entityIDs,
		"minimal_response":         !q.attributes,
		"no_attributes":            !q.attributes,
		"significant_changes_only": false,
	}
	if !q.end.IsZero() {
		cmd["end_time"] = q.end.UTC().Format(time.RFC3339)
	}
	return cmd
}

func fetchHistory(ctx context.Context, conn hass.Conn, q historyQuery) (map[string][]HistorySample, error) {
	res, err := conn.Exchange(ctx, q.command())
	if err != nil {
		return nil, err
	}
	if err := res.Err("Failed to fetch entity history"); err != nil {
		return nil, err
	}
	var raw map[string][]compressedState
	if err := res.Decode(&raw); err != nil {
		return nil, err
	}
	out := make(map[string][]HistorySample, len(raw))
	for entityID, rows := range raw {
		out[entityID] = decodeHistoryRows(rows)
	}
	return out, nil
}

// decodeHistoryRows expands compressed rows. A row without lc changed at lu;
// a row without a keeps the attributes of the row before it.
func decodeHistoryRows(rows []compressedState) []HistorySample {
	samples := make([]HistorySample, 0, len(rows))
	var prevAttrs map[string]any
	for _, row := range rows {
		if row.LastUpdated == nil {
			continue
		}
		sm := HistorySample{Time: epoch(*row.LastUpdated)}
		sm.LastChanged = sm.Time
		if row.LastChanged != nil {
			sm.LastChanged = epoch(*row.LastChanged)
		}
		switch v := row.State.(type) {
		case string:
			sm.State = v
		case float64:
			sm.State = strconv.FormatFloat(v, 'f', -1, 64)
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(sm.State), 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			sm.Value = f
			sm.Numeric = true
		}
		if attrs, ok := hass.DecodeLoose(row.Attributes).(map[string]any); ok {
			prevAttrs = attrs
		}
		sm.Attributes = prevAttrs
		samples = append(samples, sm)
	}
	return samples
}

func epoch(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC()
}

// FetchEntityHistory returns recorded samples for entityIDs in [start, end].
// Entities without samples are absent from the map.
func (s *Service) FetchEntityHistory(ctx context.Context, dashboardID string, entityIDs []string, start, end time.Time) (map[string][]HistorySample, error) {
	ids := make([]string, 0, len(entityIDs))
	for _, id := range entityIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return map[string][]HistorySample{}, nil
	}
	return run(ctx, s, "history", dashboardID, func(ctx context.Context, conn hass.Conn) (map[string][]HistorySample, error) {
		return fetchHistory(ctx, conn, historyQuery{entityIDs: ids, start: start, end: end})
	})
}
