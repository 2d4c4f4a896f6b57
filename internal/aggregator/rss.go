package aggregator

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/hass"
)

// feedHistoryWindow is how far back feed events are collected.
const feedHistoryWindow = 7 * 24 * time.Hour

// FetchRssFeedEntries reads the entries a feedreader event entity has
// announced in the last week, newest first. Without any recorded event the
// entity's current attributes form the only entry.
func (s *Service) FetchRssFeedEntries(ctx context.Context, dashboardID, entityID string) ([]FeedEntry, error) {
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return nil, validationErr("Entity ID is required")
	}
	return run(ctx, s, "rss", dashboardID, func(ctx context.Context, conn hass.Conn) ([]FeedEntry, error) {
		now := time.Now()
		hist, err := fetchHistory(ctx, conn, historyQuery{
			entityIDs:  []string{entityID},
			start:      now.Add(-feedHistoryWindow),
			end:        now,
			attributes: true,
		})
		if err != nil {
			return nil, err
		}
		entries := feedEntriesFromHistory(hist[entityID])
		if len(entries) > 0 {
			return entries, nil
		}

		states, err := getStates(ctx, conn)
		if err != nil {
			return nil, err
		}
		for _, st := range states {
			if strings.EqualFold(st.EntityID, entityID) {
				if e, ok := feedEntryFromAttrs(st.Attributes, st.LastChanged); ok {
					return []FeedEntry{e}, nil
				}
			}
		}
		return []FeedEntry{}, nil
	})
}

func feedEntriesFromHistory(samples []HistorySample) []FeedEntry {
	seen := make(map[string]struct{}, len(samples))
	out := make([]FeedEntry, 0, len(samples))
	for i := len(samples) - 1; i >= 0; i-- {
		e, ok := feedEntryFromAttrs(samples[i].Attributes, samples[i].LastChanged)
		if !ok {
			continue
		}
		key := e.Link + "\x00" + e.Title
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Published.After(out[j].Published) })
	return out
}

func feedEntryFromAttrs(attrs map[string]any, fallback time.Time) (FeedEntry, bool) {
	str := func(k string) string {
		v, _ := attrs[k].(string)
		return strings.TrimSpace(v)
	}
	e := FeedEntry{Title: str("title"), Link: str("link"), Description: str("description")}
	if e.Title == "" && e.Link == "" {
		return FeedEntry{}, false
	}
	if e.Description == "" {
		e.Description = str("content")
	}
	e.Published = hass.ParseTime(str("published"))
	if e.Published.IsZero() {
		e.Published = fallback
	}
	return e, true
}
