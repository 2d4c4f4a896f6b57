package aggregator

import (
	"context"
	"sort"
	"strings"

	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/hass"
)

func getStates(ctx context.Context, conn hass.Conn) ([]hass.EntityState, error) {
	res, err := conn.Exchange(ctx, hass.Command{"type": "get_states"})
	if err != nil {
		return nil, err
	}
	if err := res.Err("Failed to fetch entity states"); err != nil {
		return nil, err
	}
	var states []hass.EntityState
	if err := res.Decode(&states); err != nil {
		return nil, err
	}
	return states, nil
}

// FetchEntities lists every entity with its friendly name, sorted by id.
func (s *Service) FetchEntities(ctx context.Context, dashboardID string) ([]Entity, error) {
	return run(ctx, s, "entities", dashboardID, func(ctx context.Context, conn hass.Conn) ([]Entity, error) {
		states, err := getStates(ctx, conn)
		if err != nil {
			return nil, err
		}
		out := make([]Entity, 0, len(states))
		for _, st := range states {
			if st.EntityID == "" {
				continue
			}
			out = append(out, Entity{ID: st.EntityID, FriendlyName: st.FriendlyName()})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return out, nil
	})
}

// FetchEntityStates returns the current state of the requested entities.
// Matching ignores case. An empty request succeeds without any network use.
func (s *Service) FetchEntityStates(ctx context.Context, dashboardID string, entityIDs []string) ([]hass.EntityState, error) {
	wanted := make(map[string]struct{}, len(entityIDs))
	for _, id := range entityIDs {
		if id = strings.TrimSpace(id); id != "" {
			wanted[strings.ToLower(id)] = struct{}{}
		}
	}
	if len(wanted) == 0 {
		return []hass.EntityState{}, nil
	}
	return run(ctx, s, "states", dashboardID, func(ctx context.Context, conn hass.Conn) ([]hass.EntityState, error) {
		states, err := getStates(ctx, conn)
		if err != nil {
			return nil, err
		}
		out := make([]hass.EntityState, 0, len(wanted))
		for _, st := range states {
			if _, ok := wanted[strings.ToLower(st.EntityID)]; ok {
				out = append(out, st)
			}
		}
		return out, nil
	})
}
