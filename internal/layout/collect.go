package layout

import (
	"sort"
	"strings"
)

type entityRef struct {
	EntityID  string `json:"entityId"`
	EntityID2 string `json:"entity_id"`
}

func (r entityRef) id() string {
	if s := strings.TrimSpace(r.EntityID); s != "" {
		return s
	}
	return strings.TrimSpace(r.EntityID2)
}

// CollectEntityIDs lists, sorted and without duplicates, every entity the
// layout's widgets read state from.
func CollectEntityIDs(cfg Config) []string {
	set := make(map[string]struct{})
	add := func(id string) {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	for _, w := range cfg.Widgets {
		switch w.Type {
		case TypeCalendar, TypeWeather, TypeWeatherForecast, TypeTodo, TypeRSSFeed:
			var c entityRef
			if w.DecodeConfig(&c) {
				add(c.id())
			}
		case TypeGraph:
			var c struct {
				Series []entityRef `json:"series"`
			}
			if w.DecodeConfig(&c) {
				for _, s := range c.Series {
					add(s.id())
				}
			}
		case TypeHeader:
			var c struct {
				Badges []entityRef `json:"badges"`
			}
			if w.DecodeConfig(&c) {
				for _, b := range c.Badges {
					add(b.id())
				}
			}
		}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
