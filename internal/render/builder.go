package render

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/aggregator"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/hass"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/layout"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/store"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/widgets"
)

// fetchLimit bounds the concurrent Home Assistant sessions of one build.
const fetchLimit = 4

const defaultCalendarDays = 7

// Source is the slice of the aggregator the builder reads from.
type Source interface {
	Validate(ctx context.Context, dashboardID string) (*store.Dashboard, error)
	FetchEntityStates(ctx context.Context, dashboardID string, entityIDs []string) ([]hass.EntityState, error)
	FetchTodoItems(ctx context.Context, dashboardID, entityID string) ([]aggregator.TodoItem, error)
	FetchCalendarEvents(ctx context.Context, dashboardID, entityID string, start, end time.Time) ([]aggregator.CalendarEvent, error)
	FetchWeatherForecast(ctx context.Context, dashboardID, entityID, mode string) ([]aggregator.ForecastItem, error)
	FetchRssFeedEntries(ctx context.Context, dashboardID, entityID string) ([]aggregator.FeedEntry, error)
	FetchEntityHistory(ctx context.Context, dashboardID string, entityIDs []string, start, end time.Time) (map[string][]aggregator.HistorySample, error)
}

// FeedSource fetches RSS or Atom feeds by URL, for feed widgets that are not
// backed by a Home Assistant entity.
type FeedSource interface {
	Fetch(ctx context.Context, url string) ([]aggregator.FeedEntry, error)
}

type Builder struct {
	source   Source
	feeds    FeedSource
	version  string
	location *time.Location
	now      func() time.Time
}

// NewBuilder returns a Builder. feeds may be nil, in which case URL feeds
// render as empty.
func NewBuilder(source Source, feeds FeedSource, version string, loc *time.Location) *Builder {
	if loc == nil {
		loc = time.Local
	}
	return &Builder{source: source, feeds: feeds, version: version, location: loc, now: time.Now}
}

var tracer = otel.Tracer("izboard/render")

// Build renders the dashboard's current document. Only dashboard-level
// failures are returned; failed data fetches leave their widgets on
// placeholders.
func (b *Builder) Build(ctx context.Context, dashboardID string) (string, error) {
	ctx, span := tracer.Start(ctx, "render.build")
	defer span.End()
	span.SetAttributes(attribute.String("dashboard.id", dashboardID))

	cfg, data, err := b.Collect(ctx, dashboardID)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return Document(cfg, data), nil
}

// Collect loads and parses the layout and fetches everything its widgets
// show.
func (b *Builder) Collect(ctx context.Context, dashboardID string) (layout.Config, *Data, error) {
	d, err := b.source.Validate(ctx, dashboardID)
	if err != nil {
		return layout.Config{}, nil, err
	}
	cfg, err := layout.Parse([]byte(d.Layout))
	if err != nil {
		return layout.Config{}, nil, &aggregator.Error{Kind: aggregator.KindValidation, Message: "Dashboard layout is not valid JSON", Err: err}
	}

	data := &Data{
		Now:        b.now(),
		Location:   b.location,
		Version:    b.version,
		AppIconSVG: widgets.AppIcon,
		States:     map[string]hass.EntityState{},
		Todos:      map[string][]aggregator.TodoItem{},
		Events:     map[string][]aggregator.CalendarEvent{},
		Forecasts:  map[string][]aggregator.ForecastItem{},
		Feeds:      map[string][]aggregator.FeedEntry{},
		History:    map[string][]aggregator.HistorySample{},
	}

	if ids := layout.CollectEntityIDs(cfg); len(ids) > 0 {
		states, err := b.source.FetchEntityStates(ctx, dashboardID, ids)
		if err != nil {
			slog.Warn("entity state fetch failed, rendering placeholders", "dashboard_id", dashboardID, "error", err)
		}
		for _, st := range states {
			data.States[st.EntityID] = st
		}
	}

	f := &fetcher{b: b, dashboardID: dashboardID, data: data, seen: map[string]bool{}}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchLimit)
	for _, w := range cfg.Widgets {
		f.schedule(gctx, g, w)
	}
	_ = g.Wait()
	return cfg, data, nil
}

// fetcher fans out the per-widget fetches of one build. Every task returns
// nil so that one failing widget never cancels the others. schedule runs on
// the building goroutine only; seen needs no lock.
type fetcher struct {
	b           *Builder
	dashboardID string
	data        *Data

	mu   sync.Mutex
	seen map[string]bool
}

func (f *fetcher) once(key string) bool {
	if f.seen[key] {
		return false
	}
	f.seen[key] = true
	return true
}

func (f *fetcher) schedule(ctx context.Context, g *errgroup.Group, w layout.WidgetEntry) {
	src := f.b.source
	id := f.dashboardID
	now := f.data.Now

	switch w.Type {
	case layout.TypeTodo:
		var c widgets.TodoConfig
		if !w.DecodeConfig(&c) || strings.TrimSpace(c.EntityID) == "" || !f.once("todo|"+c.EntityID) {
			return
		}
		f.run(g, w, func() error {
			items, err := src.FetchTodoItems(ctx, id, c.EntityID)
			if err == nil {
				f.store(func() { f.data.Todos[c.EntityID] = items })
			}
			return err
		})
	case layout.TypeCalendar:
		var c widgets.CalendarConfig
		if !w.DecodeConfig(&c) || strings.TrimSpace(c.EntityID) == "" || !f.once("calendar|"+c.EntityID) {
			return
		}
		days := c.DaysAhead
		if days <= 0 {
			days = defaultCalendarDays
		}
		f.run(g, w, func() error {
			events, err := src.FetchCalendarEvents(ctx, id, c.EntityID, now, now.AddDate(0, 0, days))
			if err == nil {
				f.store(func() { f.data.Events[c.EntityID] = events })
			}
			return err
		})
	case layout.TypeWeatherForecast:
		var c widgets.ForecastConfig
		if !w.DecodeConfig(&c) || strings.TrimSpace(c.EntityID) == "" {
			return
		}
		key := widgets.ForecastKey(c.EntityID, c.Mode)
		if !f.once("forecast|" + key) {
			return
		}
		f.run(g, w, func() error {
			items, err := src.FetchWeatherForecast(ctx, id, c.EntityID, c.Mode)
			if err == nil {
				f.store(func() { f.data.Forecasts[key] = items })
			}
			return err
		})
	case layout.TypeRSSFeed:
		var c widgets.RSSConfig
		if !w.DecodeConfig(&c) {
			return
		}
		key := c.FeedKey()
		if key == "" || !f.once("feed|"+key) {
			return
		}
		f.run(g, w, func() error {
			var (
				entries []aggregator.FeedEntry
				err     error
			)
			switch {
			case strings.TrimSpace(c.EntityID) != "":
				entries, err = src.FetchRssFeedEntries(ctx, id, key)
			case f.b.feeds != nil:
				entries, err = f.b.feeds.Fetch(ctx, key)
			default:
				return nil
			}
			if err == nil {
				f.store(func() { f.data.Feeds[key] = entries })
			}
			return err
		})
	case layout.TypeGraph:
		var c widgets.GraphConfig
		if !w.DecodeConfig(&c) {
			return
		}
		var ids []string
		for _, s := range c.Series {
			if e := strings.TrimSpace(s.EntityID); e != "" {
				ids = append(ids, e)
			}
		}
		if len(ids) == 0 {
			return
		}
		window := c.Window()
		f.run(g, w, func() error {
			hist, err := src.FetchEntityHistory(ctx, id, ids, now.Add(-window), now)
			if err == nil {
				f.store(func() {
					// Graphs over the same entity may use different windows;
					// each filters the longer series down to its own.
					for entity, samples := range hist {
						if len(samples) > len(f.data.History[entity]) {
							f.data.History[entity] = samples
						}
					}
				})
			}
			return err
		})
	}
}

func (f *fetcher) run(g *errgroup.Group, w layout.WidgetEntry, fn func() error) {
	g.Go(func() error {
		if err := fn(); err != nil {
			slog.Warn("widget data fetch failed", "dashboard_id", f.dashboardID, "widget_id", w.ID, "widget_type", w.Type, "error", err)
		}
		return nil
	})
}

func (f *fetcher) store(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn()
}
