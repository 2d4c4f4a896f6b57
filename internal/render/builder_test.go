package render

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/aggregator"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/hass"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/store"
)

type fakeSource struct {
	layout    string
	validate  error
	statesErr error
	todoErr   error

	mu       sync.Mutex
	calls    []string
	inflight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeSource) record(call string) func() {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	n := f.inflight.Add(1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return func() { f.inflight.Add(-1) }
}

func (f *fakeSource) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (f *fakeSource) Validate(_ context.Context, id string) (*store.Dashboard, error) {
	if f.validate != nil {
		return nil, f.validate
	}
	return &store.Dashboard{ID: uuid.MustParse(id), Host: "http://ha", AccessToken: "t", Layout: datatypes.JSON(f.layout)}, nil
}

func (f *fakeSource) FetchEntityStates(_ context.Context, _ string, ids []string) ([]hass.EntityState, error) {
	defer f.record("states")()
	if f.statesErr != nil {
		return nil, f.statesErr
	}
	var out []hass.EntityState
	for _, id := range ids {
		out = append(out, hass.EntityState{EntityID: id, State: "on", Attributes: map[string]any{"friendly_name": "Name of " + id}})
	}
	return out, nil
}

func (f *fakeSource) FetchTodoItems(_ context.Context, _, entity string) ([]aggregator.TodoItem, error) {
	defer f.record("todo:" + entity)()
	if f.todoErr != nil {
		return nil, f.todoErr
	}
	return []aggregator.TodoItem{{Summary: "Water plants", Status: "needs_action"}}, nil
}

func (f *fakeSource) FetchCalendarEvents(_ context.Context, _, entity string, start, end time.Time) ([]aggregator.CalendarEvent, error) {
	defer f.record("calendar:" + entity)()
	return []aggregator.CalendarEvent{{Summary: "Standup", Start: start.Add(time.Hour), End: start.Add(2 * time.Hour)}}, nil
}

func (f *fakeSource) FetchWeatherForecast(_ context.Context, _, entity, mode string) ([]aggregator.ForecastItem, error) {
	defer f.record("forecast:" + entity + ":" + mode)()
	return []aggregator.ForecastItem{{Condition: "sunny"}}, nil
}

func (f *fakeSource) FetchRssFeedEntries(_ context.Context, _, entity string) ([]aggregator.FeedEntry, error) {
	defer f.record("rss:" + entity)()
	return []aggregator.FeedEntry{{Title: "Entity headline"}}, nil
}

func (f *fakeSource) FetchEntityHistory(_ context.Context, _ string, ids []string, start, end time.Time) (map[string][]aggregator.HistorySample, error) {
	defer f.record("history:" + strings.Join(ids, ","))()
	out := map[string][]aggregator.HistorySample{}
	for _, id := range ids {
		out[id] = []aggregator.HistorySample{
			{Time: end.Add(-2 * time.Hour), Value: 1, Numeric: true},
			{Time: end.Add(-time.Hour), Value: 3, Numeric: true},
		}
	}
	return out, nil
}

type fakeFeeds struct{ urls []string }

func (f *fakeFeeds) Fetch(_ context.Context, url string) ([]aggregator.FeedEntry, error) {
	f.urls = append(f.urls, url)
	return []aggregator.FeedEntry{{Title: "URL headline"}}, nil
}

const testLayout = `{
	"widgets": [
		{"id": "t1", "type": "todo", "position": {"x": 0, "y": 0, "w": 2, "h": 2}, "config": {"entityId": "todo.home"}},
		{"id": "t2", "type": "todo", "position": {"x": 2, "y": 0, "w": 2, "h": 2}, "config": {"entityId": "todo.home"}},
		{"id": "c", "type": "calendar", "position": {"x": 4, "y": 0, "w": 3, "h": 3}, "config": {"entityId": "calendar.work"}},
		{"id": "f", "type": "weather-forecast", "position": {"x": 7, "y": 0, "w": 2, "h": 2}, "config": {"entityId": "weather.home", "mode": "weekly"}},
		{"id": "r1", "type": "rss-feed", "position": {"x": 0, "y": 3, "w": 3, "h": 2}, "config": {"entityId": "event.news"}},
		{"id": "r2", "type": "rss-feed", "position": {"x": 3, "y": 3, "w": 3, "h": 2}, "config": {"feedUrl": "https://example.com/rss"}},
		{"id": "g", "type": "graph", "position": {"x": 6, "y": 3, "w": 4, "h": 3}, "config": {"series": [{"entityId": "sensor.temp"}]}}
	]
}`

var testID = uuid.NewString()

func TestBuildFetchesPerWidgetAndAssembles(t *testing.T) {
	src := &fakeSource{layout: testLayout}
	feeds := &fakeFeeds{}
	b := NewBuilder(src, feeds, "2.0.0", time.UTC)

	doc, err := b.Build(context.Background(), testID)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, want := range []string{"Water plants", "Standup", "mdi-weather-sunny", "Entity headline", "URL headline", "<polyline", "Name of todo.home"} {
		if !strings.Contains(doc, want) {
			t.Fatalf("document missing %q", want)
		}
	}
	if n := src.count("todo:"); n != 1 {
		t.Fatalf("duplicate todo widgets should share one fetch, got %d", n)
	}
	if n := src.count("states"); n != 1 {
		t.Fatalf("expected one bulk state fetch, got %d", n)
	}
	if n := src.count("forecast:weather.home:weekly"); n != 1 {
		t.Fatalf("expected weekly forecast fetch, got %v", src.calls)
	}
	if len(feeds.urls) != 1 || feeds.urls[0] != "https://example.com/rss" {
		t.Fatalf("unexpected feed fetches %v", feeds.urls)
	}
	if p := src.peak.Load(); p > fetchLimit {
		t.Fatalf("expected at most %d concurrent fetches, saw %d", fetchLimit, p)
	}
}

func TestBuildDegradesOnFetchFailures(t *testing.T) {
	src := &fakeSource{layout: testLayout, statesErr: errors.New("boom"), todoErr: errors.New("todo down")}
	doc, err := NewBuilder(src, nil, "", time.UTC).Build(context.Background(), testID)
	if err != nil {
		t.Fatalf("fetch failures must not fail the build: %v", err)
	}
	if !strings.Contains(doc, "No todo data") {
		t.Fatalf("failed todo fetch should render a placeholder")
	}
	if !strings.Contains(doc, "Standup") || !strings.Contains(doc, "Entity headline") {
		t.Fatalf("sibling widgets must still render")
	}
	if !strings.Contains(doc, "No feed entries") {
		t.Fatalf("url feed without a feed source should render a placeholder")
	}
}

func TestBuildReturnsValidationErrors(t *testing.T) {
	want := &aggregator.Error{Kind: aggregator.KindValidation, Message: aggregator.MsgHostMissing}
	src := &fakeSource{validate: want}
	_, err := NewBuilder(src, nil, "", time.UTC).Build(context.Background(), testID)
	if !errors.Is(err, want) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(src.calls) != 0 {
		t.Fatalf("no fetches expected, got %v", src.calls)
	}
}

func TestBuildRejectsMalformedLayout(t *testing.T) {
	src := &fakeSource{layout: `{"widgets": [`}
	_, err := NewBuilder(src, nil, "", time.UTC).Build(context.Background(), testID)
	if aggregator.KindOf(err) != aggregator.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestBuildEmptyLayout(t *testing.T) {
	src := &fakeSource{}
	doc, err := NewBuilder(src, nil, "", time.UTC).Build(context.Background(), testID)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(doc, `<main class="dashboard"></main>`) || len(src.calls) != 0 {
		t.Fatalf("empty layout should render an empty grid without fetches")
	}
}

func TestBuildUsesTrimmedIDsFromLenientConfigs(t *testing.T) {
	src := &fakeSource{layout: `{"widgets": [
		{"id": "c", "type": "calendar", "position": {"x": 0, "y": 0, "w": 3, "h": 3}, "config": {"entityId": " calendar.work ", "maxEvents": "5", "daysAhead": "3"}},
		{"id": "g", "type": "graph", "position": {"x": 3, "y": 0, "w": 4, "h": 3}, "config": {"hours": "12", "series": [{"entity_id": " sensor.temp "}]}}
	]}`}
	doc, err := NewBuilder(src, nil, "", time.UTC).Build(context.Background(), testID)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if n := src.count("calendar:calendar.work"); n != 1 {
		t.Fatalf("expected a calendar fetch for the trimmed id, got %v", src.calls)
	}
	if n := src.count("history:sensor.temp"); n != 1 {
		t.Fatalf("expected a history fetch for the trimmed id, got %v", src.calls)
	}
	if !strings.Contains(doc, "Standup") || !strings.Contains(doc, "<polyline") {
		t.Fatalf("fetched data must reach the widgets")
	}
}
