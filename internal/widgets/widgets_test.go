package widgets

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/aggregator"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/hass"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/layout"
)

var testNow = time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)

func entry(t *testing.T, typ layout.WidgetType, pos layout.Position, config string) layout.WidgetEntry {
	t.Helper()
	if config != "" && !json.Valid([]byte(config)) {
		t.Fatalf("invalid test config %s", config)
	}
	if pos.Width == 0 {
		pos.Width = 1
	}
	if pos.Height == 0 {
		pos.Height = 1
	}
	w := layout.WidgetEntry{ID: "w1", Type: typ, Position: pos}
	if config != "" {
		w.Config = json.RawMessage(config)
	}
	return w
}

func f(v float64) *float64 { return &v }

func sampleData() *Data {
	return &Data{
		Now:        testNow,
		Location:   time.UTC,
		Version:    "1.4.2",
		AppIconSVG: AppIcon,
		States: map[string]hass.EntityState{
			"weather.home": {EntityID: "weather.home", State: "sunny", Attributes: map[string]any{
				"friendly_name": "Home weather", "temperature": 21.0, "temperature_unit": "°C",
				"humidity": int64(55), "wind_speed": 12.0, "wind_speed_unit": "km/h",
			}},
			"sensor.power": {EntityID: "sensor.power", State: "340", Attributes: map[string]any{"unit_of_measurement": "W", "friendly_name": "Power"}},
			"todo.shop":    {EntityID: "todo.shop", State: "2", Attributes: map[string]any{"friendly_name": "Shopping"}},
		},
		Forecasts: map[string][]aggregator.ForecastItem{
			ForecastKey("weather.home", "daily"): {
				{Time: testNow.AddDate(0, 0, 1), Condition: "rainy", Temperature: f(18), TempLow: f(9)},
				{Time: testNow.AddDate(0, 0, 2), Condition: "cloudy", Temperature: f(17)},
				{Time: testNow.AddDate(0, 0, 3), Condition: "sunny", Temperature: f(22)},
				{Time: testNow.AddDate(0, 0, 4), Condition: "sunny", Temperature: f(23)},
				{Time: testNow.AddDate(0, 0, 5), Condition: "fog"},
			},
		},
		Todos: map[string][]aggregator.TodoItem{
			"todo.shop": {
				{UID: "1", Summary: "Milk", Status: "completed"},
				{UID: "2", Summary: "Bread", Status: "needs_action"},
				{UID: "3", Summary: "Eggs & <ham>", Status: "needs_action"},
			},
		},
		Feeds: map[string][]aggregator.FeedEntry{
			"event.news": {
				{Title: "Newest story", Link: "https://example.com/a", Description: "<p>Some <b>bold</b> text</p>"},
				{Title: "Older story", Link: "https://example.com/b"},
			},
			"https://example.com/feed.xml": {{Title: "No link entry"}},
		},
		History: map[string][]aggregator.HistorySample{
			"sensor.power": {
				{Time: testNow.Add(-48 * time.Hour), Value: 999, Numeric: true},
				{Time: testNow.Add(-3 * time.Hour), Value: 300, Numeric: true},
				{Time: testNow.Add(-2 * time.Hour), State: "unavailable"},
				{Time: testNow.Add(-1 * time.Hour), Value: 340, Numeric: true},
			},
		},
	}
}

func TestUnknownTypeRendersPlaceholder(t *testing.T) {
	out := string(Render(entry(t, "clock", layout.Position{}, ""), layout.Default(), sampleData()))
	if !strings.Contains(out, "widget-placeholder") || !strings.Contains(out, "Unknown widget: clock") {
		t.Fatalf("unexpected output %s", out)
	}
}

func TestEveryKnownTypeHasRenderer(t *testing.T) {
	for _, typ := range []layout.WidgetType{
		layout.TypeHeader, layout.TypeCalendar, layout.TypeWeather, layout.TypeWeatherForecast, layout.TypeTodo,
		layout.TypeMarkdown, layout.TypeRSSFeed, layout.TypeVersion, layout.TypeAppIcon, layout.TypeImage, layout.TypeGraph,
	} {
		if _, ok := renderers[typ]; !ok {
			t.Fatalf("no renderer for %s", typ)
		}
		// Unconfigured widgets must still render something.
		if out := Render(entry(t, typ, layout.Position{}, ""), layout.Default(), nil); out == "" {
			t.Fatalf("%s rendered nothing without config", typ)
		}
	}
}

func TestHeaderBadgesAndIconPosition(t *testing.T) {
	cfg := layout.Default()
	cfg.Scheme.Accent = "#d40000"
	w := entry(t, layout.TypeHeader, layout.Position{Width: 12}, `{"title":"Hallway","iconPosition":"right","badges":[{"icon":"flash","entityId":"sensor.power"},{"icon":"home","label":"Home"}]}`)
	out := string(Render(w, cfg, sampleData()))
	if !strings.Contains(out, "Hallway") || !strings.Contains(out, "340 W") || !strings.Contains(out, "header-icon-right") {
		t.Fatalf("unexpected header %s", out)
	}
	if !strings.Contains(out, `stroke="#d40000"`) || strings.Contains(out, "currentColor") {
		t.Fatalf("expected accent tinted icon: %s", out)
	}
	if strings.Index(out, "header-title") > strings.Index(out, "<svg") {
		t.Fatalf("icon should follow the title when positioned right")
	}
}

func TestTodo(t *testing.T) {
	cfg := layout.Default()
	data := sampleData()
	out := string(Render(entry(t, layout.TypeTodo, layout.Position{Width: 2, Height: 2}, `{"entityId":"todo.shop"}`), cfg, data))
	if strings.Index(out, "Bread") > strings.Index(out, "Milk") {
		t.Fatalf("incomplete items must come first: %s", out)
	}
	if !strings.Contains(out, "Eggs &amp; &lt;ham&gt;") || !strings.Contains(out, "Shopping") {
		t.Fatalf("expected escaped summary and list title: %s", out)
	}
	count := string(Render(entry(t, layout.TypeTodo, layout.Position{}, `{"entityId":"todo.shop"}`), cfg, data))
	if !strings.Contains(count, `<span class="todo-count-value">2</span>`) || strings.Contains(count, "Bread") {
		t.Fatalf("1x1 todo should show only the pending count: %s", count)
	}
}

func TestTodoDisplayItemsTruncates(t *testing.T) {
	var items []aggregator.TodoItem
	for i := 0; i < 20; i++ {
		items = append(items, aggregator.TodoItem{Summary: string(rune('a' + i)), Status: "needs_action"})
	}
	if got := TodoDisplayItems(items, 2*1*2); len(got) != 4 || got[0].Summary != "a" {
		t.Fatalf("unexpected truncation %+v", got)
	}
}

func TestMarkdownVersionAppIconImage(t *testing.T) {
	cfg := layout.Default()
	data := sampleData()
	md := string(Render(entry(t, layout.TypeMarkdown, layout.Position{Width: 2}, `{"content":"# Hi\n- one"}`), cfg, data))
	if !strings.Contains(md, "<h1>Hi</h1><ul><li>one</li></ul>") {
		t.Fatalf("unexpected markdown %s", md)
	}
	if v := string(Render(entry(t, layout.TypeVersion, layout.Position{}, ""), cfg, data)); !strings.Contains(v, "1.4.2") {
		t.Fatalf("unexpected version %s", v)
	}
	if icon := string(Render(entry(t, layout.TypeAppIcon, layout.Position{}, ""), cfg, data)); !strings.Contains(icon, "<svg") {
		t.Fatalf("unexpected app icon %s", icon)
	}
	img := string(Render(entry(t, layout.TypeImage, layout.Position{}, `{"url":"https://x/y.png?a=1&b=2","fit":"cover"}`), cfg, data))
	if !strings.Contains(img, `src="https://x/y.png?a=1&amp;b=2"`) || !strings.Contains(img, "object-fit: cover") {
		t.Fatalf("unexpected image %s", img)
	}
	bad := string(Render(entry(t, layout.TypeImage, layout.Position{}, `{"url":"javascript:alert(1)","fit":"weird"}`), cfg, data))
	if !strings.Contains(bad, "widget-placeholder") {
		t.Fatalf("expected placeholder for unsupported url: %s", bad)
	}
}

func TestRSSShowsNewestEntryWithQRCode(t *testing.T) {
	cfg := layout.Default()
	data := sampleData()
	out := string(Render(entry(t, layout.TypeRSSFeed, layout.Position{Width: 3, Height: 2}, `{"entityId":"event.news"}`), cfg, data))
	if !strings.Contains(out, "Newest story") || strings.Contains(out, "Older story") {
		t.Fatalf("expected only the newest entry: %s", out)
	}
	if !strings.Contains(out, `class="qr-code"`) || !strings.Contains(out, "Some bold text") {
		t.Fatalf("expected qr code and stripped description: %s", out)
	}
	noLink := string(Render(entry(t, layout.TypeRSSFeed, layout.Position{Width: 3, Height: 2}, `{"feedUrl":"https://example.com/feed.xml"}`), cfg, data))
	if !strings.Contains(noLink, "No link entry") || strings.Contains(noLink, "qr-code") {
		t.Fatalf("entries without link must not get a qr code: %s", noLink)
	}
}

func TestGraphUsesWindowedNumericHistory(t *testing.T) {
	cfg := layout.Default()
	w := entry(t, layout.TypeGraph, layout.Position{Width: 4, Height: 3}, `{"title":"Power","hours":6,"series":[{"entityId":"sensor.power"}]}`)
	out := string(Render(w, cfg, sampleData()))
	if !strings.Contains(out, "<polyline") {
		t.Fatalf("expected a line chart: %s", out)
	}
	if strings.Contains(out, ">999<") {
		t.Fatalf("samples outside the window must not affect the scale: %s", out)
	}
	none := entry(t, layout.TypeGraph, layout.Position{Width: 4, Height: 3}, `{"series":[{"entityId":"sensor.none"}]}`)
	if out := string(Render(none, cfg, sampleData())); !strings.Contains(out, "widget-placeholder") {
		t.Fatalf("expected placeholder without history: %s", out)
	}
}

func TestQRCodeSVG(t *testing.T) {
	svg, err := QRCodeSVG("https://example.com", "#123456")
	if err != nil {
		t.Fatalf("qr: %v", err)
	}
	if !strings.HasPrefix(svg, "<svg") || !strings.Contains(svg, `fill="#123456"`) || !strings.Contains(svg, "h1v1h-1z") {
		t.Fatalf("unexpected qr svg %s", svg)
	}
}

func TestPixelSize(t *testing.T) {
	cfg := layout.Default()
	w, h := PixelSize(layout.Position{Width: 12, Height: 8}, cfg)
	if w <= 700 || w > 800 || h <= 400 || h > 480 {
		t.Fatalf("unexpected full-canvas size %dx%d", w, h)
	}
	if w1, h1 := PixelSize(layout.Position{Width: 1, Height: 1}, cfg); w1 >= w || h1 >= h || w1 < 1 || h1 < 1 {
		t.Fatalf("unexpected cell size %dx%d", w1, h1)
	}
}

func TestEntityIDsAreTrimmedBeforeLookup(t *testing.T) {
	cfg := layout.Default()
	data := sampleData()
	data.History["Sensor.T"] = []aggregator.HistorySample{
		{Time: testNow.Add(-2 * time.Hour), Value: 1, Numeric: true},
		{Time: testNow.Add(-1 * time.Hour), Value: 2, Numeric: true},
	}

	graph := entry(t, layout.TypeGraph, layout.Position{Width: 4, Height: 3}, `{"series":[{"entityId":" sensor.t "}]}`)
	if out := string(Render(graph, cfg, data)); !strings.Contains(out, "<polyline") {
		t.Fatalf("expected history for a padded, differently cased id: %s", out)
	}

	weather := entry(t, layout.TypeWeather, layout.Position{Width: 2, Height: 2}, `{"entityId":" weather.home "}`)
	if out := string(Render(weather, cfg, data)); strings.Contains(out, "widget-placeholder") {
		t.Fatalf("expected weather for a padded id: %s", out)
	}

	forecast := entry(t, layout.TypeWeatherForecast, layout.Position{Width: 3, Height: 2}, `{"entity_id":" weather.home ","mode":" daily "}`)
	if out := string(Render(forecast, cfg, data)); strings.Contains(out, "widget-placeholder") || !strings.Contains(out, "forecast") {
		t.Fatalf("expected forecast for a padded snake_case id: %s", out)
	}
}

func TestStripTagsDecodesEntitiesOnce(t *testing.T) {
	cases := map[string]string{
		"<p>Some <b>bold</b> text</p>":                        "Some bold text",
		"Fish &amp; chips at 5 &lt; 6":                        "Fish & chips at 5 < 6",
		"a<br/>b":                                             "a b",
		"<style>p{color:red}</style>News<script>x()</script>": "News",
		"3 > 2 and plain":                                     "3 > 2 and plain",
	}
	for in, want := range cases {
		if got := stripTags(in); got != want {
			t.Fatalf("stripTags(%q) = %q, want %q", in, got, want)
		}
	}

	cfg := layout.Default()
	data := sampleData()
	data.Feeds = map[string][]aggregator.FeedEntry{
		"event.news": {{Title: "Menu", Description: "<p>Fish &amp; chips</p>"}},
	}
	out := string(Render(entry(t, layout.TypeRSSFeed, layout.Position{Width: 3, Height: 2}, `{"entityId":"event.news"}`), cfg, data))
	if !strings.Contains(out, "Fish &amp; chips") || strings.Contains(out, "&amp;amp;") {
		t.Fatalf("expected entity escaped exactly once: %s", out)
	}
}
