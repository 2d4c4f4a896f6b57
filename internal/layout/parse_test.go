package layout

import (
	"encoding/json"
	"strings"
	"testing"
)

type topField struct {
	keys  []string
	value any
	get   func(Config) any
	def   any
}

var topFields = []topField{
	{[]string{"width"}, 1200, func(c Config) any { return c.Width }, DefaultWidth},
	{[]string{"height"}, 825, func(c Config) any { return c.Height }, DefaultHeight},
	{[]string{"gridCols"}, 6, func(c Config) any { return c.Columns }, DefaultColumns},
	{[]string{"gridRows"}, 4, func(c Config) any { return c.Rows }, DefaultRows},
	{[]string{"padding"}, 0, func(c Config) any { return c.Padding }, DefaultPadding},
	{[]string{"gap"}, 10, func(c Config) any { return c.Gap }, DefaultGap},
	{[]string{"borderWidth"}, 1, func(c Config) any { return c.BorderWidth }, DefaultBorderWidth},
	{[]string{"titleFontSize"}, 22, func(c Config) any { return c.TitleFontSize }, DefaultTitleFontSize},
	{[]string{"textFontSize"}, 18, func(c Config) any { return c.TextFontSize }, DefaultTextFontSize},
	{[]string{"colorScheme"}, map[string]any{"name": "Inverted", "background": "#000000"}, func(c Config) any { return c.Scheme.Name }, "Default"},
}

// Every subset of optional top-level fields parses, and each field holds its
// default exactly when it was left out.
func TestParseAppliesDefaultsForEveryFieldSubset(t *testing.T) {
	want := map[string]any{
		"width": 1200, "height": 825, "gridCols": 6, "gridRows": 4, "padding": 0, "gap": 10,
		"borderWidth": 1, "titleFontSize": 22, "textFontSize": 18, "colorScheme": "Inverted",
	}
	for mask := 0; mask < 1<<len(topFields); mask++ {
		doc := map[string]any{}
		for i, f := range topFields {
			if mask&(1<<i) != 0 {
				doc[f.keys[0]] = f.value
			}
		}
		b, _ := json.Marshal(doc)
		cfg, err := Parse(b)
		if err != nil {
			t.Fatalf("mask %b: parse: %v", mask, err)
		}
		for i, f := range topFields {
			got := f.get(cfg)
			expect := f.def
			if mask&(1<<i) != 0 {
				expect = want[f.keys[0]]
			}
			if got != expect {
				t.Fatalf("mask %b: field %s = %v want %v", mask, f.keys[0], got, expect)
			}
		}
	}
}

func TestParseEmptyAndInvalidDocuments(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil || cfg.Width != DefaultWidth || cfg.Scheme != DefaultScheme() {
		t.Fatalf("empty document: %+v %v", cfg, err)
	}
	if _, err := Parse([]byte(`{"width":`)); err == nil {
		t.Fatalf("expected error for malformed JSON")
	}
	if _, err := Parse([]byte(`[1,2]`)); err == nil {
		t.Fatalf("expected error for array root")
	}
}

func TestParseToleratesWrongTypesAndLegacyKeys(t *testing.T) {
	cfg, err := Parse([]byte(`{
		"width": "640",
		"height": true,
		"grid_columns": 4,
		"grid_rows": -2,
		"border_width": 2,
		"title_font_size": 20.4,
		"color_scheme": {"name": "Legacy", "widget_text": "#333333", "accent": ""},
		"widgets": "nope"
	}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Width != 640 || cfg.Height != DefaultHeight || cfg.Columns != 4 || cfg.Rows != DefaultRows {
		t.Fatalf("unexpected geometry %+v", cfg)
	}
	if cfg.BorderWidth != 2 || cfg.TitleFontSize != 20 {
		t.Fatalf("unexpected sizes %+v", cfg)
	}
	if cfg.Scheme.Name != "Legacy" || cfg.Scheme.WidgetText != "#333333" || cfg.Scheme.Accent != "#000000" {
		t.Fatalf("unexpected scheme %+v", cfg.Scheme)
	}
	if len(cfg.Widgets) != 0 {
		t.Fatalf("expected no widgets, got %d", len(cfg.Widgets))
	}
}

func TestParseWidgets(t *testing.T) {
	cfg, err := Parse([]byte(`{
		"gridCols": 4, "gridRows": 3,
		"widgets": [
			{"id": "a", "type": "calendar", "config": {"entityId": "calendar.test"}},
			{"id": "b", "type": "todo", "position": {"x": 3, "y": 1, "w": 5, "h": 0},
			 "colorOverrides": {"widgetBackground": "#ff0000", "icon": ""}, "titleOverride": " Shop "},
			{"id": "c", "type": "mystery", "position": {"x": 9, "y": 9, "width": 2, "height": 2}, "color_overrides": {}},
			42
		]
	}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(cfg.Widgets) != 3 {
		t.Fatalf("expected 3 widgets, got %d", len(cfg.Widgets))
	}
	a, b, c := cfg.Widgets[0], cfg.Widgets[1], cfg.Widgets[2]
	if a.Position != (Position{0, 0, 1, 1}) || string(a.Config) != `{"entityId": "calendar.test"}` {
		t.Fatalf("unexpected widget a %+v", a)
	}
	if b.Position != (Position{3, 1, 1, 1}) {
		t.Fatalf("expected clamped position, got %+v", b.Position)
	}
	if b.ColorOverrides == nil || b.ColorOverrides.WidgetBackground != "#ff0000" || b.TitleOverride != "Shop" {
		t.Fatalf("unexpected overrides %+v %q", b.ColorOverrides, b.TitleOverride)
	}
	if got := b.Scheme(cfg.Scheme); got.WidgetBackground != "#ff0000" || got.Icon != "#000000" {
		t.Fatalf("unexpected effective scheme %+v", got)
	}
	if c.Type.Known() || c.Position != (Position{3, 2, 1, 1}) || c.ColorOverrides != nil {
		t.Fatalf("unexpected widget c %+v", c)
	}
}

func TestDecodeConfig(t *testing.T) {
	var dst struct {
		EntityID string `json:"entityId"`
	}
	if (WidgetEntry{}).DecodeConfig(&dst) {
		t.Fatalf("absent config must not decode")
	}
	if (WidgetEntry{Config: json.RawMessage(`[1]`)}).DecodeConfig(&dst) {
		t.Fatalf("array config must not decode into a struct")
	}
	if !(WidgetEntry{Config: json.RawMessage(`{"entityId":"x"}`)}).DecodeConfig(&dst) || dst.EntityID != "x" {
		t.Fatalf("expected config to decode, got %+v", dst)
	}
}

type trimmedConfig struct {
	EntityID  string `json:"entityId"`
	MaxEvents int    `json:"maxEvents"`
	ShowQR    bool   `json:"showQrCode"`
	Title     string `json:"title"`
	Series    []struct {
		EntityID string `json:"entityId"`
	} `json:"series"`
}

func (c *trimmedConfig) Normalize() { c.EntityID = strings.TrimSpace(c.EntityID) }

func TestDecodeConfigToleratesMistypedFields(t *testing.T) {
	var c trimmedConfig
	raw := `{"entityId":" calendar.test ","maxEvents":"5","showQrCode":"true","title":2024,"series":[{"entity_id":"sensor.a"},{"entityId":7}]}`
	if !(WidgetEntry{Config: json.RawMessage(raw)}).DecodeConfig(&c) {
		t.Fatalf("config with mistyped fields must still decode")
	}
	if c.EntityID != "calendar.test" {
		t.Fatalf("expected trimmed entity id, got %q", c.EntityID)
	}
	if c.MaxEvents != 5 || !c.ShowQR || c.Title != "2024" {
		t.Fatalf("expected converted scalars, got %+v", c)
	}
	if len(c.Series) != 2 || c.Series[0].EntityID != "sensor.a" {
		t.Fatalf("expected snake_case key in series, got %+v", c.Series)
	}

	var bad trimmedConfig
	if !(WidgetEntry{Config: json.RawMessage(`{"entityId":"x","maxEvents":"lots"}`)}).DecodeConfig(&bad) || bad.EntityID != "x" || bad.MaxEvents != 0 {
		t.Fatalf("unconvertible field should fall back to zero, got %+v", bad)
	}
}
