package layout

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrNotObject = errors.New("layout: document is not a JSON object")

// obj is one JSON object with lookups that tolerate alternative key
// spellings and wrongly typed values.
type obj map[string]json.RawMessage

func asObj(raw json.RawMessage) (obj, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, false
	}
	var o obj
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, false
	}
	return o, true
}

func (o obj) lookup(keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := o[k]; ok && string(v) != "null" {
			return v, true
		}
	}
	return nil, false
}

// num returns an integer field; fractional values round, numeric strings are
// accepted.
func (o obj) num(keys ...string) (int, bool) {
	raw, ok := o.lookup(keys...)
	if !ok {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return 0, false
		}
		if f, err = strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
			return 0, false
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(math.Round(f)), true
}

func (o obj) str(keys ...string) (string, bool) {
	raw, ok := o.lookup(keys...)
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func (o obj) positive(def int, keys ...string) int {
	if v, ok := o.num(keys...); ok && v > 0 {
		return v
	}
	return def
}

func (o obj) nonNegative(def int, keys ...string) int {
	if v, ok := o.num(keys...); ok && v >= 0 {
		return v
	}
	return def
}

func (o obj) color(def string, keys ...string) string {
	if v, ok := o.str(keys...); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

// Parse reads a layout document. Every absent or unusable field takes its
// default; only malformed JSON or a non-object root is an error.
func Parse(doc []byte) (Config, error) {
	doc = bytes.TrimSpace(doc)
	if len(doc) == 0 {
		return Default(), nil
	}
	if !json.Valid(doc) {
		return Config{}, fmt.Errorf("layout: invalid JSON document")
	}
	root, ok := asObj(doc)
	if !ok {
		return Config{}, ErrNotObject
	}

	cfg := Config{
		Width:         root.positive(DefaultWidth, "width", "canvasWidth", "canvas_width"),
		Height:        root.positive(DefaultHeight, "height", "canvasHeight", "canvas_height"),
		Columns:       root.positive(DefaultColumns, "gridCols", "gridColumns", "grid_columns", "grid_cols", "columns"),
		Rows:          root.positive(DefaultRows, "gridRows", "grid_rows", "rows"),
		Padding:       root.nonNegative(DefaultPadding, "padding"),
		Gap:           root.nonNegative(DefaultGap, "gap"),
		BorderWidth:   root.nonNegative(DefaultBorderWidth, "borderWidth", "border_width"),
		TitleFontSize: root.positive(DefaultTitleFontSize, "titleFontSize", "title_font_size"),
		TextFontSize:  root.positive(DefaultTextFontSize, "textFontSize", "text_font_size"),
		Scheme:        DefaultScheme(),
	}
	if raw, ok := root.lookup("colorScheme", "color_scheme"); ok {
		if so, ok := asObj(raw); ok {
			cfg.Scheme = parseScheme(so)
		}
	}
	if raw, ok := root.lookup("widgets"); ok {
		var items []json.RawMessage
		if json.Unmarshal(raw, &items) == nil {
			cfg.Widgets = make([]WidgetEntry, 0, len(items))
			for _, item := range items {
				if wo, ok := asObj(item); ok {
					cfg.Widgets = append(cfg.Widgets, parseWidget(wo, cfg.Columns, cfg.Rows))
				}
			}
		}
	}
	return cfg, nil
}

// Default is the layout of an empty document.
func Default() Config {
	cfg, _ := Parse([]byte(`{}`))
	return cfg
}

func parseScheme(o obj) ColorScheme {
	d := DefaultScheme()
	name, _ := o.str("name")
	if strings.TrimSpace(name) == "" {
		name = d.Name
	}
	return ColorScheme{
		Name:             name,
		Background:       o.color(d.Background, "background", "canvasBackground", "canvas_background"),
		WidgetBackground: o.color(d.WidgetBackground, "widgetBackground", "widget_background"),
		WidgetBorder:     o.color(d.WidgetBorder, "widgetBorder", "widget_border"),
		WidgetTitle:      o.color(d.WidgetTitle, "widgetTitle", "widget_title", "widgetTitleText", "widget_title_text"),
		WidgetText:       o.color(d.WidgetText, "widgetText", "widget_text", "text"),
		Icon:             o.color(d.Icon, "icon", "iconColor", "icon_color"),
		Foreground:       o.color(d.Foreground, "foreground"),
		Accent:           o.color(d.Accent, "accent"),
	}
}

func parseWidget(o obj, cols, rows int) WidgetEntry {
	w := WidgetEntry{Position: Position{Width: 1, Height: 1}}
	w.ID, _ = o.str("id")
	t, _ := o.str("type")
	w.Type = WidgetType(strings.TrimSpace(t))
	if raw, ok := o.lookup("position"); ok {
		if po, ok := asObj(raw); ok {
			w.Position = Position{
				X:      po.nonNegative(0, "x"),
				Y:      po.nonNegative(0, "y"),
				Width:  po.positive(1, "w", "width"),
				Height: po.positive(1, "h", "height"),
			}
		}
	}
	w.Position = w.Position.clamp(cols, rows)
	if raw, ok := o.lookup("config"); ok {
		w.Config = append(json.RawMessage(nil), raw...)
	}
	if raw, ok := o.lookup("colorOverrides", "color_overrides"); ok {
		if co, ok := asObj(raw); ok {
			ov := &ColorOverrides{
				WidgetBackground: co.color("", "widgetBackground", "widget_background"),
				WidgetBorder:     co.color("", "widgetBorder", "widget_border"),
				WidgetTitle:      co.color("", "widgetTitle", "widget_title", "widgetTitleText", "widget_title_text"),
				WidgetText:       co.color("", "widgetText", "widget_text"),
				Icon:             co.color("", "icon", "iconColor", "icon_color"),
			}
			if !ov.empty() {
				w.ColorOverrides = ov
			}
		}
	}
	if s, ok := o.str("titleOverride", "title_override"); ok {
		w.TitleOverride = strings.TrimSpace(s)
	}
	return w
}

// clamp keeps the widget inside a cols×rows grid with at least one cell.
func (p Position) clamp(cols, rows int) Position {
	p.X = min(max(p.X, 0), cols-1)
	p.Y = min(max(p.Y, 0), rows-1)
	p.Width = min(max(p.Width, 1), cols-p.X)
	p.Height = min(max(p.Height, 1), rows-p.Y)
	return p
}
