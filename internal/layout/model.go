// Package layout reads dashboard layout documents. Parsing is lenient: only
// a document that is not a JSON object fails, everything else falls back to
// defaults so that older or half-edited layouts still render.
package layout

import (
	"encoding/json"
)

type WidgetType string

const (
	TypeHeader          WidgetType = "header"
	TypeCalendar        WidgetType = "calendar"
	TypeWeather         WidgetType = "weather"
	TypeWeatherForecast WidgetType = "weather-forecast"
	TypeTodo            WidgetType = "todo"
	TypeMarkdown        WidgetType = "markdown"
	TypeRSSFeed         WidgetType = "rss-feed"
	TypeVersion         WidgetType = "version"
	TypeAppIcon         WidgetType = "app-icon"
	TypeImage           WidgetType = "image"
	TypeGraph           WidgetType = "graph"
)

// Known reports whether t has a renderer.
func (t WidgetType) Known() bool {
	switch t {
	case TypeHeader, TypeCalendar, TypeWeather, TypeWeatherForecast, TypeTodo, TypeMarkdown,
		TypeRSSFeed, TypeVersion, TypeAppIcon, TypeImage, TypeGraph:
		return true
	}
	return false
}

const (
	DefaultWidth         = 800
	DefaultHeight        = 480
	DefaultColumns       = 12
	DefaultRows          = 8
	DefaultPadding       = 16
	DefaultGap           = 4
	DefaultBorderWidth   = 3
	DefaultTitleFontSize = 16
	DefaultTextFontSize  = 14
)

type Config struct {
	Width         int           `json:"width"`
	Height        int           `json:"height"`
	Columns       int           `json:"gridCols"`
	Rows          int           `json:"gridRows"`
	Padding       int           `json:"padding"`
	Gap           int           `json:"gap"`
	BorderWidth   int           `json:"borderWidth"`
	TitleFontSize int           `json:"titleFontSize"`
	TextFontSize  int           `json:"textFontSize"`
	Scheme        ColorScheme   `json:"colorScheme"`
	Widgets       []WidgetEntry `json:"widgets"`
}

type ColorScheme struct {
	Name             string `json:"name"`
	Background       string `json:"background"`
	WidgetBackground string `json:"widgetBackground"`
	WidgetBorder     string `json:"widgetBorder"`
	WidgetTitle      string `json:"widgetTitle"`
	WidgetText       string `json:"widgetText"`
	Icon             string `json:"icon"`
	Foreground       string `json:"foreground"`
	Accent           string `json:"accent"`
}

// DefaultScheme is the monochrome palette every e-paper panel can show.
func DefaultScheme() ColorScheme {
	return ColorScheme{
		Name:             "Default",
		Background:       "#ffffff",
		WidgetBackground: "#ffffff",
		WidgetBorder:     "#000000",
		WidgetTitle:      "#000000",
		WidgetText:       "#000000",
		Icon:             "#000000",
		Foreground:       "#000000",
		Accent:           "#000000",
	}
}

// ColorOverrides replaces individual widget-level colors. Empty fields keep
// the scheme color.
type ColorOverrides struct {
	WidgetBackground string `json:"widgetBackground,omitempty"`
	WidgetBorder     string `json:"widgetBorder,omitempty"`
	WidgetTitle      string `json:"widgetTitle,omitempty"`
	WidgetText       string `json:"widgetText,omitempty"`
	Icon             string `json:"icon,omitempty"`
}

func (o *ColorOverrides) empty() bool {
	return o.WidgetBackground == "" && o.WidgetBorder == "" && o.WidgetTitle == "" && o.WidgetText == "" && o.Icon == ""
}

// Position is in grid cells.
type Position struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"w"`
	Height int `json:"h"`
}

type WidgetEntry struct {
	ID             string          `json:"id"`
	Type           WidgetType      `json:"type"`
	Position       Position        `json:"position"`
	Config         json.RawMessage `json:"config,omitempty"`
	ColorOverrides *ColorOverrides `json:"colorOverrides,omitempty"`
	TitleOverride  string          `json:"titleOverride,omitempty"`
}

// Scheme returns the scheme with the widget's overrides applied.
func (w WidgetEntry) Scheme(base ColorScheme) ColorScheme {
	if w.ColorOverrides == nil {
		return base
	}
	o := w.ColorOverrides
	pick := func(v, def string) string {
		if v != "" {
			return v
		}
		return def
	}
	base.WidgetBackground = pick(o.WidgetBackground, base.WidgetBackground)
	base.WidgetBorder = pick(o.WidgetBorder, base.WidgetBorder)
	base.WidgetTitle = pick(o.WidgetTitle, base.WidgetTitle)
	base.WidgetText = pick(o.WidgetText, base.WidgetText)
	base.Icon = pick(o.Icon, base.Icon)
	return base
}
