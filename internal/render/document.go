// Package render assembles dashboards into self-contained HTML documents and
// gathers the Home Assistant data they need.
package render

import (
	"fmt"
	"html"
	"strings"

	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/layout"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/widgets"
)

// IconFontURL is the Material Design Icons webfont the widgets' mdi classes
// resolve against.
const IconFontURL = "https://cdn.jsdelivr.net/npm/@mdi/font@7.4.47/css/materialdesignicons.min.css"

// Data is the prefetched render input.
type Data = widgets.Data

// DashboardCSS holds the per-layout custom properties the shared stylesheet
// reads: canvas and grid geometry, spacing, fonts and the color scheme.
func DashboardCSS(cfg layout.Config) string {
	s := cfg.Scheme
	var b strings.Builder
	b.WriteString(":root{")
	prop(&b, "--canvas-width", px(cfg.Width))
	prop(&b, "--canvas-height", px(cfg.Height))
	prop(&b, "--grid-columns", fmt.Sprint(cfg.Columns))
	prop(&b, "--grid-rows", fmt.Sprint(cfg.Rows))
	prop(&b, "--padding", px(cfg.Padding))
	prop(&b, "--gap", px(cfg.Gap))
	prop(&b, "--border-width", px(cfg.BorderWidth))
	prop(&b, "--title-font-size", px(cfg.TitleFontSize))
	prop(&b, "--text-font-size", px(cfg.TextFontSize))
	prop(&b, "--background", s.Background)
	prop(&b, "--widget-bg", s.WidgetBackground)
	prop(&b, "--widget-border", s.WidgetBorder)
	prop(&b, "--widget-title", s.WidgetTitle)
	prop(&b, "--widget-text", s.WidgetText)
	prop(&b, "--icon", s.Icon)
	prop(&b, "--foreground", s.Foreground)
	prop(&b, "--accent", s.Accent)
	b.WriteString("}")
	return b.String()
}

// Document renders the complete page for cfg. Widgets are placed in layout
// order; overlapping positions are left to the grid.
func Document(cfg layout.Config, data *Data) string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
	fmt.Fprintf(&b, `<meta name="viewport" content="width=%d, height=%d, initial-scale=1">`, cfg.Width, cfg.Height)
	b.WriteString(`<title>izBoard</title>`)
	b.WriteString(`<link rel="stylesheet" href="` + IconFontURL + `">`)
	b.WriteString(`<style>` + Stylesheet() + DashboardCSS(cfg) + `</style>`)
	b.WriteString(`</head><body><main class="dashboard">`)
	for _, w := range cfg.Widgets {
		writeWidget(&b, w, cfg, data)
	}
	b.WriteString(`</main></body></html>`)
	return b.String()
}

func writeWidget(b *strings.Builder, w layout.WidgetEntry, cfg layout.Config, data *Data) {
	p := w.Position
	var style strings.Builder
	fmt.Fprintf(&style, "grid-column: %d / span %d; grid-row: %d / span %d;", p.X+1, p.Width, p.Y+1, p.Height)
	if o := w.ColorOverrides; o != nil {
		for _, v := range [][2]string{
			{"--widget-bg", o.WidgetBackground},
			{"--widget-border", o.WidgetBorder},
			{"--widget-title", o.WidgetTitle},
			{"--widget-text", o.WidgetText},
			{"--icon", o.Icon},
		} {
			if v[1] != "" {
				prop(&style, v[0], v[1])
			}
		}
	}
	fmt.Fprintf(b, `<div class="widget-cell" data-widget-id="%s" data-widget-type="%s" style="%s">`,
		html.EscapeString(w.ID), html.EscapeString(string(w.Type)), html.EscapeString(style.String()))
	b.WriteString(string(widgets.Render(w, cfg, data)))
	b.WriteString(`</div>`)
}

func prop(b *strings.Builder, name, value string) {
	value = cssValue(value)
	if value == "" {
		return
	}
	b.WriteString(name + ": " + value + ";")
}

func px(v int) string { return fmt.Sprintf("%dpx", v) }

// cssValue drops characters that could end a declaration or the style
// element. Layout colors are user supplied.
func cssValue(v string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ';', '{', '}', '<', '>', '"', '\'', '\\', '\n', '\r':
			return -1
		}
		return r
	}, strings.TrimSpace(v))
}
