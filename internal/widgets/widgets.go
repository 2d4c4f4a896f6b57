// Package widgets renders the HTML fragment of every widget type. Renderers
// are pure: they read the widget's config and the prefetched Data and never
// do I/O. Missing configuration or data renders a placeholder instead of
// failing the document.
package widgets

import (
	_ "embed"
	"fmt"
	"html"
	"html/template"
	"strings"
	"time"

	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/aggregator"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/hass"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/layout"
)

// AppIcon is the shared application icon. It draws with currentColor so that
// callers can tint it.
//
//go:embed app-icon.svg
var AppIcon string

// Data is everything fetched for one render. Maps may be nil.
type Data struct {
	Now        time.Time
	Location   *time.Location
	Version    string
	AppIconSVG string

	States    map[string]hass.EntityState
	Todos     map[string][]aggregator.TodoItem
	Events    map[string][]aggregator.CalendarEvent
	Forecasts map[string][]aggregator.ForecastItem
	Feeds     map[string][]aggregator.FeedEntry
	History   map[string][]aggregator.HistorySample
}

// ForecastKey is the Forecasts map key for an entity in a forecast mode.
func ForecastKey(entityID, mode string) string {
	return entityID + "|" + aggregator.ForecastType(mode)
}

// State looks an entity up, falling back to a case-insensitive match.
func (d *Data) State(entityID string) (hass.EntityState, bool) {
	if d == nil {
		return hass.EntityState{}, false
	}
	return lookupFold(d.States, entityID)
}

// HistoryFor returns the recorded samples of an entity, matched like State.
func (d *Data) HistoryFor(entityID string) []aggregator.HistorySample {
	if d == nil {
		return nil
	}
	samples, _ := lookupFold(d.History, entityID)
	return samples
}

func lookupFold[V any](m map[string]V, key string) (V, bool) {
	key = strings.TrimSpace(key)
	if key != "" {
		if v, ok := m[key]; ok {
			return v, true
		}
		for k, v := range m {
			if strings.EqualFold(k, key) {
				return v, true
			}
		}
	}
	var zero V
	return zero, false
}

func (d *Data) now() time.Time {
	if d == nil || d.Now.IsZero() {
		return time.Now()
	}
	return d.Now
}

func (d *Data) loc() *time.Location {
	if d == nil || d.Location == nil {
		return time.Local
	}
	return d.Location
}

type renderFunc func(w layout.WidgetEntry, cfg layout.Config, data *Data) template.HTML

var renderers map[layout.WidgetType]renderFunc

func init() {
	renderers = map[layout.WidgetType]renderFunc{
		layout.TypeHeader:          renderHeader,
		layout.TypeCalendar:        renderCalendar,
		layout.TypeWeather:         renderWeather,
		layout.TypeWeatherForecast: renderForecast,
		layout.TypeTodo:            renderTodo,
		layout.TypeMarkdown:        renderMarkdown,
		layout.TypeRSSFeed:         renderRSS,
		layout.TypeVersion:         renderVersion,
		layout.TypeAppIcon:         renderAppIcon,
		layout.TypeImage:           renderImage,
		layout.TypeGraph:           renderGraph,
	}
}

// Render produces the inner markup of one widget.
func Render(w layout.WidgetEntry, cfg layout.Config, data *Data) template.HTML {
	fn, ok := renderers[w.Type]
	if !ok {
		label := "Unknown widget"
		if w.Type != "" {
			label += ": " + string(w.Type)
		}
		return Placeholder("help-box", label)
	}
	return fn(w, cfg, data)
}

// Placeholder is the uniform fragment for widgets that cannot show data yet.
func Placeholder(icon, label string) template.HTML {
	return template.HTML(fmt.Sprintf(
		`<div class="widget-placeholder">%s<span class="placeholder-label">%s</span></div>`,
		mdi(icon, "placeholder-icon"), html.EscapeString(label)))
}

// frame wraps body in the common widget chrome. An empty title omits the
// title bar.
func frame(kind, title string, body string) template.HTML {
	var b strings.Builder
	b.WriteString(`<div class="widget widget-` + kind + `">`)
	if title != "" {
		b.WriteString(`<div class="widget-title">` + html.EscapeString(title) + `</div>`)
	}
	b.WriteString(`<div class="widget-body">`)
	b.WriteString(body)
	b.WriteString(`</div></div>`)
	return template.HTML(b.String())
}

func mdi(icon, class string) string {
	c := "mdi mdi-" + html.EscapeString(strings.TrimPrefix(icon, "mdi:"))
	if class != "" {
		c += " " + class
	}
	return `<i class="` + c + `"></i>`
}

// title picks the override, then the configured title, then fallback.
func title(w layout.WidgetEntry, configured, fallback string) string {
	for _, s := range []string{w.TitleOverride, configured, fallback} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// PixelSize is the content box of a widget on the canvas, borders and inner
// padding removed.
func PixelSize(p layout.Position, cfg layout.Config) (int, int) {
	cellW := float64(cfg.Width-2*cfg.Padding-(cfg.Columns-1)*cfg.Gap) / float64(cfg.Columns)
	cellH := float64(cfg.Height-2*cfg.Padding-(cfg.Rows-1)*cfg.Gap) / float64(cfg.Rows)
	w := cellW*float64(p.Width) + float64((p.Width-1)*cfg.Gap) - float64(2*cfg.BorderWidth) - 8
	h := cellH*float64(p.Height) + float64((p.Height-1)*cfg.Gap) - float64(2*cfg.BorderWidth) - 8
	return max(int(w), 1), max(int(h), 1)
}

func esc(s string) string { return html.EscapeString(s) }
