package widgets

import (
	"html/template"
	"strings"
	"time"

	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/chart"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/layout"
)

const DefaultGraphHours = 24

type GraphConfig struct {
	Title  string        `json:"title"`
	Type   string        `json:"chartType"`
	Hours  int           `json:"hours"`
	Series []GraphSeries `json:"series"`
}

type GraphSeries struct {
	EntityID string `json:"entityId"`
	Name     string `json:"name"`
	Color    string `json:"color"`
}

func (c *GraphConfig) Normalize() {
	for i := range c.Series {
		c.Series[i].EntityID = strings.TrimSpace(c.Series[i].EntityID)
	}
}

// Window is the history range the graph shows, ending at now.
func (c GraphConfig) Window() time.Duration {
	if c.Hours <= 0 {
		return DefaultGraphHours * time.Hour
	}
	return time.Duration(c.Hours) * time.Hour
}

func renderGraph(w layout.WidgetEntry, cfg layout.Config, data *Data) template.HTML {
	var c GraphConfig
	w.DecodeConfig(&c)
	var configured []GraphSeries
	for _, s := range c.Series {
		if s.EntityID != "" {
			configured = append(configured, s)
		}
	}
	if len(configured) == 0 {
		return Placeholder("chart-line", "Add a data series")
	}

	now := data.now()
	from := now.Add(-c.Window())
	series := make([]chart.Series, 0, len(configured))
	for _, s := range configured {
		cs := chart.Series{Name: s.Name, Color: s.Color}
		if cs.Name == "" {
			cs.Name = s.EntityID
			if st, ok := data.State(s.EntityID); ok && st.FriendlyName() != "" {
				cs.Name = st.FriendlyName()
			}
		}
		for _, sm := range data.HistoryFor(s.EntityID) {
			if sm.Numeric && !sm.Time.Before(from) && !sm.Time.After(now) {
				cs.Points = append(cs.Points, chart.Point{T: sm.Time, V: sm.Value})
			}
		}
		series = append(series, cs)
	}

	scheme := w.Scheme(cfg.Scheme)
	width, height := PixelSize(w.Position, cfg)
	heading := title(w, c.Title, "")
	if heading != "" {
		height -= cfg.TitleFontSize + 4
	}
	kind := chart.Line
	if strings.EqualFold(c.Type, string(chart.Bar)) {
		kind = chart.Bar
	}
	svg := chart.SVG(series, chart.Options{
		Width:     width,
		Height:    max(height, 20),
		Kind:      kind,
		FontSize:  max(cfg.TextFontSize-4, 8),
		TextColor: scheme.WidgetText,
		GridColor: scheme.WidgetBorder,
		Palette:   []string{scheme.Foreground, scheme.Accent, scheme.WidgetText},
	})
	if svg == "" {
		return Placeholder("chart-line", "No data")
	}
	return frame("graph", heading, `<div class="graph-chart">`+svg+`</div>`)
}
