package render

import (
	"strings"
	"testing"

	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/layout"
)

func TestStylesheetIsMinifiedOnce(t *testing.T) {
	css := Stylesheet()
	if css == "" {
		t.Fatalf("expected stylesheet")
	}
	if strings.Contains(css, "\n  ") {
		t.Fatalf("stylesheet was not minified")
	}
	for _, sel := range []string{".dashboard", ".widget-placeholder", ".forecast-item", ".todo-done"} {
		if !strings.Contains(css, sel) {
			t.Fatalf("stylesheet missing %s", sel)
		}
	}
	if Stylesheet() != css {
		t.Fatalf("stylesheet changed between calls")
	}
}

func TestDashboardCSS(t *testing.T) {
	cfg := layout.Default()
	cfg.Scheme.Accent = "#ff0000;}</style><script>"
	got := DashboardCSS(cfg)
	for _, want := range []string{"--canvas-width: 800px;", "--grid-columns: 12;", "--grid-rows: 8;", "--gap: 4px;", "--background: #ffffff;"} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in %s", want, got)
		}
	}
	if strings.Contains(got, "<") || strings.Contains(got, "}</") {
		t.Fatalf("color values must not break out of the declaration: %s", got)
	}
}

func TestDocumentPlacesWidgetsInOrder(t *testing.T) {
	cfg, err := layout.Parse([]byte(`{
		"widgets": [
			{"id": "a", "type": "markdown", "position": {"x": 2, "y": 1, "w": 3, "h": 2}, "config": {"content": "hello"},
			 "colorOverrides": {"widgetBackground": "#000000", "widgetText": "#ffffff"}},
			{"id": "b", "type": "mystery", "position": {"x": 0, "y": 0}}
		]
	}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	doc := Document(cfg, &Data{})
	if !strings.HasPrefix(doc, "<!DOCTYPE html>") || !strings.Contains(doc, IconFontURL) {
		t.Fatalf("missing boilerplate")
	}
	a := strings.Index(doc, `data-widget-id="a"`)
	b := strings.Index(doc, `data-widget-id="b"`)
	if a < 0 || b < 0 || a > b {
		t.Fatalf("widgets missing or out of order")
	}
	if !strings.Contains(doc, "grid-column: 3 / span 3; grid-row: 2 / span 2;--widget-bg: #000000;--widget-text: #ffffff;") {
		t.Fatalf("unexpected placement style in %s", doc)
	}
	if !strings.Contains(doc, "<p>hello</p>") || !strings.Contains(doc, "Unknown widget: mystery") {
		t.Fatalf("unexpected widget bodies")
	}
}
