package widgets

import (
	"html/template"
	"strings"

	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/layout"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/markdown"
)

type MarkdownConfig struct {
	Content string `json:"content"`
	Title   string `json:"title"`
}

type ImageConfig struct {
	URL string `json:"url"`
	Fit string `json:"fit"`
}

func renderMarkdown(w layout.WidgetEntry, cfg layout.Config, data *Data) template.HTML {
	var c MarkdownConfig
	w.DecodeConfig(&c)
	if strings.TrimSpace(c.Content) == "" {
		return Placeholder("language-markdown", "Add some text")
	}
	return frame("markdown", title(w, c.Title, ""), `<div class="markdown-content">`+markdown.ToHTML(c.Content)+`</div>`)
}

func renderVersion(w layout.WidgetEntry, cfg layout.Config, data *Data) template.HTML {
	v := ""
	if data != nil {
		v = data.Version
	}
	if v == "" {
		v = "dev"
	}
	return frame("version", "", `<span class="version-text">`+esc(v)+`</span>`)
}

func renderAppIcon(w layout.WidgetEntry, cfg layout.Config, data *Data) template.HTML {
	if data == nil || data.AppIconSVG == "" {
		return Placeholder("image-outline", "No icon")
	}
	return frame("app-icon", "", `<div class="app-icon">`+tint(data.AppIconSVG, w.Scheme(cfg.Scheme).Accent)+`</div>`)
}

func renderImage(w layout.WidgetEntry, cfg layout.Config, data *Data) template.HTML {
	var c ImageConfig
	w.DecodeConfig(&c)
	url := strings.TrimSpace(c.URL)
	if url == "" || !(strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") || strings.HasPrefix(url, "data:image/")) {
		return Placeholder("image-outline", "Set an image URL")
	}
	fit := strings.ToLower(strings.TrimSpace(c.Fit))
	switch fit {
	case "cover", "contain", "fill":
	default:
		fit = "contain"
	}
	return frame("image", "", `<img class="image-content" src="`+esc(url)+`" alt="" style="object-fit: `+fit+`">`)
}
