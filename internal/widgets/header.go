package widgets

import (
	"html/template"
	"strings"

	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/layout"
)

type HeaderConfig struct {
	Title        string        `json:"title"`
	ShowIcon     *bool         `json:"showIcon"`
	IconPosition string        `json:"iconPosition"`
	Badges       []HeaderBadge `json:"badges"`
}

type HeaderBadge struct {
	Icon     string `json:"icon"`
	Label    string `json:"label"`
	EntityID string `json:"entityId"`
}

func (c *HeaderConfig) Normalize() {
	for i := range c.Badges {
		c.Badges[i].EntityID = strings.TrimSpace(c.Badges[i].EntityID)
	}
}

func renderHeader(w layout.WidgetEntry, cfg layout.Config, data *Data) template.HTML {
	var c HeaderConfig
	w.DecodeConfig(&c)
	scheme := w.Scheme(cfg.Scheme)

	var b strings.Builder
	align := "left"
	if strings.EqualFold(c.IconPosition, "right") {
		align = "right"
	}
	b.WriteString(`<div class="header-main header-icon-` + align + `">`)
	icon := ""
	if (c.ShowIcon == nil || *c.ShowIcon) && data != nil && data.AppIconSVG != "" {
		icon = `<span class="header-icon">` + tint(data.AppIconSVG, scheme.Accent) + `</span>`
	}
	if align == "left" {
		b.WriteString(icon)
	}
	b.WriteString(`<span class="header-title">` + esc(title(w, c.Title, "")) + `</span>`)
	if align == "right" {
		b.WriteString(icon)
	}
	b.WriteString(`</div>`)

	if len(c.Badges) > 0 {
		b.WriteString(`<div class="header-badges">`)
		for _, badge := range c.Badges {
			b.WriteString(`<span class="header-badge">`)
			if badge.Icon != "" {
				b.WriteString(mdi(badge.Icon, "badge-icon"))
			}
			if badge.Label != "" {
				b.WriteString(`<span class="badge-label">` + esc(badge.Label) + `</span>`)
			}
			if st, ok := data.State(badge.EntityID); ok {
				value := st.State
				if unit := st.Unit(); unit != "" {
					value += " " + unit
				}
				b.WriteString(`<span class="badge-value">` + esc(value) + `</span>`)
			}
			b.WriteString(`</span>`)
		}
		b.WriteString(`</div>`)
	}
	return frame("header", "", b.String())
}

// tint replaces currentColor in an SVG with color.
func tint(svg, color string) string {
	if color == "" {
		return svg
	}
	return strings.ReplaceAll(svg, "currentColor", esc(color))
}
