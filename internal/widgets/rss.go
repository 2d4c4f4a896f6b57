package widgets

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/skip2/go-qrcode"
	"golang.org/x/net/html"

	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/aggregator"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/layout"
)

type RSSConfig struct {
	EntityID string `json:"entityId"`
	FeedURL  string `json:"feedUrl"`
	Title    string `json:"title"`
	ShowQR   *bool  `json:"showQrCode"`
}

func (c *RSSConfig) Normalize() {
	c.EntityID = strings.TrimSpace(c.EntityID)
	c.FeedURL = strings.TrimSpace(c.FeedURL)
}

// FeedKey is the Feeds map key of the widget: the entity when set, else the
// direct feed URL.
func (c RSSConfig) FeedKey() string {
	if id := strings.TrimSpace(c.EntityID); id != "" {
		return id
	}
	return strings.TrimSpace(c.FeedURL)
}

func renderRSS(w layout.WidgetEntry, cfg layout.Config, data *Data) template.HTML {
	var c RSSConfig
	w.DecodeConfig(&c)
	key := c.FeedKey()
	if key == "" {
		return Placeholder("rss", "Select a feed")
	}
	var entries []aggregator.FeedEntry
	if data != nil {
		entries = data.Feeds[key]
	}
	if len(entries) == 0 {
		return Placeholder("rss", "No feed entries")
	}
	latest := entries[0]

	var b strings.Builder
	b.WriteString(`<div class="rss-entry">`)
	b.WriteString(`<div class="rss-text"><span class="rss-title">` + esc(latest.Title) + `</span>`)
	if latest.Description != "" && w.Position.Height >= 2 {
		b.WriteString(`<span class="rss-description">` + esc(stripTags(latest.Description)) + `</span>`)
	}
	b.WriteString(`</div>`)
	if latest.Link != "" && (c.ShowQR == nil || *c.ShowQR) {
		if qr, err := QRCodeSVG(latest.Link, w.Scheme(cfg.Scheme).WidgetText); err == nil {
			b.WriteString(`<div class="rss-qr">` + qr + `</div>`)
		}
	}
	b.WriteString(`</div>`)

	name := ""
	if st, ok := data.State(c.EntityID); ok {
		name = st.FriendlyName()
	}
	return frame("rss-feed", title(w, c.Title, name), b.String())
}

// QRCodeSVG encodes content as a borderless QR code drawn with one path.
func QRCodeSVG(content, color string) (string, error) {
	q, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return "", err
	}
	q.DisableBorder = true
	bm := q.Bitmap()
	if color == "" {
		color = "#000000"
	}
	var path strings.Builder
	for y, row := range bm {
		for x, on := range row {
			if on {
				fmt.Fprintf(&path, "M%d %dh1v1h-1z", x, y)
			}
		}
	}
	n := len(bm)
	return fmt.Sprintf(`<svg class="qr-code" xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" shape-rendering="crispEdges"><path fill="%s" d="%s"/></svg>`,
		n, n, esc(color), path.String()), nil
}

// stripTags reduces a feed description, which often carries HTML, to its
// text. Entities are decoded; script and style bodies are dropped.
func stripTags(s string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.StartTagToken:
			if name, _ := z.TagName(); isRawText(name) {
				skip++
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			if name, _ := z.TagName(); isRawText(name) && skip > 0 {
				skip--
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func isRawText(tag []byte) bool {
	t := string(tag)
	return t == "script" || t == "style"
}
