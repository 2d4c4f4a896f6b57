// Package markdown converts the small Markdown subset markdown widgets use:
// #, ## and ### headings, - and * bullet lists, and paragraphs separated by
// blank lines. Anything else is escaped text.
package markdown

import (
	"html"
	"strings"
)

// ToHTML converts src line by line. Consecutive text lines join into one
// paragraph; consecutive bullet lines join into one list.
func ToHTML(src string) string {
	var (
		b    strings.Builder
		para []string
		list []string
	)
	flushPara := func() {
		if len(para) == 0 {
			return
		}
		b.WriteString("<p>")
		b.WriteString(strings.Join(para, "<br>"))
		b.WriteString("</p>")
		para = para[:0]
	}
	flushList := func() {
		if len(list) == 0 {
			return
		}
		b.WriteString("<ul>")
		for _, item := range list {
			b.WriteString("<li>")
			b.WriteString(item)
			b.WriteString("</li>")
		}
		b.WriteString("</ul>")
		list = list[:0]
	}

	for _, raw := range strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case line == "":
			flushPara()
			flushList()
		case strings.HasPrefix(line, "### "):
			flushPara()
			flushList()
			heading(&b, "h3", line[4:])
		case strings.HasPrefix(line, "## "):
			flushPara()
			flushList()
			heading(&b, "h2", line[3:])
		case strings.HasPrefix(line, "# "):
			flushPara()
			flushList()
			heading(&b, "h1", line[2:])
		case strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* "):
			flushPara()
			list = append(list, html.EscapeString(strings.TrimSpace(line[2:])))
		default:
			flushList()
			para = append(para, html.EscapeString(line))
		}
	}
	flushPara()
	flushList()
	return b.String()
}

func heading(b *strings.Builder, tag, text string) {
	b.WriteString("<" + tag + ">")
	b.WriteString(html.EscapeString(strings.TrimSpace(text)))
	b.WriteString("</" + tag + ">")
}
