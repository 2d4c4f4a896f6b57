// Package chart draws small time-series charts as inline SVG.
package chart

import (
	"fmt"
	"html"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

type Kind string

const (
	Line Kind = "line"
	Bar  Kind = "bar"
)

type Point struct {
	T time.Time
	V float64
}

type Series struct {
	Name   string
	Color  string
	Points []Point
}

type Options struct {
	Width     int
	Height    int
	Kind      Kind
	FontSize  int
	TextColor string
	GridColor string
	// Palette is used for series without an explicit color.
	Palette []string
}

const (
	gridLines  = 4
	timeLabels = 5
	minSpan    = 1e-9
)

var defaultPalette = []string{"#000000", "#d40000", "#666666", "#1f4fbf"}

// dash patterns tell series apart on monochrome panels.
var dashes = []string{"", "6 3", "2 2", "8 2 2 2"}

type frame struct {
	left, top, width, height float64
	minV, maxV               float64
	minT, maxT               time.Time
}

func (f frame) x(t time.Time) float64 {
	span := f.maxT.Sub(f.minT)
	if span <= 0 {
		return f.left + f.width/2
	}
	return f.left + f.width*float64(t.Sub(f.minT))/float64(span)
}

func (f frame) y(v float64) float64 {
	return f.top + f.height - f.height*(v-f.minV)/(f.maxV-f.minV)
}

// SVG renders the series. It returns "" when no series has a point, so that
// callers can show a placeholder instead.
func SVG(series []Series, opts Options) string {
	opts = withDefaults(opts)
	var all []Point
	for _, s := range series {
		all = append(all, s.Points...)
	}
	if len(all) == 0 {
		return ""
	}

	f := frame{minV: math.Inf(1), maxV: math.Inf(-1), minT: all[0].T, maxT: all[0].T}
	for _, p := range all {
		f.minV = math.Min(f.minV, p.V)
		f.maxV = math.Max(f.maxV, p.V)
		if p.T.Before(f.minT) {
			f.minT = p.T
		}
		if p.T.After(f.maxT) {
			f.maxT = p.T
		}
	}
	if f.maxV-f.minV < minSpan {
		f.minV--
		f.maxV++
	}

	fs := float64(opts.FontSize)
	legend := len(series) > 1
	f.left = fs * 3.2
	f.top = fs * 0.6
	if legend {
		f.top += fs * 1.4
	}
	f.width = math.Max(float64(opts.Width)-f.left-fs*0.8, 1)
	f.height = math.Max(float64(opts.Height)-f.top-fs*1.6, 1)

	var b strings.Builder
	fmt.Fprintf(&b, `<svg class="chart" xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" width="100%%" height="100%%" preserveAspectRatio="none" font-size="%d" fill="%s">`,
		opts.Width, opts.Height, opts.FontSize, html.EscapeString(opts.TextColor))

	writeGrid(&b, f, opts)
	writeTimeAxis(&b, f, opts)
	switch opts.Kind {
	case Bar:
		writeBars(&b, f, series, opts)
	default:
		writeLines(&b, f, series, opts)
	}
	if legend {
		writeLegend(&b, series, opts)
	}
	b.WriteString(`</svg>`)
	return b.String()
}

func withDefaults(o Options) Options {
	if o.Width <= 0 {
		o.Width = 300
	}
	if o.Height <= 0 {
		o.Height = 150
	}
	if o.FontSize <= 0 {
		o.FontSize = 10
	}
	if o.TextColor == "" {
		o.TextColor = "#000000"
	}
	if o.GridColor == "" {
		o.GridColor = "#999999"
	}
	if len(o.Palette) == 0 {
		o.Palette = defaultPalette
	}
	if o.Kind != Bar {
		o.Kind = Line
	}
	return o
}

func writeGrid(b *strings.Builder, f frame, opts Options) {
	step := (f.maxV - f.minV) / float64(gridLines-1)
	for i := 0; i < gridLines; i++ {
		v := f.minV + step*float64(i)
		y := f.y(v)
		fmt.Fprintf(b, `<line x1="%s" y1="%s" x2="%s" y2="%s" stroke="%s" stroke-width="0.5" stroke-dasharray="2 2"/>`,
			num(f.left), num(y), num(f.left+f.width), num(y), opts.GridColor)
		fmt.Fprintf(b, `<text x="%s" y="%s" text-anchor="end" dominant-baseline="middle">%s</text>`,
			num(f.left-3), num(y), FormatValue(v, f.maxV-f.minV))
	}
}

func writeTimeAxis(b *strings.Builder, f frame, opts Options) {
	span := f.maxT.Sub(f.minT)
	y := f.top + f.height + float64(opts.FontSize)*1.2
	for i := 0; i < timeLabels; i++ {
		t := f.minT.Add(time.Duration(float64(span) * float64(i) / float64(timeLabels-1)))
		anchor := "middle"
		switch i {
		case 0:
			anchor = "start"
		case timeLabels - 1:
			anchor = "end"
		}
		fmt.Fprintf(b, `<text x="%s" y="%s" text-anchor="%s">%s</text>`, num(f.x(t)), num(y), anchor, formatTime(t, span))
	}
}

func writeLines(b *strings.Builder, f frame, series []Series, opts Options) {
	for i, s := range series {
		if len(s.Points) == 0 {
			continue
		}
		pts := append([]Point(nil), s.Points...)
		sort.SliceStable(pts, func(a, c int) bool { return pts[a].T.Before(pts[c].T) })
		coords := make([]string, 0, len(pts))
		for _, p := range pts {
			coords = append(coords, num(f.x(p.T))+","+num(f.y(p.V)))
		}
		dash := ""
		if d := dashes[i%len(dashes)]; d != "" {
			dash = ` stroke-dasharray="` + d + `"`
		}
		fmt.Fprintf(b, `<polyline fill="none" stroke="%s" stroke-width="1.5"%s points="%s"/>`,
			seriesColor(s, i, opts), dash, strings.Join(coords, " "))
	}
}

func writeBars(b *strings.Builder, f frame, series []Series, opts Options) {
	// One bucket per distinct timestamp; series sit side by side within it.
	stamps := map[int64]struct{}{}
	for _, s := range series {
		for _, p := range s.Points {
			stamps[p.T.UnixNano()] = struct{}{}
		}
	}
	keys := make([]int64, 0, len(stamps))
	for k := range stamps {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	index := make(map[int64]int, len(keys))
	for i, k := range keys {
		index[k] = i
	}

	bucket := f.width / float64(len(keys))
	barW := bucket * 0.8 / float64(len(series))
	base := f.y(math.Min(math.Max(0, f.minV), f.maxV))
	for si, s := range series {
		color := seriesColor(s, si, opts)
		for _, p := range s.Points {
			x := f.left + bucket*float64(index[p.T.UnixNano()]) + bucket*0.1 + barW*float64(si)
			y := f.y(p.V)
			top, h := math.Min(y, base), math.Abs(base-y)
			fmt.Fprintf(b, `<rect x="%s" y="%s" width="%s" height="%s" fill="%s"/>`,
				num(x), num(top), num(math.Max(barW, 0.5)), num(h), color)
		}
	}
}

func writeLegend(b *strings.Builder, series []Series, opts Options) {
	fs := float64(opts.FontSize)
	x := fs * 3.2
	for i, s := range series {
		name := s.Name
		if name == "" {
			name = "Series " + strconv.Itoa(i+1)
		}
		fmt.Fprintf(b, `<rect x="%s" y="%s" width="%s" height="%s" fill="%s"/>`,
			num(x), num(fs*0.3), num(fs*0.8), num(fs*0.8), seriesColor(s, i, opts))
		fmt.Fprintf(b, `<text x="%s" y="%s">%s</text>`, num(x+fs*1.1), num(fs*1.05), html.EscapeString(name))
		x += fs*2 + float64(len([]rune(name)))*fs*0.6
	}
}

func seriesColor(s Series, i int, opts Options) string {
	if s.Color != "" {
		return html.EscapeString(s.Color)
	}
	return opts.Palette[i%len(opts.Palette)]
}

// FormatValue prints an axis value with as many decimals as the span needs.
func FormatValue(v, span float64) string {
	decimals := 0
	switch {
	case span < 1:
		decimals = 2
	case span < 10:
		decimals = 1
	}
	s := strconv.FormatFloat(v, 'f', decimals, 64)
	if s == "-0" || strings.Trim(s, "-0.") == "" {
		return strconv.FormatFloat(0, 'f', decimals, 64)
	}
	return s
}

func formatTime(t time.Time, span time.Duration) string {
	if span > 48*time.Hour {
		return t.Format("02 Jan")
	}
	return t.Format("15:04")
}

func num(f float64) string {
	return strconv.FormatFloat(math.Round(f*10)/10, 'f', -1, 64)
}
