package httpapi

import (
	"bytes"
	"image"
	"image/png"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/widgets"
)

const (
	defaultIconSize  = 192
	maxIconSize      = 1024
	defaultIconColor = "#000000"
)

var hexColor = regexp.MustCompile(`^#?[0-9a-fA-F]{6}$`)

// RasterizeIcon draws svg into a size x size RGBA image. currentColor is
// replaced with color first since the rasterizer has no inherited color.
func RasterizeIcon(svg string, size int, color string) (*image.RGBA, error) {
	svg = strings.ReplaceAll(svg, "currentColor", color)
	icon, err := oksvg.ReadIconStream(strings.NewReader(svg))
	if err != nil {
		return nil, err
	}
	icon.SetTarget(0, 0, float64(size), float64(size))
	rgba := image.NewRGBA(image.Rect(0, 0, size, size))
	scanner := rasterx.NewScannerGV(size, size, rgba, rgba.Bounds())
	dasher := rasterx.NewDasher(size, size, scanner)
	icon.Draw(dasher, 1.0)
	return rgba, nil
}

// handleAppIcon serves the application icon as PNG. Optional size and color
// (six hex digits) query parameters control the output.
func (s *Server) handleAppIcon(w http.ResponseWriter, r *http.Request) {
	size := defaultIconSize
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxIconSize {
			writeError(w, http.StatusBadRequest, "size must be between 1 and 1024")
			return
		}
		size = n
	}
	color := defaultIconColor
	if v := r.URL.Query().Get("color"); v != "" {
		if !hexColor.MatchString(v) {
			writeError(w, http.StatusBadRequest, "color must be a hex value")
			return
		}
		color = "#" + strings.TrimPrefix(v, "#")
	}

	img, err := RasterizeIcon(widgets.AppIcon, size, color)
	if err != nil {
		slog.Error("app icon rasterize failed", "user", claimsSubject(r), "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
