package httpapi

import (
	"bytes"
	"context"
	"crypto/subtle"
	"errors"
	"image"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/epaper"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/middleware"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/mqtt"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/observability"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/render"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/store"
)

const formatHTML = "html"

var errUnauthorized = errors.New("unauthorized")

// authorizeRender accepts the dashboard's API key from the X-Api-Key header
// or the api_key query parameter, or a user token with access to it.
func (s *Server) authorizeRender(r *http.Request, d *store.Dashboard) error {
	key := r.Header.Get("X-Api-Key")
	if key == "" {
		key = r.URL.Query().Get("api_key")
	}
	if key != "" && d.APIKey != "" && subtle.ConstantTimeCompare([]byte(key), []byte(d.APIKey)) == 1 {
		return nil
	}
	claims, err := s.verifier.FromRequest(r)
	if err != nil || !canAccess(claims, d) {
		return errUnauthorized
	}
	return nil
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	id := chi.URLParam(r, "id")
	name := chi.URLParam(r, "format")

	var format epaper.Format
	if name != formatHTML {
		f, ok := epaper.ParseFormat(name)
		if !ok {
			writeError(w, http.StatusBadRequest, "unsupported format")
			return
		}
		format = f
		name = string(f)
	}

	d, err := s.lookupDashboard(r.Context(), id)
	if err != nil {
		writeAggError(w, r, err)
		return
	}
	if err := s.authorizeRender(r, d); err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if !s.allowRender(w, r, id) {
		return
	}
	if _, err := s.agg.Validate(r.Context(), id); err != nil {
		writeAggError(w, r, err)
		return
	}

	if format == "" {
		cfg, data, err := s.docs.Collect(r.Context(), id)
		if err != nil {
			observability.ObserveRender(formatHTML, "error", time.Since(started))
			writeAggError(w, r, err)
			return
		}
		writeHTML(w, render.Document(cfg, data))
		observability.ObserveRender(formatHTML, "ok", time.Since(started))
		return
	}

	if s.renderer == nil {
		writeError(w, http.StatusServiceUnavailable, "image rendering is not available")
		return
	}

	outcome := "ok"
	body, cached := s.cachedRender(r, id, name)
	if cached {
		outcome = "cached"
	} else {
		body, err = s.renderImage(r.Context(), id, format)
		if err != nil {
			observability.ObserveRender(name, "error", time.Since(started))
			writeAggError(w, r, err)
			return
		}
		if err := s.cache.Set(r.Context(), id, name, body); err != nil {
			slog.Warn("render cache store failed", "dashboard_id", id, "error", err)
		}
	}

	now := s.now().UTC()
	if err := s.dashboards.TouchLastUpdate(r.Context(), d.ID, now); err != nil {
		slog.Warn("recording last update failed", "dashboard_id", id, "error", err)
	}
	if err := s.events.DashboardEvent(id, mqtt.EventRenderCompleted, map[string]any{
		"format": name,
		"bytes":  len(body),
		"cached": cached,
	}); err != nil {
		slog.Warn("render event publish failed", "dashboard_id", id, "error", err)
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
	observability.ObserveRender(name, outcome, time.Since(started))
}

// allowRender applies the per-dashboard limit to authorized requests only, so
// that anonymous callers cannot drain a device's bucket. A limiter failure
// lets the request through.
func (s *Server) allowRender(w http.ResponseWriter, r *http.Request, id string) bool {
	if s.limiter == nil {
		return true
	}
	allowed, err := s.limiter.Allow(r.Context(), "render:"+id)
	if err != nil {
		slog.Warn("rate limiter unavailable, allowing request", "dashboard_id", id, "error", err)
		return true
	}
	if !allowed {
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return false
	}
	return true
}

// cachedRender looks up a previous render unless the caller asked for a
// fresh one with refresh=true.
func (s *Server) cachedRender(r *http.Request, id, format string) ([]byte, bool) {
	if refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh")); refresh {
		if err := s.cache.Invalidate(r.Context(), id); err != nil {
			slog.Warn("render cache invalidate failed", "dashboard_id", id, "error", err)
		}
		return nil, false
	}
	body, ok, err := s.cache.Get(r.Context(), id, format)
	if err != nil {
		slog.Warn("render cache lookup failed", "dashboard_id", id, "error", err)
		return nil, false
	}
	return body, ok
}

// renderImage builds the document, snapshots it at the layout's canvas size
// and encodes the result.
func (s *Server) renderImage(ctx context.Context, id string, format epaper.Format) ([]byte, error) {
	ctx, span := s.tracer.Start(ctx, "render.image")
	span.SetAttributes(attribute.String("dashboard.id", id), attribute.String("render.format", string(format)))
	defer span.End()

	cfg, data, err := s.docs.Collect(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	size := image.Pt(cfg.Width, cfg.Height)
	img, err := s.renderer.RenderHTML(ctx, render.Document(cfg, data), size)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if img.Bounds().Size() != size {
		img = epaper.Resize(img, size)
	}
	var buf bytes.Buffer
	if err := epaper.Encode(&buf, img, format); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return buf.Bytes(), nil
}

func readBody(r *http.Request, limit int64) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(nil, r.Body, limit))
}

// claimsSubject is used for log context only.
func claimsSubject(r *http.Request) string {
	if c := middleware.GetClaims(r); c != nil {
		return c.Subject
	}
	return ""
}
