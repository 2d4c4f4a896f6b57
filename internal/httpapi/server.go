package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/aggregator"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/cache"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/hass"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/layout"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/middleware"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/mqtt"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/observability"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/ratelimit"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/render"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/snapshot"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/store"
)

const serviceName = "izboard"

// Aggregator is the Home Assistant side of the API. *aggregator.Service
// satisfies it.
type Aggregator interface {
	Validate(ctx context.Context, dashboardID string) (*store.Dashboard, error)
	FetchDashboards(ctx context.Context, dashboardID string) ([]aggregator.DashboardView, error)
	FetchEntities(ctx context.Context, dashboardID string) ([]aggregator.Entity, error)
	FetchEntityStates(ctx context.Context, dashboardID string, entityIDs []string) ([]hass.EntityState, error)
	SendNotification(ctx context.Context, dashboardID, title, message, notificationID string) error
}

// Documents collects render data for a dashboard. *render.Builder
// satisfies it.
type Documents interface {
	Collect(ctx context.Context, dashboardID string) (layout.Config, *render.Data, error)
}

// Dashboards reads dashboard records for access checks and records device
// updates. *store.Repo satisfies it.
type Dashboards interface {
	GetDashboard(ctx context.Context, id uuid.UUID) (*store.Dashboard, error)
	TouchLastUpdate(ctx context.Context, id uuid.UUID, at time.Time) error
}

type Server struct {
	agg        Aggregator
	docs       Documents
	dashboards Dashboards
	renderer   snapshot.Renderer
	cache      *cache.RenderCache
	limiter    *ratelimit.RateLimiter
	events     *mqtt.Events
	verifier   *middleware.Verifier
	tracer     oteltrace.Tracer
	metrics    http.Handler
	origins    []string
	now        func() time.Time
}

type ServerOptions struct {
	// Renderer is required for image formats; without it only HTML renders.
	Renderer snapshot.Renderer
	Cache    *cache.RenderCache
	Limiter  *ratelimit.RateLimiter
	Events   *mqtt.Events
	Verifier *middleware.Verifier
	Tracer   oteltrace.Tracer
	// Metrics is mounted at /metrics when set.
	Metrics     http.Handler
	CORSOrigins []string
}

func NewServer(agg Aggregator, docs Documents, dashboards Dashboards, opts ServerOptions) *Server {
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(serviceName)
	}
	return &Server{
		agg:        agg,
		docs:       docs,
		dashboards: dashboards,
		renderer:   opts.Renderer,
		cache:      opts.Cache,
		limiter:    opts.Limiter,
		events:     opts.Events,
		verifier:   opts.Verifier,
		tracer:     tracer,
		metrics:    opts.Metrics,
		origins:    opts.CORSOrigins,
		now:        time.Now,
	}
}

type jsonErr struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, jsonErr{Error: msg, Code: status})
}

// writeAggError maps aggregator failures onto HTTP statuses. Internal
// details stay in the log.
func writeAggError(w http.ResponseWriter, r *http.Request, err error) {
	kind := aggregator.KindOf(err)
	msg := "internal error"
	var e *aggregator.Error
	if errors.As(err, &e) && kind != aggregator.KindInternal {
		msg = e.Message
	}
	if kind == aggregator.KindInternal || kind == aggregator.KindTransport {
		slog.Warn("request failed", "path", r.URL.Path, "kind", kind.String(), "error", err)
	}
	writeError(w, kind.HTTPStatus(), msg)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Logger)
	r.Use(observability.Middleware(s.tracer, serviceName))
	origins := s.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Api-Key"},
		ExposedHeaders:   []string{"Trace-ID"},
		AllowCredentials: len(s.origins) > 0,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		// Devices authenticate per dashboard and are limited after that;
		// see handleRender.
		r.Get("/render/{id}.{format}", s.handleRender)

		r.Group(func(r chi.Router) {
			r.Use(middleware.JWTAuthMiddleware(s.verifier))
			r.Use(middleware.RoleAtLeastMiddleware("user"))
			r.Use(s.limiter.Middleware(func(r *http.Request) string {
				if c := middleware.GetClaims(r); c != nil && c.Subject != "" {
					return "user:" + c.Subject
				}
				return ""
			}))
			r.Post("/layout/validate", s.handleValidateLayout)
			r.Get("/app-icon.png", s.handleAppIcon)
			r.Route("/dashboards/{id}", func(r chi.Router) {
				r.Use(s.dashboardAccess)
				r.Get("/ha/dashboards", s.handleHADashboards)
				r.Get("/ha/entities", s.handleHAEntities)
				r.Post("/ha/states", s.handleHAStates)
				r.Post("/ha/notify", s.handleHANotify)
				r.Get("/preview", s.handlePreview)
			})
		})
	})
	return r
}

// dashboardAccess resolves the dashboard and lets through its owner, admins
// and dashboards without an owner. Connection settings are checked later by
// the aggregator, so callers without access never see them.
func (s *Server) dashboardAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d, err := s.lookupDashboard(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeAggError(w, r, err)
			return
		}
		if !canAccess(middleware.GetClaims(r), d) {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// lookupDashboard resolves a dashboard id without the connection checks of
// Aggregator.Validate.
func (s *Server) lookupDashboard(ctx context.Context, rawID string) (*store.Dashboard, error) {
	rawID = strings.TrimSpace(rawID)
	if rawID == "" {
		return nil, &aggregator.Error{Kind: aggregator.KindValidation, Message: aggregator.MsgIDRequired}
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, &aggregator.Error{Kind: aggregator.KindValidation, Message: aggregator.MsgInvalidID}
	}
	d, err := s.dashboards.GetDashboard(ctx, id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && d == nil) {
		return nil, &aggregator.Error{Kind: aggregator.KindNotFound, Message: aggregator.MsgNotFound}
	}
	if err != nil {
		return nil, &aggregator.Error{Kind: aggregator.KindInternal, Message: err.Error(), Err: err}
	}
	return d, nil
}

func canAccess(c *middleware.Claims, d *store.Dashboard) bool {
	if d.OwnerUserID == nil {
		return true
	}
	if c == nil {
		return false
	}
	if c.Role == "admin" || c.Role == "service" {
		return true
	}
	return strings.EqualFold(c.Subject, d.OwnerUserID.String())
}

func (s *Server) handleHADashboards(w http.ResponseWriter, r *http.Request) {
	views, err := s.agg.FetchDashboards(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAggError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleHAEntities(w http.ResponseWriter, r *http.Request) {
	entities, err := s.agg.FetchEntities(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAggError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entities)
}

type statesRequest struct {
	EntityIDs []string `json:"entity_ids"`
}

func (s *Server) handleHAStates(w http.ResponseWriter, r *http.Request) {
	var req statesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	states, err := s.agg.FetchEntityStates(r.Context(), chi.URLParam(r, "id"), req.EntityIDs)
	if err != nil {
		writeAggError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, states)
}

type notifyRequest struct {
	Title          string `json:"title"`
	Message        string `json:"message"`
	NotificationID string `json:"notification_id"`
}

func (s *Server) handleHANotify(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if err := s.agg.SendNotification(r.Context(), chi.URLParam(r, "id"), req.Title, req.Message, req.NotificationID); err != nil {
		writeAggError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	cfg, data, err := s.docs.Collect(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAggError(w, r, err)
		return
	}
	writeHTML(w, render.Document(cfg, data))
}

type validateResponse struct {
	Valid    bool     `json:"valid"`
	Problems []string `json:"problems"`
}

func (s *Server) handleValidateLayout(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r, 1<<20)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	problems := layout.Validate(body)
	if problems == nil {
		problems = []string{}
	}
	writeJSON(w, http.StatusOK, validateResponse{Valid: len(problems) == 0, Problems: problems})
}

func writeHTML(w http.ResponseWriter, doc string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}
