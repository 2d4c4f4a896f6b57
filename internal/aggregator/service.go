// Package aggregator turns a dashboard id into Home Assistant data. Every
// operation validates the dashboard, opens its own websocket session, runs
// one or more exchanges and closes the session again.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/hass"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/observability"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/store"
)

// DashboardSource resolves dashboard records. *store.Repo satisfies it.
type DashboardSource interface {
	GetDashboard(ctx context.Context, id uuid.UUID) (*store.Dashboard, error)
}

type Service struct {
	dashboards DashboardSource
	dialer     hass.Dialer
	timeout    time.Duration
	loc        *time.Location
}

// New builds a Service. timeout bounds one whole operation (dial, auth and
// exchanges); zero means no bound beyond the caller's context.
func New(dashboards DashboardSource, dialer hass.Dialer, timeout time.Duration) *Service {
	return &Service{dashboards: dashboards, dialer: dialer, timeout: timeout, loc: time.Local}
}

// WithLocation sets the zone used for date-only calendar and todo values.
func (s *Service) WithLocation(loc *time.Location) *Service {
	if loc != nil {
		s.loc = loc
	}
	return s
}

var tracer = otel.Tracer("izboard/aggregator")

// validateAndGetDashboard performs every check that does not need the network.
func (s *Service) validateAndGetDashboard(ctx context.Context, dashboardID string) (*store.Dashboard, error) {
	dashboardID = strings.TrimSpace(dashboardID)
	if dashboardID == "" {
		return nil, validationErr(MsgIDRequired)
	}
	id, err := uuid.Parse(dashboardID)
	if err != nil {
		return nil, validationErr(MsgInvalidID)
	}
	d, err := s.dashboards.GetDashboard(ctx, id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && d == nil) {
		return nil, &Error{Kind: KindNotFound, Message: MsgNotFound}
	}
	if err != nil {
		return nil, &Error{Kind: KindInternal, Message: err.Error(), Err: err}
	}
	if strings.TrimSpace(d.Host) == "" {
		return nil, validationErr(MsgHostMissing)
	}
	if strings.TrimSpace(d.AccessToken) == "" {
		return nil, validationErr(MsgTokenMissing)
	}
	return d, nil
}

// Validate runs the pre-connection checks for dashboardID and returns the
// record on success.
func (s *Service) Validate(ctx context.Context, dashboardID string) (*store.Dashboard, error) {
	return s.validateAndGetDashboard(ctx, dashboardID)
}

func (s *Service) connect(ctx context.Context, d *store.Dashboard) (hass.Conn, error) {
	conn, err := s.dialer.Connect(ctx, d.Host, d.AccessToken)
	if err != nil {
		var authErr *hass.AuthError
		if errors.As(err, &authErr) {
			reason := authErr.Message
			if reason == "" {
				reason = authErr.Type
			}
			if reason == "" {
				reason = "unknown error"
			}
			return nil, &Error{Kind: KindProtocol, Message: msgAuthFailedPrefix + reason, Err: err}
		}
		return nil, &Error{Kind: KindTransport, Message: MsgUnreachable, Err: err}
	}
	return conn, nil
}

// classify maps exchange failures onto the error taxonomy.
func classify(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, hass.ErrConnect) {
		return &Error{Kind: KindTransport, Message: MsgUnreachable, Err: err}
	}
	var cmdErr *hass.CommandError
	if errors.As(err, &cmdErr) {
		return &Error{Kind: KindProtocol, Message: cmdErr.Message, Err: err}
	}
	return &Error{Kind: KindProtocol, Message: err.Error(), Err: err}
}

// run is the common validate, connect, exchange, close template.
func run[T any](ctx context.Context, s *Service, op, dashboardID string, fn func(ctx context.Context, conn hass.Conn) (T, error)) (out T, err error) {
	started := time.Now()
	ctx, span := tracer.Start(ctx, "hass."+op)
	span.SetAttributes(attribute.String("dashboard.id", dashboardID))
	defer func() {
		if r := recover(); r != nil {
			slog.Error("aggregator panic", "op", op, "dashboard_id", dashboardID, "panic", r, "stack", string(debug.Stack()))
			var zero T
			out = zero
			err = &Error{Kind: KindInternal, Message: fmt.Sprint(r)}
		}
		outcome := "ok"
		if err != nil {
			outcome = KindOf(err).String()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.ObserveHassCall(op, outcome, time.Since(started))
		span.End()
	}()

	d, err := s.validateAndGetDashboard(ctx, dashboardID)
	if err != nil {
		return out, err
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	conn, err := s.connect(ctx, d)
	if err != nil {
		return out, err
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			slog.Debug("hass session close failed", "dashboard_id", dashboardID, "error", cerr)
		}
	}()

	out, err = fn(ctx, conn)
	if err != nil {
		var zero T
		return zero, classify(err)
	}
	return out, nil
}

// callService issues a call_service command. Services that do not produce a
// response reject return_response, so it is only sent when wanted.
func callService(ctx context.Context, conn hass.Conn, domain, service, entityID string, data map[string]any, wantResponse bool) (*hass.Result, error) {
	cmd := hass.Command{
		"type":    "call_service",
		"domain":  domain,
		"service": service,
	}
	if wantResponse {
		cmd["return_response"] = true
	}
	if entityID != "" {
		cmd["target"] = map[string]any{"entity_id": entityID}
	}
	if data != nil {
		cmd["service_data"] = data
	}
	return conn.Exchange(ctx, cmd)
}
