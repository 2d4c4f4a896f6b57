package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/hass"
)

const defaultDashboardPath = "lovelace"

type lovelaceDashboard struct {
	ID      string  `json:"id"`
	URLPath *string `json:"url_path"`
	Title   string  `json:"title"`
	Mode    string  `json:"mode"`
}

func (d lovelaceDashboard) path() string {
	if d.URLPath == nil || strings.TrimSpace(*d.URLPath) == "" {
		return defaultDashboardPath
	}
	return *d.URLPath
}

type lovelaceConfig struct {
	Title string         `json:"title"`
	Views []lovelaceView `json:"views"`
}

type lovelaceView struct {
	Title string `json:"title"`
	Path  string `json:"path"`
}

// FetchDashboards lists every view of every Lovelace dashboard, default
// dashboard included. A failing list command degrades to the default
// dashboard only; a failing per-dashboard config degrades to one entry for
// that dashboard.
func (s *Service) FetchDashboards(ctx context.Context, dashboardID string) ([]DashboardView, error) {
	return run(ctx, s, "dashboards", dashboardID, func(ctx context.Context, conn hass.Conn) ([]DashboardView, error) {
		dashboards := listLovelaceDashboards(ctx, conn, dashboardID)

		out := make([]DashboardView, 0, len(dashboards)*2)
		for _, d := range dashboards {
			views, err := fetchViews(ctx, conn, d)
			if err != nil {
				if ctx.Err() != nil {
					return nil, err
				}
				slog.Warn("lovelace config fetch failed", "dashboard_id", dashboardID, "lovelace", d.path(), "error", err)
				out = append(out, DashboardView{URL: "/" + d.path(), Title: dashboardTitle(d), ID: d.path()})
				continue
			}
			out = append(out, views...)
		}
		return out, nil
	})
}

func listLovelaceDashboards(ctx context.Context, conn hass.Conn, dashboardID string) []lovelaceDashboard {
	defaultDash := lovelaceDashboard{Title: "Overview"}
	res, err := conn.Exchange(ctx, hass.Command{"type": "lovelace/dashboards/list"})
	if err == nil {
		err = res.Err("lovelace/dashboards/list failed")
	}
	var list []lovelaceDashboard
	if err == nil {
		err = res.Decode(&list)
	}
	if err != nil {
		slog.Warn("lovelace dashboard list failed, using default dashboard", "dashboard_id", dashboardID, "error", err)
		return []lovelaceDashboard{defaultDash}
	}
	for _, d := range list {
		if d.path() == defaultDashboardPath {
			return list
		}
	}
	return append([]lovelaceDashboard{defaultDash}, list...)
}

func fetchViews(ctx context.Context, conn hass.Conn, d lovelaceDashboard) ([]DashboardView, error) {
	cmd := hass.Command{"type": "lovelace/config"}
	if d.path() != defaultDashboardPath {
		cmd["url_path"] = d.path()
	}
	res, err := conn.Exchange(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if err := res.Err(fmt.Sprintf("lovelace/config failed for %s", d.path())); err != nil {
		return nil, err
	}
	var cfg lovelaceConfig
	if err := res.Decode(&cfg); err != nil {
		return nil, err
	}
	if len(cfg.Views) == 0 {
		return nil, fmt.Errorf("dashboard %s has no views", d.path())
	}
	out := make([]DashboardView, 0, len(cfg.Views))
	for i, v := range cfg.Views {
		seg := v.Path
		if seg == "" {
			seg = strconv.Itoa(i)
		}
		title := v.Title
		if title == "" {
			title = dashboardTitle(d) + " " + strconv.Itoa(i+1)
		}
		out = append(out, DashboardView{URL: "/" + d.path() + "/" + seg, Title: title, ID: d.path()})
	}
	return out, nil
}

func dashboardTitle(d lovelaceDashboard) string {
	if d.Title != "" {
		return d.Title
	}
	return d.path()
}
