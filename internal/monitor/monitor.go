// Package monitor watches dashboards for missed scheduled updates. Devices
// fetch their image at configured times of day; when the last successful
// render is older than the most recent slot (plus a grace period), the
// dashboard's Home Assistant receives a persistent notification.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/mqtt"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/store"
)

const (
	DefaultSpec  = "0 * * * * *"
	DefaultGrace = 5 * time.Minute

	NotificationTitle = "izBoard: missed update"
)

type DashboardLister interface {
	ListDashboards(ctx context.Context) ([]store.Dashboard, error)
}

type Notifier interface {
	SendNotification(ctx context.Context, dashboardID, title, message, notificationID string) error
}

type EventPublisher interface {
	DashboardEvent(dashboardID, eventType string, data map[string]any) error
}

type Options struct {
	Spec     string
	Grace    time.Duration
	Location *time.Location
	// Events is optional.
	Events EventPublisher
}

type Monitor struct {
	dashboards DashboardLister
	notifier   Notifier
	events     EventPublisher
	spec       string
	grace      time.Duration
	loc        *time.Location
	cron       *cron.Cron

	mu       sync.Mutex
	notified map[uuid.UUID]time.Time
	running  bool
}

func New(dashboards DashboardLister, notifier Notifier, opts Options) *Monitor {
	m := &Monitor{
		dashboards: dashboards,
		notifier:   notifier,
		events:     opts.Events,
		spec:       strings.TrimSpace(opts.Spec),
		grace:      opts.Grace,
		loc:        opts.Location,
		cron:       cron.New(cron.WithSeconds()),
		notified:   map[uuid.UUID]time.Time{},
	}
	if m.spec == "" {
		m.spec = DefaultSpec
	}
	if m.grace <= 0 {
		m.grace = DefaultGrace
	}
	if m.loc == nil {
		m.loc = time.Local
	}
	return m
}

// Start schedules Check on the cron spec. ctx bounds every scan.
func (m *Monitor) Start(ctx context.Context) error {
	if _, err := m.cron.AddFunc(m.spec, func() { m.scan(ctx) }); err != nil {
		return fmt.Errorf("monitor spec %q: %w", m.spec, err)
	}
	m.cron.Start()
	slog.Info("schedule monitor started", "spec", m.spec, "grace", m.grace)
	return nil
}

// Stop halts scheduling and waits for a running scan to finish.
func (m *Monitor) Stop() {
	<-m.cron.Stop().Done()
}

func (m *Monitor) scan(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		slog.Debug("schedule monitor scan still running, skipping tick")
		return
	}
	m.running = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	if ctx.Err() != nil {
		return
	}
	if n, err := m.Check(ctx, time.Now()); err != nil {
		slog.Warn("schedule monitor scan failed", "error", err)
	} else if n > 0 {
		slog.Info("schedule monitor raised notifications", "count", n)
	}
}

// Check scans every dashboard once and notifies those that missed their
// latest slot. It returns the number of notifications sent. Per-dashboard
// failures are logged and do not stop the scan.
func (m *Monitor) Check(ctx context.Context, now time.Time) (int, error) {
	dashboards, err := m.dashboards.ListDashboards(ctx)
	if err != nil {
		return 0, fmt.Errorf("list dashboards: %w", err)
	}
	sent := 0
	seen := make(map[uuid.UUID]struct{}, len(dashboards))
	for i := range dashboards {
		d := &dashboards[i]
		seen[d.ID] = struct{}{}
		if m.checkOne(ctx, d, now) {
			sent++
		}
	}
	m.mu.Lock()
	for id := range m.notified {
		if _, ok := seen[id]; !ok {
			delete(m.notified, id)
		}
	}
	m.mu.Unlock()
	return sent, nil
}

func (m *Monitor) checkOne(ctx context.Context, d *store.Dashboard, now time.Time) bool {
	slot, missed := MissedSlot(d.ScheduledTimes(), d.LastUpdateTime, now.In(m.loc), m.grace)
	if !missed {
		return false
	}
	m.mu.Lock()
	already := m.notified[d.ID].Equal(slot)
	m.mu.Unlock()
	if already {
		return false
	}

	id := d.ID.String()
	at := slot.Format("15:04")
	msg := fmt.Sprintf("Dashboard %s did not update at %s", d.Name, at)
	if err := m.notifier.SendNotification(ctx, id, NotificationTitle, msg, "izboard_missed_"+id); err != nil {
		slog.Warn("missed update notification failed", "dashboard_id", id, "slot", at, "error", err)
		return false
	}
	m.mu.Lock()
	m.notified[d.ID] = slot
	m.mu.Unlock()
	slog.Info("missed update notified", "dashboard_id", id, "slot", at)

	if m.events != nil {
		data := map[string]any{"slot": slot.Format(time.RFC3339), "name": d.Name}
		if d.LastUpdateTime != nil {
			data["last_update_time"] = d.LastUpdateTime.UTC().Format(time.RFC3339)
		}
		if err := m.events.DashboardEvent(id, mqtt.EventUpdateMissed, data); err != nil {
			slog.Warn("missed update event publish failed", "dashboard_id", id, "error", err)
		}
	}
	return true
}

// MissedSlot finds the latest scheduled time at or before now-grace within
// the past 24 hours and reports whether lastUpdate predates it. Times are
// "HH:MM" in now's location; unparsable entries are ignored.
func MissedSlot(times []string, lastUpdate *time.Time, now time.Time, grace time.Duration) (time.Time, bool) {
	cutoff := now.Add(-grace)
	var slots []time.Time
	for _, raw := range times {
		h, mi, ok := parseClock(raw)
		if !ok {
			continue
		}
		for _, day := range []int{0, -1} {
			y, mo, dd := cutoff.AddDate(0, 0, day).Date()
			s := time.Date(y, mo, dd, h, mi, 0, 0, now.Location())
			if !s.After(cutoff) && now.Sub(s) < 24*time.Hour {
				slots = append(slots, s)
			}
		}
	}
	if len(slots) == 0 {
		return time.Time{}, false
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].After(slots[j]) })
	latest := slots[0]
	if lastUpdate != nil && !lastUpdate.Before(latest) {
		return latest, false
	}
	return latest, true
}

func parseClock(s string) (int, int, bool) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, false
	}
	h, err1 := strconv.Atoi(hh)
	m, err2 := strconv.Atoi(mm)
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}
