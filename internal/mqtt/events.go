package mqtt

import (
	"strings"
	"time"
)

const (
	EventRenderCompleted = "render_completed"
	EventUpdateMissed    = "update_missed"
)

// Event is the payload of every dashboard event.
type Event struct {
	DashboardID string         `json:"dashboard_id"`
	Type        string         `json:"type"`
	At          time.Time      `json:"at"`
	Data        map[string]any `json:"data,omitempty"`
}

type publisher interface {
	PublishJSON(topic string, v any) error
}

// Events publishes dashboard events under <prefix>/dashboards/<id>/<type>.
// A nil *Events drops everything, so callers need no broker checks.
type Events struct {
	pub    publisher
	prefix string
	now    func() time.Time
}

func NewEvents(c *Client, prefix string) *Events {
	if c == nil {
		return nil
	}
	return newEvents(c, prefix)
}

func newEvents(pub publisher, prefix string) *Events {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = "izboard"
	}
	return &Events{pub: pub, prefix: prefix, now: time.Now}
}

func (e *Events) Topic(dashboardID, eventType string) string {
	return e.prefix + "/dashboards/" + dashboardID + "/" + eventType
}

func (e *Events) DashboardEvent(dashboardID, eventType string, data map[string]any) error {
	if e == nil {
		return nil
	}
	return e.pub.PublishJSON(e.Topic(dashboardID, eventType), Event{
		DashboardID: dashboardID,
		Type:        eventType,
		At:          e.now().UTC(),
		Data:        data,
	})
}
