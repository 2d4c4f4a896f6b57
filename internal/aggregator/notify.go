package aggregator

import (
	"context"
	"strings"

	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/hass"
)

// SendNotification creates a persistent notification on the remote server.
// notificationID is optional; reusing one replaces the earlier notification.
func (s *Service) SendNotification(ctx context.Context, dashboardID, title, message, notificationID string) error {
	_, err := run(ctx, s, "notify", dashboardID, func(ctx context.Context, conn hass.Conn) (struct{}, error) {
		data := map[string]any{"message": message}
		if strings.TrimSpace(title) != "" {
			data["title"] = title
		}
		if strings.TrimSpace(notificationID) != "" {
			data["notification_id"] = notificationID
		}
		res, err := callService(ctx, conn, "persistent_notification", "create", "", data, false)
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, res.Err("Failed to send notification")
	})
	return err
}
