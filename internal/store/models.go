package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Dashboard is one e-paper dashboard: where its data lives, how devices
// authenticate and what it looks like. The render pipeline only ever writes
// LastUpdateTime.
type Dashboard struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerUserID    *uuid.UUID     `gorm:"type:uuid;index" json:"owner_user_id,omitempty"`
	Name           string         `gorm:"type:varchar(128);not null" json:"name"`
	Description    string         `gorm:"type:text" json:"description,omitempty"`
	Host           string         `gorm:"type:varchar(512)" json:"host"`
	AccessToken    string         `gorm:"type:text" json:"-"`
	APIKey         string         `gorm:"type:varchar(128);index" json:"-"`
	UpdateTimes    datatypes.JSON `json:"update_times,omitempty"`
	LastUpdateTime *time.Time     `json:"last_update_time,omitempty"`
	Layout         datatypes.JSON `json:"layout,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// ScheduledTimes returns the configured "HH:MM" update times. Malformed
// JSON yields nil.
func (d *Dashboard) ScheduledTimes() []string {
	if len(d.UpdateTimes) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(d.UpdateTimes, &out); err != nil {
		return nil
	}
	return out
}
