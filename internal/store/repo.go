package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("dashboard not found")

type Repo struct {
	db *gorm.DB
}

func New(db *gorm.DB) (*Repo, error) {
	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	return &Repo{db: db}, nil
}

func ensureSchema(db *gorm.DB) error {
	m := db.Migrator()
	// Create missing tables only; the schema is owned by the CRUD service and
	// this process must never alter existing columns.
	if !m.HasTable(&Dashboard{}) {
		if err := m.CreateTable(&Dashboard{}); err != nil {
			return fmt.Errorf("create table dashboards: %w", err)
		}
	}
	return nil
}

func (r *Repo) GetDashboard(ctx context.Context, id uuid.UUID) (*Dashboard, error) {
	var d Dashboard
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *Repo) ListDashboards(ctx context.Context) ([]Dashboard, error) {
	var out []Dashboard
	if err := r.db.WithContext(ctx).Order("name asc, id asc").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// TouchLastUpdate records a successful device render.
func (r *Repo) TouchLastUpdate(ctx context.Context, id uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&Dashboard{}).
		Where("id = ?", id).
		UpdateColumn("last_update_time", at.UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertDashboard inserts d or replaces every column of the row with the same
// id. LastUpdateTime of an existing row is preserved.
func (r *Repo) UpsertDashboard(ctx context.Context, d *Dashboard) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"owner_user_id", "name", "description", "host", "access_token",
			"api_key", "update_times", "layout", "updated_at",
		}),
	}).Create(d).Error
}
