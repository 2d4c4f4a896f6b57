package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"

	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/store"
)

// SeedDashboard is one entry of the seed file. Layout may be written as
// YAML and is stored as JSON.
type SeedDashboard struct {
	ID          string    `yaml:"id"`
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Host        string    `yaml:"host"`
	AccessToken string    `yaml:"access_token"`
	APIKey      string    `yaml:"api_key"`
	UpdateTimes []string  `yaml:"update_times"`
	Layout      yaml.Node `yaml:"layout"`
}

type seedFile struct {
	Dashboards []SeedDashboard `yaml:"dashboards"`
}

// LoadSeed reads the dashboards listed in a YAML seed file. Values of the form
// ${NAME} in host, access_token and api_key are expanded from the environment.
func LoadSeed(path string) ([]store.Dashboard, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f seedFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("seed %s: %w", path, err)
	}
	out := make([]store.Dashboard, 0, len(f.Dashboards))
	for i, sd := range f.Dashboards {
		d, err := sd.dashboard()
		if err != nil {
			return nil, fmt.Errorf("seed %s: dashboard %d: %w", path, i, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func (sd SeedDashboard) dashboard() (store.Dashboard, error) {
	id, err := uuid.Parse(strings.TrimSpace(sd.ID))
	if err != nil {
		return store.Dashboard{}, fmt.Errorf("invalid id %q", sd.ID)
	}
	if strings.TrimSpace(sd.Name) == "" {
		return store.Dashboard{}, fmt.Errorf("name is required")
	}
	d := store.Dashboard{
		ID:          id,
		Name:        strings.TrimSpace(sd.Name),
		Description: sd.Description,
		Host:        os.ExpandEnv(strings.TrimSpace(sd.Host)),
		AccessToken: os.ExpandEnv(strings.TrimSpace(sd.AccessToken)),
		APIKey:      os.ExpandEnv(strings.TrimSpace(sd.APIKey)),
	}
	if len(sd.UpdateTimes) > 0 {
		b, err := json.Marshal(sd.UpdateTimes)
		if err != nil {
			return store.Dashboard{}, err
		}
		d.UpdateTimes = datatypes.JSON(b)
	}
	if !sd.Layout.IsZero() {
		var layout any
		if err := sd.Layout.Decode(&layout); err != nil {
			return store.Dashboard{}, fmt.Errorf("layout: %w", err)
		}
		b, err := json.Marshal(layout)
		if err != nil {
			return store.Dashboard{}, fmt.Errorf("layout: %w", err)
		}
		d.Layout = datatypes.JSON(b)
	}
	return d, nil
}
