package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("IZBOARD_CONFIG", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.DBDriver != "postgres" || cfg.MonitorGrace != 5*time.Minute || cfg.MonitorSpec != "0 * * * * *" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.RenderCacheTTL != 0 || !cfg.MonitorEnabled || cfg.HassTimeout != 20*time.Second {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "izboard.yaml")
	if err := os.WriteFile(path, []byte("port: \"9000\"\ndb_driver: sqlite\nrender_cache_ttl: 90s\ncors_origins: http://a, http://b\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("IZBOARD_CONFIG", path)
	t.Setenv("PORT", "9100")
	t.Setenv("RATE_LIMIT_RPS", "3")
	t.Setenv("TZ", "Europe/Berlin")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9100" {
		t.Fatalf("env should override file, got %s", cfg.Port)
	}
	if cfg.DBDriver != "sqlite" || cfg.RenderCacheTTL != 90*time.Second || cfg.RateLimitRPS != 3 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b" {
		t.Fatalf("unexpected origins %v", cfg.CORSOrigins)
	}
	if cfg.Timezone.String() != "Europe/Berlin" {
		t.Fatalf("unexpected timezone %v", cfg.Timezone)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("IZBOARD_CONFIG", "")
	t.Setenv("DB_DRIVER", "mysql")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "mysql") {
		t.Fatalf("expected driver error, got %v", err)
	}
}

func TestLoadSeed(t *testing.T) {
	t.Setenv("KITCHEN_TOKEN", "llat-123")
	path := filepath.Join(t.TempDir(), "seed.yaml")
	doc := `dashboards:
  - id: 6f1c2a8e-3c57-4b55-9d8c-2b1b1f2f0c11
    name: Kitchen
    host: http://homeassistant.local:8123
    access_token: ${KITCHEN_TOKEN}
    api_key: device-key
    update_times: ["07:00", "18:30"]
    layout:
      gridCols: 6
      widgets:
        - id: w1
          type: weather
          position: {x: 0, y: 0, w: 2, h: 2}
          config: {entityId: weather.home}
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	ds, err := LoadSeed(path)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if len(ds) != 1 {
		t.Fatalf("expected one dashboard, got %d", len(ds))
	}
	d := ds[0]
	if d.AccessToken != "llat-123" || d.APIKey != "device-key" || d.Name != "Kitchen" {
		t.Fatalf("unexpected dashboard %+v", d)
	}
	if got := d.ScheduledTimes(); len(got) != 2 || got[1] != "18:30" {
		t.Fatalf("unexpected times %v", got)
	}
	if !strings.Contains(string(d.Layout), `"entityId":"weather.home"`) || !strings.Contains(string(d.Layout), `"gridCols":6`) {
		t.Fatalf("unexpected layout %s", d.Layout)
	}
}

func TestLoadSeedRejectsBadID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	_ = os.WriteFile(path, []byte("dashboards:\n  - id: nope\n    name: x\n"), 0o600)
	if _, err := LoadSeed(path); err == nil {
		t.Fatalf("expected error for invalid id")
	}
}
