package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type PostgresConfig struct {
	User     string
	Password string
	DBName   string
	Host     string
	Port     string
	SSLMode  string
}

type Config struct {
	Port     string
	LogLevel string

	DBDriver   string
	SQLitePath string
	Postgres   PostgresConfig
	SeedFile   string

	JWTPublicKeyPath string
	JWTSecret        string
	CORSOrigins      []string

	RedisAddr      string
	RedisPassword  string
	RenderCacheTTL time.Duration
	RateLimitRPS   int
	RateLimitBurst int

	MQTTBrokerURL   string
	MQTTClientID    string
	MQTTTopicPrefix string

	ChromePath    string
	RenderTimeout time.Duration
	HassTimeout   time.Duration
	Timezone      *time.Location

	MonitorEnabled bool
	MonitorSpec    string
	MonitorGrace   time.Duration

	OTLPEndpoint string
	AppVersion   string
}

func defaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("db_driver", "postgres")
	v.SetDefault("sqlite_path", "izboard.db")
	v.SetDefault("postgres_user", "postgres")
	v.SetDefault("postgres_password", "postgres")
	v.SetDefault("postgres_db", "izboard")
	v.SetDefault("postgres_host", "postgres")
	v.SetDefault("postgres_port", "5432")
	v.SetDefault("postgres_sslmode", "disable")
	v.SetDefault("seed_file", "")
	v.SetDefault("jwt_public_key_path", "")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("cors_origins", "")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("render_cache_ttl", "0s")
	v.SetDefault("rate_limit_rps", 0)
	v.SetDefault("rate_limit_burst", 0)
	v.SetDefault("mqtt_broker_url", "")
	v.SetDefault("mqtt_client_id", "izboard")
	v.SetDefault("mqtt_topic_prefix", "izboard")
	v.SetDefault("chrome_path", "")
	v.SetDefault("render_timeout", "30s")
	v.SetDefault("hass_timeout", "20s")
	v.SetDefault("tz", "")
	v.SetDefault("monitor_enabled", true)
	v.SetDefault("monitor_spec", "0 * * * * *")
	v.SetDefault("monitor_grace", "5m")
	v.SetDefault("otel_exporter_otlp_endpoint", "")
	v.SetDefault("app_version", "dev")
}

// Load reads the optional YAML file named by IZBOARD_CONFIG and lets
// environment variables (upper-case key names) override it.
func Load() (*Config, error) {
	v := viper.New()
	defaults(v)
	v.AutomaticEnv()
	if path := strings.TrimSpace(os.Getenv("IZBOARD_CONFIG")); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		Port:       v.GetString("port"),
		LogLevel:   v.GetString("log_level"),
		DBDriver:   strings.ToLower(strings.TrimSpace(v.GetString("db_driver"))),
		SQLitePath: v.GetString("sqlite_path"),
		Postgres: PostgresConfig{
			User:     v.GetString("postgres_user"),
			Password: v.GetString("postgres_password"),
			DBName:   v.GetString("postgres_db"),
			Host:     v.GetString("postgres_host"),
			Port:     v.GetString("postgres_port"),
			SSLMode:  v.GetString("postgres_sslmode"),
		},
		SeedFile:         strings.TrimSpace(v.GetString("seed_file")),
		JWTPublicKeyPath: strings.TrimSpace(v.GetString("jwt_public_key_path")),
		JWTSecret:        v.GetString("jwt_secret"),
		CORSOrigins:      splitList(v.GetString("cors_origins")),
		RedisAddr:        strings.TrimSpace(v.GetString("redis_addr")),
		RedisPassword:    v.GetString("redis_password"),
		RenderCacheTTL:   v.GetDuration("render_cache_ttl"),
		RateLimitRPS:     v.GetInt("rate_limit_rps"),
		RateLimitBurst:   v.GetInt("rate_limit_burst"),
		MQTTBrokerURL:    strings.TrimSpace(v.GetString("mqtt_broker_url")),
		MQTTClientID:     v.GetString("mqtt_client_id"),
		MQTTTopicPrefix:  v.GetString("mqtt_topic_prefix"),
		ChromePath:       strings.TrimSpace(v.GetString("chrome_path")),
		RenderTimeout:    v.GetDuration("render_timeout"),
		HassTimeout:      v.GetDuration("hass_timeout"),
		MonitorEnabled:   v.GetBool("monitor_enabled"),
		MonitorSpec:      v.GetString("monitor_spec"),
		MonitorGrace:     v.GetDuration("monitor_grace"),
		OTLPEndpoint:     strings.TrimSpace(v.GetString("otel_exporter_otlp_endpoint")),
		AppVersion:       v.GetString("app_version"),
		Timezone:         time.Local,
	}

	switch cfg.DBDriver {
	case "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q (want postgres or sqlite)", cfg.DBDriver)
	}
	if tz := strings.TrimSpace(v.GetString("tz")); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("invalid TZ %q: %w", tz, err)
		}
		cfg.Timezone = loc
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
