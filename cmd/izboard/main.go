package main

import (
	"context"
	"crypto/rsa"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/aggregator"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/cache"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/config"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/feeds"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/hass"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/httpapi"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/middleware"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/monitor"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/mqtt"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/observability"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/ratelimit"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/render"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/snapshot"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTelemetry, promHandler, tracer, err := observability.Setup(ctx, "izboard", cfg.OTLPEndpoint)
	if err != nil {
		slog.Error("telemetry setup failed", "error", err)
		os.Exit(1)
	}
	defer shutdownTelemetry()

	db, err := openDB(cfg)
	if err != nil {
		slog.Error("db connect failed", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}
	repo, err := store.New(db)
	if err != nil {
		slog.Error("db init failed", "error", err)
		os.Exit(1)
	}
	if cfg.SeedFile != "" {
		if err := seed(ctx, repo, cfg.SeedFile); err != nil {
			slog.Error("seeding dashboards failed", "file", cfg.SeedFile, "error", err)
			os.Exit(1)
		}
	}

	verifier, err := buildVerifier(cfg)
	if err != nil {
		slog.Error("failed to load jwt public key", "error", err)
		os.Exit(1)
	}
	if verifier == nil {
		slog.Warn("no jwt key or secret configured; only device api keys are accepted")
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unreachable, continuing", "addr", cfg.RedisAddr, "error", err)
		}
		defer rdb.Close()
	}

	var mqttClient *mqtt.Client
	if cfg.MQTTBrokerURL != "" {
		mqttClient, err = mqtt.Connect(cfg.MQTTBrokerURL, cfg.MQTTClientID)
		if err != nil {
			slog.Warn("mqtt connect failed, events disabled", "broker", cfg.MQTTBrokerURL, "error", err)
			mqttClient = nil
		} else {
			defer mqttClient.Close()
		}
	}
	events := mqtt.NewEvents(mqttClient, cfg.MQTTTopicPrefix)

	agg := aggregator.New(repo, hass.WSDialer{HandshakeTimeout: 10 * time.Second}, cfg.HassTimeout).WithLocation(cfg.Timezone)
	builder := render.NewBuilder(agg, feeds.NewFetcher(&http.Client{Timeout: 15 * time.Second}), cfg.AppVersion, cfg.Timezone)

	chrome := snapshot.NewChromeRenderer(snapshot.ChromeOptions{ExecPath: cfg.ChromePath, Timeout: cfg.RenderTimeout})
	defer chrome.Close()

	if cfg.MonitorEnabled {
		mon := monitor.New(repo, agg, monitor.Options{
			Spec:     cfg.MonitorSpec,
			Grace:    cfg.MonitorGrace,
			Location: cfg.Timezone,
			Events:   events,
		})
		if err := mon.Start(ctx); err != nil {
			slog.Error("monitor start failed", "spec", cfg.MonitorSpec, "error", err)
			os.Exit(1)
		}
		defer mon.Stop()
	}

	srv := httpapi.NewServer(agg, builder, repo, httpapi.ServerOptions{
		Renderer: chrome,
		Cache:    cache.New(rdb, cfg.RenderCacheTTL),
		Limiter: ratelimit.New(rdb, "izboard:ratelimit", ratelimit.LimiterConfig{
			RPS:   cfg.RateLimitRPS,
			Burst: cfg.RateLimitBurst,
		}),
		Events:      events,
		Verifier:    verifier,
		Tracer:      tracer,
		Metrics:     promHandler,
		CORSOrigins: cfg.CORSOrigins,
	})

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("izboard started", "port", cfg.Port, "version", cfg.AppVersion, "db", cfg.DBDriver)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-stop:
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)

	slog.Info("izboard stopped")
}

func setupLogging(level string) {
	lvl := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	h := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(h))
}

func openDB(cfg *config.Config) (*gorm.DB, error) {
	if cfg.DBDriver == "sqlite" {
		return store.OpenSQLite(cfg.SQLitePath)
	}
	return store.OpenPostgres(
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.DBName,
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.SSLMode,
	)
}

// buildVerifier returns nil when neither a public key nor a secret is set.
func buildVerifier(cfg *config.Config) (*middleware.Verifier, error) {
	var pub *rsa.PublicKey
	if cfg.JWTPublicKeyPath != "" {
		k, err := middleware.LoadRSAPublicKey(cfg.JWTPublicKeyPath)
		if err != nil {
			return nil, err
		}
		pub = k
	}
	if pub == nil && cfg.JWTSecret == "" {
		return nil, nil
	}
	return middleware.NewVerifier(pub, cfg.JWTSecret), nil
}

func seed(ctx context.Context, repo *store.Repo, path string) error {
	dashboards, err := config.LoadSeed(path)
	if err != nil {
		return err
	}
	for i := range dashboards {
		if err := repo.UpsertDashboard(ctx, &dashboards[i]); err != nil {
			return err
		}
	}
	slog.Info("dashboards seeded", "count", len(dashboards), "file", path)
	return nil
}
