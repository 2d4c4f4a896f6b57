// Package cache keeps recently rendered dashboard images in Redis so that
// several devices polling the same dashboard share one browser render.
package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "izboard:render:"

type RenderCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New returns nil when rdb is nil or ttl is not positive; a nil cache misses
// every lookup and stores nothing.
func New(rdb *redis.Client, ttl time.Duration) *RenderCache {
	if rdb == nil || ttl <= 0 {
		return nil
	}
	return &RenderCache{rdb: rdb, ttl: ttl}
}

func key(dashboardID, format string) string {
	return keyPrefix + dashboardID + ":" + strings.ToLower(format)
}

func (c *RenderCache) Get(ctx context.Context, dashboardID, format string) ([]byte, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	b, err := c.rdb.Get(ctx, key(dashboardID, format)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (c *RenderCache) Set(ctx context.Context, dashboardID, format string, data []byte) error {
	if c == nil {
		return nil
	}
	return c.rdb.Set(ctx, key(dashboardID, format), data, c.ttl).Err()
}

// Invalidate drops every cached format of a dashboard.
func (c *RenderCache) Invalidate(ctx context.Context, dashboardID string) error {
	if c == nil {
		return nil
	}
	iter := c.rdb.Scan(ctx, 0, key(dashboardID, "*"), 100).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
