package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type LimiterConfig struct {
	RPS   int
	Burst int
}

type RateLimiter struct {
	Redis  *redis.Client
	Prefix string
	Config LimiterConfig
}

// New returns nil, which allows everything, when rdb is nil or the limit is
// not positive.
func New(rdb *redis.Client, prefix string, cfg LimiterConfig) *RateLimiter {
	if rdb == nil || cfg.RPS <= 0 {
		return nil
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.RPS
	}
	return &RateLimiter{Redis: rdb, Prefix: prefix, Config: cfg}
}

// Token bucket per key.
// KEYS[1] = key
// ARGV[1] = max_tokens (burst)
// ARGV[2] = refill_rate (tokens per second)
// ARGV[3] = now (ms)
// Returns 1 if allowed, 0 if not.
var tokenBucket = redis.NewScript(`
local tokens_key = KEYS[1]
local max_tokens = tonumber(ARGV[1])
local refill_rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local bucket = redis.call('HMGET', tokens_key, 'tokens', 'last')
local tokens = tonumber(bucket[1]) or max_tokens
local last = tonumber(bucket[2]) or now
local delta = math.max(0, now - last) / 1000
tokens = math.min(max_tokens, tokens + delta * refill_rate)
local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end
redis.call('HSET', tokens_key, 'tokens', tokens, 'last', now)
redis.call('PEXPIRE', tokens_key, math.ceil(max_tokens / refill_rate * 1000) + 1000)
return allowed
`)

// Middleware rejects requests over the limit with 429. Keys are built by
// keyFunc; an empty key is not limited. Redis failures let the request
// through so that devices keep rendering when the limiter is down.
func (rl *RateLimiter) Middleware(keyFunc func(r *http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if rl == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := keyFunc(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}
			allowed, err := rl.Allow(r.Context(), k)
			if err != nil {
				slog.Warn("rate limiter unavailable, allowing request", "key", k, "error", err)
			} else if !allowed {
				w.Header().Set("Retry-After", "1")
				writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	full := rl.Prefix + ":" + key
	now := time.Now().UnixMilli()
	res, err := tokenBucket.Run(ctx, rl.Redis, []string{full}, rl.Config.Burst, rl.Config.RPS, now).Int64()
	if err != nil {
		return false, err
	}
	slog.Debug("token bucket", "key", full, "allowed", res, "max", rl.Config.Burst, "rps", rl.Config.RPS)
	return res == 1, nil
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + msg + `","code":` + strconv.Itoa(status) + `}`))
}
