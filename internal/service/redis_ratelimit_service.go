package service

import (
	"context"
	"errors"
	"time"

	"reelsdownload/internal/model"
	"reelsdownload/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// fixedWindowScript admits a request if the counter is below the ceiling,
// incrementing it and starting the window on the first hit.
// KEYS[1] counter key, ARGV[1] window in ms, ARGV[2] ceiling. Returns 1 or 0.
var fixedWindowScript = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
if current >= tonumber(ARGV[2]) then
	return 0
end
current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return 1
`)

// RedisRateLimitService is a fixed-window rate limiter backed by a shared
// Redis counter, so every instance behind a load balancer sees the same count
type RedisRateLimitService struct {
	cfg    *model.RateLimitConfig
	rdb    redis.Cmdable
	prefix string
}

// NewRedisRateLimitService creates a Redis backed rate limiter
func NewRedisRateLimitService(cfg *model.RateLimitConfig, rdb redis.Cmdable, prefix string) *RedisRateLimitService {
	if prefix == "" {
		prefix = "reels:ratelimit"
	}
	return &RedisRateLimitService{
		cfg:    cfg,
		rdb:    rdb,
		prefix: prefix,
	}
}

// Allow counts the request against the client's window. Store errors allow
// the request.
func (s *RedisRateLimitService) Allow(ctx context.Context, clientKey string) bool {
	if !s.cfg.Enabled {
		return true
	}

	key := s.prefix + ":" + clientKey
	admitted, err := fixedWindowScript.Run(ctx, s.rdb, []string{key},
		s.cfg.Window.Milliseconds(), s.cfg.Requests).Int()
	if err != nil {
		logger.Logger.Warn("Rate limit store unavailable, allowing request",
			zap.String("client", clientKey),
			zap.Error(err))
		return true
	}

	if admitted == 0 {
		logger.Logger.Warn("Rate limit exceeded",
			zap.String("client", clientKey),
			zap.Int("limit", s.cfg.Requests),
			zap.Duration("window", s.cfg.Window))
		return false
	}
	return true
}

// Remaining returns the requests left in the client's current window, or -1
// when the limiter is disabled or the store cannot be read
func (s *RedisRateLimitService) Remaining(ctx context.Context, clientKey string) int {
	if !s.cfg.Enabled {
		return -1
	}

	count, err := s.rdb.Get(ctx, s.prefix+":"+clientKey).Int()
	if errors.Is(err, redis.Nil) {
		return s.cfg.Requests
	}
	if err != nil {
		logger.Logger.Warn("Rate limit store unavailable, remaining unknown",
			zap.String("client", clientKey),
			zap.Error(err))
		return -1
	}

	remaining := s.cfg.Requests - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// Ping verifies the store is reachable
func Ping(ctx context.Context, rdb *redis.Client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return rdb.Ping(ctx).Err()
}
