package service

import (
	"context"
	"sync"
	"time"

	"reelsdownload/internal/model"
	"reelsdownload/pkg/logger"

	"go.uber.org/zap"
)

// RateLimiter decides whether a client may issue another request.
// Implementations never fail; a limiter that cannot decide allows.
type RateLimiter interface {
	Allow(ctx context.Context, clientKey string) bool
}

// RateLimitService is an in-memory fixed-window rate limiter keyed by client
type RateLimitService struct {
	cfg      *model.RateLimitConfig
	limits   map[string]*model.RateLimitEntry
	mu       sync.Mutex
	now      func() time.Time
	quitChan chan struct{}
	stopOnce sync.Once
}

// NewRateLimitService creates a new rate limit service
func NewRateLimitService(cfg *model.RateLimitConfig) *RateLimitService {
	service := &RateLimitService{
		cfg:      cfg,
		limits:   make(map[string]*model.RateLimitEntry),
		now:      time.Now,
		quitChan: make(chan struct{}),
	}

	if cfg.Enabled && cfg.CleanupInterval > 0 {
		go service.cleanupRoutine()
	}

	return service
}

// Allow counts the request against the client's current window
func (rls *RateLimitService) Allow(_ context.Context, clientKey string) bool {
	if !rls.cfg.Enabled {
		return true
	}

	rls.mu.Lock()
	defer rls.mu.Unlock()

	now := rls.now()
	entry, exists := rls.limits[clientKey]

	// New client or the previous window has elapsed
	if !exists || !now.Before(entry.ResetAt) {
		rls.limits[clientKey] = &model.RateLimitEntry{
			ClientKey: clientKey,
			Count:     1,
			ResetAt:   now.Add(rls.cfg.Window),
		}
		return true
	}

	if entry.Count >= rls.cfg.Requests {
		logger.Logger.Warn("Rate limit exceeded",
			zap.String("client", clientKey),
			zap.Int("requests", entry.Count),
			zap.Int("limit", rls.cfg.Requests),
			zap.Time("reset_at", entry.ResetAt))
		return false
	}

	entry.Count++
	return true
}

// Remaining returns remaining requests for the client in the current window
func (rls *RateLimitService) Remaining(_ context.Context, clientKey string) int {
	if !rls.cfg.Enabled {
		return -1 // Unlimited
	}

	rls.mu.Lock()
	defer rls.mu.Unlock()

	entry, exists := rls.limits[clientKey]
	if !exists || !rls.now().Before(entry.ResetAt) {
		return rls.cfg.Requests
	}

	remaining := rls.cfg.Requests - entry.Count
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// cleanupRoutine periodically cleans up expired entries
func (rls *RateLimitService) cleanupRoutine() {
	ticker := time.NewTicker(rls.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rls.quitChan:
			logger.Logger.Info("Rate limit service stopped")
			return
		case <-ticker.C:
			rls.cleanup()
		}
	}
}

// cleanup removes entries whose window has elapsed
func (rls *RateLimitService) cleanup() int {
	rls.mu.Lock()
	defer rls.mu.Unlock()

	now := rls.now()
	removed := 0

	for key, entry := range rls.limits {
		if !now.Before(entry.ResetAt) {
			delete(rls.limits, key)
			removed++
		}
	}

	if removed > 0 {
		logger.Logger.Debug("Rate limit entries cleaned up", zap.Int("removed", removed), zap.Int("remaining", len(rls.limits)))
	}
	return removed
}

// Reset clears the window of a specific client (admin operation)
func (rls *RateLimitService) Reset(clientKey string) {
	rls.mu.Lock()
	defer rls.mu.Unlock()

	delete(rls.limits, clientKey)
	logger.Logger.Info("Rate limit reset for client", zap.String("client", clientKey))
}

// Stop stops the cleanup routine. Safe to call more than once.
func (rls *RateLimitService) Stop() {
	rls.stopOnce.Do(func() { close(rls.quitChan) })
}
