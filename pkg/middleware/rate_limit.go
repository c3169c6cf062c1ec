package middleware

import (
	"context"
	"net/http"
	"strconv"

	"reelsdownload/internal/metrics"
	"reelsdownload/internal/model"
	"reelsdownload/internal/service"
	"reelsdownload/pkg/i18n"
	"reelsdownload/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UnknownClient is the rate limit key used when the peer address is unavailable
const UnknownClient = "unknown"

// remainingReporter is implemented by limiters that can report the budget left
type remainingReporter interface {
	Remaining(ctx context.Context, clientKey string) int
}

// ClientKey identifies the caller for rate limiting
func ClientKey(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return UnknownClient
}

// RateLimitMiddleware rejects clients that exceeded their window with 429
func RateLimitMiddleware(limiter service.RateLimiter, loc *i18n.Localizer, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := ClientKey(c)

		allowed := limiter.Allow(c.Request.Context(), key)
		m.ObserveRateLimit(allowed)

		if !allowed {
			logger.WithRequest(c).Warn("Rate limit exceeded", zap.String("ip", key))
			m.ObserveRequest(metrics.OutcomeRateLimited)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, model.DownloadResponse{
				Success: false,
				Error:   loc.T(c, i18n.RateLimitError),
			})
			return
		}

		// Set remaining requests header
		if r, ok := limiter.(remainingReporter); ok {
			if remaining := r.Remaining(c.Request.Context(), key); remaining >= 0 {
				c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
			}
		}

		c.Next()
	}
}
