package handler

import (
	"reelsdownload/internal/metrics"
	"reelsdownload/internal/service"
	"reelsdownload/pkg/i18n"
	"reelsdownload/pkg/logger"
	"reelsdownload/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterDeps groups what NewRouter wires together
type RouterDeps struct {
	Download       *DownloadHandler
	Limiter        service.RateLimiter
	Localizer      *i18n.Localizer
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	TrustedProxies []string
}

// NewRouter builds the gin engine with middleware and routes
func NewRouter(deps RouterDeps) (*gin.Engine, error) {
	router := gin.New()
	if err := router.SetTrustedProxies(deps.TrustedProxies); err != nil {
		return nil, err
	}

	router.Use(logger.GinLogger())
	// before the localizer so a panic there still gets the JSON 500 in the default culture
	router.Use(middleware.Recovery(deps.Localizer, deps.Metrics))
	router.Use(deps.Localizer.Middleware())

	api := router.Group("/api")
	{
		api.POST("/download/reels",
			middleware.RateLimitMiddleware(deps.Limiter, deps.Localizer, deps.Metrics),
			deps.Download.DownloadReels,
		)
		api.GET("/health", deps.Download.HealthCheck)
	}

	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	return router, nil
}
