package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reelsdownload/config"
	"reelsdownload/internal/handler"
	"reelsdownload/internal/metrics"
	"reelsdownload/internal/model"
	"reelsdownload/internal/service"
	"reelsdownload/pkg/i18n"
	"reelsdownload/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Logger.Info("Starting Reels Download Server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
	)

	if !cfg.RapidAPI.Configured() {
		logger.Logger.Warn("RapidAPI credentials are not configured, download requests will fail",
			zap.Bool("key_set", cfg.RapidAPI.Key != ""),
			zap.Bool("host_set", cfg.RapidAPI.Host != ""))
	}

	localizer, err := i18n.New(cfg.Localization.DefaultCulture, cfg.Localization.SupportedCultures)
	if err != nil {
		logger.Logger.Fatal("Invalid localization settings", zap.Error(err))
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	limiter, closeLimiter := newRateLimiter(cfg)
	defer closeLimiter()

	resolver := service.NewMediaResolverService(&cfg.RapidAPI, m)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router, err := handler.NewRouter(handler.RouterDeps{
		Download:       handler.NewDownloadHandler(resolver, localizer, m, cfg),
		Limiter:        limiter,
		Localizer:      localizer,
		Metrics:        m,
		Gatherer:       prometheus.DefaultGatherer,
		TrustedProxies: cfg.Server.TrustedProxies,
	})
	if err != nil {
		logger.Logger.Fatal("Failed to build router", zap.Error(err))
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.Timeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.Timeout)*time.Second + cfg.RapidAPI.Timeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Logger.Info("Server listening", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Logger.Fatal("Server error", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Logger.Info("Server stopped")
}

// newRateLimiter builds the configured rate limit backend and its cleanup func
func newRateLimiter(cfg *model.Config) (service.RateLimiter, func()) {
	if cfg.RateLimit.Enabled && cfg.RateLimit.Backend == config.BackendRedis {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := service.Ping(context.Background(), rdb, 5*time.Second); err != nil {
			logger.Logger.Fatal("Failed to connect to Redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		logger.Logger.Info("Rate limiting enabled",
			zap.String("backend", config.BackendRedis),
			zap.Int("requests", cfg.RateLimit.Requests),
			zap.Duration("window", cfg.RateLimit.Window))
		return service.NewRedisRateLimitService(&cfg.RateLimit, rdb, cfg.Redis.KeyPrefix), func() { _ = rdb.Close() }
	}

	rls := service.NewRateLimitService(&cfg.RateLimit)
	if cfg.RateLimit.Enabled {
		logger.Logger.Info("Rate limiting enabled",
			zap.String("backend", config.BackendMemory),
			zap.Int("requests", cfg.RateLimit.Requests),
			zap.Duration("window", cfg.RateLimit.Window))
	}
	return rls, rls.Stop
}
