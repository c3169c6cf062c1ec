package config

import (
	"fmt"
	"strings"

	"reelsdownload/internal/model"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Rate limit backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Load loads configuration from a .env file (if present) and environment variables
func Load() (*model.Config, error) {
	// .env is optional; real environment variables always win
	_ = godotenv.Load()

	cfg := &model.Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	normalize(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// normalize trims list values and fills derived defaults
func normalize(cfg *model.Config) {
	cfg.Security.AllowedDomains = cleanList(cfg.Security.AllowedDomains, true)
	cfg.Localization.SupportedCultures = cleanList(cfg.Localization.SupportedCultures, false)
	cfg.Server.TrustedProxies = cleanList(cfg.Server.TrustedProxies, false)
	cfg.RateLimit.Backend = strings.ToLower(strings.TrimSpace(cfg.RateLimit.Backend))

	cfg.RapidAPI.Key = strings.TrimSpace(cfg.RapidAPI.Key)
	cfg.RapidAPI.Host = strings.TrimSpace(cfg.RapidAPI.Host)
	if cfg.RapidAPI.BaseURL == "" && cfg.RapidAPI.Host != "" {
		cfg.RapidAPI.BaseURL = "https://" + cfg.RapidAPI.Host
	}
	cfg.RapidAPI.BaseURL = strings.TrimRight(cfg.RapidAPI.BaseURL, "/")
}

func validate(cfg *model.Config) error {
	switch cfg.RateLimit.Backend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("unknown RATELIMIT_BACKEND %q", cfg.RateLimit.Backend)
	}
	if cfg.RateLimit.Requests <= 0 {
		return fmt.Errorf("RATELIMIT_REQUESTS must be positive, got %d", cfg.RateLimit.Requests)
	}
	if cfg.RateLimit.Window <= 0 {
		return fmt.Errorf("RATELIMIT_WINDOW must be positive, got %s", cfg.RateLimit.Window)
	}
	if len(cfg.Security.AllowedDomains) == 0 {
		return fmt.Errorf("ALLOWED_DOMAINS must not be empty")
	}
	if cfg.RapidAPI.RequestsPerSecond < 0 {
		return fmt.Errorf("RAPIDAPI_REQUESTS_PER_SECOND must not be negative")
	}
	return nil
}

func cleanList(values []string, lower bool) []string {
	var result []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if lower {
			v = strings.ToLower(v)
		}
		result = append(result, v)
	}
	return result
}
