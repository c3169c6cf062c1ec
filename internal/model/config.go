package model

import "time"

// Config holds application configuration
type Config struct {
	Server       ServerConfig
	Logging      LoggingConfig
	RapidAPI     RapidAPIConfig
	Security     SecurityConfig
	RateLimit    RateLimitConfig
	Redis        RedisConfig
	Localization LocalizationConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int      `env:"SERVER_PORT" envDefault:"8080"`
	Host           string   `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Timeout        int      `env:"SERVER_TIMEOUT" envDefault:"30"` // seconds
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string `env:"LOG_LEVEL" envDefault:"info"`
	FilePath string `env:"LOG_FILE"` // empty means stdout only
}

// RapidAPIConfig holds credentials and transport settings for the media resolution API
type RapidAPIConfig struct {
	Key               string        `env:"RAPIDAPI_KEY"`
	Host              string        `env:"RAPIDAPI_HOST"`
	BaseURL           string        `env:"RAPIDAPI_BASE_URL"` // defaults to https://<Host>
	Timeout           time.Duration `env:"RAPIDAPI_TIMEOUT" envDefault:"20s"`
	RequestsPerSecond float64       `env:"RAPIDAPI_REQUESTS_PER_SECOND" envDefault:"0"` // 0 disables outbound throttling
	Burst             int           `env:"RAPIDAPI_BURST" envDefault:"1"`
}

// Configured reports whether both credentials are present
func (c RapidAPIConfig) Configured() bool {
	return c.Key != "" && c.Host != ""
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	AllowedDomains []string `env:"ALLOWED_DOMAINS" envSeparator:"," envDefault:"instagram.com,www.instagram.com,tiktok.com,www.tiktok.com,twitter.com,x.com,youtube.com,youtu.be,facebook.com,fb.com,fb.watch"`
}

// RateLimitConfig holds per-client rate limiting configuration
type RateLimitConfig struct {
	Enabled         bool          `env:"RATELIMIT_ENABLED" envDefault:"true"`
	Backend         string        `env:"RATELIMIT_BACKEND" envDefault:"memory"` // memory or redis
	Requests        int           `env:"RATELIMIT_REQUESTS" envDefault:"15"`    // ceiling per window
	Window          time.Duration `env:"RATELIMIT_WINDOW" envDefault:"1m"`
	CleanupInterval time.Duration `env:"RATELIMIT_CLEANUP_INTERVAL" envDefault:"5m"`
}

// RedisConfig holds the shared counter store connection used by the redis rate limit backend
type RedisConfig struct {
	Addr      string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password  string `env:"REDIS_PASSWORD"`
	DB        int    `env:"REDIS_DB" envDefault:"0"`
	KeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"reels:ratelimit"`
}

// LocalizationConfig holds request culture settings
type LocalizationConfig struct {
	DefaultCulture    string   `env:"LOCALIZATION_DEFAULT_CULTURE" envDefault:"en-US"`
	SupportedCultures []string `env:"LOCALIZATION_SUPPORTED_CULTURES" envSeparator:"," envDefault:"en-US,vi,id"`
}
