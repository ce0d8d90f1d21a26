// Package config loads runtime settings from the environment, optionally
// seeded from a .env file, and builds the process logger.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// DevJWTSecret is the session secret used when JWT_SECRET is unset. It is
// refused in production.
const DevJWTSecret = "dev-secret-change-me-in-production"

type Config struct {
	AppName string
	Env     string // development, staging, production
	Port    string

	DBPath string

	// Sessions
	JWTSecret string
	TokenTTL  time.Duration

	// GitHub OAuth
	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string
	FrontendURL        string

	// URL shortener
	ShortenerEnabled  bool
	ShortenerURL      string
	ShortenerTimeout  time.Duration
	ShortenerBudget   time.Duration // all URLs in one submission
	ShortenerCacheTTL time.Duration

	// Redis caches shortened URLs; empty address disables the cache.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Status submissions per user
	PostRatePerMinute int
	PostBurst         int

	MetricsEnabled bool
}

// Load reads a .env file from the working directory when present and then
// the environment. Unset keys take development defaults.
func Load(logger logrus.FieldLogger) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return fromEnv(logger), nil
}

func fromEnv(logger logrus.FieldLogger) *Config {
	e := envReader{logger: logger}
	return &Config{
		AppName: e.str("APP_NAME", "chirper"),
		Env:     e.str("APP_ENV", "development"),
		Port:    e.str("PORT", "8080"),

		DBPath: e.str("DB_PATH", "chirper.db"),

		JWTSecret: e.str("JWT_SECRET", DevJWTSecret),
		TokenTTL:  e.dur("TOKEN_TTL", 24*time.Hour),

		GitHubClientID:     e.str("GITHUB_CLIENT_ID", ""),
		GitHubClientSecret: e.str("GITHUB_CLIENT_SECRET", ""),
		GitHubCallbackURL:  e.str("GITHUB_CALLBACK_URL", "http://localhost:8080/auth/github/callback"),
		FrontendURL:        e.str("FRONTEND_URL", "http://localhost:5173"),

		ShortenerEnabled:  e.boolean("SHORTENER_ENABLED", true),
		ShortenerURL:      e.str("SHORTENER_URL", "https://tinyurl.com/api-create.php"),
		ShortenerTimeout:  e.dur("SHORTENER_TIMEOUT", 3*time.Second),
		ShortenerBudget:   e.dur("SHORTENER_BUDGET", 5*time.Second),
		ShortenerCacheTTL: e.dur("SHORTENER_CACHE_TTL", 7*24*time.Hour),

		RedisAddr:     e.str("REDIS_ADDR", ""),
		RedisPassword: e.str("REDIS_PASSWORD", ""),
		RedisDB:       e.integer("REDIS_DB", 0),

		PostRatePerMinute: e.integer("POST_RATE_PER_MIN", 30),
		PostBurst:         e.integer("POST_BURST", 5),

		MetricsEnabled: e.boolean("METRICS_ENABLED", true),
	}
}

// IsProduction decides cookie Secure flags and log format.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// envReader falls back to the default, with a warning, on unparsable values.
type envReader struct {
	logger logrus.FieldLogger
}

func (e envReader) str(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (e envReader) boolean(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.invalid(key, v, def)
		return def
	}
	return b
}

func (e envReader) integer(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		e.invalid(key, v, def)
		return def
	}
	return i
}

func (e envReader) dur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.invalid(key, v, def)
		return def
	}
	return d
}

func (e envReader) invalid(key, value string, def any) {
	if e.logger == nil {
		return
	}
	e.logger.WithFields(logrus.Fields{"key": key, "value": value, "default": def}).Warn("invalid config value, using default")
}
