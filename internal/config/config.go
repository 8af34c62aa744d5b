// Package config loads the follow-up service settings from the environment,
// optionally seeded from a .env file. Values are grouped by the component
// that consumes them; malformed values are reported instead of silently
// replaced by defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported values for DB_DRIVER.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultSweepSpec runs the notification sweep when NOTIFY_SWEEP_SPEC is unset.
const DefaultSweepSpec = "@every 1h"

// ServerConfig tunes the HTTP listener and the route layout.
type ServerConfig struct {
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	MaxHeaderBytes    int
	GinMode           string // debug|release|test
	BasePath          string // prefix of every API route, e.g. "/api"
	Swagger           bool   // serve /swagger/*
}

// LogConfig selects the zerolog level and output format.
type LogConfig struct {
	Level  string
	Pretty bool
}

// DBConfig picks the storage backend and its connection pool.
type DBConfig struct {
	Driver          string // sqlite|postgres
	Path            string // SQLite file
	URL             string // Postgres DSN
	MaxOpenConns    int    // 0 keeps the driver default
	ConnMaxLifetime time.Duration
}

// AuthConfig holds the secrets used to authenticate callers and webhooks.
type AuthConfig struct {
	JWTSecret     string // HS256 key for bearer tokens
	WebhookSecret string // identity provider signing secret (whsec_...)
}

// FollowUpConfig drives schedule views and the background sweep.
type FollowUpConfig struct {
	RecentCommunications int           // log entries shown per company schedule
	SweepSpec            string        // cron spec; empty disables the sweep
	SweepTimeout         time.Duration // upper bound for one sweep run
}

// RateLimitConfig sizes the per-caller token bucket.
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// CORSConfig lists the browser origins allowed to call the API. Empty means
// any origin.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig controls Strict-Transport-Security.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig configures trace export over OTLP/gRPC.
type OTELConfig struct {
	Enabled     bool
	Endpoint    string // host:port of the collector
	Insecure    bool   // plaintext gRPC
	ServiceName string
	SampleRatio float64 // in [0,1]
}

// Config is the full service configuration.
type Config struct {
	Server         ServerConfig
	Log            LogConfig
	DB             DBConfig
	Auth           AuthConfig
	FollowUp       FollowUpConfig
	RateLimit      RateLimitConfig
	CORS           CORSConfig
	Security       SecurityConfig
	IdempotencyTTL time.Duration
	OTEL           OTELConfig
}

// MustLoad is Load for callers that cannot continue without configuration.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the environment, applies defaults and validates the result.
// A .env file in the working directory is read first but never overrides
// variables that are already set. Every malformed or invalid setting is
// reported in the returned error.
func Load() (Config, error) {
	_ = godotenv.Load()

	var e env
	cfg := Config{
		Server: ServerConfig{
			Port:              e.str("PORT", "8080"),
			ReadTimeout:       e.dur("READ_TIMEOUT", 15*time.Second),
			ReadHeaderTimeout: e.dur("READ_HEADER_TIMEOUT", 10*time.Second),
			WriteTimeout:      e.dur("WRITE_TIMEOUT", 20*time.Second),
			IdleTimeout:       e.dur("IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout:   e.dur("SHUTDOWN_TIMEOUT", 15*time.Second),
			MaxHeaderBytes:    e.int("MAX_HEADER_BYTES", 1<<20),
			GinMode:           strings.ToLower(e.str("GIN_MODE", "release")),
			BasePath:          normalizeBasePath(e.str("API_BASE_PATH", "/api")),
			Swagger:           e.bool("SWAGGER_ENABLED", false),
		},
		Log: LogConfig{
			Level:  strings.ToLower(e.str("LOG_LEVEL", "info")),
			Pretty: e.bool("LOG_PRETTY", false),
		},
		DB: DBConfig{
			Driver:          strings.ToLower(e.str("DB_DRIVER", DriverSQLite)),
			Path:            e.str("DB_PATH", "followup.db"),
			URL:             e.str("DATABASE_URL", ""),
			MaxOpenConns:    e.int("DB_MAX_OPEN_CONNS", 0),
			ConnMaxLifetime: e.dur("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Auth: AuthConfig{
			JWTSecret:     e.str("AUTH_JWT_SECRET", ""),
			WebhookSecret: e.str("WEBHOOK_SECRET", ""),
		},
		FollowUp: FollowUpConfig{
			RecentCommunications: e.int("RECENT_COMMUNICATIONS", 5),
			SweepSpec:            e.optional("NOTIFY_SWEEP_SPEC", DefaultSweepSpec),
			SweepTimeout:         e.dur("NOTIFY_SWEEP_TIMEOUT", 2*time.Minute),
		},
		RateLimit: RateLimitConfig{
			RPS:   e.float("RATE_RPS", 5),
			Burst: e.int("RATE_BURST", 10),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(e.str("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: e.bool("ENABLE_HSTS", false),
			HSTSMaxAge: e.dur("HSTS_MAX_AGE", 180*24*time.Hour),
		},
		IdempotencyTTL: e.dur("IDEMPOTENCY_TTL", 24*time.Hour),
		OTEL: OTELConfig{
			Enabled:     e.bool("OTEL_ENABLED", false),
			Endpoint:    e.str("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    e.bool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: e.str("OTEL_SERVICE_NAME", "go-followup-backend"),
			SampleRatio: e.float("OTEL_TRACES_SAMPLER_ARG", 1),
		},
	}

	cfg.normalize()
	return cfg, errors.Join(append(e.errs, cfg.validate()...)...)
}

func (c *Config) normalize() {
	switch c.DB.Driver {
	case "postgresql", "pgx":
		c.DB.Driver = DriverPostgres
	case "sqlite3":
		c.DB.Driver = DriverSQLite
	}
	if c.Log.Level == "warning" {
		c.Log.Level = "warn"
	}
	switch c.Server.GinMode {
	case "debug", "release", "test":
	default:
		c.Server.GinMode = "release"
	}
}

func (c *Config) validate() []error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error, fatal, panic", c.Log.Level))
	}

	s := c.Server
	check(strings.TrimSpace(s.Port) != "", "PORT must not be empty")
	check(s.ReadTimeout > 0 && s.ReadHeaderTimeout > 0 && s.WriteTimeout > 0 && s.IdleTimeout > 0,
		"server timeouts must be positive")
	check(s.ShutdownTimeout > 0, "SHUTDOWN_TIMEOUT must be > 0")
	check(s.MaxHeaderBytes > 0, "MAX_HEADER_BYTES must be > 0")

	switch c.DB.Driver {
	case DriverSQLite:
		check(strings.TrimSpace(c.DB.Path) != "", "DB_PATH must not be empty")
	case DriverPostgres:
		check(strings.TrimSpace(c.DB.URL) != "", "DATABASE_URL is required when DB_DRIVER=postgres")
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER %q is not one of sqlite, postgres", c.DB.Driver))
	}
	check(c.DB.MaxOpenConns >= 0, "DB_MAX_OPEN_CONNS must be >= 0")

	check(strings.TrimSpace(c.Auth.JWTSecret) != "", "AUTH_JWT_SECRET must not be empty")

	check(c.FollowUp.RecentCommunications >= 1, "RECENT_COMMUNICATIONS must be >= 1")
	check(c.FollowUp.SweepSpec == "" || c.FollowUp.SweepTimeout > 0, "NOTIFY_SWEEP_TIMEOUT must be > 0")

	check(c.RateLimit.RPS >= 0, "RATE_RPS must be >= 0")
	check(c.RateLimit.Burst >= 1, "RATE_BURST must be >= 1")
	check(c.Security.HSTSMaxAge >= 0, "HSTS_MAX_AGE must be >= 0")
	check(c.IdempotencyTTL > 0, "IDEMPOTENCY_TTL must be > 0")
	check(c.OTEL.SampleRatio >= 0 && c.OTEL.SampleRatio <= 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	return errs
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath returns p with one leading slash and no trailing slash;
// blank becomes "/".
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	return "/" + p
}
