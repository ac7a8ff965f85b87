// Package config handles application configuration and environment loading.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the configuration for the assessment service and CLI.
type Config struct {
	DBPath     string // path to the SQLite run store (default "sqlbridge.sqlite")
	ListenAddr string // HTTP listen address (default ":8080")
	LogLevel   string // log level: debug, info, warn, error (default "info")
	Env        string // environment: "development" (default) or "production"

	// CatalogPath points at a rewrite catalog YAML file. Empty means the
	// embedded default catalog. WatchCatalog hot-reloads the file on change.
	CatalogPath  string
	WatchCatalog bool

	// WeightsPath points at a scoring weights YAML file. Empty means the
	// embedded defaults.
	WeightsPath string

	// Batch execution
	Workers      int           // parallel per-query workers (default 8)
	QueryTimeout time.Duration // per-query budget (default 10s)

	// Rate limiting
	RateLimitRPS   float64 // sustained requests per second (default 100)
	RateLimitBurst int     // burst capacity (default 200)

	// CORS
	CORSAllowedOrigins []string // allowed origins for CORS (default: ["*"])

	// Scheduled re-assessment: a cron spec plus a directory of *.sql files.
	// Both must be set for the schedule to run.
	RescanCron string
	RescanDir  string

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// RescanEnabled returns true when scheduled re-assessment is configured.
func (c *Config) RescanEnabled() bool {
	return c.RescanCron != "" && c.RescanDir != ""
}

// LoadFromEnv loads configuration from SQLBRIDGE_* environment variables.
// Every setting has a workable default; only internally inconsistent
// combinations are errors.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		DBPath:      os.Getenv("SQLBRIDGE_DB_PATH"),
		ListenAddr:  os.Getenv("SQLBRIDGE_LISTEN_ADDR"),
		LogLevel:    os.Getenv("SQLBRIDGE_LOG_LEVEL"),
		Env:         os.Getenv("SQLBRIDGE_ENV"),
		CatalogPath: os.Getenv("SQLBRIDGE_CATALOG_PATH"),
		WeightsPath: os.Getenv("SQLBRIDGE_WEIGHTS_PATH"),
		RescanCron:  os.Getenv("SQLBRIDGE_RESCAN_CRON"),
		RescanDir:   os.Getenv("SQLBRIDGE_RESCAN_DIR"),
	}

	if v := os.Getenv("SQLBRIDGE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workers = n
		} else {
			cfg.Warnings = append(cfg.Warnings,
				fmt.Sprintf("SQLBRIDGE_WORKERS=%q is not a positive integer — using default", v))
		}
	}
	if v := os.Getenv("SQLBRIDGE_QUERY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.QueryTimeout = d
		} else {
			cfg.Warnings = append(cfg.Warnings,
				fmt.Sprintf("SQLBRIDGE_QUERY_TIMEOUT=%q is not a duration — using default", v))
		}
	}
	if v := os.Getenv("SQLBRIDGE_RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("SQLBRIDGE_RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		}
	}
	if v := os.Getenv("SQLBRIDGE_CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = origins
	}

	cfg.WatchCatalog = cfg.CatalogPath != ""
	if v := os.Getenv("SQLBRIDGE_WATCH_CATALOG"); v != "" {
		cfg.WatchCatalog = strings.EqualFold(v, "true")
		if cfg.WatchCatalog && cfg.CatalogPath == "" {
			cfg.Warnings = append(cfg.Warnings,
				"SQLBRIDGE_WATCH_CATALOG is set without SQLBRIDGE_CATALOG_PATH — nothing to watch")
			cfg.WatchCatalog = false
		}
	}

	// Defaults
	if cfg.DBPath == "" {
		cfg.DBPath = "sqlbridge.sqlite"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Workers == 0 {
		cfg.Workers = 8
	}
	if cfg.QueryTimeout == 0 {
		cfg.QueryTimeout = 10 * time.Second
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 100
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 200
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}

	if (cfg.RescanCron == "") != (cfg.RescanDir == "") {
		cfg.Warnings = append(cfg.Warnings,
			"SQLBRIDGE_RESCAN_CRON and SQLBRIDGE_RESCAN_DIR must both be set — scheduled re-assessment disabled")
		cfg.RescanCron = ""
		cfg.RescanDir = ""
	}

	// Production mode: insecure defaults are fatal errors.
	if cfg.IsProduction() {
		if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
			return nil, fmt.Errorf("CORS wildcard (*) is not allowed in production (SQLBRIDGE_ENV=production)")
		}
	}

	return cfg, nil
}
