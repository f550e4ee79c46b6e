package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type AuditBackend string

const (
	AuditBackendNone     AuditBackend = "none"
	AuditBackendMemory   AuditBackend = "memory"
	AuditBackendPostgres AuditBackend = "postgres"
	AuditBackendSQLite   AuditBackend = "sqlite"
)

type Config struct {
	Addr      string `env:"EQUITYD_ADDR" envDefault:":8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	MaxConcurrent  int64         `env:"EQUITY_MAX_CONCURRENT" envDefault:"4"`
	CacheSize      int           `env:"EQUITY_CACHE_SIZE" envDefault:"1024"`
	ComputeTimeout time.Duration `env:"EQUITY_COMPUTE_TIMEOUT" envDefault:"30s"`
	Workers        int           `env:"EQUITY_WORKERS" envDefault:"0"`
	MaxBodyBytes   int64         `env:"EQUITY_MAX_BODY_BYTES" envDefault:"65536"`
	// OutsSuppressAtEquity hides outs once hero's baseline win reaches it. Zero disables.
	OutsSuppressAtEquity float64 `env:"OUTS_SUPPRESS_AT_EQUITY" envDefault:"0"`

	AuditBackend            AuditBackend  `env:"AUDIT_BACKEND" envDefault:"memory"`
	DatabaseURL             string        `env:"DATABASE_URL"`
	SQLitePath              string        `env:"AUDIT_SQLITE_PATH" envDefault:"equity-audit.db"`
	DatabaseMaxOpenConns    int           `env:"DATABASE_MAX_OPEN_CONNS" envDefault:"10"`
	DatabaseMaxIdleConns    int           `env:"DATABASE_MAX_IDLE_CONNS" envDefault:"5"`
	DatabaseConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME" envDefault:"5m"`
}

// Load reads envFiles (missing files are skipped) without overriding variables already set,
// then parses and validates the environment.
func Load(envFiles ...string) (Config, error) {
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", file, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("EQUITYD_ADDR must not be empty")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("EQUITY_MAX_CONCURRENT must be positive, got %d", c.MaxConcurrent)
	}
	if c.ComputeTimeout < 0 {
		return fmt.Errorf("EQUITY_COMPUTE_TIMEOUT must not be negative")
	}
	if c.Workers < 0 {
		return fmt.Errorf("EQUITY_WORKERS must not be negative")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("EQUITY_MAX_BODY_BYTES must be positive")
	}
	if c.OutsSuppressAtEquity < 0 || c.OutsSuppressAtEquity > 1 {
		return fmt.Errorf("OUTS_SUPPRESS_AT_EQUITY must be within [0,1], got %v", c.OutsSuppressAtEquity)
	}

	switch c.AuditBackend {
	case AuditBackendNone, AuditBackendMemory:
	case AuditBackendPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required when AUDIT_BACKEND=postgres")
		}
		if c.DatabaseMaxOpenConns <= 0 || c.DatabaseMaxIdleConns <= 0 || c.DatabaseConnMaxLifetime <= 0 {
			return fmt.Errorf("database pool settings must be positive")
		}
	case AuditBackendSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("AUDIT_SQLITE_PATH is required when AUDIT_BACKEND=sqlite")
		}
	default:
		return fmt.Errorf("AUDIT_BACKEND must be one of none, memory, postgres, sqlite, got %q", c.AuditBackend)
	}
	return nil
}

// NewLogger builds the process logger described by LogLevel and LogFormat.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL %q: %w", raw, err)
	}
	return level, nil
}
