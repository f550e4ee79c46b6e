package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/imaddar/poker-arena/services/equity/internal/api"
	"github.com/imaddar/poker-arena/services/equity/internal/config"
	"github.com/imaddar/poker-arena/services/equity/internal/engine"
	"github.com/imaddar/poker-arena/services/equity/internal/outs"
	"github.com/imaddar/poker-arena/services/equity/internal/persistence"
)

const shutdownTimeout = 15 * time.Second

func main() {
	addr := flag.String("addr", "", "HTTP listen address (overrides EQUITYD_ADDR)")
	envFile := flag.String("env-file", ".env", "optional dotenv file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("equityd failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	eng, err := engine.New(engine.Config{
		MaxConcurrent:  cfg.MaxConcurrent,
		CacheSize:      cfg.CacheSize,
		ComputeTimeout: cfg.ComputeTimeout,
		Workers:        cfg.Workers,
		Policy:         outs.Policy{SuppressAtEquity: cfg.OutsSuppressAtEquity},
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewServer(eng, repo, logger, api.ServerConfig{MaxBodyBytes: cfg.MaxBodyBytes}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("equity service listening",
			"addr", cfg.Addr,
			"audit_backend", cfg.AuditBackend,
			"max_concurrent", cfg.MaxConcurrent,
			"cache_size", cfg.CacheSize,
			"compute_timeout", cfg.ComputeTimeout,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// openRepository returns the configured audit log and a function releasing its resources.
// AUDIT_BACKEND=none yields a nil repository.
func openRepository(ctx context.Context, cfg config.Config) (persistence.Repository, func(), error) {
	noop := func() {}
	switch cfg.AuditBackend {
	case config.AuditBackendNone:
		return nil, noop, nil
	case config.AuditBackendMemory:
		return persistence.NewInMemoryRepository(), noop, nil
	case config.AuditBackendSQLite:
		repo, err := persistence.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, noop, err
		}
		return repo, func() { _ = repo.Close() }, nil
	case config.AuditBackendPostgres:
		db, err := openPostgres(ctx, cfg)
		if err != nil {
			return nil, noop, err
		}
		return persistence.NewPostgresRepository(db), func() { _ = db.Close() }, nil
	}
	return nil, noop, fmt.Errorf("unsupported audit backend %q", cfg.AuditBackend)
}

func openPostgres(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if !hasSQLDriver("postgres") {
		return nil, fmt.Errorf("postgres SQL driver is not linked; add a driver import such as github.com/lib/pq in this binary")
	}
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
	db.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	if err := persistence.MigratePostgres(pingCtx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return db, nil
}

func hasSQLDriver(name string) bool {
	for _, driver := range sql.Drivers() {
		if driver == name {
			return true
		}
	}
	return false
}
