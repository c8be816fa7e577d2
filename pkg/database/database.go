// Package database owns the PostgreSQL pool backing run records, checkpoints,
// and prompt overrides.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/JaimeStill/ldaa/pkg/lifecycle"
)

// startupAttempts bounds how often the startup hook pings before giving up.
const startupAttempts = 5

// System exposes the pool and ties its open and close to the service
// lifecycle.
type System interface {
	// Connection returns the pool. It is usable before Start, but queries
	// fail until the server is reachable.
	Connection() *sql.DB
	// Start registers the startup ping and the shutdown close.
	Start(lc *lifecycle.Coordinator) error
	// Ready reports whether a startup ping has succeeded and the pool is open.
	Ready() bool
	// Collector exports pool statistics for the metrics registry.
	Collector() prometheus.Collector
}

type database struct {
	conn        *sql.DB
	name        string
	logger      *slog.Logger
	connTimeout time.Duration
	ready       atomic.Bool
}

// New opens the pool with the configured limits. No connection is made
// until Start runs the startup hook.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	conn, err := sql.Open("pgx", cfg.Dsn())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

	return &database{
		conn:        conn,
		name:        cfg.Name,
		logger:      logger.With("system", "database", "db", cfg.Name),
		connTimeout: cfg.ConnTimeoutDuration(),
	}, nil
}

func (d *database) Connection() *sql.DB { return d.conn }

func (d *database) Ready() bool { return d.ready.Load() }

func (d *database) Collector() prometheus.Collector {
	return collectors.NewDBStatsCollector(d.conn, d.name)
}

func (d *database) Start(lc *lifecycle.Coordinator) error {
	lc.AddReadinessCheck("database", d)

	lc.OnStartup(func() {
		if err := d.connect(lc.Context()); err != nil {
			d.logger.Error("database unreachable", "error", err)
			return
		}
		d.ready.Store(true)
		d.logger.Info("database connection established")
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		d.ready.Store(false)

		if err := d.conn.Close(); err != nil {
			d.logger.Error("database close failed", "error", err)
			return
		}
		d.logger.Info("database connection closed")
	})

	return nil
}

// connect pings until the server answers, doubling the wait between
// attempts. It stops early when ctx ends.
func (d *database) connect(ctx context.Context) error {
	wait := 500 * time.Millisecond
	var err error

	for attempt := 1; attempt <= startupAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, d.connTimeout)
		err = d.conn.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}

		d.logger.Warn("database ping failed", "attempt", attempt, "error", err)
		if attempt == startupAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
			wait *= 2
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrNotReady, startupAttempts, err)
}
