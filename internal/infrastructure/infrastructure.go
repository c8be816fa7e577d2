// Package infrastructure assembles the service-wide dependencies every domain
// system draws on: lifecycle, logging, metrics, database, and blob storage.
package infrastructure

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/JaimeStill/ldaa/internal/config"
	"github.com/JaimeStill/ldaa/pkg/database"
	"github.com/JaimeStill/ldaa/pkg/lifecycle"
	"github.com/JaimeStill/ldaa/pkg/storage"
)

// Infrastructure is constructed once at startup and shared by reference.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Metrics   *prometheus.Registry
	Database  database.System
	Storage   storage.System
}

// New builds each system without connecting anything. Connections are
// opened by the startup hooks registered in Start.
func New(cfg *config.Config) (*Infrastructure, error) {
	logger := cfg.Log.NewLogger(os.Stderr).With("env", cfg.Env())

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	store, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	metrics := NewRegistry()
	metrics.MustRegister(db.Collector())

	return &Infrastructure{
		Lifecycle: lifecycle.New(),
		Logger:    logger,
		Metrics:   metrics,
		Database:  db,
		Storage:   store,
	}, nil
}

// NewRegistry returns a registry carrying the Go runtime and process
// collectors. Domain metrics register on top of it.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Start registers the database and storage hooks with the coordinator.
func (i *Infrastructure) Start() error {
	if err := i.Database.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("database start failed: %w", err)
	}
	if err := i.Storage.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("storage start failed: %w", err)
	}
	return nil
}
