// Package storage keeps run source documents and exported artifacts as
// blobs, in Azure Blob Storage or beneath a local directory.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/JaimeStill/ldaa/pkg/lifecycle"
)

// System is a flat key/value blob store. Keys are slash-separated paths
// such as "runs/<id>/source/A/act.pdf".
type System interface {
	// Start registers the container (or root directory) initialization hook
	// and the storage readiness check.
	Start(lc *lifecycle.Coordinator) error
	// Ready reports whether initialization has succeeded.
	Ready() bool
	// Upload writes reader to key, replacing any existing blob.
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) error
	// Download opens the blob at key; the caller closes it. ErrNotFound when
	// absent.
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the blob at key. ErrNotFound when absent.
	Delete(ctx context.Context, key string) error
	// Exists reports whether a blob is stored at key.
	Exists(ctx context.Context, key string) (bool, error)
}

// New creates the System for cfg.Provider without touching the backend.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	logger = logger.With("system", "storage", "provider", cfg.Provider)

	switch cfg.Provider {
	case ProviderAzure:
		return newAzure(cfg, logger)
	case ProviderFilesystem:
		return newFilesystem(cfg, logger), nil
	}
	return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
}
