package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/JaimeStill/ldaa/pkg/lifecycle"
)

type filesystem struct {
	root   string
	logger *slog.Logger
	ready  atomic.Bool
}

// NewFilesystem creates a storage system that keeps blobs as files
// beneath root. Keys map to slash-separated relative paths.
func NewFilesystem(root string, logger *slog.Logger) System {
	return newFilesystem(&Config{Root: root}, logger)
}

func newFilesystem(cfg *Config, logger *slog.Logger) *filesystem {
	return &filesystem{
		root:   cfg.Root,
		logger: logger,
	}
}

func (f *filesystem) Start(lc *lifecycle.Coordinator) error {
	lc.AddReadinessCheck("storage", f)

	lc.OnStartup(func() {
		if err := os.MkdirAll(f.root, 0o755); err != nil {
			f.logger.Error("storage root initialization failed", "root", f.root, "error", err)
			return
		}
		f.ready.Store(true)
		f.logger.Info("storage root ready", "root", f.root)
	})

	return nil
}

func (f *filesystem) Ready() bool { return f.ready.Load() }

func (f *filesystem) Upload(ctx context.Context, key string, reader io.Reader, contentType string) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("upload blob %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return fmt.Errorf("upload blob %s: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		return fmt.Errorf("upload blob %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("upload blob %s: %w", key, err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("upload blob %s: %w", key, err)
	}

	return nil
}

func (f *filesystem) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := f.path(key)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("download blob %s: %w", key, err)
	}

	return file, nil
}

func (f *filesystem) Delete(ctx context.Context, key string) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("delete blob %s: %w", key, err)
	}

	return nil
}

func (f *filesystem) Exists(ctx context.Context, key string) (bool, error) {
	path, err := f.path(key)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("check blob existence %s: %w", key, err)
	}

	return !info.IsDir(), nil
}

func (f *filesystem) path(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(f.root, filepath.FromSlash(key)), nil
}
