package storage_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JaimeStill/ldaa/pkg/lifecycle"
	"github.com/JaimeStill/ldaa/pkg/storage"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFilesystemRoundTrip(t *testing.T) {
	root := t.TempDir()
	fs := storage.NewFilesystem(root, discard())
	ctx := context.Background()
	key := "runs/run-1/source/A/lease.md"

	if err := fs.Upload(ctx, key, strings.NewReader("# Lease"), "text/markdown"); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, "runs", "run-1", "source", "A", "lease.md")); err != nil {
		t.Errorf("blob not stored under root: %v", err)
	}

	ok, err := fs.Exists(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v", ok, err)
	}

	rc, err := fs.Download(ctx, key)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "# Lease" {
		t.Errorf("content = %q", data)
	}

	if err := fs.Upload(ctx, key, strings.NewReader("# Lease v2"), "text/markdown"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	if err := fs.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := fs.Exists(ctx, key); ok {
		t.Error("blob still exists after delete")
	}
}

func TestFilesystemMissing(t *testing.T) {
	fs := storage.NewFilesystem(t.TempDir(), discard())
	ctx := context.Background()

	if _, err := fs.Download(ctx, "runs/none/report.md"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Download error = %v, want ErrNotFound", err)
	}
	if err := fs.Delete(ctx, "runs/none/report.md"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Delete error = %v, want ErrNotFound", err)
	}
	if ok, err := fs.Exists(ctx, "runs"); ok || err != nil {
		t.Errorf("Exists(directory) = %v, %v", ok, err)
	}
}

func TestFilesystemKeyValidation(t *testing.T) {
	fs := storage.NewFilesystem(t.TempDir(), discard())
	ctx := context.Background()

	tests := []struct {
		key  string
		want error
	}{
		{"", storage.ErrEmptyKey},
		{"../escape.txt", storage.ErrInvalidKey},
		{"runs/../../etc/passwd", storage.ErrInvalidKey},
		{"/etc/passwd", storage.ErrInvalidKey},
		{"runs//report.md", storage.ErrInvalidKey},
		{`runs\report.md`, storage.ErrInvalidKey},
	}

	for _, tt := range tests {
		if err := fs.Upload(ctx, tt.key, strings.NewReader("x"), "text/plain"); !errors.Is(err, tt.want) {
			t.Errorf("Upload(%q) error = %v, want %v", tt.key, err, tt.want)
		}
		if _, err := fs.Download(ctx, tt.key); !errors.Is(err, tt.want) {
			t.Errorf("Download(%q) error = %v, want %v", tt.key, err, tt.want)
		}
	}
}

func TestFilesystemReadiness(t *testing.T) {
	root := filepath.Join(t.TempDir(), "blobs")
	fs := storage.NewFilesystem(root, discard())
	lc := lifecycle.New()

	if err := fs.Start(lc); err != nil {
		t.Fatalf("Start: %v", err)
	}
	lc.WaitForStartup()

	if !fs.Ready() || !lc.Ready() {
		t.Errorf("storage not ready, pending %v", lc.Pending())
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		t.Errorf("root not created: %v", err)
	}
}

func TestNew(t *testing.T) {
	if _, err := storage.New(&storage.Config{Provider: storage.ProviderFilesystem, Root: t.TempDir()}, discard()); err != nil {
		t.Errorf("filesystem: %v", err)
	}
	if _, err := storage.New(&storage.Config{Provider: "s3"}, discard()); err == nil {
		t.Error("expected error for unknown provider")
	}
	if _, err := storage.New(&storage.Config{Provider: storage.ProviderAzure, ConnectionString: "not-a-connection-string"}, discard()); err == nil {
		t.Error("expected error for invalid connection string")
	}
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{storage.ErrNotFound, http.StatusNotFound},
		{storage.ErrEmptyKey, http.StatusBadRequest},
		{storage.ErrInvalidKey, http.StatusBadRequest},
		{errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := storage.MapHTTPStatus(tt.err); got != tt.want {
			t.Errorf("MapHTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestConfigFinalize(t *testing.T) {
	tests := []struct {
		name    string
		cfg     storage.Config
		env     map[string]string
		wantErr bool
	}{
		{"azure needs credentials", storage.Config{}, nil, true},
		{"azure account url", storage.Config{AccountURL: "https://acct.blob.core.windows.net"}, nil, false},
		{"filesystem default root", storage.Config{Provider: storage.ProviderFilesystem}, nil, false},
		{"provider from env", storage.Config{}, map[string]string{"TEST_STORAGE_PROVIDER": "filesystem"}, false},
		{"unknown provider", storage.Config{Provider: "gcs"}, nil, true},
	}

	env := &storage.Env{Provider: "TEST_STORAGE_PROVIDER", Root: "TEST_STORAGE_ROOT"}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg := tt.cfg
			err := cfg.Finalize(env)
			if (err != nil) != tt.wantErr {
				t.Errorf("Finalize error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
