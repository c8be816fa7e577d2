package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JaimeStill/ldaa/pkg/routes"
	"github.com/JaimeStill/ldaa/pkg/storage"
)

func TestStorageDownload(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := storage.NewFilesystem(t.TempDir(), logger)
	ctx := context.Background()

	blobs := map[string]string{
		"runs/r1/report.md":      "# Document Analysis Report",
		"runs/r1/source/A/act":   "%PDF-1.7\n",
		"prompts/overrides.json": "{}",
	}
	for key, body := range blobs {
		if err := store.Upload(ctx, key, strings.NewReader(body), "application/octet-stream"); err != nil {
			t.Fatalf("upload %s: %v", key, err)
		}
	}

	mux := http.NewServeMux()
	routes.Register(mux, newStorageHandler(store, logger).routes())

	tests := []struct {
		name            string
		path            string
		wantStatus      int
		wantType        string
		wantDisposition string
	}{
		{"markdown artifact", "/storage/download/runs/r1/report.md", http.StatusOK, "text/markdown", `attachment; filename=report.md`},
		{"sniffed source", "/storage/download/runs/r1/source/A/act", http.StatusOK, "application/pdf", `attachment; filename=act`},
		{"inline", "/storage/download/runs/r1/report.md?inline=true", http.StatusOK, "text/markdown", `inline; filename=report.md`},
		{"outside runs", "/storage/download/prompts/overrides.json", http.StatusBadRequest, "", ""},
		{"missing", "/storage/download/runs/r2/report.md", http.StatusNotFound, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest("GET", tt.path, nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantType == "" {
				return
			}
			if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, tt.wantType) {
				t.Errorf("content type = %s, want %s", got, tt.wantType)
			}
			if got := rec.Header().Get("Content-Disposition"); got != tt.wantDisposition {
				t.Errorf("disposition = %s, want %s", got, tt.wantDisposition)
			}
		})
	}
}
