package api

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/JaimeStill/ldaa/internal/extract"
	"github.com/JaimeStill/ldaa/pkg/handlers"
	"github.com/JaimeStill/ldaa/pkg/routes"
	"github.com/JaimeStill/ldaa/pkg/storage"
)

// runsPrefix scopes downloads to run sources and exported artifacts.
const runsPrefix = "runs/"

var errOutsideRuns = errors.New("only run sources and artifacts can be downloaded")

type storageHandler struct {
	store  storage.System
	logger *slog.Logger
}

func newStorageHandler(store storage.System, logger *slog.Logger) *storageHandler {
	return &storageHandler{
		store:  store,
		logger: logger.With("handler", "storage"),
	}
}

func (h *storageHandler) routes() routes.Group {
	return routes.Group{
		Prefix: "/storage",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/download/{key...}", Handler: h.download},
		},
	}
}

// download streams a run blob. The content type comes from the key's
// extension, or is detected from the content when the extension is unknown. ?inline=true
// serves it for display rather than as an attachment.
func (h *storageHandler) download(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if !strings.HasPrefix(key, runsPrefix) {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errOutsideRuns)
		return
	}

	blob, err := h.store.Download(r.Context(), key)
	if err != nil {
		handlers.RespondError(w, h.logger, storage.MapHTTPStatus(err), err)
		return
	}
	defer blob.Close()

	body := bufio.NewReader(blob)
	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		head, _ := body.Peek(512)
		contentType = extract.DetectContentType(key, head)
	}

	disposition := "attachment"
	if r.URL.Query().Get("inline") == "true" {
		disposition = "inline"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{
		"filename": path.Base(key),
	}))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("download interrupted", "key", key, "error", err)
	}
}
