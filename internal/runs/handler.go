package runs

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/JaimeStill/ldaa/internal/workflow"
	"github.com/JaimeStill/ldaa/pkg/handlers"
	"github.com/JaimeStill/ldaa/pkg/middleware"
	"github.com/JaimeStill/ldaa/pkg/pagination"
	"github.com/JaimeStill/ldaa/pkg/routes"
)

// Handler provides HTTP endpoints for run operations.
type Handler struct {
	sys           System
	logger        *slog.Logger
	pagination    pagination.Config
	maxUploadSize int64
}

// SearchRequest combines pagination and filter criteria for the search endpoint.
type SearchRequest struct {
	pagination.PageRequest
	Filters
}

// NewHandler creates a Handler with the given system, logger, pagination config, and upload size limit.
func NewHandler(
	sys System,
	logger *slog.Logger,
	pagination pagination.Config,
	maxUploadSize int64,
) *Handler {
	return &Handler{
		sys:           sys,
		logger:        logger.With("handler", "runs"),
		pagination:    pagination,
		maxUploadSize: maxUploadSize,
	}
}

// Routes returns the route group definition for run endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/runs",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "POST", Pattern: "", Handler: h.Submit},
			{Method: "POST", Pattern: "/search", Handler: h.SearchRuns},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find},
			{Method: "GET", Pattern: "/{id}/checkpoints", Handler: h.Checkpoints},
			{Method: "GET", Pattern: "/{id}/state", Handler: h.State},
			{Method: "GET", Pattern: "/{id}/search", Handler: h.Search},
			{Method: "POST", Pattern: "/{id}/resume", Handler: h.Resume},
			{Method: "POST", Pattern: "/{id}/cancel", Handler: h.Cancel},
		},
	}
}

// List returns a paginated list of runs with optional query parameter filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := FiltersFromQuery(r.URL.Query())

	result, err := h.sys.List(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// SearchRuns accepts a JSON body with pagination and filter criteria and returns matching runs.
func (h *Handler) SearchRuns(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidRequest)
		return
	}

	req.PageRequest.Normalize(h.pagination)

	result, err := h.sys.List(r.Context(), req.PageRequest, req.Filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Submit accepts a multipart form with document_a and document_b files,
// creates the run and starts executing it in the background.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		handlers.RespondError(w, h.logger, http.StatusRequestEntityTooLarge, ErrFileTooLarge)
		return
	}

	docA, err := formDocument(r, "document_a")
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	docB, err := formDocument(r, "document_b")
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	run, err := h.sys.Submit(r.Context(), SubmitCommand{DocumentA: docA, DocumentB: docB})
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusAccepted, run)
}

// Find returns the current view of a run.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	run, err := h.sys.Find(r.Context(), r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, run)
}

// Checkpoints returns every checkpoint of a run in sequence order.
func (h *Handler) Checkpoints(w http.ResponseWriter, r *http.Request) {
	cps, err := h.sys.Checkpoints(r.Context(), r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, cps)
}

// State returns the run state captured by the latest checkpoint.
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	s, err := h.sys.State(r.Context(), r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, s)
}

// Search runs a semantic query over the run's indexed segments.
// Query parameters: q (required), k (optional result count).
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))

	k := 0
	if raw := r.URL.Query().Get("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidRequest)
			return
		}
		k = n
	}

	hits, err := h.sys.Search(r.Context(), r.PathValue("id"), q, k)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, hits)
}

// Resume applies a review response to a suspended run and continues it in
// the background. An authenticated subject replaces any reviewer in the body.
func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	var resp workflow.ReviewResponse
	if err := json.NewDecoder(r.Body).Decode(&resp); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidRequest)
		return
	}

	if subject := middleware.Subject(r.Context()); subject != "" {
		resp.Reviewer = subject
	}

	run, err := h.sys.Resume(r.Context(), r.PathValue("id"), resp)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusAccepted, run)
}

// Cancel stops a run and marks it failed.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	run, err := h.sys.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, run)
}

func formDocument(r *http.Request, field string) (Document, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return Document{}, ErrInvalidFile
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil || len(data) == 0 {
		return Document{}, ErrInvalidFile
	}

	return Document{
		Filename:    header.Filename,
		ContentType: detectContentType(header.Header.Get("Content-Type"), data),
		Data:        data,
	}, nil
}

func detectContentType(header string, data []byte) string {
	header = strings.TrimSpace(header)
	if header != "" && header != "application/octet-stream" {
		return header
	}
	return http.DetectContentType(data)
}
