package runs

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/ldaa/internal/index"
	"github.com/JaimeStill/ldaa/internal/workflow"
	"github.com/JaimeStill/ldaa/pkg/storage"
)

// Domain errors for run operations.
var (
	ErrFileTooLarge   = errors.New("file exceeds maximum upload size")
	ErrInvalidFile    = errors.New("invalid file")
	ErrInvalidRequest = errors.New("invalid request")
	ErrSearchDisabled = errors.New("segment search is not enabled")
)

// MapHTTPStatus maps run and workflow errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, workflow.ErrRunNotFound),
		errors.Is(err, index.ErrNotIndexed),
		errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrRunExists),
		errors.Is(err, workflow.ErrRunActive),
		errors.Is(err, workflow.ErrRunFinished),
		errors.Is(err, workflow.ErrNotSuspended):
		return http.StatusConflict
	case errors.Is(err, workflow.ErrInvalidReview),
		errors.Is(err, workflow.ErrFieldNotEditable),
		errors.Is(err, index.ErrEmptyQuery),
		errors.Is(err, ErrInvalidFile),
		errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrSearchDisabled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
