package prompts

import (
	"errors"
	"net/http"
)

// Domain errors for prompt operations.
var (
	ErrNotFound     = errors.New("prompt not found")
	ErrDuplicate    = errors.New("prompt name already exists")
	ErrInvalidStage = errors.New("stage must be segment, analyze, reflect_segment, compare, or reflect_comparison")
	ErrEmpty        = errors.New("prompt instructions must not be empty")
	ErrNameRequired = errors.New("prompt name is required")
)

// MapHTTPStatus maps prompt domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidStage),
		errors.Is(err, ErrEmpty),
		errors.Is(err, ErrNameRequired):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
