package workflow

import (
	"context"
	"io"
	"log/slog"

	"github.com/JaimeStill/ldaa/internal/prompts"
)

// Judge is the external judgment service. It receives a fully composed
// prompt and returns the raw completion text.
type Judge interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Extraction is the text content recovered from a source document.
type Extraction struct {
	Text        string
	Pages       int
	ContentType string
}

// Extractor reads the document stored at key and returns its text.
type Extractor interface {
	Extract(ctx context.Context, key string) (*Extraction, error)
}

// Indexer stores a run's segments in a searchable vector collection.
type Indexer interface {
	Index(ctx context.Context, runID string, segments []Segment) (*IndexSummary, error)
}

// ArtifactStore receives exported reports.
type ArtifactStore interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) error
}

// Runtime bundles the dependencies that stages require.
// It is constructed by higher-level composition code from Infrastructure and Domain systems.
// Indexer may be nil, in which case the index stage records a skip.
type Runtime struct {
	Judge     Judge
	Prompts   prompts.Source
	Extractor Extractor
	Indexer   Indexer
	Artifacts ArtifactStore
	Logger    *slog.Logger
}
