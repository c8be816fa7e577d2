package workflow

import (
	"context"
	"fmt"
	"strings"
)

// IngestStage returns a stage that extracts the text of both documents from
// storage. A missing path is fatal unless the configuration allows it; an
// unreadable document leaves its text absent and records the failure.
func IngestStage(rt *Runtime) Stage {
	return NewStage(StageIngest, func(ctx context.Context, s *RunState, cfg Config) (*RunState, error) {
		payload := make(map[string]any, len(documents))

		for _, id := range documents {
			entry, err := ingestDocument(ctx, rt, id, s.Document(id), cfg)
			if err != nil {
				return nil, err
			}
			payload[string(id)] = entry
		}

		s.Meta.Append(StageIngest, payload)

		rt.Logger.InfoContext(
			ctx, "ingest stage complete",
			"pages_a", s.A.Pages,
			"pages_b", s.B.Pages,
		)

		return s, nil
	})
}

func ingestDocument(
	ctx context.Context,
	rt *Runtime,
	id DocumentID,
	doc *DocumentState,
	cfg Config,
) (map[string]any, error) {
	doc.Text = nil
	doc.Pages = 0

	if doc.Path == "" {
		if !cfg.AllowMissingDocuments {
			return nil, fmt.Errorf("%w: document %s", ErrMissingDocument, id)
		}
		return map[string]any{
			"succeeded": false,
			"rationale": "no document provided",
		}, nil
	}

	ext, err := rt.Extractor.Extract(ctx, doc.Path)
	if err != nil {
		rt.Logger.WarnContext(
			ctx, "document extraction failed",
			"document", id,
			"path", doc.Path,
			"error", err,
		)
		return map[string]any{
			"path":      doc.Path,
			"succeeded": false,
			"error":     err.Error(),
		}, nil
	}

	doc.Pages = ext.Pages

	if strings.TrimSpace(ext.Text) == "" {
		return map[string]any{
			"path":      doc.Path,
			"pages":     ext.Pages,
			"succeeded": false,
			"rationale": "document contains no extractable text",
		}, nil
	}

	text := ext.Text
	doc.Text = &text

	return map[string]any{
		"path":         doc.Path,
		"pages":        ext.Pages,
		"content_type": ext.ContentType,
		"characters":   len(text),
		"succeeded":    true,
	}, nil
}
