package workflow

import (
	"context"
	"slices"
)

// IndexStage returns a stage that stores the segments of both documents in
// a per-run vector collection. Index failures never fail the run.
func IndexStage(rt *Runtime) Stage {
	return NewStage(StageIndex, func(ctx context.Context, s *RunState, cfg Config) (*RunState, error) {
		if rt.Indexer == nil {
			s.Meta.Append(StageIndex, map[string]any{"skipped": true})
			return s, nil
		}

		segments := slices.Concat(s.A.Segments, s.B.Segments)

		summary, err := rt.Indexer.Index(ctx, s.RunID, segments)
		if err != nil {
			rt.Logger.WarnContext(ctx, "segment indexing failed", "error", err)
			s.Index = nil
			s.Meta.Append(StageIndex, map[string]any{
				"succeeded": false,
				"error":     err.Error(),
			})
			return s, nil
		}

		s.Index = summary
		s.Meta.Append(StageIndex, map[string]any{
			"succeeded":  true,
			"collection": summary.Collection,
			"segments":   summary.Segments,
			"chunks":     summary.Chunks,
		})

		rt.Logger.InfoContext(
			ctx, "index stage complete",
			"collection", summary.Collection,
			"chunks", summary.Chunks,
		)

		return s, nil
	})
}
