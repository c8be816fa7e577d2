package workflow

import "context"

// VerdictCounts tallies segment verdicts for one document.
type VerdictCounts struct {
	Accept     int `json:"accept"`
	Retry      int `json:"retry"`
	MarkReview int `json:"mark_review"`
}

// Aggregate returns the analyses whose verdict is accept, in segment order,
// together with the verdict tallies. It does not modify doc.
func Aggregate(doc *DocumentState) ([]SegmentAnalysis, VerdictCounts) {
	accepted := make([]SegmentAnalysis, 0, len(doc.Verdicts))
	var counts VerdictCounts

	for _, v := range doc.Verdicts {
		switch v.Verdict {
		case VerdictAccept:
			counts.Accept++
			if v.SegmentIndex >= 0 && v.SegmentIndex < len(doc.Analyses) {
				accepted = append(accepted, doc.Analyses[v.SegmentIndex])
			}
		case VerdictRetry:
			counts.Retry++
		case VerdictMarkReview:
			counts.MarkReview++
		}
	}

	return accepted, counts
}

// AggregateStage returns a stage that records the accepted analyses and
// verdict counts of both documents. Re-running it yields identical results.
func AggregateStage(rt *Runtime) Stage {
	return NewStage(StageAggregate, func(ctx context.Context, s *RunState, cfg Config) (*RunState, error) {
		payload := make(map[string]any, len(documents))

		for _, id := range documents {
			doc := s.Document(id)
			accepted, counts := Aggregate(doc)
			doc.Accepted = accepted
			payload[string(id)] = map[string]any{
				"accept":      counts.Accept,
				"retry":       counts.Retry,
				"mark_review": counts.MarkReview,
			}
		}

		s.Meta.Append(StageAggregate, payload)

		rt.Logger.InfoContext(
			ctx, "aggregate stage complete",
			"accepted_a", len(s.A.Accepted),
			"accepted_b", len(s.B.Accepted),
		)

		return s, nil
	})
}
