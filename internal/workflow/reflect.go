package workflow

import (
	"context"
	"fmt"

	"github.com/JaimeStill/ldaa/internal/prompts"
)

type verdictResponse struct {
	Verdict    string  `json:"verdict"`
	Reboot     bool    `json:"reboot"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

type reflectSegmentInput struct {
	Segment   Segment         `json:"segment"`
	Analysis  SegmentAnalysis `json:"analysis"`
	Threshold float64         `json:"confidence_threshold"`
}

type reflectComparisonInput struct {
	Comparison *ComparisonResult `json:"comparison"`
	Threshold  float64           `json:"confidence_threshold"`
}

// ReflectSegmentStage returns a stage that asks the judgment service to
// review every analysis. Failed reviews default to mark_review carrying the
// analysis confidence. Verdict confidence above the stage threshold forces
// accept.
func ReflectSegmentStage(rt *Runtime) Stage {
	return NewStage(StageReflectSegment, func(ctx context.Context, s *RunState, cfg Config) (*RunState, error) {
		threshold := cfg.Threshold(StageReflectSegment)
		payload := make(map[string]any, len(documents))

		for _, id := range documents {
			doc := s.Document(id)
			segments := doc.Segments
			if len(doc.Analyses) != len(segments) {
				return nil, fmt.Errorf("%w: document %s has %d analyses for %d segments", ErrInvariant, id, len(doc.Analyses), len(segments))
			}

			doc.Verdicts = fanOut(
				ctx, cfg.Workers(len(doc.Analyses)), cfg.ItemTimeoutDuration(), doc.Analyses,
				func(ctx context.Context, i int, a SegmentAnalysis) (SegmentVerdict, error) {
					return reflectAnalysis(ctx, rt, i, segments[i], a, threshold)
				},
				func(i int, a SegmentAnalysis, err error) SegmentVerdict {
					rt.Logger.WarnContext(ctx, "segment reflection failed", "segment", a.SegmentID, "error", err)
					return SegmentVerdict{
						SegmentIndex: i,
						Verdict:      VerdictMarkReview,
						Confidence:   clampUnit(a.Confidence),
						Rationale:    fmt.Sprintf("reflection failed: %v", err),
						Succeeded:    false,
					}
				},
			)

			entries := make([]map[string]any, len(doc.Verdicts))
			for i, v := range doc.Verdicts {
				entries[i] = map[string]any{
					"segment":   doc.Analyses[i].SegmentID,
					"verdict":   string(v.Verdict),
					"succeeded": v.Succeeded,
					"rationale": v.Rationale,
				}
			}
			payload[string(id)] = entries
		}

		s.Meta.Append(StageReflectSegment, payload)

		rt.Logger.InfoContext(
			ctx, "reflect segment stage complete",
			"decision", RouteSegments(s),
		)

		return s, nil
	})
}

func reflectAnalysis(
	ctx context.Context,
	rt *Runtime,
	i int,
	seg Segment,
	a SegmentAnalysis,
	threshold float64,
) (SegmentVerdict, error) {
	parsed, err := ask[verdictResponse](ctx, rt, prompts.StageReflectSegment, reflectSegmentInput{
		Segment:   seg,
		Analysis:  a,
		Threshold: threshold,
	})
	if err != nil {
		return SegmentVerdict{}, err
	}

	verdict, err := ParseSegmentVerdict(parsed.Verdict)
	if err != nil {
		return SegmentVerdict{}, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}

	if !inUnitRange(parsed.Confidence) {
		return SegmentVerdict{}, fmt.Errorf("%w: confidence %v out of range", ErrInvalidResponse, parsed.Confidence)
	}

	return SegmentVerdict{
		SegmentIndex: i,
		Verdict:      forceAccept(verdict, parsed.Confidence, threshold),
		Confidence:   parsed.Confidence,
		Rationale:    parsed.Rationale,
		Succeeded:    true,
	}, nil
}

// ReflectComparisonStage returns a stage that asks the judgment service to
// review the comparison. A failed review defaults to mark_review carrying
// the comparison confidence.
func ReflectComparisonStage(rt *Runtime) Stage {
	return NewStage(StageReflectComparison, func(ctx context.Context, s *RunState, cfg Config) (*RunState, error) {
		threshold := cfg.Threshold(StageReflectComparison)

		carried := 0.0
		if s.Comparison != nil {
			carried = clampUnit(s.Comparison.Confidence)
		}

		verdict := single(
			ctx, cfg.ItemTimeoutDuration(),
			func(ctx context.Context) (ComparisonVerdict, error) {
				return reflectComparison(ctx, rt, s.Comparison, threshold)
			},
			func(err error) ComparisonVerdict {
				rt.Logger.WarnContext(ctx, "comparison reflection failed", "error", err)
				return ComparisonVerdict{
					Verdict:    VerdictMarkReview,
					Confidence: carried,
					Rationale:  fmt.Sprintf("reflection failed: %v", err),
					Succeeded:  false,
				}
			},
		)

		s.ComparisonVerdict = &verdict
		s.Meta.Append(StageReflectComparison, map[string]any{
			"verdict":   string(verdict.Verdict),
			"reboot":    verdict.Reboot,
			"succeeded": verdict.Succeeded,
			"rationale": verdict.Rationale,
		})

		rt.Logger.InfoContext(
			ctx, "reflect comparison stage complete",
			"verdict", verdict.Verdict,
			"confidence", verdict.Confidence,
		)

		return s, nil
	})
}

func reflectComparison(
	ctx context.Context,
	rt *Runtime,
	comparison *ComparisonResult,
	threshold float64,
) (ComparisonVerdict, error) {
	if comparison == nil {
		return ComparisonVerdict{}, fmt.Errorf("no comparison to review")
	}

	parsed, err := ask[verdictResponse](ctx, rt, prompts.StageReflectComparison, reflectComparisonInput{
		Comparison: comparison,
		Threshold:  threshold,
	})
	if err != nil {
		return ComparisonVerdict{}, err
	}

	verdict, err := ParseComparisonVerdict(parsed.Verdict)
	if err != nil {
		return ComparisonVerdict{}, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}

	if !inUnitRange(parsed.Confidence) {
		return ComparisonVerdict{}, fmt.Errorf("%w: confidence %v out of range", ErrInvalidResponse, parsed.Confidence)
	}

	verdict = forceAccept(verdict, parsed.Confidence, threshold)

	return ComparisonVerdict{
		Verdict:    verdict,
		Reboot:     parsed.Reboot && verdict != VerdictAccept,
		Confidence: parsed.Confidence,
		Rationale:  parsed.Rationale,
		Succeeded:  true,
	}, nil
}

func forceAccept(v Verdict, confidence, threshold float64) Verdict {
	if confidence > threshold {
		return VerdictAccept
	}
	return v
}
