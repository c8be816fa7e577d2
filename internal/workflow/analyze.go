package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/JaimeStill/ldaa/internal/prompts"
)

type analysisResponse struct {
	Summary    string   `json:"summary"`
	Category   string   `json:"category"`
	Strengths  []string `json:"strengths"`
	Weaknesses []string `json:"weaknesses"`
	Confidence float64  `json:"confidence"`
	Rationale  string   `json:"rationale"`
}

type analysisInput struct {
	SegmentID string      `json:"segment_id"`
	Kind      SegmentKind `json:"kind"`
	Text      string      `json:"text"`
	Taxonomy  []string    `json:"taxonomy"`
}

// AnalyzeStage returns a stage that analyzes every segment of both documents
// with bounded parallelism. A segment whose analysis fails receives a
// placeholder so analyses stay index-aligned with segments.
func AnalyzeStage(rt *Runtime) Stage {
	return NewStage(StageAnalyze, func(ctx context.Context, s *RunState, cfg Config) (*RunState, error) {
		payload := make(map[string]any, len(documents))

		for _, id := range documents {
			doc := s.Document(id)
			doc.Analyses = analyzeSegments(ctx, rt, cfg, doc.Segments)

			entries := make([]map[string]any, len(doc.Analyses))
			for i, a := range doc.Analyses {
				entries[i] = map[string]any{
					"segment":   a.SegmentID,
					"succeeded": a.Succeeded,
					"rationale": a.Rationale,
				}
			}
			payload[string(id)] = entries
		}

		s.Meta.Append(StageAnalyze, payload)

		rt.Logger.InfoContext(
			ctx, "analyze stage complete",
			"analyses_a", len(s.A.Analyses),
			"analyses_b", len(s.B.Analyses),
		)

		return s, nil
	})
}

func analyzeSegments(ctx context.Context, rt *Runtime, cfg Config, segments []Segment) []SegmentAnalysis {
	return fanOut(
		ctx, cfg.Workers(len(segments)), cfg.ItemTimeoutDuration(), segments,
		func(ctx context.Context, _ int, seg Segment) (SegmentAnalysis, error) {
			return analyzeSegment(ctx, rt, cfg, seg)
		},
		func(_ int, seg Segment, err error) SegmentAnalysis {
			rt.Logger.WarnContext(ctx, "segment analysis failed", "segment", seg.ID, "error", err)
			return failedAnalysis(seg, err)
		},
	)
}

func analyzeSegment(ctx context.Context, rt *Runtime, cfg Config, seg Segment) (SegmentAnalysis, error) {
	parsed, err := ask[analysisResponse](ctx, rt, prompts.StageAnalyze, analysisInput{
		SegmentID: seg.ID,
		Kind:      seg.Kind,
		Text:      seg.Text,
		Taxonomy:  cfg.Taxonomy,
	})
	if err != nil {
		return SegmentAnalysis{}, err
	}

	if err := parsed.validate(); err != nil {
		return SegmentAnalysis{}, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}

	return SegmentAnalysis{
		SegmentID:  seg.ID,
		Summary:    parsed.Summary,
		Category:   parsed.Category,
		Strengths:  parsed.Strengths,
		Weaknesses: parsed.Weaknesses,
		Confidence: parsed.Confidence,
		Rationale:  parsed.Rationale,
		Succeeded:  true,
	}, nil
}

func (r analysisResponse) validate() error {
	if strings.TrimSpace(r.Summary) == "" {
		return fmt.Errorf("summary required")
	}
	if len(r.Strengths) == 0 {
		return fmt.Errorf("at least one strength required")
	}
	if len(r.Weaknesses) == 0 {
		return fmt.Errorf("at least one weakness required")
	}
	if !inUnitRange(r.Confidence) {
		return fmt.Errorf("confidence %v out of range", r.Confidence)
	}
	return nil
}

func failedAnalysis(seg Segment, err error) SegmentAnalysis {
	return SegmentAnalysis{
		SegmentID:  seg.ID,
		Strengths:  []string{},
		Weaknesses: []string{},
		Confidence: 0,
		Rationale:  fmt.Sprintf("analysis failed: %v", err),
		Succeeded:  false,
	}
}
