package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/JaimeStill/ldaa/internal/prompts"
)

type comparisonResponse struct {
	Similarities     []Finding           `json:"similarities"`
	Differences      []Finding           `json:"differences"`
	FocusAreas       map[string][]string `json:"focus_areas"`
	Gaps             []string            `json:"gaps"`
	NarrativeSummary string              `json:"narrative_summary"`
	Confidence       float64             `json:"confidence"`
	Rationale        string              `json:"rationale"`
	DetailedReport   string              `json:"detailed_report"`
}

type comparisonInput struct {
	Taxonomy  []string          `json:"taxonomy"`
	DocumentA []SegmentAnalysis `json:"document_a"`
	DocumentB []SegmentAnalysis `json:"document_b"`
}

// CompareStage returns a stage that compares the accepted analyses of both
// documents. A failed comparison yields an empty result with zero
// confidence.
func CompareStage(rt *Runtime) Stage {
	return NewStage(StageCompare, func(ctx context.Context, s *RunState, cfg Config) (*RunState, error) {
		input := comparisonInput{
			Taxonomy:  cfg.Taxonomy,
			DocumentA: s.A.Accepted,
			DocumentB: s.B.Accepted,
		}

		result := single(
			ctx, cfg.ItemTimeoutDuration(),
			func(ctx context.Context) (ComparisonResult, error) {
				return compareDocuments(ctx, rt, input)
			},
			func(err error) ComparisonResult {
				rt.Logger.WarnContext(ctx, "comparison failed", "error", err)
				return failedComparison(err)
			},
		)

		s.Comparison = &result
		s.ComparisonVerdict = nil
		s.Meta.Append(StageCompare, map[string]any{
			"succeeded": result.Succeeded,
			"rationale": result.Rationale,
		})

		rt.Logger.InfoContext(
			ctx, "compare stage complete",
			"similarities", len(result.Similarities),
			"differences", len(result.Differences),
			"confidence", result.Confidence,
		)

		return s, nil
	})
}

func compareDocuments(ctx context.Context, rt *Runtime, input comparisonInput) (ComparisonResult, error) {
	parsed, err := ask[comparisonResponse](ctx, rt, prompts.StageCompare, input)
	if err != nil {
		return ComparisonResult{}, err
	}

	if !inUnitRange(parsed.Confidence) {
		return ComparisonResult{}, fmt.Errorf("%w: confidence %v out of range", ErrInvalidResponse, parsed.Confidence)
	}

	return ComparisonResult{
		Similarities:     nonNil(parsed.Similarities),
		Differences:      nonNil(parsed.Differences),
		FocusAreas:       normalizeFocusAreas(parsed.FocusAreas),
		Gaps:             nonNil(parsed.Gaps),
		NarrativeSummary: parsed.NarrativeSummary,
		Confidence:       parsed.Confidence,
		Rationale:        parsed.Rationale,
		DetailedReport:   parsed.DetailedReport,
		Succeeded:        true,
	}, nil
}

func failedComparison(err error) ComparisonResult {
	return ComparisonResult{
		Similarities: []Finding{},
		Differences:  []Finding{},
		FocusAreas:   map[DocumentID][]string{},
		Gaps:         []string{},
		Confidence:   0,
		Rationale:    fmt.Sprintf("comparison failed: %v", err),
		Succeeded:    false,
	}
}

// normalizeFocusAreas maps the labels a judge may use for each document
// onto DocumentA and DocumentB. Unrecognized labels are dropped.
func normalizeFocusAreas(raw map[string][]string) map[DocumentID][]string {
	areas := make(map[DocumentID][]string, len(documents))
	for label, topics := range raw {
		var id DocumentID
		switch strings.ToLower(strings.TrimSpace(label)) {
		case "a", "document_a", "doc_a", "doc1", "document 1":
			id = DocumentA
		case "b", "document_b", "doc_b", "doc2", "document 2":
			id = DocumentB
		default:
			continue
		}
		areas[id] = append(areas[id], topics...)
	}
	return areas
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
