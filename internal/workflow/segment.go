package workflow

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/JaimeStill/ldaa/internal/prompts"
)

type segmentResponse struct {
	Title     string `json:"title"`
	Text      string `json:"text"`
	Kind      string `json:"kind"`
	Rationale string `json:"rationale"`
}

type segmentInput struct {
	Document DocumentID `json:"document"`
	Text     string     `json:"text"`
}

type segmentation struct {
	segments  []Segment
	succeeded bool
	fallback  bool
	rationale string
}

var blankLines = regexp.MustCompile(`\n\s*\n`)

// SegmentStage returns a stage that divides each document into ordered
// segments. Absent text yields no segments. When the judgment service fails
// the document falls back to blank-line paragraph splitting.
func SegmentStage(rt *Runtime) Stage {
	return NewStage(StageSegment, func(ctx context.Context, s *RunState, cfg Config) (*RunState, error) {
		results := fanOut(
			ctx, len(documents), cfg.ItemTimeoutDuration(), documents,
			func(ctx context.Context, _ int, id DocumentID) (segmentation, error) {
				return segmentDocument(ctx, rt, id, s.Document(id).Text)
			},
			func(_ int, id DocumentID, err error) segmentation {
				rt.Logger.WarnContext(ctx, "segmentation failed", "document", id, "error", err)
				return fallbackSegmentation(id, s.Document(id).Text, err)
			},
		)

		payload := make(map[string]any, len(documents))
		for i, id := range documents {
			result := results[i]
			s.Document(id).Segments = result.segments
			payload[string(id)] = map[string]any{
				"segments":  len(result.segments),
				"succeeded": result.succeeded,
				"fallback":  result.fallback,
				"rationale": result.rationale,
			}
		}

		s.Meta.Append(StageSegment, payload)

		rt.Logger.InfoContext(
			ctx, "segment stage complete",
			"segments_a", len(s.A.Segments),
			"segments_b", len(s.B.Segments),
		)

		return s, nil
	})
}

func segmentDocument(ctx context.Context, rt *Runtime, id DocumentID, text *string) (segmentation, error) {
	if text == nil {
		return segmentation{
			segments:  []Segment{},
			rationale: "no text provided",
		}, nil
	}

	parsed, err := ask[[]segmentResponse](ctx, rt, prompts.StageSegment, segmentInput{
		Document: id,
		Text:     *text,
	})
	if err != nil {
		return segmentation{}, err
	}

	segments := make([]Segment, 0, len(parsed))
	rationales := make([]string, 0, len(parsed))

	for _, p := range parsed {
		body := strings.TrimSpace(p.Text)
		if body == "" {
			continue
		}
		segments = append(segments, newSegment(id, len(segments), body, ParseKind(p.Kind), p.Rationale))
		rationales = append(rationales, p.Rationale)
	}

	if len(segments) == 0 {
		return segmentation{}, fmt.Errorf("%w: no segments returned", ErrInvalidResponse)
	}

	return segmentation{
		segments:  segments,
		succeeded: true,
		rationale: strings.Join(rationales, "; "),
	}, nil
}

func fallbackSegmentation(id DocumentID, text *string, cause error) segmentation {
	result := segmentation{
		segments:  []Segment{},
		fallback:  true,
		rationale: fmt.Sprintf("segmentation failed: %v", cause),
	}

	if text == nil {
		return result
	}

	for _, part := range blankLines.Split(*text, -1) {
		body := strings.TrimSpace(part)
		if body == "" {
			continue
		}
		result.segments = append(
			result.segments,
			newSegment(id, len(result.segments), body, KindParagraph, "paragraph split fallback"),
		)
	}

	return result
}

func newSegment(id DocumentID, position int, text string, kind SegmentKind, rationale string) Segment {
	return Segment{
		ID:         SegmentID(id, position),
		Text:       text,
		DocumentID: id,
		Kind:       kind,
		Position:   position,
		Rationale:  rationale,
	}
}
