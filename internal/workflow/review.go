package workflow

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
)

// ReviewKind names what a suspended run is waiting on.
type ReviewKind string

// Review contexts.
const (
	ReviewSegment    ReviewKind = "segment"
	ReviewComparison ReviewKind = "comparison"
)

// ReviewItem identifies one flagged item.
type ReviewItem struct {
	Document     DocumentID `json:"document,omitempty"`
	SegmentIndex int        `json:"segment_index"`
	SegmentID    string     `json:"segment_id,omitempty"`
	Verdict      Verdict    `json:"verdict"`
	Confidence   float64    `json:"confidence"`
	Rationale    string     `json:"rationale"`
}

// ReviewContext describes a suspension for human review.
type ReviewContext struct {
	Kind        ReviewKind   `json:"kind"`
	Description string       `json:"description"`
	Items       []ReviewItem `json:"items"`
	Escalated   bool         `json:"escalated,omitempty"`
	Editable    []string     `json:"editable"`
}

// ResponseType is the kind of reviewer response.
type ResponseType string

// Reviewer response kinds.
const (
	ResponseAccept  ResponseType = "accept"
	ResponseIgnore  ResponseType = "ignore"
	ResponseEdit    ResponseType = "edit"
	ResponseRespond ResponseType = "respond"
)

// ReviewResponse is a reviewer's answer to a suspended run. Payload holds a
// JSON object of field edits for ResponseEdit and a JSON string for
// ResponseRespond.
type ReviewResponse struct {
	Type     ResponseType    `json:"type"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Reviewer string          `json:"reviewer,omitempty"`
}

// ReviewOutcome records the most recent human review applied to a run.
type ReviewOutcome struct {
	Kind     ReviewKind   `json:"kind"`
	Type     ResponseType `json:"type"`
	Result   string       `json:"result"`
	Fields   []string     `json:"fields,omitempty"`
	Note     string       `json:"note,omitempty"`
	Reviewer string       `json:"reviewer,omitempty"`
}

type editor func(s *RunState, raw json.RawMessage) error

var editors = map[ReviewKind]map[string]editor{
	ReviewSegment: {
		"document_a.analyses": editAnalyses(DocumentA),
		"document_b.analyses": editAnalyses(DocumentB),
		"document_a.verdicts": editVerdicts(DocumentA),
		"document_b.verdicts": editVerdicts(DocumentB),
	},
	ReviewComparison: {
		"comparison":         editComparison,
		"comparison_verdict": editComparisonVerdict,
	},
}

// EditableFields returns the field paths a reviewer may edit in the given
// review context, sorted.
func EditableFields(kind ReviewKind) []string {
	fields := make([]string, 0, len(editors[kind]))
	for f := range editors[kind] {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// NewReviewContext describes the items that caused the run to stop at gate.
func NewReviewContext(gate StageName, s *RunState, escalated bool) (*ReviewContext, error) {
	switch gate {
	case StageReviewSegment:
		rc := &ReviewContext{
			Kind:      ReviewSegment,
			Items:     []ReviewItem{},
			Escalated: escalated,
			Editable:  EditableFields(ReviewSegment),
		}
		for _, id := range documents {
			doc := s.Document(id)
			for i, v := range doc.Verdicts {
				if v.Verdict == VerdictAccept {
					continue
				}
				item := ReviewItem{
					Document:     id,
					SegmentIndex: i,
					Verdict:      v.Verdict,
					Confidence:   v.Confidence,
					Rationale:    v.Rationale,
				}
				if i < len(doc.Segments) {
					item.SegmentID = doc.Segments[i].ID
				}
				rc.Items = append(rc.Items, item)
			}
		}
		rc.Description = fmt.Sprintf("%d segment analyses flagged for review", len(rc.Items))
		if escalated {
			rc.Description += " after exhausting retries"
		}
		return rc, nil

	case StageReviewComparison:
		rc := &ReviewContext{
			Kind:      ReviewComparison,
			Items:     []ReviewItem{},
			Escalated: escalated,
			Editable:  EditableFields(ReviewComparison),
		}
		if v := s.ComparisonVerdict; v != nil {
			rc.Items = append(rc.Items, ReviewItem{
				SegmentIndex: -1,
				Verdict:      v.Verdict,
				Confidence:   v.Confidence,
				Rationale:    v.Rationale,
			})
		}
		rc.Description = "document comparison flagged for review"
		if escalated {
			rc.Description += " after exhausting retries"
		}
		return rc, nil

	default:
		return nil, fmt.Errorf("%w: %s is not a review gate", ErrUnknownStage, gate)
	}
}

// ApplyReview applies resp to s within the review context rc. On error s
// may be partially modified; callers apply reviews to a clone.
func ApplyReview(s *RunState, rc *ReviewContext, resp ReviewResponse) error {
	outcome := &ReviewOutcome{
		Kind:     rc.Kind,
		Type:     resp.Type,
		Reviewer: resp.Reviewer,
	}

	switch resp.Type {
	case ResponseAccept:
		acceptReviewed(s, rc)
		outcome.Result = "accepted"

	case ResponseIgnore:
		outcome.Result = "ignored"

	case ResponseEdit:
		fields, err := applyEdits(s, rc.Kind, resp.Payload)
		if err != nil {
			return err
		}
		outcome.Result = "edited"
		outcome.Fields = fields

	case ResponseRespond:
		var text string
		if err := json.Unmarshal(resp.Payload, &text); err != nil {
			return fmt.Errorf("%w: respond payload must be a string", ErrInvalidReview)
		}
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("%w: respond payload must not be empty", ErrInvalidReview)
		}
		outcome.Result = "responded"
		outcome.Note = text

	default:
		return fmt.Errorf("%w: unknown response type %q", ErrInvalidReview, resp.Type)
	}

	s.Review = outcome
	return nil
}

func acceptReviewed(s *RunState, rc *ReviewContext) {
	switch rc.Kind {
	case ReviewSegment:
		for _, item := range rc.Items {
			doc := s.Document(item.Document)
			if doc == nil || item.SegmentIndex < 0 || item.SegmentIndex >= len(doc.Verdicts) {
				continue
			}
			doc.Verdicts[item.SegmentIndex].Verdict = VerdictAccept
		}
	case ReviewComparison:
		if s.ComparisonVerdict == nil {
			s.ComparisonVerdict = &ComparisonVerdict{}
		}
		s.ComparisonVerdict.Verdict = VerdictAccept
		s.ComparisonVerdict.Reboot = false
	}
}

func applyEdits(s *RunState, kind ReviewKind, payload json.RawMessage) ([]string, error) {
	var edits map[string]json.RawMessage
	if err := json.Unmarshal(payload, &edits); err != nil || edits == nil {
		return nil, fmt.Errorf("%w: edit payload must be a JSON object", ErrInvalidReview)
	}
	if len(edits) == 0 {
		return nil, fmt.Errorf("%w: edit payload names no fields", ErrInvalidReview)
	}

	allowed := editors[kind]
	fields := make([]string, 0, len(edits))
	for field := range edits {
		if _, ok := allowed[field]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrFieldNotEditable, field)
		}
		fields = append(fields, field)
	}
	slices.Sort(fields)

	for _, field := range fields {
		raw := edits[field]
		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidReview, field, errNullEdit)
		}
		if err := allowed[field](s, raw); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidReview, field, err)
		}
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidReview, err)
	}

	for _, id := range Documents() {
		if err := s.Document(id).aligned(); err != nil {
			return nil, fmt.Errorf("%w: %w: %s: %w", ErrInvalidReview, ErrInvariant, id, err)
		}
	}

	return fields, nil
}

func editAnalyses(id DocumentID) editor {
	return func(s *RunState, raw json.RawMessage) error {
		var analyses []SegmentAnalysis
		if err := decodeStrict(raw, &analyses); err != nil {
			return err
		}
		s.Document(id).Analyses = analyses
		return nil
	}
}

func editVerdicts(id DocumentID) editor {
	return func(s *RunState, raw json.RawMessage) error {
		var verdicts []SegmentVerdict
		if err := decodeStrict(raw, &verdicts); err != nil {
			return err
		}
		s.Document(id).Verdicts = verdicts
		return nil
	}
}

func editComparison(s *RunState, raw json.RawMessage) error {
	var c ComparisonResult
	if err := decodeStrict(raw, &c); err != nil {
		return err
	}
	s.Comparison = &c
	return nil
}

func editComparisonVerdict(s *RunState, raw json.RawMessage) error {
	var v ComparisonVerdict
	if err := decodeStrict(raw, &v); err != nil {
		return err
	}
	s.ComparisonVerdict = &v
	return nil
}

var errNullEdit = errors.New("value must not be null")

func decodeStrict(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
