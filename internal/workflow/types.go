package workflow

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// DocumentID identifies one of the two documents under comparison.
type DocumentID string

// The two documents processed by every run.
const (
	DocumentA DocumentID = "A"
	DocumentB DocumentID = "B"
)

var documents = []DocumentID{DocumentA, DocumentB}

// Documents returns the document identifiers in processing order.
func Documents() []DocumentID {
	return documents
}

// SegmentKind describes the structural granularity of a segment.
type SegmentKind string

// Segment kinds.
const (
	KindParagraph SegmentKind = "paragraph"
	KindArticle   SegmentKind = "article"
	KindSection   SegmentKind = "section"
)

// ParseKind normalizes a kind label. Unknown labels resolve to KindSection.
func ParseKind(s string) SegmentKind {
	switch SegmentKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindParagraph:
		return KindParagraph
	case KindArticle:
		return KindArticle
	default:
		return KindSection
	}
}

// Verdict is the recommendation produced by a reflection stage.
type Verdict string

// Verdict values. VerdictReboot is only valid for comparison verdicts.
const (
	VerdictAccept     Verdict = "accept"
	VerdictRetry      Verdict = "retry"
	VerdictMarkReview Verdict = "mark_review"
	VerdictReboot     Verdict = "reboot"
)

var (
	segmentVerdicts    = []Verdict{VerdictAccept, VerdictRetry, VerdictMarkReview}
	comparisonVerdicts = []Verdict{VerdictAccept, VerdictRetry, VerdictMarkReview, VerdictReboot}
)

// ParseSegmentVerdict validates a segment verdict label.
func ParseSegmentVerdict(s string) (Verdict, error) {
	return parseVerdict(s, segmentVerdicts)
}

// ParseComparisonVerdict validates a comparison verdict label.
func ParseComparisonVerdict(s string) (Verdict, error) {
	return parseVerdict(s, comparisonVerdicts)
}

func parseVerdict(s string, allowed []Verdict) (Verdict, error) {
	v := Verdict(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(allowed, v) {
		return "", fmt.Errorf("%w: %q", ErrInvalidVerdict, s)
	}
	return v, nil
}

// Segment is a contiguous unit of a document.
type Segment struct {
	ID         string      `json:"id"`
	Text       string      `json:"text"`
	DocumentID DocumentID  `json:"source_document_id"`
	Kind       SegmentKind `json:"kind"`
	Position   int         `json:"position"`
	Rationale  string      `json:"rationale,omitempty"`
}

// SegmentID formats the identifier for the segment at position within a document.
func SegmentID(doc DocumentID, position int) string {
	return fmt.Sprintf("doc_%s_seg_%d", strings.ToLower(string(doc)), position)
}

// SegmentAnalysis is the judgment service's assessment of a single segment.
// A failed analysis carries Succeeded=false, empty lists and zero confidence.
type SegmentAnalysis struct {
	SegmentID  string   `json:"segment_id"`
	Summary    string   `json:"summary"`
	Category   string   `json:"category"`
	Strengths  []string `json:"strengths"`
	Weaknesses []string `json:"weaknesses"`
	Confidence float64  `json:"confidence"`
	Rationale  string   `json:"rationale"`
	Succeeded  bool     `json:"succeeded"`
}

// SegmentVerdict is the reflection over the analysis at SegmentIndex.
type SegmentVerdict struct {
	SegmentIndex int     `json:"segment_index"`
	Verdict      Verdict `json:"verdict"`
	Confidence   float64 `json:"confidence"`
	Rationale    string  `json:"rationale"`
	Succeeded    bool    `json:"succeeded"`
}

// Finding is a topic-tagged observation in a comparison.
type Finding struct {
	Topic       string `json:"topic"`
	Explanation string `json:"explanation"`
}

// ComparisonResult is the comparative analysis of both documents.
type ComparisonResult struct {
	Similarities     []Finding               `json:"similarities"`
	Differences      []Finding               `json:"differences"`
	FocusAreas       map[DocumentID][]string `json:"focus_areas"`
	Gaps             []string                `json:"gaps"`
	NarrativeSummary string                  `json:"narrative_summary"`
	Confidence       float64                 `json:"confidence"`
	Rationale        string                  `json:"rationale"`
	DetailedReport   string                  `json:"detailed_report,omitempty"`
	Succeeded        bool                    `json:"succeeded"`
}

// ComparisonVerdict is the reflection over the comparison. Reboot records a
// restart request that accompanies a verdict other than VerdictReboot.
type ComparisonVerdict struct {
	Verdict    Verdict `json:"verdict"`
	Reboot     bool    `json:"reboot,omitempty"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
	Succeeded  bool    `json:"succeeded"`
}

// IndexSummary describes the vector collection built from a run's segments.
type IndexSummary struct {
	Collection string `json:"collection"`
	Segments   int    `json:"segments"`
	Chunks     int    `json:"chunks"`
}

// Artifacts holds the storage keys of exported reports.
type Artifacts struct {
	Structured     string `json:"structured"`
	Report         string `json:"report"`
	DetailedReport string `json:"detailed_report,omitempty"`
}

// DocumentState holds everything produced for one document.
type DocumentState struct {
	Path     string            `json:"path"`
	Text     *string           `json:"text,omitempty"`
	Pages    int               `json:"pages,omitempty"`
	Segments []Segment         `json:"segments"`
	Analyses []SegmentAnalysis `json:"analyses"`
	Verdicts []SegmentVerdict  `json:"verdicts"`
	Accepted []SegmentAnalysis `json:"accepted"`
}

// RunState is the complete working state of a run. It is serialized into
// every checkpoint.
type RunState struct {
	RunID             string             `json:"run_id"`
	A                 DocumentState      `json:"document_a"`
	B                 DocumentState      `json:"document_b"`
	Comparison        *ComparisonResult  `json:"comparison,omitempty"`
	ComparisonVerdict *ComparisonVerdict `json:"comparison_verdict,omitempty"`
	Review            *ReviewOutcome     `json:"review,omitempty"`
	Index             *IndexSummary      `json:"index,omitempty"`
	Artifacts         *Artifacts         `json:"artifacts,omitempty"`
	Loops             map[string]int     `json:"loops,omitempty"`
	Meta              MetaLog            `json:"meta"`
}

// NewRunState creates the initial state for a run over the given document paths.
func NewRunState(runID, pathA, pathB string) *RunState {
	return &RunState{
		RunID: runID,
		A:     DocumentState{Path: pathA},
		B:     DocumentState{Path: pathB},
		Loops: make(map[string]int),
		Meta:  MetaLog{},
	}
}

// Document returns the state of the identified document, or nil.
func (s *RunState) Document(id DocumentID) *DocumentState {
	switch id {
	case DocumentA:
		return &s.A
	case DocumentB:
		return &s.B
	default:
		return nil
	}
}

// Clone returns a deep copy produced through the checkpoint encoding.
func (s *RunState) Clone() (*RunState, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode run state: %w", err)
	}
	return DecodeState(data)
}

// DecodeState restores a RunState from its checkpoint encoding.
func DecodeState(data []byte) (*RunState, error) {
	var s RunState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode run state: %w", err)
	}
	if s.Loops == nil {
		s.Loops = make(map[string]int)
	}
	if s.Meta == nil {
		s.Meta = MetaLog{}
	}
	return &s, nil
}

// Validate checks the structural invariants of the state. Violations wrap
// ErrInvariant.
func (s *RunState) Validate() error {
	for _, id := range documents {
		if err := s.Document(id).validate(); err != nil {
			return fmt.Errorf("%w: document %s: %w", ErrInvariant, id, err)
		}
	}

	if c := s.Comparison; c != nil && !inUnitRange(c.Confidence) {
		return fmt.Errorf("%w: comparison confidence %v out of range", ErrInvariant, c.Confidence)
	}

	if v := s.ComparisonVerdict; v != nil {
		if !slices.Contains(comparisonVerdicts, v.Verdict) {
			return fmt.Errorf("%w: comparison verdict %q", ErrInvariant, v.Verdict)
		}
		if !inUnitRange(v.Confidence) {
			return fmt.Errorf("%w: comparison verdict confidence %v out of range", ErrInvariant, v.Confidence)
		}
	}

	return nil
}

// aligned reports an error unless every segment has exactly one analysis
// and one verdict. It holds from reflect_segment onward.
func (d *DocumentState) aligned() error {
	if len(d.Analyses) != len(d.Segments) || len(d.Verdicts) != len(d.Segments) {
		return fmt.Errorf(
			"%d segments, %d analyses, %d verdicts",
			len(d.Segments), len(d.Analyses), len(d.Verdicts),
		)
	}
	return nil
}

func (d *DocumentState) validate() error {
	for i, seg := range d.Segments {
		if seg.Position != i {
			return fmt.Errorf("segment %d has position %d", i, seg.Position)
		}
	}

	if d.Analyses != nil && len(d.Analyses) != len(d.Segments) {
		return fmt.Errorf("%d analyses for %d segments", len(d.Analyses), len(d.Segments))
	}

	for i, a := range d.Analyses {
		if a.SegmentID != d.Segments[i].ID {
			return fmt.Errorf("analysis %d references segment %q, want %q", i, a.SegmentID, d.Segments[i].ID)
		}
		if !inUnitRange(a.Confidence) {
			return fmt.Errorf("analysis %d confidence %v out of range", i, a.Confidence)
		}
		if a.Succeeded && (len(a.Strengths) == 0 || len(a.Weaknesses) == 0) {
			return fmt.Errorf("analysis %d requires at least one strength and one weakness", i)
		}
	}

	if d.Verdicts != nil {
		if len(d.Analyses) != len(d.Segments) {
			return fmt.Errorf("verdicts present with %d analyses for %d segments", len(d.Analyses), len(d.Segments))
		}
		if len(d.Verdicts) != len(d.Analyses) {
			return fmt.Errorf("%d verdicts for %d analyses", len(d.Verdicts), len(d.Analyses))
		}
	}

	for i, v := range d.Verdicts {
		if v.SegmentIndex != i {
			return fmt.Errorf("verdict %d has segment_index %d", i, v.SegmentIndex)
		}
		if !slices.Contains(segmentVerdicts, v.Verdict) {
			return fmt.Errorf("verdict %d has invalid value %q", i, v.Verdict)
		}
		if !inUnitRange(v.Confidence) {
			return fmt.Errorf("verdict %d confidence %v out of range", i, v.Confidence)
		}
	}

	if d.Accepted != nil {
		want, _ := Aggregate(d)
		if len(want) != len(d.Accepted) {
			return fmt.Errorf("%d accepted analyses, want %d", len(d.Accepted), len(want))
		}
		for i := range want {
			if want[i].SegmentID != d.Accepted[i].SegmentID {
				return fmt.Errorf("accepted analysis %d references %q, want %q", i, d.Accepted[i].SegmentID, want[i].SegmentID)
			}
		}
	}

	return nil
}

func inUnitRange(v float64) bool {
	return v >= 0 && v <= 1
}

func clampUnit(v float64) float64 {
	return min(max(v, 0), 1)
}
