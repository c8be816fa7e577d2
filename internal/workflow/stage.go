package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
)

// StageName identifies a state of the run state machine.
type StageName string

// Stages in transition order. StageEnd is the terminal marker.
const (
	StageIngest            StageName = "ingest"
	StageSegment           StageName = "segment"
	StageIndex             StageName = "index"
	StageAnalyze           StageName = "analyze"
	StageReflectSegment    StageName = "reflect_segment"
	StageReviewSegment     StageName = "review_segment"
	StageAggregate         StageName = "aggregate"
	StageCompare           StageName = "compare"
	StageReflectComparison StageName = "reflect_comparison"
	StageReviewComparison  StageName = "review_comparison"
	StageExport            StageName = "export"
	StageEnd               StageName = "end"
)

var stageNames = []StageName{
	StageIngest,
	StageSegment,
	StageIndex,
	StageAnalyze,
	StageReflectSegment,
	StageReviewSegment,
	StageAggregate,
	StageCompare,
	StageReflectComparison,
	StageReviewComparison,
	StageExport,
	StageEnd,
}

// StageNames returns every stage in transition order.
func StageNames() []StageName {
	return stageNames
}

// ParseStage validates a string as a known stage name.
func ParseStage(s string) (StageName, error) {
	v := StageName(s)
	if !slices.Contains(stageNames, v) {
		return "", fmt.Errorf("%w: %q", ErrInvalidStage, s)
	}
	return v, nil
}

// UnmarshalJSON validates that the decoded string is a known stage.
func (n *StageName) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		*n = ""
		return nil
	}
	v, err := ParseStage(raw)
	if err != nil {
		return err
	}
	*n = v
	return nil
}

// IsReviewGate reports whether the stage suspends the run for human review.
func (n StageName) IsReviewGate() bool {
	return n == StageReviewSegment || n == StageReviewComparison
}

// Status is the lifecycle state of a run.
type Status string

// Run statuses.
const (
	StatusRunning   Status = "running"
	StatusSuspended Status = "suspended"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Finished reports whether the status is terminal.
func (s Status) Finished() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Stage transforms the run state. Returned errors are fatal to the run;
// stages capture judgment service failures into the state instead.
type Stage interface {
	Name() StageName
	Execute(ctx context.Context, s *RunState, cfg Config) (*RunState, error)
}

// StageFunc is the function form of a stage body.
type StageFunc func(ctx context.Context, s *RunState, cfg Config) (*RunState, error)

type stage struct {
	name StageName
	fn   StageFunc
}

// NewStage wraps fn as a Stage with the given name.
func NewStage(name StageName, fn StageFunc) Stage {
	return &stage{name: name, fn: fn}
}

func (s *stage) Name() StageName {
	return s.name
}

func (s *stage) Execute(ctx context.Context, rs *RunState, cfg Config) (*RunState, error) {
	return s.fn(ctx, rs, cfg)
}
