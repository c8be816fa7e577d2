package workflow

import "fmt"

// Decision is the output of a router, used together with the current stage
// to select the next stage from the transition table.
type Decision string

// Router decisions. DecisionNext is the single outgoing edge of stages
// without a router.
const (
	DecisionNext    Decision = "next"
	DecisionRetry   Decision = "retry"
	DecisionReboot  Decision = "reboot"
	DecisionReview  Decision = "review"
	DecisionProceed Decision = "proceed"
)

// Loop counter keys.
const (
	LoopSegmentRetry    = "segment_retry"
	LoopComparisonRetry = "comparison_retry"
	LoopReboot          = "comparison_reboot"
)

type transition struct {
	to    StageName
	loop  string
	reset func(*RunState)
}

var transitions = map[StageName]map[Decision]transition{
	StageIngest:    {DecisionNext: {to: StageSegment}},
	StageSegment:   {DecisionNext: {to: StageIndex}},
	StageIndex:     {DecisionNext: {to: StageAnalyze}},
	StageAnalyze:   {DecisionNext: {to: StageReflectSegment}},
	StageAggregate: {DecisionNext: {to: StageCompare}},
	StageCompare:   {DecisionNext: {to: StageReflectComparison}},
	StageExport:    {DecisionNext: {to: StageEnd}},
	StageReflectSegment: {
		DecisionRetry:   {to: StageAnalyze, loop: LoopSegmentRetry},
		DecisionReview:  {to: StageReviewSegment},
		DecisionProceed: {to: StageAggregate},
	},
	StageReviewSegment: {DecisionNext: {to: StageAggregate}},
	StageReflectComparison: {
		DecisionRetry:   {to: StageCompare, loop: LoopComparisonRetry},
		DecisionReboot:  {to: StageAnalyze, loop: LoopReboot, reset: discardComparison},
		DecisionReview:  {to: StageReviewComparison},
		DecisionProceed: {to: StageExport},
	},
	StageReviewComparison: {DecisionNext: {to: StageExport}},
}

var routers = map[StageName]func(*RunState) Decision{
	StageReflectSegment:    RouteSegments,
	StageReflectComparison: RouteComparison,
}

// RouteSegments evaluates the segment verdicts of both documents. Any retry
// wins over any mark_review, which wins over proceeding to aggregation.
func RouteSegments(s *RunState) Decision {
	var retry, review bool
	for _, id := range documents {
		for _, v := range s.Document(id).Verdicts {
			switch v.Verdict {
			case VerdictRetry:
				retry = true
			case VerdictMarkReview:
				review = true
			}
		}
	}

	switch {
	case retry:
		return DecisionRetry
	case review:
		return DecisionReview
	default:
		return DecisionProceed
	}
}

// RouteComparison evaluates the comparison verdict in priority order:
// retry, reboot, mark_review, accept. A missing verdict routes to review.
func RouteComparison(s *RunState) Decision {
	v := s.ComparisonVerdict
	if v == nil {
		return DecisionReview
	}

	switch {
	case v.Verdict == VerdictRetry:
		return DecisionRetry
	case v.Verdict == VerdictReboot || v.Reboot:
		return DecisionReboot
	case v.Verdict == VerdictMarkReview:
		return DecisionReview
	default:
		return DecisionProceed
	}
}

// Step describes one evaluated transition.
type Step struct {
	From      StageName `json:"from"`
	Decision  Decision  `json:"decision"`
	To        StageName `json:"to"`
	Escalated bool      `json:"escalated,omitempty"`
}

// Advance evaluates the router of from (if any) against s and returns the
// transition taken. Loop edges increment their counter in s; once a counter
// has reached maxLoops the decision escalates to review. Edges that discard
// prior results apply their reset to s.
func Advance(s *RunState, from StageName, maxLoops int) (Step, error) {
	edges, ok := transitions[from]
	if !ok {
		return Step{}, fmt.Errorf("%w: no transitions from %s", ErrUnknownStage, from)
	}

	decision := DecisionNext
	if router, ok := routers[from]; ok {
		decision = router(s)
	}

	t, ok := edges[decision]
	if !ok {
		return Step{}, fmt.Errorf("%w: no %s transition from %s", ErrUnknownStage, decision, from)
	}

	step := Step{From: from, Decision: decision}

	if t.loop != "" {
		if s.Loops == nil {
			s.Loops = make(map[string]int)
		}
		if maxLoops > 0 && s.Loops[t.loop] >= maxLoops {
			t = edges[DecisionReview]
			step.Escalated = true
		} else {
			s.Loops[t.loop]++
		}
	}

	if t.reset != nil {
		t.reset(s)
	}

	step.To = t.to
	return step, nil
}

// Resumption returns the stage a review gate continues into.
func Resumption(gate StageName) (StageName, error) {
	t, ok := transitions[gate][DecisionNext]
	if !gate.IsReviewGate() || !ok {
		return "", fmt.Errorf("%w: %s is not a review gate", ErrUnknownStage, gate)
	}
	return t.to, nil
}

func discardComparison(s *RunState) {
	s.Comparison = nil
	s.ComparisonVerdict = nil
	s.A.Accepted = nil
	s.B.Accepted = nil
}
