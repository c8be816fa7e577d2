package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Input identifies the documents of a new run. An empty RunID is replaced
// with a generated UUID.
type Input struct {
	RunID     string `json:"run_id,omitempty"`
	DocumentA string `json:"document_a"`
	DocumentB string `json:"document_b"`
}

// Run is the externally visible status of a run, derived from its latest
// checkpoint. Meta is populated once the run has completed.
type Run struct {
	ID            string         `json:"id"`
	Stage         StageName      `json:"stage"`
	LastCompleted StageName      `json:"last_completed,omitempty"`
	Status        Status         `json:"status"`
	Review        *ReviewContext `json:"review,omitempty"`
	Error         string         `json:"error,omitempty"`
	Artifacts     *Artifacts     `json:"artifacts,omitempty"`
	Meta          MetaLog        `json:"meta,omitempty"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// NewRun projects a checkpoint into a Run.
func NewRun(cp *Checkpoint) (*Run, error) {
	run := &Run{
		ID:            cp.RunID,
		Stage:         cp.Stage,
		LastCompleted: cp.Completed,
		Status:        cp.Status,
		Review:        cp.Review,
		Error:         cp.Error,
		Artifacts:     cp.Artifacts,
		UpdatedAt:     cp.CreatedAt,
	}

	if cp.Status == StatusCompleted {
		s, err := cp.Decode()
		if err != nil {
			return nil, err
		}
		run.Meta = s.Meta
	}

	return run, nil
}

// Option configures an Engine.
type Option func(*Engine)

// WithStage replaces the implementation of a single stage.
func WithStage(st Stage) Option {
	return func(e *Engine) {
		e.stages[st.Name()] = st
	}
}

// WithMetrics records stage and run metrics.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// DefaultStages returns the standard implementation of every executable stage.
func DefaultStages(rt *Runtime) []Stage {
	return []Stage{
		IngestStage(rt),
		SegmentStage(rt),
		IndexStage(rt),
		AnalyzeStage(rt),
		ReflectSegmentStage(rt),
		AggregateStage(rt),
		CompareStage(rt),
		ReflectComparisonStage(rt),
		ExportStage(rt),
	}
}

type execution struct {
	cancel context.CancelCauseFunc
	done   chan struct{}
}

// Engine drives runs through the stage transition table, persisting a
// checkpoint after every stage and suspending at review gates.
type Engine struct {
	cfg     Config
	store   CheckpointStore
	stages  map[StageName]Stage
	metrics *Metrics
	logger  *slog.Logger

	mu     sync.Mutex
	active map[string]*execution
}

// NewEngine creates an Engine using the default stages built from rt.
func NewEngine(rt *Runtime, cfg Config, store CheckpointStore, opts ...Option) *Engine {
	e := &Engine{
		cfg:    cfg,
		store:  store,
		stages: make(map[StageName]Stage),
		logger: rt.Logger.With("system", "workflow"),
		active: make(map[string]*execution),
	}

	for _, st := range DefaultStages(rt) {
		e.stages[st.Name()] = st
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Start creates a run and drives it until it suspends, completes or fails.
func (e *Engine) Start(ctx context.Context, in Input) (*Run, error) {
	run, err := e.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, run.ID)
}

// Create persists the initial checkpoint of a new run without executing it.
func (e *Engine) Create(ctx context.Context, in Input) (*Run, error) {
	if in.RunID == "" {
		in.RunID = uuid.NewString()
	}

	if _, err := e.store.Latest(ctx, in.RunID); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrRunExists, in.RunID)
	} else if !errors.Is(err, ErrRunNotFound) {
		return nil, err
	}

	s := NewRunState(in.RunID, in.DocumentA, in.DocumentB)
	cp, err := e.save(ctx, s, StageIngest, "", StatusRunning, nil, "")
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "run created", "run_id", in.RunID)
	return NewRun(cp)
}

// Execute drives a run from its latest checkpoint. It is also how runs
// interrupted by a shutdown are recovered. A suspended run is returned
// unchanged.
func (e *Engine) Execute(ctx context.Context, runID string) (*Run, error) {
	rctx, release, err := e.claim(ctx, runID)
	if err != nil {
		return nil, err
	}
	defer release()

	cp, err := e.store.Latest(ctx, runID)
	if err != nil {
		return nil, err
	}

	switch cp.Status {
	case StatusSuspended:
		return NewRun(cp)
	case StatusCompleted, StatusFailed:
		return nil, fmt.Errorf("%w: %s", ErrRunFinished, runID)
	}

	return e.drive(rctx, cp)
}

// Recover is Execute for runs left running by a previous process.
func (e *Engine) Recover(ctx context.Context, runID string) (*Run, error) {
	return e.Execute(ctx, runID)
}

// Resume applies a review response to a suspended run and continues
// driving it. An invalid response leaves the run suspended and persists
// nothing.
func (e *Engine) Resume(ctx context.Context, runID string, resp ReviewResponse) (*Run, error) {
	rctx, release, err := e.claim(ctx, runID)
	if err != nil {
		return nil, err
	}
	defer release()

	cp, err := e.review(ctx, runID, resp)
	if err != nil {
		return nil, err
	}

	return e.drive(rctx, cp)
}

// Review applies a review response to a suspended run and persists the
// resumed checkpoint without driving the run further.
func (e *Engine) Review(ctx context.Context, runID string, resp ReviewResponse) (*Run, error) {
	rctx, release, err := e.claim(ctx, runID)
	if err != nil {
		return nil, err
	}
	defer release()

	cp, err := e.review(ctx, runID, resp)
	if err != nil {
		return nil, err
	}

	if errors.Is(context.Cause(rctx), ErrCancelled) {
		s, err := cp.Decode()
		if err != nil {
			return nil, err
		}
		return e.fail(ctx, s, cp.Stage, cp.Completed, ErrCancelled)
	}

	return NewRun(cp)
}

// Cancel stops a run. An executing run is cancelled at its next stage
// boundary; partial stage output is discarded. The run ends failed with
// ErrCancelled.
func (e *Engine) Cancel(ctx context.Context, runID string) (*Run, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		e.mu.Lock()
		x, ok := e.active[runID]
		e.mu.Unlock()

		if !ok {
			run, err := e.cancelIdle(ctx, runID)
			if errors.Is(err, ErrRunActive) {
				continue
			}
			return run, err
		}

		x.cancel(ErrCancelled)
		select {
		case <-x.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		// the holder may finish without observing the cancellation, as a
		// rejected review does; fail the run directly in that case.
		run, err := e.Status(ctx, runID)
		if err != nil || run.Status.Finished() {
			return run, err
		}
	}
}

func (e *Engine) cancelIdle(ctx context.Context, runID string) (*Run, error) {
	_, release, err := e.claim(ctx, runID)
	if err != nil {
		return nil, err
	}
	defer release()

	cp, err := e.store.Latest(ctx, runID)
	if err != nil {
		return nil, err
	}
	if cp.Status.Finished() {
		return nil, fmt.Errorf("%w: %s", ErrRunFinished, runID)
	}

	s, err := cp.Decode()
	if err != nil {
		return nil, err
	}

	runErr := &RunError{RunID: runID, Stage: cp.Stage, Err: ErrCancelled}
	failed, err := e.save(ctx, s, cp.Stage, cp.Completed, StatusFailed, nil, runErr.Error())
	if err != nil {
		return nil, err
	}
	e.metrics.observeRun(StatusFailed)

	e.logger.InfoContext(ctx, "run cancelled", "run_id", runID, "stage", cp.Stage)
	return NewRun(failed)
}

// Status returns the current view of a run.
func (e *Engine) Status(ctx context.Context, runID string) (*Run, error) {
	cp, err := e.store.Latest(ctx, runID)
	if err != nil {
		return nil, err
	}
	return NewRun(cp)
}

// State returns the run state captured by the latest checkpoint.
func (e *Engine) State(ctx context.Context, runID string) (*RunState, error) {
	cp, err := e.store.Latest(ctx, runID)
	if err != nil {
		return nil, err
	}
	return cp.Decode()
}

// Checkpoints returns every checkpoint of a run in sequence order.
func (e *Engine) Checkpoints(ctx context.Context, runID string) ([]Checkpoint, error) {
	return e.store.List(ctx, runID)
}

// Active reports whether the run is currently executing in this engine.
func (e *Engine) Active(runID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.active[runID]
	return ok
}

func (e *Engine) claim(ctx context.Context, runID string) (context.Context, func(), error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.active[runID]; ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrRunActive, runID)
	}

	rctx, cancel := context.WithCancelCause(ctx)
	x := &execution{cancel: cancel, done: make(chan struct{})}
	e.active[runID] = x

	release := func() {
		e.mu.Lock()
		delete(e.active, runID)
		e.mu.Unlock()
		cancel(nil)
		close(x.done)
	}

	return rctx, release, nil
}

func (e *Engine) review(ctx context.Context, runID string, resp ReviewResponse) (*Checkpoint, error) {
	cp, err := e.store.Latest(ctx, runID)
	if err != nil {
		return nil, err
	}

	switch {
	case cp.Status.Finished():
		return nil, fmt.Errorf("%w: %s", ErrRunFinished, runID)
	case cp.Status != StatusSuspended || cp.Review == nil:
		return nil, fmt.Errorf("%w: %s", ErrNotSuspended, runID)
	}

	next, err := Resumption(cp.Stage)
	if err != nil {
		return nil, err
	}

	s, err := cp.Decode()
	if err != nil {
		return nil, err
	}

	if err := ApplyReview(s, cp.Review, resp); err != nil {
		return nil, err
	}

	s.Meta.Append(cp.Stage, map[string]any{
		"status":   "resumed",
		"type":     string(resp.Type),
		"result":   s.Review.Result,
		"fields":   s.Review.Fields,
		"reviewer": resp.Reviewer,
	})

	resumed, err := e.save(ctx, s, next, cp.Stage, StatusRunning, nil, "")
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(
		ctx, "run resumed",
		"run_id", runID,
		"gate", cp.Stage,
		"response", resp.Type,
	)

	return resumed, nil
}

func (e *Engine) drive(ctx context.Context, cp *Checkpoint) (*Run, error) {
	runID := cp.RunID
	logger := e.logger.With("run_id", runID)

	s, err := cp.Decode()
	if err != nil {
		return nil, err
	}

	current, completed := cp.Stage, cp.Completed
	last := cp

	for current != StageEnd {
		if ctx.Err() != nil {
			return e.stop(ctx, last, s)
		}

		st, ok := e.stages[current]
		if !ok {
			return e.fail(ctx, s, current, completed, fmt.Errorf("%w: %s", ErrUnknownStage, current))
		}

		working, err := s.Clone()
		if err != nil {
			return e.fail(ctx, s, current, completed, err)
		}

		start := time.Now()
		out, err := st.Execute(ctx, working, e.cfg)
		e.metrics.observeStage(current, time.Since(start), err)

		if ctx.Err() != nil {
			return e.stop(ctx, last, s)
		}
		if err != nil {
			return e.fail(ctx, s, current, completed, err)
		}
		if err := out.Validate(); err != nil {
			return e.fail(ctx, s, current, completed, err)
		}

		step, err := Advance(out, current, e.cfg.MaxLoops)
		if err != nil {
			return e.fail(ctx, s, current, completed, err)
		}
		e.metrics.observeStep(step)

		s, completed = out, current

		if step.To.IsReviewGate() {
			return e.suspend(ctx, s, step)
		}

		status := StatusRunning
		if step.To == StageEnd {
			status = StatusCompleted
		}

		last, err = e.save(ctx, s, step.To, completed, status, nil, "")
		if err != nil {
			logger.WarnContext(
				context.WithoutCancel(ctx), "checkpoint save failed; run left at previous checkpoint",
				"stage", current,
				"next", step.To,
				"error", err,
			)
			return nil, &RunError{RunID: runID, Stage: current, Err: err}
		}

		logger.DebugContext(
			ctx, "stage transition",
			"from", step.From,
			"decision", step.Decision,
			"to", step.To,
			"escalated", step.Escalated,
		)

		current = step.To
	}

	e.metrics.observeRun(StatusCompleted)
	logger.InfoContext(ctx, "run completed")

	return NewRun(last)
}

func (e *Engine) suspend(ctx context.Context, s *RunState, step Step) (*Run, error) {
	rc, err := NewReviewContext(step.To, s, step.Escalated)
	if err != nil {
		return e.fail(ctx, s, step.To, step.From, err)
	}

	s.Meta.Append(step.To, map[string]any{
		"status":    "suspended",
		"kind":      string(rc.Kind),
		"items":     len(rc.Items),
		"escalated": step.Escalated,
	})

	cp, err := e.save(ctx, s, step.To, step.From, StatusSuspended, rc, "")
	if err != nil {
		return nil, &RunError{RunID: s.RunID, Stage: step.To, Err: err}
	}
	e.metrics.observeRun(StatusSuspended)

	e.logger.InfoContext(
		ctx, "run suspended for review",
		"run_id", s.RunID,
		"gate", step.To,
		"items", len(rc.Items),
		"escalated", step.Escalated,
	)

	return NewRun(cp)
}

// stop ends execution after the run context is done. Explicit cancellation
// fails the run; any other cause leaves the last checkpoint in place so the
// run can be recovered.
func (e *Engine) stop(ctx context.Context, last *Checkpoint, s *RunState) (*Run, error) {
	cause := context.Cause(ctx)

	if errors.Is(cause, ErrCancelled) {
		return e.fail(ctx, s, last.Stage, last.Completed, ErrCancelled)
	}

	e.logger.WarnContext(
		context.WithoutCancel(ctx), "run interrupted",
		"run_id", last.RunID,
		"stage", last.Stage,
		"cause", cause,
	)

	run, err := NewRun(last)
	if err != nil {
		return nil, err
	}
	return run, &RunError{
		RunID: last.RunID,
		Stage: last.Stage,
		Err:   fmt.Errorf("%w: %w", ErrInterrupted, cause),
	}
}

// fail persists a failed checkpoint holding s, the last adopted state, and
// returns the resulting run alongside the *RunError.
func (e *Engine) fail(ctx context.Context, s *RunState, stage, completed StageName, cause error) (*Run, error) {
	ctx = context.WithoutCancel(ctx)
	runErr := &RunError{RunID: s.RunID, Stage: stage, Err: cause}

	e.logger.ErrorContext(ctx, "run failed", "run_id", s.RunID, "stage", stage, "error", cause)

	cp, err := e.save(ctx, s, stage, completed, StatusFailed, nil, runErr.Error())
	if err != nil {
		return nil, errors.Join(runErr, err)
	}
	e.metrics.observeRun(StatusFailed)

	run, err := NewRun(cp)
	if err != nil {
		return nil, errors.Join(runErr, err)
	}
	return run, runErr
}

func (e *Engine) save(
	ctx context.Context,
	s *RunState,
	stage, completed StageName,
	status Status,
	review *ReviewContext,
	errMsg string,
) (*Checkpoint, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode run state: %w", err)
	}

	cp := &Checkpoint{
		RunID:     s.RunID,
		Stage:     stage,
		Completed: completed,
		Status:    status,
		Review:    review,
		Error:     errMsg,
		Artifacts: s.Artifacts,
		State:     data,
	}

	if err := e.store.Save(ctx, cp); err != nil {
		return nil, fmt.Errorf("save checkpoint: %w", err)
	}

	return cp, nil
}
