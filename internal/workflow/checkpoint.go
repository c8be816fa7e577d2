package workflow

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"
)

// Checkpoint is a persisted snapshot of a run. Stage is where the run is
// positioned: the next stage to execute, the review gate it waits on, the
// stage that failed, or StageEnd. Completed is the last stage that finished.
type Checkpoint struct {
	RunID     string          `json:"run_id"`
	Sequence  int             `json:"sequence"`
	Stage     StageName       `json:"stage"`
	Completed StageName       `json:"completed,omitempty"`
	Status    Status          `json:"status"`
	Review    *ReviewContext  `json:"review,omitempty"`
	Error     string          `json:"error,omitempty"`
	Artifacts *Artifacts      `json:"artifacts,omitempty"`
	State     json.RawMessage `json:"state"`
	CreatedAt time.Time       `json:"created_at"`
}

// Decode restores the run state captured by the checkpoint.
func (c *Checkpoint) Decode() (*RunState, error) {
	return DecodeState(c.State)
}

// CheckpointStore persists checkpoints. Save assigns Sequence and CreatedAt.
// Latest and Load return ErrRunNotFound when nothing matches.
type CheckpointStore interface {
	Save(ctx context.Context, cp *Checkpoint) error
	Latest(ctx context.Context, runID string) (*Checkpoint, error)
	Load(ctx context.Context, runID string, completed StageName) (*Checkpoint, error)
	List(ctx context.Context, runID string) ([]Checkpoint, error)
}

// MemoryStore is an in-process CheckpointStore.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string][]Checkpoint
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string][]Checkpoint)}
}

func (m *MemoryStore) Save(ctx context.Context, cp *Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp.Sequence = len(m.runs[cp.RunID]) + 1
	cp.CreatedAt = time.Now().UTC()

	stored := *cp
	stored.State = slices.Clone(cp.State)
	m.runs[cp.RunID] = append(m.runs[cp.RunID], stored)
	return nil
}

func (m *MemoryStore) Latest(ctx context.Context, runID string) (*Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cps := m.runs[runID]
	if len(cps) == 0 {
		return nil, ErrRunNotFound
	}
	cp := cps[len(cps)-1]
	return &cp, nil
}

// Load returns the most recent checkpoint written after completed finished.
func (m *MemoryStore) Load(ctx context.Context, runID string, completed StageName) (*Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cps := m.runs[runID]
	for i := len(cps) - 1; i >= 0; i-- {
		if cps[i].Completed == completed {
			cp := cps[i]
			return &cp, nil
		}
	}
	return nil, ErrRunNotFound
}

func (m *MemoryStore) List(ctx context.Context, runID string) ([]Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cps := m.runs[runID]
	if len(cps) == 0 {
		return nil, ErrRunNotFound
	}
	return slices.Clone(cps), nil
}

// Runs returns the identifiers of every run in the store, sorted.
func (m *MemoryStore) Runs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.runs))
	for id := range m.runs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
