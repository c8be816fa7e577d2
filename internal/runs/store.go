package runs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/JaimeStill/ldaa/internal/workflow"
	"github.com/JaimeStill/ldaa/pkg/repository"
)

const checkpointColumns = `run_id, sequence, stage, completed, status, review, error, artifacts, state, created_at`

// Store is a PostgreSQL workflow.CheckpointStore. Every Save appends to the
// checkpoints table and upserts the run's row in the runs table in one
// transaction.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store over db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Save(ctx context.Context, cp *workflow.Checkpoint) error {
	var paths struct {
		A struct {
			Path string `json:"path"`
		} `json:"document_a"`
		B struct {
			Path string `json:"path"`
		} `json:"document_b"`
	}
	if err := json.Unmarshal(cp.State, &paths); err != nil {
		return fmt.Errorf("decode document paths: %w", err)
	}

	review, err := jsonArg(cp.Review)
	if err != nil {
		return fmt.Errorf("encode review context: %w", err)
	}

	artifacts, err := jsonArg(cp.Artifacts)
	if err != nil {
		return fmt.Errorf("encode artifacts: %w", err)
	}

	upsert := `
		INSERT INTO runs(id, document_a, document_b, stage, last_completed, status, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			stage = EXCLUDED.stage,
			last_completed = EXCLUDED.last_completed,
			status = EXCLUDED.status,
			error = EXCLUDED.error,
			updated_at = NOW()`

	insert := `
		INSERT INTO checkpoints(run_id, sequence, stage, completed, status, review, error, artifacts, state)
		SELECT $1, COALESCE(MAX(sequence), 0) + 1, $2, $3, $4, $5, $6, $7, $8
		FROM checkpoints WHERE run_id = $1
		RETURNING sequence, created_at`

	type saved struct {
		sequence  int
		createdAt time.Time
	}

	out, err := repository.WithTx(ctx, s.db, func(tx *sql.Tx) (saved, error) {
		var out saved

		if _, err := tx.ExecContext(
			ctx, upsert,
			cp.RunID, paths.A.Path, paths.B.Path,
			cp.Stage, cp.Completed, cp.Status, cp.Error,
		); err != nil {
			return out, err
		}

		err := tx.QueryRowContext(
			ctx, insert,
			cp.RunID, cp.Stage, cp.Completed, cp.Status,
			review, cp.Error, artifacts, string(cp.State),
		).Scan(&out.sequence, &out.createdAt)

		return out, err
	})
	if err != nil {
		return repository.MapError(err, workflow.ErrRunNotFound, workflow.ErrRunExists)
	}

	cp.Sequence = out.sequence
	cp.CreatedAt = out.createdAt
	return nil
}

func (s *Store) Latest(ctx context.Context, runID string) (*workflow.Checkpoint, error) {
	q := `SELECT ` + checkpointColumns + `
		FROM checkpoints WHERE run_id = $1
		ORDER BY sequence DESC LIMIT 1`

	cp, err := repository.QueryOne(ctx, s.db, q, []any{runID}, scanCheckpoint)
	if err != nil {
		return nil, repository.MapError(err, workflow.ErrRunNotFound, workflow.ErrRunExists)
	}
	return &cp, nil
}

// Load returns the most recent checkpoint written after completed finished.
func (s *Store) Load(ctx context.Context, runID string, completed workflow.StageName) (*workflow.Checkpoint, error) {
	q := `SELECT ` + checkpointColumns + `
		FROM checkpoints WHERE run_id = $1 AND completed = $2
		ORDER BY sequence DESC LIMIT 1`

	cp, err := repository.QueryOne(ctx, s.db, q, []any{runID, completed}, scanCheckpoint)
	if err != nil {
		return nil, repository.MapError(err, workflow.ErrRunNotFound, workflow.ErrRunExists)
	}
	return &cp, nil
}

func (s *Store) List(ctx context.Context, runID string) ([]workflow.Checkpoint, error) {
	q := `SELECT ` + checkpointColumns + `
		FROM checkpoints WHERE run_id = $1
		ORDER BY sequence`

	cps, err := repository.QueryMany(ctx, s.db, q, []any{runID}, scanCheckpoint)
	if err != nil {
		return nil, fmt.Errorf("query checkpoints: %w", err)
	}
	if len(cps) == 0 {
		return nil, workflow.ErrRunNotFound
	}
	return cps, nil
}

// Running returns the identifiers of runs whose latest checkpoint is
// running, oldest first.
func (s *Store) Running(ctx context.Context) ([]string, error) {
	q := `SELECT id FROM runs WHERE status = $1 ORDER BY created_at`

	ids, err := repository.QueryMany(ctx, s.db, q, []any{workflow.StatusRunning}, repository.Scalar[string])
	if err != nil {
		return nil, fmt.Errorf("query running runs: %w", err)
	}
	return ids, nil
}

func jsonArg[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
