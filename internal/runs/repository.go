package runs

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/JaimeStill/ldaa/internal/index"
	"github.com/JaimeStill/ldaa/internal/workflow"
	"github.com/JaimeStill/ldaa/pkg/formatting"
	"github.com/JaimeStill/ldaa/pkg/lifecycle"
	"github.com/JaimeStill/ldaa/pkg/pagination"
	"github.com/JaimeStill/ldaa/pkg/query"
	"github.com/JaimeStill/ldaa/pkg/repository"
	"github.com/JaimeStill/ldaa/pkg/storage"
)

type repo struct {
	db         *sql.DB
	runs       *Store
	engine     *workflow.Engine
	storage    storage.System
	searcher   Searcher
	logger     *slog.Logger
	pagination pagination.Config

	lc *lifecycle.Coordinator
}

// New creates a run repository implementing the System interface.
// searcher may be nil, in which case Search returns ErrSearchDisabled.
func New(
	db *sql.DB,
	runs *Store,
	engine *workflow.Engine,
	store storage.System,
	searcher Searcher,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		runs:       runs,
		engine:     engine,
		storage:    store,
		searcher:   searcher,
		logger:     logger.With("system", "runs"),
		pagination: pagination,
	}
}

func (r *repo) Handler(maxUploadSize int64) *Handler {
	return NewHandler(r, r.logger, r.pagination, maxUploadSize)
}

func (r *repo) Start(lc *lifecycle.Coordinator) error {
	r.lc = lc

	lc.OnStartup(func() {
		n, err := r.Recover(lc.Context())
		if err != nil {
			r.logger.Error("run recovery failed", "error", err)
			return
		}
		if n > 0 {
			r.logger.Info("recovering interrupted runs", "count", n)
		}
	})

	return nil
}

func (r *repo) Submit(ctx context.Context, cmd SubmitCommand) (*workflow.Run, error) {
	id := uuid.NewString()

	keyA := buildSourceKey(id, workflow.DocumentA, cmd.DocumentA.Filename)
	keyB := buildSourceKey(id, workflow.DocumentB, cmd.DocumentB.Filename)

	uploaded := make([]string, 0, 2)
	compensate := func() {
		for _, key := range uploaded {
			if err := r.storage.Delete(ctx, key); err != nil {
				r.logger.Warn("compensating blob delete failed", "key", key, "error", err)
			}
		}
	}

	for key, doc := range map[string]Document{keyA: cmd.DocumentA, keyB: cmd.DocumentB} {
		if err := r.storage.Upload(ctx, key, bytes.NewReader(doc.Data), doc.ContentType); err != nil {
			compensate()
			return nil, fmt.Errorf("upload source document: %w", err)
		}
		uploaded = append(uploaded, key)
	}

	run, err := r.engine.Create(ctx, workflow.Input{
		RunID:     id,
		DocumentA: keyA,
		DocumentB: keyB,
	})
	if err != nil {
		compensate()
		return nil, err
	}

	r.logger.Info(
		"run submitted",
		"run_id", id,
		"document_a", cmd.DocumentA.Filename,
		"document_b", cmd.DocumentB.Filename,
		"size", formatting.FormatBytes(int64(len(cmd.DocumentA.Data)+len(cmd.DocumentB.Data)), 1),
	)

	r.execute(id)
	return run, nil
}

func (r *repo) Resume(ctx context.Context, id string, resp workflow.ReviewResponse) (*workflow.Run, error) {
	run, err := r.engine.Review(ctx, id, resp)
	if err != nil {
		return nil, err
	}

	r.execute(id)
	return run, nil
}

func (r *repo) Cancel(ctx context.Context, id string) (*workflow.Run, error) {
	return r.engine.Cancel(ctx, id)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Summary], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "ID", "DocumentA", "DocumentB")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count runs: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanSummary)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id string) (*workflow.Run, error) {
	return r.engine.Status(ctx, id)
}

func (r *repo) Checkpoints(ctx context.Context, id string) ([]workflow.Checkpoint, error) {
	return r.engine.Checkpoints(ctx, id)
}

func (r *repo) State(ctx context.Context, id string) (*workflow.RunState, error) {
	return r.engine.State(ctx, id)
}

func (r *repo) Search(ctx context.Context, id, q string, k int) ([]index.Hit, error) {
	if r.searcher == nil {
		return nil, ErrSearchDisabled
	}

	if _, err := r.engine.Status(ctx, id); err != nil {
		return nil, err
	}

	return r.searcher.Search(ctx, id, q, k)
}

func (r *repo) Recover(ctx context.Context) (int, error) {
	ids, err := r.runs.Running(ctx)
	if err != nil {
		return 0, err
	}

	for _, id := range ids {
		r.execute(id)
	}
	return len(ids), nil
}

// execute drives a run as a lifecycle task, so shutdown interrupts it
// without failing it and waits for its last checkpoint.
func (r *repo) execute(id string) {
	if r.lc == nil {
		r.logger.Error("run not scheduled: runs system not started", "run_id", id)
		return
	}

	scheduled := r.lc.Go(func(ctx context.Context) {
		run, err := r.engine.Execute(ctx, id)

		switch {
		case errors.Is(err, workflow.ErrInterrupted):
			r.logger.Info("run interrupted by shutdown", "run_id", id)
		case errors.Is(err, workflow.ErrRunActive):
			r.logger.Debug("run already executing", "run_id", id)
		case err != nil:
			r.logger.Error("run execution ended with error", "run_id", id, "error", err)
		default:
			r.logger.Info("run execution returned", "run_id", id, "status", run.Status, "stage", run.Stage)
		}
	})
	if !scheduled {
		r.logger.Warn("run not scheduled: shutting down", "run_id", id)
	}
}

func buildSourceKey(runID string, doc workflow.DocumentID, filename string) string {
	return fmt.Sprintf("runs/%s/source/%s/%s", runID, doc, sanitizeFilename(filename))
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	if name == "." || name == "/" || name == "" {
		name = "document"
	}
	return url.PathEscape(name)
}
