package prompts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/ldaa/pkg/pagination"
	"github.com/JaimeStill/ldaa/pkg/query"
	"github.com/JaimeStill/ldaa/pkg/repository"
)

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a prompt repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "prompts"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Prompt], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort...).
		WhereSearch(page.Search, "Name", "Description", "Instructions")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count prompts: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanPrompt)
	if err != nil {
		return nil, fmt.Errorf("query prompts: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Prompt, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)
	return r.one(ctx, r.db, q, args)
}

func (r *repo) Create(ctx context.Context, cmd Command) (*Prompt, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}

	q := `
		INSERT INTO prompts(name, stage, instructions, description)
		VALUES ($1, $2, $3, $4)
		` + returning

	p, err := r.write(ctx, q, cmd.Name, cmd.Stage, cmd.Instructions, cmd.Description)
	if err != nil {
		return nil, err
	}

	r.logger.Info("prompt created", "id", p.ID, "name", p.Name, "stage", p.Stage)
	return p, nil
}

// Update rewrites an override. Moving an active override to another stage
// deactivates it so the target stage keeps a single active prompt.
func (r *repo) Update(ctx context.Context, id uuid.UUID, cmd Command) (*Prompt, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}

	q := `
		UPDATE prompts
		SET name = $1,
		    stage = $2,
		    instructions = $3,
		    description = $4,
		    active = active AND stage = $2,
		    updated_at = now()
		WHERE id = $5
		` + returning

	p, err := r.write(ctx, q, cmd.Name, cmd.Stage, cmd.Instructions, cmd.Description, id)
	if err != nil {
		return nil, err
	}

	r.logger.Info("prompt updated", "id", p.ID, "name", p.Name, "stage", p.Stage)
	return p, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		return struct{}{}, repository.ExecExpectOne(ctx, tx, "DELETE FROM prompts WHERE id = $1", id)
	})
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("prompt deleted", "id", id)
	return nil
}

// Activate makes id the active override for its stage, deactivating the
// previous one in the same transaction.
func (r *repo) Activate(ctx context.Context, id uuid.UUID) (*Prompt, error) {
	p, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Prompt, error) {
		var stage Stage
		err := tx.QueryRowContext(ctx, "SELECT stage FROM prompts WHERE id = $1 FOR UPDATE", id).Scan(&stage)
		if err != nil {
			return Prompt{}, err
		}

		_, err = tx.ExecContext(
			ctx,
			"UPDATE prompts SET active = false, updated_at = now() WHERE stage = $1 AND active AND id <> $2",
			stage, id,
		)
		if err != nil {
			return Prompt{}, fmt.Errorf("deactivate current %s prompt: %w", stage, err)
		}

		q := `UPDATE prompts SET active = true, updated_at = now() WHERE id = $1 ` + returning
		return repository.QueryOne(ctx, tx, q, []any{id}, scanPrompt)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("prompt activated", "id", p.ID, "name", p.Name, "stage", p.Stage)
	return &p, nil
}

func (r *repo) Deactivate(ctx context.Context, id uuid.UUID) (*Prompt, error) {
	q := `UPDATE prompts SET active = false, updated_at = now() WHERE id = $1 ` + returning

	p, err := r.write(ctx, q, id)
	if err != nil {
		return nil, err
	}

	r.logger.Info("prompt deactivated", "id", p.ID, "name", p.Name, "stage", p.Stage)
	return p, nil
}

func (r *repo) Active(ctx context.Context, stage Stage) (*Prompt, error) {
	if _, err := ParseStage(string(stage)); err != nil {
		return nil, err
	}

	active := true
	qb := query.NewBuilder(projection).
		WhereEquals("Stage", stage).
		WhereEquals("Active", &active)

	q, args := qb.Build()
	return r.one(ctx, r.db, q, args)
}

// Instructions returns the active override for stage, falling back to a
// randomly chosen default variant when none is active.
func (r *repo) Instructions(ctx context.Context, stage Stage) (string, error) {
	p, err := r.Active(ctx, stage)
	if errors.Is(err, ErrNotFound) {
		return Instructions(stage)
	}
	if err != nil {
		return "", fmt.Errorf("resolve %s instructions: %w", stage, err)
	}
	return p.Instructions, nil
}

func (r *repo) Spec(ctx context.Context, stage Stage) (string, error) {
	return Spec(stage)
}

func (r *repo) Resolve(ctx context.Context, stage Stage) (*Resolution, error) {
	override, err := r.Active(ctx, stage)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return resolve(stage, override)
}

func (r *repo) one(ctx context.Context, q repository.Querier, stmt string, args []any) (*Prompt, error) {
	p, err := repository.QueryOne(ctx, q, stmt, args, scanPrompt)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &p, nil
}

func (r *repo) write(ctx context.Context, q string, args ...any) (*Prompt, error) {
	p, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Prompt, error) {
		return repository.QueryOne(ctx, tx, q, args, scanPrompt)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &p, nil
}

// resolve assembles a Resolution. A nil override selects a default variant.
func resolve(stage Stage, override *Prompt) (*Resolution, error) {
	spec, err := Spec(stage)
	if err != nil {
		return nil, err
	}
	variants, err := Variants(stage)
	if err != nil {
		return nil, err
	}

	res := &Resolution{
		Stage:    stage,
		Spec:     spec,
		Override: override,
		Variants: variants,
	}

	if override != nil {
		res.Instructions = override.Instructions
	} else {
		res.Instructions = variants[0]
	}

	return res, nil
}
