package prompts

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/ldaa/pkg/pagination"
)

// System is the prompt override store. As a Source it resolves the active
// override for a stage and falls back to a random default variant.
type System interface {
	Source

	Handler() *Handler

	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Prompt], error)
	Find(ctx context.Context, id uuid.UUID) (*Prompt, error)
	Create(ctx context.Context, cmd Command) (*Prompt, error)
	Update(ctx context.Context, id uuid.UUID, cmd Command) (*Prompt, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Activate(ctx context.Context, id uuid.UUID) (*Prompt, error)
	Deactivate(ctx context.Context, id uuid.UUID) (*Prompt, error)

	// Active returns the active override for stage, or ErrNotFound.
	Active(ctx context.Context, stage Stage) (*Prompt, error)
	// Resolve reports the effective instructions, spec and override for stage.
	Resolve(ctx context.Context, stage Stage) (*Resolution, error)
}
