package runs

import (
	"context"

	"github.com/JaimeStill/ldaa/internal/index"
	"github.com/JaimeStill/ldaa/internal/workflow"
	"github.com/JaimeStill/ldaa/pkg/lifecycle"
	"github.com/JaimeStill/ldaa/pkg/pagination"
)

// System defines the public contract for run operations.
type System interface {
	Handler(maxUploadSize int64) *Handler

	// Start registers recovery of interrupted runs on startup and waits for
	// executing runs on shutdown.
	Start(lc *lifecycle.Coordinator) error

	Submit(ctx context.Context, cmd SubmitCommand) (*workflow.Run, error)
	Resume(ctx context.Context, id string, resp workflow.ReviewResponse) (*workflow.Run, error)
	Cancel(ctx context.Context, id string) (*workflow.Run, error)

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Summary], error)

	Find(ctx context.Context, id string) (*workflow.Run, error)
	Checkpoints(ctx context.Context, id string) ([]workflow.Checkpoint, error)
	State(ctx context.Context, id string) (*workflow.RunState, error)
	Search(ctx context.Context, id, query string, k int) ([]index.Hit, error)

	// Recover resumes execution of every run left running by a previous
	// process and returns how many were scheduled.
	Recover(ctx context.Context) (int, error)
}

// Searcher answers semantic queries over a run's indexed segments.
type Searcher interface {
	Search(ctx context.Context, runID, query string, k int) ([]index.Hit, error)
}
