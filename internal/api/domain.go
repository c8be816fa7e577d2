package api

import (
	"fmt"

	"github.com/JaimeStill/ldaa/internal/extract"
	"github.com/JaimeStill/ldaa/internal/index"
	"github.com/JaimeStill/ldaa/internal/judge"
	"github.com/JaimeStill/ldaa/internal/prompts"
	"github.com/JaimeStill/ldaa/internal/runs"
	"github.com/JaimeStill/ldaa/internal/workflow"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Prompts prompts.System
	Runs    runs.System
}

// NewDomain creates all domain systems from the API runtime. The workflow
// engine is assembled here from the judgment client, the prompt system, the
// extractor, the optional segment index and artifact storage.
func NewDomain(runtime *Runtime) (*Domain, error) {
	db := runtime.Database.Connection()

	promptsSystem := prompts.New(
		db,
		runtime.Logger,
		runtime.Pagination,
	)

	client, err := judge.New(&runtime.Agent, runtime.Logger)
	if err != nil {
		return nil, fmt.Errorf("judge init failed: %w", err)
	}

	wrt := &workflow.Runtime{
		Judge:     client,
		Prompts:   promptsSystem,
		Extractor: extract.New(runtime.Storage, runtime.Logger),
		Artifacts: runtime.Storage,
		Logger:    runtime.Logger,
	}

	var searcher runs.Searcher
	if runtime.Index.Enabled {
		segments, err := index.New(&runtime.Index, runtime.Logger)
		if err != nil {
			return nil, fmt.Errorf("index init failed: %w", err)
		}
		wrt.Indexer = segments
		searcher = segments
	}

	store := runs.NewStore(db)
	engine := workflow.NewEngine(
		wrt,
		runtime.Workflow,
		store,
		workflow.WithMetrics(workflow.NewMetrics(runtime.Metrics)),
	)

	runsSystem := runs.New(
		db,
		store,
		engine,
		runtime.Storage,
		searcher,
		runtime.Logger,
		runtime.Pagination,
	)

	return &Domain{
		Prompts: promptsSystem,
		Runs:    runsSystem,
	}, nil
}
