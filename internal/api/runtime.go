package api

import (
	"github.com/JaimeStill/ldaa/internal/config"
	"github.com/JaimeStill/ldaa/internal/index"
	"github.com/JaimeStill/ldaa/internal/infrastructure"
	"github.com/JaimeStill/ldaa/internal/judge"
	"github.com/JaimeStill/ldaa/internal/workflow"
	"github.com/JaimeStill/ldaa/pkg/pagination"
)

// Runtime extends Infrastructure with API-specific configuration.
type Runtime struct {
	*infrastructure.Infrastructure
	Pagination pagination.Config
	Workflow   workflow.Config
	Agent      judge.Config
	Index      index.Config
}

// NewRuntime creates an API runtime with a module-scoped logger.
func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) *Runtime {
	return &Runtime{
		Infrastructure: &infrastructure.Infrastructure{
			Lifecycle: infra.Lifecycle,
			Logger:    infra.Logger.With("module", "api"),
			Metrics:   infra.Metrics,
			Database:  infra.Database,
			Storage:   infra.Storage,
		},
		Pagination: cfg.API.Pagination,
		Workflow:   cfg.Workflow,
		Agent:      cfg.Agent,
		Index:      cfg.Index,
	}
}
