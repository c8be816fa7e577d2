// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"fmt"
	"net/http"

	"github.com/JaimeStill/ldaa/internal/config"
	"github.com/JaimeStill/ldaa/internal/infrastructure"
	"github.com/JaimeStill/ldaa/pkg/middleware"
	"github.com/JaimeStill/ldaa/pkg/module"
)

// NewModule creates the API module with all domain handlers and middleware.
// Executing runs are tied to the infrastructure lifecycle: interrupted runs
// are recovered on startup and awaited on shutdown.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure) (*module.Module, error) {
	runtime := NewRuntime(cfg, infra)

	domain, err := NewDomain(runtime)
	if err != nil {
		return nil, err
	}

	if err := domain.Runs.Start(runtime.Lifecycle); err != nil {
		return nil, fmt.Errorf("runs start failed: %w", err)
	}

	var protect []func(http.Handler) http.Handler
	if cfg.API.Auth.Enabled {
		verifier, err := middleware.NewVerifier(runtime.Lifecycle.Context(), &cfg.API.Auth)
		if err != nil {
			return nil, err
		}
		protect = append(protect, middleware.Auth(verifier, runtime.Logger))
		runtime.Logger.Info("reviewer auth enabled", "issuer", cfg.API.Auth.IssuerURL)
	}

	mux := http.NewServeMux()
	registerRoutes(mux, domain, cfg, runtime, protect)

	m, err := module.New(cfg.API.BasePath, mux)
	if err != nil {
		return nil, err
	}
	m.Use(
		middleware.Logger(runtime.Infrastructure.Logger),
		middleware.CORS(&cfg.API.CORS),
	)

	return m, nil
}
