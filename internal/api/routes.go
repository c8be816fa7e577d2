package api

import (
	"net/http"
	"slices"

	"github.com/JaimeStill/ldaa/internal/config"
	"github.com/JaimeStill/ldaa/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	cfg *config.Config,
	runtime *Runtime,
	protect []func(http.Handler) http.Handler,
) {
	groups := []routes.Group{
		domain.Runs.Handler(cfg.API.MaxUploadSizeBytes()).Routes(),
		domain.Prompts.Handler().Routes(),
		newStorageHandler(runtime.Storage, runtime.Logger).routes(),
	}

	for i := range groups {
		groups[i].Middleware = slices.Concat(protect, groups[i].Middleware)
	}

	routes.Register(mux, groups...)
}
