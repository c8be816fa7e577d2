package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JaimeStill/ldaa/internal/api"
	"github.com/JaimeStill/ldaa/internal/config"
	"github.com/JaimeStill/ldaa/internal/infrastructure"
	"github.com/JaimeStill/ldaa/pkg/module"
)

// Server owns the infrastructure, the mounted API module, and the HTTP
// listener.
type Server struct {
	infra *infrastructure.Infrastructure
	http  *httpServer
}

// NewServer assembles infrastructure and mounts the API beneath the service
// endpoints (/healthz, /readyz, /metrics).
func NewServer(cfg *config.Config) (*Server, error) {
	infra, err := infrastructure.New(cfg)
	if err != nil {
		return nil, err
	}

	apiModule, err := api.NewModule(cfg, infra)
	if err != nil {
		return nil, err
	}

	router := module.NewRouter()
	serviceEndpoints(router, infra)
	if err := router.Mount(apiModule); err != nil {
		return nil, err
	}

	infra.Logger.Info("server initialized", "api", apiModule.Prefix(), "version", cfg.Version)

	return &Server{
		infra: infra,
		http:  newHTTPServer(&cfg.Server, router, infra.Logger),
	}, nil
}

// Start brings up infrastructure first so the listener only accepts traffic
// once the database and storage hooks are registered.
func (s *Server) Start() error {
	if err := s.infra.Start(); err != nil {
		return err
	}
	if err := s.http.Start(s.infra.Lifecycle); err != nil {
		return err
	}

	go func() {
		s.infra.Lifecycle.WaitForStartup()
		s.infra.Logger.Info("all subsystems ready")
	}()

	return nil
}

// Shutdown cancels the lifecycle context and waits for every shutdown hook,
// including in-flight runs reaching a checkpoint.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.infra.Logger.Info("initiating shutdown", "timeout", timeout)
	return s.infra.Lifecycle.Shutdown(timeout)
}

func serviceEndpoints(router *module.Router, infra *infrastructure.Infrastructure) {
	router.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	})

	router.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if pending := infra.Lifecycle.Pending(); len(pending) > 0 {
			writeStatus(w, http.StatusServiceUnavailable, "not ready", pending...)
			return
		}
		writeStatus(w, http.StatusOK, "ready")
	})

	router.Handle("GET /metrics", promhttp.HandlerFor(infra.Metrics, promhttp.HandlerOpts{
		Registry:          infra.Metrics,
		EnableOpenMetrics: true,
	}))
}

func writeStatus(w http.ResponseWriter, code int, status string, pending ...string) {
	body := map[string]any{"status": status}
	if len(pending) > 0 {
		body["pending"] = pending
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
