package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JaimeStill/ldaa/internal/config"
)

const baseConfig = `
shutdown_timeout = "20s"

[server]
port = 9090

[database]
name = "ldaa"
user = "ldaa"

[storage]
provider = "filesystem"
root = "data/storage"

[workflow]
max_loops = 4

[agent]
model = "llama3.1"
`

const overlayConfig = `
[server]
host = "127.0.0.1"

[agent]
model = "mistral"
`

// workspace switches into a temp directory holding the given config files
// and clears the env vars that would otherwise leak into Load.
func workspace(t *testing.T, files map[string]string) {
	t.Helper()

	dir := t.TempDir()
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	t.Chdir(dir)

	for _, key := range []string{
		config.EnvLdaaEnv,
		config.EnvLdaaShutdownTimeout,
		config.EnvLdaaVersion,
		config.EnvAgentModel,
		config.EnvServerHost,
		config.EnvServerPort,
		config.EnvLogLevel,
		config.EnvLogFormat,
		"LDAA_WORKFLOW_MAX_LOOPS",
		config.EnvAPIBasePath,
	} {
		t.Setenv(key, "")
	}
}

func TestLoadBase(t *testing.T) {
	workspace(t, map[string]string{config.BaseConfigFile: baseConfig})

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ShutdownTimeoutDuration() != 20*time.Second {
		t.Errorf("shutdown timeout = %v", cfg.ShutdownTimeoutDuration())
	}
	if cfg.Version != "0.1.0" {
		t.Errorf("version = %s, want default", cfg.Version)
	}
	if cfg.Server.Addr() != "0.0.0.0:9090" {
		t.Errorf("addr = %s", cfg.Server.Addr())
	}
	if cfg.Workflow.MaxLoops != 4 {
		t.Errorf("max loops = %d", cfg.Workflow.MaxLoops)
	}
	if cfg.API.BasePath != "/api" {
		t.Errorf("base path = %s", cfg.API.BasePath)
	}
	if cfg.API.MaxUploadSizeBytes() != 50*1024*1024 {
		t.Errorf("max upload = %d", cfg.API.MaxUploadSizeBytes())
	}
	if cfg.Env() != "local" {
		t.Errorf("env = %s", cfg.Env())
	}
}

func TestLoadOverlay(t *testing.T) {
	workspace(t, map[string]string{
		config.BaseConfigFile: baseConfig,
		"config.staging.toml": overlayConfig,
	})
	t.Setenv(config.EnvLdaaEnv, "staging")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Env() != "staging" {
		t.Errorf("env = %s", cfg.Env())
	}
	if cfg.Server.Addr() != "127.0.0.1:9090" {
		t.Errorf("addr = %s, want overlay host with base port", cfg.Server.Addr())
	}
	if cfg.Agent.Model != "mistral" {
		t.Errorf("agent model = %s", cfg.Agent.Model)
	}
}

func TestLoadMissingOverlay(t *testing.T) {
	workspace(t, map[string]string{config.BaseConfigFile: baseConfig})
	t.Setenv(config.EnvLdaaEnv, "production")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Agent.Model != "llama3.1" {
		t.Errorf("agent model = %s", cfg.Agent.Model)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	workspace(t, map[string]string{config.BaseConfigFile: baseConfig})
	t.Setenv(config.EnvLdaaShutdownTimeout, "45s")
	t.Setenv(config.EnvAgentModel, "qwen2.5")
	t.Setenv("LDAA_WORKFLOW_MAX_LOOPS", "2")
	t.Setenv("LDAA_API_BASE_PATH", "/v1")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ShutdownTimeoutDuration() != 45*time.Second {
		t.Errorf("shutdown timeout = %v", cfg.ShutdownTimeoutDuration())
	}
	if cfg.Agent.Model != "qwen2.5" {
		t.Errorf("agent model = %s", cfg.Agent.Model)
	}
	if cfg.Workflow.MaxLoops != 2 {
		t.Errorf("max loops = %d", cfg.Workflow.MaxLoops)
	}
	if cfg.API.BasePath != "/v1" {
		t.Errorf("base path = %s", cfg.API.BasePath)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		env   map[string]string
	}{
		{
			name:  "invalid shutdown timeout",
			files: map[string]string{config.BaseConfigFile: baseConfig},
			env:   map[string]string{config.EnvLdaaShutdownTimeout: "soon"},
		},
		{
			name:  "malformed toml",
			files: map[string]string{config.BaseConfigFile: "[server\nport = "},
		},
		{
			name:  "database name missing",
			files: map[string]string{config.BaseConfigFile: "[storage]\nprovider = \"filesystem\"\n"},
		},
		{
			name:  "invalid port",
			files: map[string]string{config.BaseConfigFile: baseConfig},
			env:   map[string]string{config.EnvServerPort: "70000"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			workspace(t, tt.files)
			t.Setenv("LDAA_DB_NAME", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			if _, err := config.Load(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestServerConfig(t *testing.T) {
	t.Setenv(config.EnvServerHost, "")
	t.Setenv(config.EnvServerPort, "")

	var cfg config.ServerConfig
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	if cfg.Addr() != "0.0.0.0:8080" {
		t.Errorf("addr = %s", cfg.Addr())
	}
	if cfg.ReadTimeoutDuration() != time.Minute || cfg.WriteTimeoutDuration() != 15*time.Minute {
		t.Errorf("timeouts = %v/%v", cfg.ReadTimeoutDuration(), cfg.WriteTimeoutDuration())
	}

	cfg.Merge(&config.ServerConfig{Port: 9000})
	if cfg.Addr() != "0.0.0.0:9000" {
		t.Errorf("merged addr = %s", cfg.Addr())
	}
}

func TestMaxUploadSizeBytes(t *testing.T) {
	tests := []struct {
		size string
		want int64
	}{
		{"100MB", 100 * 1024 * 1024},
		{"512KB", 512 * 1024},
		{"plenty", 50 * 1024 * 1024},
	}

	for _, tt := range tests {
		t.Run(tt.size, func(t *testing.T) {
			cfg := config.APIConfig{MaxUploadSize: tt.size}
			if got := cfg.MaxUploadSizeBytes(); got != tt.want {
				t.Errorf("MaxUploadSizeBytes() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLogConfig(t *testing.T) {
	t.Setenv(config.EnvLogLevel, "")
	t.Setenv(config.EnvLogFormat, "JSON")

	var cfg config.LogConfig
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if cfg.Level != "info" || cfg.Format != "json" {
		t.Errorf("log config = %+v", cfg)
	}

	var buf bytes.Buffer
	cfg.NewLogger(&buf).Debug("hidden")
	cfg.NewLogger(&buf).Info("shown", "run", "r1")
	if out := buf.String(); strings.Contains(out, "hidden") || !strings.Contains(out, `"run":"r1"`) {
		t.Errorf("log output = %s", out)
	}

	t.Setenv(config.EnvLogFormat, "")
	for _, bad := range []config.LogConfig{{Level: "verbose"}, {Format: "xml"}} {
		if err := bad.Finalize(); err == nil {
			t.Errorf("expected error for %+v", bad)
		}
	}
}
