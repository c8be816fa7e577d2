package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/ldaa/internal/index"
	"github.com/JaimeStill/ldaa/internal/judge"
	"github.com/JaimeStill/ldaa/internal/workflow"
	"github.com/JaimeStill/ldaa/pkg/database"
	"github.com/JaimeStill/ldaa/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvLdaaEnv             = "LDAA_ENV"
	EnvLdaaShutdownTimeout = "LDAA_SHUTDOWN_TIMEOUT"
	EnvLdaaVersion         = "LDAA_VERSION"
)

var databaseEnv = &database.Env{
	Host:            "LDAA_DB_HOST",
	Port:            "LDAA_DB_PORT",
	Name:            "LDAA_DB_NAME",
	User:            "LDAA_DB_USER",
	Password:        "LDAA_DB_PASSWORD",
	SSLMode:         "LDAA_DB_SSL_MODE",
	MaxOpenConns:    "LDAA_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "LDAA_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "LDAA_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "LDAA_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	Provider:         "LDAA_STORAGE_PROVIDER",
	ContainerName:    "LDAA_STORAGE_CONTAINER_NAME",
	ConnectionString: "LDAA_STORAGE_CONNECTION_STRING",
	AccountURL:       "LDAA_STORAGE_ACCOUNT_URL",
	Root:             "LDAA_STORAGE_ROOT",
}

var workflowEnv = &workflow.Env{
	ConfidenceThreshold:   "LDAA_WORKFLOW_CONFIDENCE_THRESHOLD",
	Taxonomy:              "LDAA_WORKFLOW_TAXONOMY",
	Concurrency:           "LDAA_WORKFLOW_CONCURRENCY",
	ItemTimeout:           "LDAA_WORKFLOW_ITEM_TIMEOUT",
	MaxLoops:              "LDAA_WORKFLOW_MAX_LOOPS",
	AllowMissingDocuments: "LDAA_WORKFLOW_ALLOW_MISSING_DOCUMENTS",
}

var indexEnv = &index.Env{
	Enabled: "LDAA_INDEX_ENABLED",
	Path:    "LDAA_INDEX_PATH",
	BaseURL: "LDAA_INDEX_BASE_URL",
	Model:   "LDAA_INDEX_MODEL",
	Token:   "LDAA_INDEX_TOKEN",
}

// Config is the root configuration for the ldaa service.
type Config struct {
	Server          ServerConfig    `toml:"server"`
	Log             LogConfig       `toml:"log"`
	Database        database.Config `toml:"database"`
	Storage         storage.Config  `toml:"storage"`
	API             APIConfig       `toml:"api"`
	Workflow        workflow.Config `toml:"workflow"`
	Agent           judge.Config    `toml:"agent"`
	Index           index.Config    `toml:"index"`
	ShutdownTimeout string          `toml:"shutdown_timeout"`
	Version         string          `toml:"version"`
}

// Env returns the deployment environment named by LDAA_ENV, "local" when
// unset. It also selects the config.<env>.toml overlay.
func (c *Config) Env() string {
	if env := os.Getenv(EnvLdaaEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration bounds how long shutdown waits for executing runs
// to reach a checkpoint.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	return duration(c.ShutdownTimeout)
}

// Load builds the configuration in three layers: config.toml when present,
// then config.<env>.toml when LDAA_ENV names one, then LDAA_* environment
// variables applied while finalizing each section.
func Load() (*Config, error) {
	cfg, err := load(BaseConfigFile)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg = &Config{}
	case err != nil:
		return nil, fmt.Errorf("load %s: %w", BaseConfigFile, err)
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		default:
			cfg.Merge(overlay)
		}
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}
	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sections.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Log.Merge(&overlay.Log)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.API.Merge(&overlay.API)
	c.Workflow.Merge(&overlay.Workflow)
	c.Agent.Merge(&overlay.Agent)
	c.Index.Merge(&overlay.Index)
}

func (c *Config) finalize() error {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
	envString(EnvLdaaShutdownTimeout, &c.ShutdownTimeout)
	envString(EnvLdaaVersion, &c.Version)

	if err := checkDurations([2]string{"shutdown_timeout", c.ShutdownTimeout}); err != nil {
		return err
	}

	sections := []struct {
		name     string
		finalize func() error
	}{
		{"server", c.Server.Finalize},
		{"log", c.Log.Finalize},
		{"database", func() error { return c.Database.Finalize(databaseEnv) }},
		{"storage", func() error { return c.Storage.Finalize(storageEnv) }},
		{"api", c.API.Finalize},
		{"workflow", func() error { return c.Workflow.Finalize(workflowEnv) }},
		{"agent", func() error { return c.Agent.Finalize(agentEnv) }},
		{"index", func() error { return c.Index.Finalize(indexEnv) }},
	}
	for _, s := range sections {
		if err := s.finalize(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvLdaaEnv); env != "" {
		return fmt.Sprintf(OverlayConfigPattern, env)
	}
	return ""
}
