package index

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds vector index settings. The embedding endpoint speaks the
// OpenAI embeddings API, which local inference servers also expose.
type Config struct {
	Enabled      bool   `toml:"enabled"`
	Path         string `toml:"path"`
	Compress     bool   `toml:"compress"`
	ChunkSize    int    `toml:"chunk_size"`
	ChunkOverlap int    `toml:"chunk_overlap"`
	BaseURL      string `toml:"base_url"`
	Model        string `toml:"model"`
	Token        string `toml:"token"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Enabled string
	Path    string
	BaseURL string
	Model   string
	Token   string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay. Boolean fields always apply.
func (c *Config) Merge(overlay *Config) {
	c.Enabled = overlay.Enabled
	c.Compress = overlay.Compress

	if overlay.Path != "" {
		c.Path = overlay.Path
	}
	if overlay.ChunkSize != 0 {
		c.ChunkSize = overlay.ChunkSize
	}
	if overlay.ChunkOverlap != 0 {
		c.ChunkOverlap = overlay.ChunkOverlap
	}
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.Model != "" {
		c.Model = overlay.Model
	}
	if overlay.Token != "" {
		c.Token = overlay.Token
	}
}

func (c *Config) loadDefaults() {
	if c.Path == "" {
		c.Path = "data/index"
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = 500
	}
	if c.ChunkOverlap == 0 {
		c.ChunkOverlap = 50
	}
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:11434/v1"
	}
	if c.Model == "" {
		c.Model = "nomic-embed-text"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Enabled != "" {
		if v := os.Getenv(env.Enabled); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				c.Enabled = b
			}
		}
	}
	if env.Path != "" {
		if v := os.Getenv(env.Path); v != "" {
			c.Path = v
		}
	}
	if env.BaseURL != "" {
		if v := os.Getenv(env.BaseURL); v != "" {
			c.BaseURL = v
		}
	}
	if env.Model != "" {
		if v := os.Getenv(env.Model); v != "" {
			c.Model = v
		}
	}
	if env.Token != "" {
		if v := os.Getenv(env.Token); v != "" {
			c.Token = v
		}
	}
}

func (c *Config) validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk_overlap must be within [0, chunk_size)")
	}
	if c.Enabled && c.Model == "" {
		return fmt.Errorf("model required when enabled")
	}
	return nil
}
