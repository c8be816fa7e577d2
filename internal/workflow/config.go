package workflow

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// DefaultTaxonomy is used when no taxonomy is configured.
var DefaultTaxonomy = []string{
	"definitions and scope",
	"governance",
	"rights and obligations",
	"risk management",
	"transparency",
	"data protection",
	"liability",
	"enforcement and penalties",
	"innovation support",
	"other",
}

// Config holds the engine parameters shared by every stage.
type Config struct {
	ConfidenceThreshold   float64            `toml:"confidence_threshold"`
	StageThresholds       map[string]float64 `toml:"stage_thresholds"`
	Taxonomy              []string           `toml:"taxonomy"`
	Concurrency           int                `toml:"concurrency"`
	ItemTimeout           string             `toml:"item_timeout"`
	MaxLoops              int                `toml:"max_loops"`
	AllowMissingDocuments bool               `toml:"allow_missing_documents"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	ConfidenceThreshold   string
	Taxonomy              string
	Concurrency           string
	ItemTimeout           string
	MaxLoops              string
	AllowMissingDocuments string
}

// ItemTimeoutDuration returns ItemTimeout as a time.Duration.
func (c *Config) ItemTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ItemTimeout)
	return d
}

// Threshold returns the confidence above which a reflection stage forces
// accept. Per-stage overrides take precedence over ConfidenceThreshold.
func (c *Config) Threshold(stage StageName) float64 {
	if t, ok := c.StageThresholds[string(stage)]; ok {
		return t
	}
	return c.ConfidenceThreshold
}

// Workers returns the fan-out limit for n items.
func (c *Config) Workers(n int) int {
	limit := c.Concurrency
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	return max(min(limit, n), 1)
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay. AllowMissingDocuments
// always applies.
func (c *Config) Merge(overlay *Config) {
	if overlay.ConfidenceThreshold != 0 {
		c.ConfidenceThreshold = overlay.ConfidenceThreshold
	}
	if overlay.StageThresholds != nil {
		c.StageThresholds = overlay.StageThresholds
	}
	if overlay.Taxonomy != nil {
		c.Taxonomy = overlay.Taxonomy
	}
	if overlay.Concurrency != 0 {
		c.Concurrency = overlay.Concurrency
	}
	if overlay.ItemTimeout != "" {
		c.ItemTimeout = overlay.ItemTimeout
	}
	if overlay.MaxLoops != 0 {
		c.MaxLoops = overlay.MaxLoops
	}
	c.AllowMissingDocuments = overlay.AllowMissingDocuments
}

func (c *Config) loadDefaults() {
	if c.ConfidenceThreshold == 0 {
		c.ConfidenceThreshold = 0.85
	}
	if len(c.Taxonomy) == 0 {
		c.Taxonomy = DefaultTaxonomy
	}
	if c.ItemTimeout == "" {
		c.ItemTimeout = "2m"
	}
	if c.MaxLoops == 0 {
		c.MaxLoops = 3
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.ConfidenceThreshold != "" {
		if v := os.Getenv(env.ConfidenceThreshold); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				c.ConfidenceThreshold = f
			}
		}
	}
	if env.Taxonomy != "" {
		if v := os.Getenv(env.Taxonomy); v != "" {
			labels := strings.Split(v, ",")
			c.Taxonomy = make([]string, 0, len(labels))
			for _, label := range labels {
				if trimmed := strings.TrimSpace(label); trimmed != "" {
					c.Taxonomy = append(c.Taxonomy, trimmed)
				}
			}
		}
	}
	if env.Concurrency != "" {
		if v := os.Getenv(env.Concurrency); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.Concurrency = n
			}
		}
	}
	if env.ItemTimeout != "" {
		if v := os.Getenv(env.ItemTimeout); v != "" {
			c.ItemTimeout = v
		}
	}
	if env.MaxLoops != "" {
		if v := os.Getenv(env.MaxLoops); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.MaxLoops = n
			}
		}
	}
	if env.AllowMissingDocuments != "" {
		if v := os.Getenv(env.AllowMissingDocuments); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				c.AllowMissingDocuments = b
			}
		}
	}
}

func (c *Config) validate() error {
	if !inUnitRange(c.ConfidenceThreshold) {
		return fmt.Errorf("confidence_threshold must be within [0, 1]: %v", c.ConfidenceThreshold)
	}
	for stage, t := range c.StageThresholds {
		if _, err := ParseStage(stage); err != nil {
			return fmt.Errorf("stage_thresholds: %w", err)
		}
		if !inUnitRange(t) {
			return fmt.Errorf("stage_thresholds.%s must be within [0, 1]: %v", stage, t)
		}
	}
	if len(c.Taxonomy) == 0 {
		return fmt.Errorf("taxonomy requires at least one category")
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative")
	}
	if _, err := time.ParseDuration(c.ItemTimeout); err != nil {
		return fmt.Errorf("invalid item_timeout: %w", err)
	}
	if c.MaxLoops < 1 {
		return fmt.Errorf("max_loops must be positive")
	}
	return nil
}
