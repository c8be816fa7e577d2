package workflow_test

import (
	"slices"
	"testing"
	"time"

	"github.com/JaimeStill/ldaa/internal/workflow"
)

func TestConfigFinalizeDefaults(t *testing.T) {
	var cfg workflow.Config
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	if cfg.ConfidenceThreshold != 0.85 {
		t.Errorf("threshold = %v, want 0.85", cfg.ConfidenceThreshold)
	}
	if cfg.ItemTimeoutDuration() != 2*time.Minute {
		t.Errorf("item timeout = %v, want 2m", cfg.ItemTimeoutDuration())
	}
	if cfg.MaxLoops != 3 {
		t.Errorf("max loops = %d, want 3", cfg.MaxLoops)
	}
	if !slices.Equal(cfg.Taxonomy, workflow.DefaultTaxonomy) {
		t.Errorf("taxonomy = %v", cfg.Taxonomy)
	}
	if cfg.AllowMissingDocuments {
		t.Error("missing documents must be rejected by default")
	}
}

func TestConfigFinalizeEnv(t *testing.T) {
	env := &workflow.Env{
		ConfidenceThreshold:   "TEST_WF_THRESHOLD",
		Taxonomy:              "TEST_WF_TAXONOMY",
		Concurrency:           "TEST_WF_CONCURRENCY",
		ItemTimeout:           "TEST_WF_TIMEOUT",
		MaxLoops:              "TEST_WF_MAX_LOOPS",
		AllowMissingDocuments: "TEST_WF_ALLOW_MISSING",
	}

	t.Setenv("TEST_WF_THRESHOLD", "0.7")
	t.Setenv("TEST_WF_TAXONOMY", "privacy, , liability ")
	t.Setenv("TEST_WF_CONCURRENCY", "4")
	t.Setenv("TEST_WF_TIMEOUT", "30s")
	t.Setenv("TEST_WF_MAX_LOOPS", "not-a-number")
	t.Setenv("TEST_WF_ALLOW_MISSING", "true")

	var cfg workflow.Config
	if err := cfg.Finalize(env); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	if cfg.ConfidenceThreshold != 0.7 {
		t.Errorf("threshold = %v, want 0.7", cfg.ConfidenceThreshold)
	}
	if !slices.Equal(cfg.Taxonomy, []string{"privacy", "liability"}) {
		t.Errorf("taxonomy = %v", cfg.Taxonomy)
	}
	if cfg.Concurrency != 4 {
		t.Errorf("concurrency = %d, want 4", cfg.Concurrency)
	}
	if cfg.ItemTimeoutDuration() != 30*time.Second {
		t.Errorf("item timeout = %v", cfg.ItemTimeoutDuration())
	}
	if cfg.MaxLoops != 3 {
		t.Errorf("max loops = %d, want default 3", cfg.MaxLoops)
	}
	if !cfg.AllowMissingDocuments {
		t.Error("expected missing documents to be allowed")
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  workflow.Config
	}{
		{"threshold above one", workflow.Config{ConfidenceThreshold: 1.2}},
		{"unknown stage threshold", workflow.Config{StageThresholds: map[string]float64{"classify": 0.5}}},
		{"stage threshold out of range", workflow.Config{StageThresholds: map[string]float64{"reflect_segment": -1}}},
		{"negative concurrency", workflow.Config{Concurrency: -1}},
		{"bad item timeout", workflow.Config{ItemTimeout: "soon"}},
		{"negative max loops", workflow.Config{MaxLoops: -2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Finalize(nil); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestConfigThreshold(t *testing.T) {
	cfg := workflow.Config{
		ConfidenceThreshold: 0.85,
		StageThresholds:     map[string]float64{"reflect_comparison": 0.6},
	}

	if got := cfg.Threshold(workflow.StageReflectSegment); got != 0.85 {
		t.Errorf("segment threshold = %v, want 0.85", got)
	}
	if got := cfg.Threshold(workflow.StageReflectComparison); got != 0.6 {
		t.Errorf("comparison threshold = %v, want 0.6", got)
	}
}

func TestConfigWorkers(t *testing.T) {
	cfg := workflow.Config{Concurrency: 4}

	tests := []struct {
		items int
		want  int
	}{
		{0, 1},
		{2, 2},
		{10, 4},
	}

	for _, tt := range tests {
		if got := cfg.Workers(tt.items); got != tt.want {
			t.Errorf("Workers(%d) = %d, want %d", tt.items, got, tt.want)
		}
	}

	var unbounded workflow.Config
	if got := unbounded.Workers(1); got != 1 {
		t.Errorf("unbounded Workers(1) = %d, want 1", got)
	}
}

func TestConfigMerge(t *testing.T) {
	base := workflow.Config{
		ConfidenceThreshold:   0.85,
		Concurrency:           2,
		ItemTimeout:           "2m",
		MaxLoops:              3,
		AllowMissingDocuments: true,
	}

	base.Merge(&workflow.Config{ConfidenceThreshold: 0.5, MaxLoops: 1})

	if base.ConfidenceThreshold != 0.5 || base.MaxLoops != 1 {
		t.Errorf("overlay not applied: %+v", base)
	}
	if base.Concurrency != 2 || base.ItemTimeout != "2m" {
		t.Errorf("zero overlay fields overwrote base: %+v", base)
	}
	if base.AllowMissingDocuments {
		t.Error("AllowMissingDocuments always follows the overlay")
	}
}
