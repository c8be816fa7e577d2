// Package judge adapts a langchaingo language model into the judgment
// service consulted by workflow stages.
package judge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrEmptyCompletion is returned when the model produces no text.
var ErrEmptyCompletion = errors.New("model returned an empty completion")

// Judge sends composed prompts to a language model.
type Judge struct {
	model   llms.Model
	options []llms.CallOption
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a Judge for the configured provider.
func New(cfg *Config, logger *slog.Logger) (*Judge, error) {
	model, err := newModel(cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s model: %w", cfg.Provider, err)
	}
	return NewWithModel(model, cfg, logger), nil
}

// NewWithModel creates a Judge around an existing model.
func NewWithModel(model llms.Model, cfg *Config, logger *slog.Logger) *Judge {
	var options []llms.CallOption
	if cfg.Temperature > 0 {
		options = append(options, llms.WithTemperature(cfg.Temperature))
	}
	if cfg.MaxTokens > 0 {
		options = append(options, llms.WithMaxTokens(cfg.MaxTokens))
	}

	return &Judge{
		model:   model,
		options: options,
		timeout: cfg.TimeoutDuration(),
		logger:  logger.With("system", "judge", "provider", cfg.Provider, "model", cfg.Model),
	}
}

// Complete sends prompt as a single human message and returns the reply text.
func (j *Judge) Complete(ctx context.Context, prompt string) (string, error) {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	start := time.Now()
	content, err := llms.GenerateFromSinglePrompt(ctx, j.model, prompt, j.options...)
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyCompletion
	}

	j.logger.DebugContext(
		ctx, "completion received",
		"prompt_chars", len(prompt),
		"completion_chars", len(content),
		"duration", time.Since(start),
	)

	return content, nil
}

func newModel(cfg *Config) (llms.Model, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		opts := []openai.Option{
			openai.WithModel(cfg.Model),
			openai.WithToken(cfg.Token),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...)

	case ProviderOllama:
		return ollama.New(
			ollama.WithModel(cfg.Model),
			ollama.WithServerURL(cfg.BaseURL),
		)

	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
