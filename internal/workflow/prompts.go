package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/JaimeStill/ldaa/internal/prompts"
	"github.com/JaimeStill/ldaa/pkg/formatting"
)

// ComposePrompt builds a prompt by combining tunable instructions, the
// immutable response specification, and the stage input serialized as JSON.
func ComposePrompt(
	ctx context.Context,
	ps prompts.Source,
	stage prompts.Stage,
	input any,
) (string, error) {
	instructions, err := ps.Instructions(ctx, stage)
	if err != nil {
		return "", fmt.Errorf("load instructions for %s: %w", stage, err)
	}

	spec, err := ps.Spec(ctx, stage)
	if err != nil {
		return "", fmt.Errorf("load spec for %s: %w", stage, err)
	}

	var sb strings.Builder
	sb.WriteString(instructions)
	sb.WriteString("\n\n")
	sb.WriteString(spec)

	if input != nil {
		inputJSON, err := json.MarshalIndent(input, "", "  ")
		if err != nil {
			return "", fmt.Errorf("serialize %s input: %w", stage, err)
		}

		sb.WriteString("\n\nInput:\n\n")
		sb.Write(inputJSON)
	}

	return sb.String(), nil
}

// ask composes the stage prompt, calls the judge and parses the reply into T.
func ask[T any](ctx context.Context, rt *Runtime, stage prompts.Stage, input any) (T, error) {
	var zero T

	prompt, err := ComposePrompt(ctx, rt.Prompts, stage, input)
	if err != nil {
		return zero, err
	}

	content, err := rt.Judge.Complete(ctx, prompt)
	if err != nil {
		return zero, fmt.Errorf("%w: %w", ErrCollaborator, err)
	}

	parsed, err := formatting.Parse[T](content)
	if err != nil {
		return zero, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}

	return parsed, nil
}
