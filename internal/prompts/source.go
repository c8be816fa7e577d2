package prompts

import "context"

// Source resolves the instructions and specification used to compose a
// stage prompt.
type Source interface {
	Instructions(ctx context.Context, stage Stage) (string, error)
	Spec(ctx context.Context, stage Stage) (string, error)
}

type defaults struct{}

// Defaults returns a Source backed only by the hardcoded instruction
// variants and specifications.
func Defaults() Source {
	return defaults{}
}

func (defaults) Instructions(ctx context.Context, stage Stage) (string, error) {
	return Instructions(stage)
}

func (defaults) Spec(ctx context.Context, stage Stage) (string, error) {
	return Spec(stage)
}
