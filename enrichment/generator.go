package enrichment

import (
	"context"
	"errors"
)

// MaxBatchEntries caps one upstream call.
const MaxBatchEntries = 100

var (
	ErrNotConfigured     = errors.New("enrichment is not configured")
	ErrMalformedResponse = errors.New("enrichment response is not a JSON array")
	ErrTooManyEntries    = errors.New("maximum 100 entries per batch")
)

// Generator sends one prompt to a text model and returns its raw reply.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a plain function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
