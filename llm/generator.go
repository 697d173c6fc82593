package llm

import (
	"context"
	"errors"
)

// Generator produces judge text from a prompt. Implementations are not
// required to be deterministic; reproducibility is handled upstream by
// keying the verdict cache on the prompt inputs, never on the output.
type Generator interface {
	Generate(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error)
}

var (
	ErrEmptyResponse = errors.New("generator returned empty content")
	ErrBlocked       = errors.New("generator blocked the prompt")
)
