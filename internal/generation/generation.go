// Package generation provides the text generation capability used to answer
// user messages: a prompt goes in, reply text comes out.
package generation

import (
	"context"

	"github.com/pkg/errors"

	"github.com/fenggwsx/SportChat/internal/config"
)

// Generator produces reply text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// ErrEmptyReply is returned when a backend answers without any text.
var ErrEmptyReply = errors.New("empty reply")

// New builds the backend selected by cfg.Provider.
func New(ctx context.Context, cfg config.GenerationConfig) (Generator, error) {
	if cfg.APIKey == "" {
		return nil, errors.Errorf("generation.api_key is required for provider %q", cfg.Provider)
	}
	switch cfg.Provider {
	case "", "gemini":
		return NewGemini(ctx, cfg)
	case "openai":
		return NewOpenAI(cfg), nil
	default:
		return nil, errors.Errorf("unsupported generation provider %q", cfg.Provider)
	}
}
