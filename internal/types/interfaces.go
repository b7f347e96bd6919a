package types

import (
	"context"
)

// LLMClient defines the interface for text-generation backends.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	// Generate runs a full conversation history. Elements of history may be any
	// shape accepted by the message normalizer.
	Generate(ctx context.Context, history []any, verbose bool) (string, error)
}
