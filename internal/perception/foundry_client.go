package perception

import (
	"context"
	"fmt"
	"io"
	"os"

	"foundrygate/internal/config"
	"foundrygate/internal/foundry"
	"foundrygate/internal/logging"
	"foundrygate/internal/types"
)

// FoundryClient implements LLMClient on top of the Foundry Local runtime CLI,
// with the CPU-only wrapper as a fallback.
type FoundryClient struct {
	model string
	opts  foundry.Options
	sup   *foundry.Supervisor

	// diagnostics receives state transitions for verbose calls.
	diagnostics io.Writer
}

// NewFoundryClient creates a client from the runtime section of cfg.
func NewFoundryClient(cfg *config.Config) *FoundryClient {
	return NewFoundryClientWithOptions(cfg.ProviderModel, foundry.OptionsFromConfig(cfg))
}

// NewFoundryClientWithOptions creates a client with explicit supervisor options.
func NewFoundryClientWithOptions(model string, opts foundry.Options) *FoundryClient {
	return &FoundryClient{
		model:       model,
		opts:        opts,
		sup:         foundry.NewSupervisor(opts),
		diagnostics: os.Stderr,
	}
}

// SetModel changes the model identifier.
func (c *FoundryClient) SetModel(model string) {
	c.model = model
}

// Model returns the model identifier.
func (c *FoundryClient) Model() string {
	return c.model
}

// SetDiagnostics redirects verbose output.
func (c *FoundryClient) SetDiagnostics(w io.Writer) {
	c.diagnostics = w
}

// Complete sends a single user prompt.
func (c *FoundryClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem sends a user prompt preceded by an optional system turn.
func (c *FoundryClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	history := make([]any, 0, 2)
	if systemPrompt != "" {
		history = append(history, types.ConversationTurn{Role: types.RoleSystem, Content: systemPrompt})
	}
	history = append(history, types.ConversationTurn{Role: types.RoleUser, Content: userPrompt})
	return c.Generate(ctx, history, false)
}

// Generate normalizes history and runs it through the runtime. With verbose
// set, every state transition is written to the diagnostics writer.
func (c *FoundryClient) Generate(ctx context.Context, history []any, verbose bool) (string, error) {
	req := NewCanonicalRequest(c.model, history)
	logging.PerceptionDebug("Normalized %d history items into %d turns", len(history), req.Len())

	sup := c.sup
	if verbose {
		opts := c.opts
		next := opts.Observer
		opts.Observer = func(sc foundry.StateChange) {
			fmt.Fprintf(c.diagnostics, "foundry: [%s] %s -> %s\n", sc.InvocationID, sc.From, sc.To)
			if next != nil {
				next(sc)
			}
		}
		sup = foundry.NewSupervisor(opts)
	}

	out, err := sup.Run(ctx, req)
	if verbose {
		if err != nil {
			fmt.Fprintf(c.diagnostics, "foundry: [%s] %v\n", out.InvocationID, err)
		} else {
			fmt.Fprintf(c.diagnostics, "foundry: [%s] reply %d bytes\n", out.InvocationID, len(out.Text))
		}
	}
	if err != nil {
		logging.PerceptionWarn("Foundry generation failed: %v", err)
		return "", err
	}

	logging.Perception("Foundry generation succeeded (%d bytes)", len(out.Text))
	return out.Text, nil
}
