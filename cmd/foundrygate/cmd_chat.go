package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"foundrygate/internal/config"
	"foundrygate/internal/perception"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

var (
	chatHistoryPath string
	chatModel       string
	chatRender      bool
	chatTimeout     time.Duration
	chatTracePath   string
)

// newClient is swapped out by tests.
var newClient = func(c *config.Config) (perception.LLMClient, error) {
	return perception.NewClientFromConfig(perception.ProviderConfigFromConfig(c))
}

var chatCmd = &cobra.Command{
	Use:   "chat [prompt]",
	Short: "Send a conversation to the configured provider",
	Long: `Sends a conversation to the configured provider and prints the reply.

The history file is a JSON array. Each element may be an object with
"role" and "content", a two-element [role, content] array, or any other
value, which becomes a user turn. Trailing arguments are appended as a
final user turn. Use "-" to read the history from stdin.

Unlike the client API, which accepts an empty conversation, chat refuses to
send one: with no prompt and an empty or missing history it exits with
"nothing to send" instead of launching the runtime.

Example:
  foundrygate chat "Hello"
  foundrygate chat --history convo.json --model phi-3.5-mini --render`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatHistoryPath, "history", "", "JSON conversation history file (- for stdin)")
	chatCmd.Flags().StringVarP(&chatModel, "model", "m", "", "Model identifier (overrides provider_model)")
	chatCmd.Flags().BoolVar(&chatRender, "render", false, "Render the reply as markdown")
	chatCmd.Flags().DurationVar(&chatTimeout, "timeout", 0, "Per-launch timeout (overrides foundry.timeout)")
	chatCmd.Flags().StringVar(&chatTracePath, "trace", "", "Append an invocation trace to this JSONL file")
}

func runChat(cmd *cobra.Command, args []string) error {
	history, err := loadHistory(chatHistoryPath, cmd.InOrStdin())
	if err != nil {
		return err
	}
	if len(args) > 0 {
		history = append(history, map[string]any{"role": "user", "content": strings.Join(args, " ")})
	}
	if len(history) == 0 {
		return fmt.Errorf("nothing to send: pass a prompt or --history")
	}

	c := *cfg
	if chatModel != "" {
		c.ProviderModel = chatModel
	}
	if chatTimeout > 0 {
		c.Foundry.Timeout = chatTimeout.String()
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	client, err := newClient(&c)
	if err != nil {
		return err
	}
	if fc, ok := client.(*perception.FoundryClient); ok {
		fc.SetDiagnostics(cmd.ErrOrStderr())
	}
	if chatTracePath != "" {
		client = perception.NewTracingClient(client, perception.NewJSONLTraceStore(chatTracePath))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reply, err := client.Generate(ctx, history, verbose)
	if err != nil {
		return err
	}

	if chatRender {
		if rendered, rerr := renderMarkdown(reply); rerr == nil {
			reply = rendered
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), reply)
	return nil
}

// loadHistory decodes a JSON array of turns. An empty path yields no turns.
func loadHistory(path string, stdin io.Reader) ([]any, error) {
	if path == "" {
		return nil, nil
	}

	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	var history []any
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("failed to parse history (want a JSON array): %w", err)
	}
	return history, nil
}

func renderMarkdown(text string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return "", err
	}
	out, err := r.Render(text)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n"), nil
}
