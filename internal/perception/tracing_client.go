package perception

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"foundrygate/internal/foundry"
	"foundrygate/internal/logging"

	"github.com/oklog/ulid/v2"
)

// InvocationTrace captures one generation for later analysis.
type InvocationTrace struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id,omitempty"`
	Model     string `json:"model,omitempty"`

	// Request shape
	HistoryItems int `json:"history_items"`
	Turns        int `json:"turns"`

	Response   string `json:"response,omitempty"`
	DurationMs int64  `json:"duration_ms"`

	// Outcome
	Success      bool   `json:"success"`
	FailureClass string `json:"failure_class,omitempty"`
	FailureTier  string `json:"failure_tier,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// TraceStore persists invocation traces.
type TraceStore interface {
	StoreTrace(trace *InvocationTrace) error
}

// modelGetter is implemented by clients that expose their model.
type modelGetter interface {
	Model() string
}

// TracingClient wraps any LLMClient and records every call.
type TracingClient struct {
	underlying LLMClient
	store      TraceStore

	mu        sync.RWMutex
	sessionID string
}

// NewTracingClient creates a tracing wrapper around an existing client.
func NewTracingClient(underlying LLMClient, store TraceStore) *TracingClient {
	return &TracingClient{underlying: underlying, store: store}
}

// SetSession sets the session id attached to subsequent traces.
func (tc *TracingClient) SetSession(sessionID string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.sessionID = sessionID
}

// Underlying returns the wrapped client.
func (tc *TracingClient) Underlying() LLMClient {
	return tc.underlying
}

// Complete implements LLMClient.Complete with tracing.
func (tc *TracingClient) Complete(ctx context.Context, prompt string) (string, error) {
	return tc.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem implements LLMClient.CompleteWithSystem with tracing.
func (tc *TracingClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	history := make([]any, 0, 2)
	if systemPrompt != "" {
		history = append(history, [2]string{"system", systemPrompt})
	}
	history = append(history, [2]string{"user", userPrompt})
	return tc.Generate(ctx, history, false)
}

// Generate implements LLMClient.Generate with tracing.
func (tc *TracingClient) Generate(ctx context.Context, history []any, verbose bool) (string, error) {
	tc.mu.RLock()
	sessionID := tc.sessionID
	tc.mu.RUnlock()

	start := time.Now()
	logging.PerceptionDebug("Generation started: session=%s items=%d", sessionID, len(history))

	response, err := tc.underlying.Generate(ctx, history, verbose)
	duration := time.Since(start)

	trace := &InvocationTrace{
		ID:           ulid.Make().String(),
		SessionID:    sessionID,
		HistoryItems: len(history),
		Turns:        len(NormalizeHistory(history)),
		Response:     response,
		DurationMs:   duration.Milliseconds(),
		Success:      err == nil,
		Timestamp:    time.Now(),
	}
	if mg, ok := tc.underlying.(modelGetter); ok {
		trace.Model = mg.Model()
	}
	if err != nil {
		trace.ErrorMessage = err.Error()
		var ie *foundry.InvocationError
		if errors.As(err, &ie) {
			trace.FailureClass = string(ie.Class)
			trace.FailureTier = string(ie.Tier)
		}
		logging.PerceptionDebug("Generation failed: session=%s duration=%v error=%v", sessionID, duration, err)
	} else {
		logging.PerceptionDebug("Generation completed: session=%s duration=%v response_len=%d", sessionID, duration, len(response))
	}

	if tc.store != nil {
		if storeErr := tc.store.StoreTrace(trace); storeErr != nil {
			logging.PerceptionWarn("Failed to store invocation trace: %v", storeErr)
		}
	}

	return response, err
}

// JSONLTraceStore appends traces to a file, one JSON object per line.
type JSONLTraceStore struct {
	mu   sync.Mutex
	path string
}

// NewJSONLTraceStore creates a store writing to path. The file is created on
// first use.
func NewJSONLTraceStore(path string) *JSONLTraceStore {
	return &JSONLTraceStore{path: path}
}

// StoreTrace appends trace as a single line.
func (s *JSONLTraceStore) StoreTrace(trace *InvocationTrace) error {
	line, err := json.Marshal(trace)
	if err != nil {
		return fmt.Errorf("failed to marshal trace: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write trace: %w", err)
	}
	return f.Close()
}
