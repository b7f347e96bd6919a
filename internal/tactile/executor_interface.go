package tactile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
)

// Executor is the interface for command execution.
type Executor interface {
	// Execute runs a command to completion.
	// A process that starts always yields a result and a nil error, whatever
	// its exit status. A process that cannot be started yields a nil result
	// and a *LaunchError.
	Execute(ctx context.Context, cmd Command) (*ExecutionResult, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, cmd Command) (*ExecutionResult, error)

// Execute calls f(ctx, cmd).
func (f ExecutorFunc) Execute(ctx context.Context, cmd Command) (*ExecutionResult, error) {
	return f(ctx, cmd)
}

// LaunchError reports that a process could not be started.
type LaunchError struct {
	Binary string
	Err    error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Binary, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// NotFound reports whether the executable is missing or not runnable.
func (e *LaunchError) NotFound() bool {
	return errors.Is(e.Err, exec.ErrNotFound) ||
		errors.Is(e.Err, exec.ErrDot) ||
		errors.Is(e.Err, fs.ErrNotExist) ||
		errors.Is(e.Err, fs.ErrPermission)
}
