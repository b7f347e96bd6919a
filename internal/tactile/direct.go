package tactile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"foundrygate/internal/logging"
)

// DirectExecutor executes commands directly on the host using os/exec.
type DirectExecutor struct {
	config ExecutorConfig
}

// NewDirectExecutor creates a new direct executor with default config.
func NewDirectExecutor() *DirectExecutor {
	return NewDirectExecutorWithConfig(DefaultExecutorConfig())
}

// NewDirectExecutorWithConfig creates a new direct executor with custom config.
func NewDirectExecutorWithConfig(config ExecutorConfig) *DirectExecutor {
	logging.TactileDebug("Creating DirectExecutor with config: timeout=%s, maxOutput=%d bytes",
		config.DefaultTimeout, config.MaxOutputBytes)
	return &DirectExecutor{config: config}
}

// Config returns the executor configuration.
func (e *DirectExecutor) Config() ExecutorConfig {
	return e.config
}

// Validate checks if a command can be executed.
func (e *DirectExecutor) Validate(cmd Command) error {
	if strings.TrimSpace(cmd.Binary) == "" {
		return fmt.Errorf("binary is required")
	}
	return nil
}

// Execute runs a command directly on the host and waits for it to exit or be
// killed. The whole process tree is killed when the timeout elapses or ctx is
// cancelled.
func (e *DirectExecutor) Execute(ctx context.Context, cmd Command) (*ExecutionResult, error) {
	timer := logging.StartTimer(logging.CategoryTactile, "Direct command execution")
	defer timer.Stop()

	if err := e.Validate(cmd); err != nil {
		logging.TactileWarn("Command validation failed: %v", err)
		return nil, &LaunchError{Binary: cmd.Binary, Err: err}
	}

	cmd = e.config.Merge(cmd)
	timeout := cmd.Limits.Timeout()

	log := logging.WithRequestID(logging.CategoryTactile, cmd.RequestID)
	log.Debug("Executing: %s (dir=%s, timeout=%s)", cmd.CommandString(), cmd.WorkingDirectory, timeout)

	result := &ExecutionResult{
		ExitCode: -1,
		Command:  &cmd,
	}

	execCtx, cancel := context.WithCancel(ctx)
	if timeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	execCmd := exec.CommandContext(execCtx, cmd.Binary, cmd.Arguments...)
	execCmd.Dir = cmd.WorkingDirectory
	execCmd.Env = e.buildEnvironment(cmd.Environment)
	if e.config.InheritProcessGroup {
		execCmd.Cancel = func() error {
			return killProcess(execCmd)
		}
	} else {
		setupProcessGroup(execCmd)
		execCmd.Cancel = func() error {
			return killProcessGroup(execCmd)
		}
	}
	execCmd.WaitDelay = e.config.KillGrace

	if cmd.Stdin != "" {
		execCmd.Stdin = strings.NewReader(cmd.Stdin)
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	stdoutLimited := &limitedWriter{w: &stdoutBuf, max: cmd.Limits.MaxOutputBytes}
	stderrLimited := &limitedWriter{w: &stderrBuf, max: cmd.Limits.MaxOutputBytes}
	execCmd.Stdout = stdoutLimited
	execCmd.Stderr = stderrLimited

	result.StartedAt = time.Now()
	if err := execCmd.Start(); err != nil {
		log.Warn("Launch failed: %s - %v", cmd.Binary, err)
		return nil, &LaunchError{Binary: cmd.Binary, Err: err}
	}
	log.Debug("Started pid %d: %s", execCmd.Process.Pid, cmd.Binary)

	err := execCmd.Wait()

	result.FinishedAt = time.Now()
	result.Duration = result.FinishedAt.Sub(result.StartedAt)
	result.Stdout = stdoutBuf.String()
	result.Stderr = stderrBuf.String()

	if stdoutLimited.truncated || stderrLimited.truncated {
		result.Truncated = true
		result.TruncatedBytes = stdoutLimited.discarded + stderrLimited.discarded
		log.Warn("Command output truncated: %d bytes discarded", result.TruncatedBytes)
	}

	if execCmd.ProcessState != nil {
		result.ExitCode = execCmd.ProcessState.ExitCode()
	}

	switch {
	case err == nil:
	case ctx.Err() != nil:
		result.Killed = true
		result.KillReason = "context canceled"
		log.Debug("Command canceled: %s", cmd.Binary)
	case errors.Is(execCtx.Err(), context.DeadlineExceeded):
		result.Killed = true
		result.TimedOut = true
		result.KillReason = fmt.Sprintf("timeout after %s", timeout)
		log.Warn("Command killed (timeout): %s after %s", cmd.Binary, timeout)
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			log.Debug("Command exited non-zero: %s -> %d", cmd.Binary, result.ExitCode)
		} else {
			// Typically exec.ErrWaitDelay: the child exited but a grandchild
			// kept the output pipes open past the grace period.
			result.Error = err.Error()
			log.Error("Command wait failed: %s - %v", cmd.Binary, err)
		}
	}

	if e.config.EnableResourceUsage {
		result.ResourceUsage = getProcessResourceUsage(execCmd)
	}

	log.Info("Command completed: %s -> exit=%d, duration=%s, stdout=%d bytes",
		cmd.Binary, result.ExitCode, result.Duration, len(result.Stdout))

	return result, nil
}

// killProcess kills the direct child only.
func killProcess(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// buildEnvironment creates the environment variable list.
// An explicit command environment is authoritative; otherwise only the
// allowed variables of the current process are passed through.
func (e *DirectExecutor) buildEnvironment(cmdEnv []string) []string {
	if cmdEnv != nil {
		return cmdEnv
	}

	env := make([]string, 0, len(e.config.AllowedEnvironment))
	for _, key := range e.config.AllowedEnvironment {
		if val, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+val)
		}
	}
	return env
}

// limitedWriter is an io.Writer that limits total bytes written.
type limitedWriter struct {
	w         io.Writer
	max       int64
	written   int64
	truncated bool
	discarded int64
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)

	if lw.written >= lw.max {
		lw.truncated = true
		lw.discarded += int64(n)
		return n, nil // Pretend we wrote it
	}

	remaining := lw.max - lw.written
	if int64(n) > remaining {
		lw.truncated = true
		lw.discarded += int64(n) - remaining
		written, err := lw.w.Write(p[:remaining])
		lw.written += int64(written)
		return n, err // Original length avoids "short write" errors
	}

	written, err := lw.w.Write(p)
	lw.written += int64(written)
	return written, err
}
