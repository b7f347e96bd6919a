// Package tactile is the lowest-level execution layer of the gateway. It
// launches runtime processes, enforces the per-launch timeout by killing the
// whole process tree, and reports what happened as a structured result.
//
// Design Principles:
//   - Minimal logic: failure classification happens in the foundry package
//   - Launch errors are returned, exit failures are reported in the result
//   - Resource limits: wall-clock timeout and output capture caps
//   - Cross-platform: Windows and Unix support
package tactile

import (
	"strings"
	"time"
)

// Command represents a command to be executed.
type Command struct {
	// Binary is the executable to run (e.g., "foundry", "dotnet").
	Binary string `json:"binary"`

	// Arguments are the command-line arguments.
	Arguments []string `json:"arguments"`

	// WorkingDirectory is the directory to execute in.
	// If empty, the current directory is used.
	WorkingDirectory string `json:"working_directory,omitempty"`

	// Environment is the child environment in KEY=VALUE form. When non-nil it
	// is used verbatim; when nil the executor's allowed variables are passed
	// through from the current process.
	Environment []string `json:"environment,omitempty"`

	// Stdin provides input to the command's standard input.
	Stdin string `json:"stdin,omitempty"`

	// Limits specifies resource constraints for execution.
	Limits *ResourceLimits `json:"limits,omitempty"`

	// RequestID links this execution to an invocation (for logs).
	RequestID string `json:"request_id,omitempty"`
}

// CommandString returns the full command as a string (for display/logging).
func (c Command) CommandString() string {
	if len(c.Arguments) == 0 {
		return c.Binary
	}
	return c.Binary + " " + strings.Join(c.Arguments, " ")
}

// ResourceLimits defines constraints on command execution.
type ResourceLimits struct {
	// TimeoutMs is the maximum execution time in milliseconds.
	// Zero means use the executor's default timeout.
	TimeoutMs int64 `json:"timeout_ms,omitempty"`

	// MaxOutputBytes limits captured stdout and stderr, each.
	// Zero means use the executor's default.
	MaxOutputBytes int64 `json:"max_output_bytes,omitempty"`
}

// Timeout returns the wall-clock limit, or zero when unset.
func (l *ResourceLimits) Timeout() time.Duration {
	if l == nil || l.TimeoutMs <= 0 {
		return 0
	}
	return time.Duration(l.TimeoutMs) * time.Millisecond
}

// ExecutionResult is the output of a process that was started.
type ExecutionResult struct {
	// ExitCode is the process exit code (-1 if not available).
	ExitCode int `json:"exit_code"`

	// Stdout is the captured standard output.
	Stdout string `json:"stdout"`

	// Stderr is the captured standard error.
	Stderr string `json:"stderr"`

	Duration   time.Duration `json:"duration"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`

	// Killed indicates the process tree was forcibly terminated.
	Killed bool `json:"killed"`

	// KillReason explains why the command was killed.
	KillReason string `json:"kill_reason,omitempty"`

	// TimedOut is set when the kill was caused by the per-launch deadline,
	// as opposed to cancellation of the caller's context.
	TimedOut bool `json:"timed_out"`

	// Truncated indicates output was truncated due to size limits.
	Truncated bool `json:"truncated"`

	// TruncatedBytes is how many bytes were discarded.
	TruncatedBytes int64 `json:"truncated_bytes,omitempty"`

	// ResourceUsage contains resource consumption metrics (if available).
	ResourceUsage *ResourceUsage `json:"resource_usage,omitempty"`

	// Error holds a wait failure that is neither an exit status nor a kill.
	Error string `json:"error,omitempty"`

	// Command is a copy of the command that was executed.
	Command *Command `json:"command,omitempty"`
}

// Succeeded reports a clean zero exit.
func (r *ExecutionResult) Succeeded() bool {
	return r != nil && !r.Killed && r.Error == "" && r.ExitCode == 0
}

// IsNonZeroExit returns true if the command ran to completion but returned non-zero.
func (r *ExecutionResult) IsNonZeroExit() bool {
	return r != nil && !r.Killed && r.ExitCode != 0
}

// ResourceUsage contains metrics about resource consumption.
type ResourceUsage struct {
	UserTimeMs   int64 `json:"user_time_ms"`
	SystemTimeMs int64 `json:"system_time_ms"`
	MaxRSSBytes  int64 `json:"max_rss_bytes"`
}

// TotalCPUTimeMs returns total CPU time (user + system).
func (r *ResourceUsage) TotalCPUTimeMs() int64 {
	return r.UserTimeMs + r.SystemTimeMs
}

// ExecutorConfig is the configuration for creating executors.
type ExecutorConfig struct {
	// DefaultTimeout is used when no timeout is specified.
	DefaultTimeout time.Duration `json:"default_timeout"`

	// MaxTimeout caps all timeout values (0 = unlimited).
	MaxTimeout time.Duration `json:"max_timeout"`

	// KillGrace bounds how long Wait blocks on inherited pipes after the
	// process tree has been killed.
	KillGrace time.Duration `json:"kill_grace"`

	// AllowedEnvironment lists environment variables to pass through when a
	// command does not carry its own environment.
	AllowedEnvironment []string `json:"allowed_environment"`

	// MaxOutputBytes caps output capture per stream.
	MaxOutputBytes int64 `json:"max_output_bytes"`

	// EnableResourceUsage enables collection of resource metrics.
	EnableResourceUsage bool `json:"enable_resource_usage"`

	// InheritProcessGroup keeps children in the caller's process group
	// instead of starting a new one, so a group kill aimed at the caller
	// reaches them too. A timeout then kills only the direct child.
	InheritProcessGroup bool `json:"inherit_process_group"`
}

// DefaultExecutorConfig returns sensible defaults.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		DefaultTimeout:      300 * time.Second,
		MaxTimeout:          30 * time.Minute,
		KillGrace:           2 * time.Second,
		MaxOutputBytes:      10 * 1024 * 1024, // 10MB
		AllowedEnvironment:  []string{"PATH", "HOME", "USER", "LANG", "LC_ALL", "TMPDIR", "SystemRoot", "USERPROFILE"},
		EnableResourceUsage: true,
	}
}

// Merge combines this config with command-specific settings.
// Command settings override config defaults.
func (c ExecutorConfig) Merge(cmd Command) Command {
	result := cmd

	limits := ResourceLimits{}
	if cmd.Limits != nil {
		limits = *cmd.Limits
	}
	if limits.TimeoutMs <= 0 {
		limits.TimeoutMs = c.DefaultTimeout.Milliseconds()
	}
	if c.MaxTimeout > 0 && limits.TimeoutMs > c.MaxTimeout.Milliseconds() {
		limits.TimeoutMs = c.MaxTimeout.Milliseconds()
	}
	if limits.MaxOutputBytes <= 0 {
		limits.MaxOutputBytes = c.MaxOutputBytes
	}
	result.Limits = &limits

	return result
}
