// Command foundry-cpu runs Foundry Local on a request artifact with CPU
// execution forced. The gateway launches it when the primary runtime fails.
//
// Usage:
//
//	foundry-cpu <artifact>
//
// It reads FOUNDRY_MODEL, FOUNDRY_BINARY, FOUNDRY_CPU_ARGS, FOUNDRY_TIMEOUT
// and the runtime version from FOUNDRY_CUDA_VERSION_OVERRIDE or CUDA_VERSION.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"foundrygate/internal/config"
	"foundrygate/internal/foundry"
	"foundrygate/internal/logging"
	"foundrygate/internal/tactile"

	"github.com/spf13/cobra"
)

const banner = "foundry-cpu - Running Foundry Local in CPU-only mode"

// envCPUArgs overrides the runtime argument template.
const envCPUArgs = "FOUNDRY_CPU_ARGS"

const defaultCPUArgs = "model run {model} --device cpu --input {artifact}"

// Exit codes for failures the child never got to report.
const (
	exitFailure   = 1
	exitUsage     = 2
	exitNoExec    = 126
	exitNotFound  = 127
	exitTimeout   = 124
	exitCancelled = 130
)

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
}

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

var rootCmd = &cobra.Command{
	Use:           "foundry-cpu <artifact>",
	Short:         "Run Foundry Local in CPU-only mode",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		w := &wrapper{
			executor: newRuntimeExecutor(),
			environ:  os.Environ(),
			stdout:   cmd.OutOrStdout(),
			stderr:   cmd.ErrOrStderr(),
		}
		if code := w.run(ctx, args[0]); code != 0 {
			return exitError{code: code}
		}
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var ee exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUsage)
	}
}

// newRuntimeExecutor keeps the runtime in the wrapper's process group, so the
// gateway's group kill on timeout takes the runtime down with the wrapper.
func newRuntimeExecutor() *tactile.DirectExecutor {
	cfg := tactile.DefaultExecutorConfig()
	cfg.InheritProcessGroup = true
	return tactile.NewDirectExecutorWithConfig(cfg)
}

type wrapper struct {
	executor tactile.Executor
	environ  []string
	stdout   io.Writer
	stderr   io.Writer
}

// run launches the runtime on artifact and returns the exit code to mirror.
func (w *wrapper) run(ctx context.Context, artifact string) int {
	fmt.Fprintln(w.stderr, banner)

	turns, err := foundry.ReadArtifact(artifact)
	if err != nil {
		fmt.Fprintf(w.stderr, "foundry-cpu: invalid request: %v\n", err)
		return exitFailure
	}

	raw := lookupEnv(w.environ, foundry.EnvVersionOverride)
	if strings.TrimSpace(raw) == "" {
		raw = lookupEnv(w.environ, foundry.EnvCUDAVersion)
	}
	if strings.TrimSpace(raw) == "" {
		raw = foundry.DefaultRuntimeVersion
	}
	version := foundry.SanitizeVersion(raw)
	env := foundry.NegotiateEnvironment(w.environ, version)

	model := env.Get(foundry.EnvModel)
	if model == "" {
		fmt.Fprintf(w.stderr, "foundry-cpu: %s is not set\n", foundry.EnvModel)
		return exitUsage
	}
	binary := env.Get(foundry.EnvBinary)
	if binary == "" {
		binary = config.DefaultFoundryConfig().Binary
	}

	template := env.Get(envCPUArgs)
	if strings.TrimSpace(template) == "" {
		template = defaultCPUArgs
	}
	repl := strings.NewReplacer("{model}", model, "{artifact}", artifact)
	args := strings.Fields(template)
	for i, a := range args {
		args[i] = repl.Replace(a)
	}

	timeout := config.DefaultFoundryTimeout
	if d, err := time.ParseDuration(env.Get(foundry.EnvTimeout)); err == nil && d > 0 {
		timeout = d
	}

	logging.Fallback("CPU-only run: model=%s turns=%d version=%s", model, len(turns), version)

	res, err := w.executor.Execute(ctx, tactile.Command{
		Binary:      binary,
		Arguments:   args,
		Environment: env.Environ(),
		Limits:      &tactile.ResourceLimits{TimeoutMs: timeout.Milliseconds()},
	})
	if err != nil {
		fmt.Fprintf(w.stderr, "foundry-cpu: %v\n", err)
		var launchErr *tactile.LaunchError
		if errors.As(err, &launchErr) && launchErr.NotFound() {
			return exitNotFound
		}
		return exitNoExec
	}

	io.WriteString(w.stdout, res.Stdout)
	io.WriteString(w.stderr, res.Stderr)

	switch {
	case res.TimedOut:
		fmt.Fprintf(w.stderr, "foundry-cpu: timed out after %s\n", timeout)
		return exitTimeout
	case res.Killed:
		return exitCancelled
	case res.Error != "":
		fmt.Fprintf(w.stderr, "foundry-cpu: %s\n", res.Error)
		return exitFailure
	}
	return res.ExitCode
}

// lookupEnv returns the last value of key in environ.
func lookupEnv(environ []string, key string) string {
	for i := len(environ) - 1; i >= 0; i-- {
		if k, v, ok := strings.Cut(environ[i], "="); ok && k == key {
			return v
		}
	}
	return ""
}
