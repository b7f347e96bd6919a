package foundry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"foundrygate/internal/config"
	"foundrygate/internal/logging"
	"foundrygate/internal/tactile"
	"foundrygate/internal/types"

	"github.com/oklog/ulid/v2"
)

// stderrExcerptBytes bounds the stderr tail kept as a failure reason.
const stderrExcerptBytes = 512

// requestPlaceholder replaces the artifact path in every reason.
const requestPlaceholder = "<request>"

// Options configures a Supervisor.
type Options struct {
	// Binary is the primary runtime executable.
	Binary string

	// Args is the primary argument template; {model} and {artifact} are
	// substituted per run.
	Args []string

	// Timeout bounds each launch separately.
	Timeout time.Duration

	// TempDir holds request artifacts. Empty means os.TempDir().
	TempDir string

	// RuntimeVersion is the raw, possibly malformed, version string.
	// Empty means DefaultRuntimeVersion.
	RuntimeVersion string

	// MaxGroupDigits is passed to the Sanitizer.
	MaxGroupDigits int

	// Fallback locates the CPU-only wrapper. Nil disables the fallback tier.
	Fallback Locator

	// Executor launches processes. Nil means a tactile.DirectExecutor.
	Executor tactile.Executor

	// Environ supplies the ambient environment. Nil means os.Environ.
	Environ func() []string

	// Observer, when set, receives every state change.
	Observer Observer
}

// OptionsFromConfig maps the runtime section of cfg onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	f := cfg.Foundry
	return Options{
		Binary:         f.Binary,
		Args:           append([]string(nil), f.Args...),
		Timeout:        cfg.GetFoundryTimeout(),
		TempDir:        f.TempDir,
		RuntimeVersion: f.CUDAVersion,
		MaxGroupDigits: f.GetMaxVersionDigits(),
		Fallback:       NewFallbackLocator(f.Fallback),
	}
}

// Supervisor runs requests against the local runtime. It holds no per-run
// state and is safe for concurrent use.
type Supervisor struct {
	opts      Options
	sanitizer Sanitizer
	executor  tactile.Executor
	environ   func() []string
}

// NewSupervisor creates a supervisor.
func NewSupervisor(opts Options) *Supervisor {
	if opts.Timeout <= 0 {
		opts.Timeout = config.DefaultFoundryTimeout
	}
	s := &Supervisor{
		opts:      opts,
		sanitizer: Sanitizer{MaxGroupDigits: opts.MaxGroupDigits},
		executor:  opts.Executor,
		environ:   opts.Environ,
	}
	if s.executor == nil {
		s.executor = tactile.NewDirectExecutor()
	}
	if s.environ == nil {
		s.environ = os.Environ
	}
	return s
}

// Version returns the sanitized runtime version this supervisor injects.
func (s *Supervisor) Version() SanitizedVersion {
	raw := s.opts.RuntimeVersion
	if strings.TrimSpace(raw) == "" {
		raw = DefaultRuntimeVersion
	}
	return s.sanitizer.Sanitize(raw)
}

// Environment returns the environment a primary launch would receive now.
func (s *Supervisor) Environment() ProcessEnvironment {
	return NegotiateEnvironment(s.environ(), s.Version())
}

// run is the state of one invocation.
type run struct {
	id       string
	state    State
	log      *logging.Logger
	observer Observer
}

func (r *run) advance(to State) {
	from := r.state
	if err := Transition(&r.state, from, to); err != nil {
		r.log.Error("State machine: %v", err)
		return
	}
	r.log.Debug("State %s -> %s", from, to)
	if r.observer != nil {
		r.observer(StateChange{InvocationID: r.id, From: from, To: to})
	}
}

// Run invokes the runtime for req, falling back to the CPU-only wrapper when
// the primary tier fails recoverably. The returned error is nil exactly when
// the outcome is Success; otherwise it is an *InvocationError.
func (s *Supervisor) Run(ctx context.Context, req types.CanonicalRequest) (out Outcome, err error) {
	id := ulid.Make().String()
	r := &run{
		id:       id,
		log:      logging.WithRequestID(logging.CategoryGateway, id),
		observer: s.opts.Observer,
	}

	timer := logging.StartTimer(logging.CategoryGateway, "Foundry invocation")
	defer timer.Stop()

	defer func() {
		out.InvocationID = r.id
		out.Final = r.state
		err = out.Err()
	}()

	r.advance(Preparing)
	r.log.Info("Invoking model %q with %d turns", req.Model, req.Len())

	art, werr := WriteArtifact(s.opts.TempDir, req)
	if werr != nil {
		r.log.Error("Artifact write failed: %v", werr)
		r.advance(FatallyFailed)
		return failed(TierPrepare, ClassArtifactIO, s.scrub(werr.Error(), nil)), nil
	}
	r.log.Debug("Wrote request artifact (%d bytes, blake3=%s)", art.Size, art.Digest)

	defer func() {
		if rerr := art.Remove(); rerr != nil {
			r.log.Error("Artifact cleanup failed: %v", rerr)
			if r.state == Succeeded {
				r.advance(FatallyFailed)
			}
			out = failed(TierCleanup, ClassArtifactIO, s.scrub(rerr.Error(), art))
		}
	}()

	if ctx.Err() != nil {
		r.advance(FatallyFailed)
		return canceled(TierPrepare, ctx.Err()), nil
	}

	version := s.Version()
	env := NegotiateEnvironment(s.environ(), version)
	r.log.Debug("Negotiated environment: version=%s, vars=%d", version, env.Len())

	r.advance(PrimaryRunning)
	primary := s.launch(ctx, r, TierPrimary, s.primaryCommand(req.Model, art, env), art)
	if primary.Kind == Success {
		r.advance(Succeeded)
		return primary, nil
	}

	r.advance(PrimaryFailed)
	r.log.Warn("Primary failed (%s): %s", primary.Class, primary.Reason)

	if ctx.Err() != nil {
		r.advance(FatallyFailed)
		return canceled(TierPrimary, ctx.Err()), nil
	}

	if s.opts.Fallback == nil {
		r.advance(FatallyFailed)
		return primary.fatal(), nil
	}
	target, ok := s.opts.Fallback.Locate()
	if !ok {
		logging.Fallback("No CPU fallback present; giving up")
		r.advance(FatallyFailed)
		return primary.fatal(), nil
	}

	r.advance(FallbackRunning)
	logging.Fallback("Running CPU fallback %s", target.Path)

	fenv := env.With(map[string]string{
		EnvModel:   req.Model,
		EnvBinary:  s.opts.Binary,
		EnvTimeout: s.opts.Timeout.String(),
	})
	fallback := s.launch(ctx, r, TierFallback, s.fallbackCommand(target, art, fenv), art)
	if fallback.Kind == Success {
		r.advance(Succeeded)
		return fallback, nil
	}

	r.advance(FatallyFailed)
	if ctx.Err() != nil {
		return canceled(TierFallback, ctx.Err()), nil
	}
	return fallback, nil
}

func canceled(tier Tier, cause error) Outcome {
	o := failed(tier, ClassTimeout, "canceled").fatal()
	o.cause = cause
	return o
}

func (s *Supervisor) primaryCommand(model string, art *Artifact, env ProcessEnvironment) tactile.Command {
	repl := strings.NewReplacer("{model}", model, "{artifact}", art.Path)
	args := make([]string, len(s.opts.Args))
	for i, a := range s.opts.Args {
		args[i] = repl.Replace(a)
	}
	return tactile.Command{
		Binary:      s.opts.Binary,
		Arguments:   args,
		Environment: env.Environ(),
	}
}

func (s *Supervisor) fallbackCommand(t FallbackTarget, art *Artifact, env ProcessEnvironment) tactile.Command {
	binary, args := t.Command(art.Path)
	return tactile.Command{
		Binary:      binary,
		Arguments:   args,
		Environment: env.Environ(),
	}
}

// launch runs one tier and classifies the result.
func (s *Supervisor) launch(ctx context.Context, r *run, tier Tier, cmd tactile.Command, art *Artifact) Outcome {
	cmd.RequestID = r.id
	cmd.Limits = &tactile.ResourceLimits{TimeoutMs: s.opts.Timeout.Milliseconds()}

	r.log.Debug("Launching %s tier: %s", tier, filepath.Base(cmd.Binary))
	res, err := s.executor.Execute(ctx, cmd)
	if res != nil && res.ResourceUsage != nil {
		u := res.ResourceUsage
		r.log.Debug("%s tier usage: cpu=%dms maxRSS=%d bytes", tier, u.TotalCPUTimeMs(), u.MaxRSSBytes)
	}
	o := classify(tier, s.opts.Timeout, res, err)
	o.Reason = s.scrub(o.Reason, art)
	return o
}

// classify maps an execution result onto the failure taxonomy. Exit codes
// are consumed here and never reach the outcome.
func classify(tier Tier, timeout time.Duration, res *tactile.ExecutionResult, err error) Outcome {
	if err != nil {
		var launchErr *tactile.LaunchError
		if errors.As(err, &launchErr) && launchErr.NotFound() {
			return failed(tier, ClassBinaryNotFound, fmt.Sprintf("%s: %v", filepath.Base(launchErr.Binary), launchErr.Err))
		}
		return failed(tier, ClassNonZeroExit, "launch failed: "+err.Error())
	}
	if res == nil {
		return failed(tier, ClassNonZeroExit, "launch failed: no result")
	}

	switch {
	case res.TimedOut:
		return failed(tier, ClassTimeout, fmt.Sprintf("timed out after %s", timeout))
	case res.Killed:
		return failed(tier, ClassTimeout, "canceled")
	case res.Error != "":
		return failed(tier, ClassNonZeroExit, res.Error)
	case res.ExitCode != 0:
		reason := stderrExcerpt(res.Stderr)
		if reason == "" {
			reason = "process reported failure"
		}
		return failed(tier, ClassNonZeroExit, reason)
	}

	return succeeded(strings.TrimSpace(res.Stdout))
}

// stderrExcerpt returns the trimmed tail of stderr.
func stderrExcerpt(stderr string) string {
	s := strings.TrimSpace(stderr)
	if len(s) <= stderrExcerptBytes {
		return s
	}
	s = s[len(s)-stderrExcerptBytes:]
	// Drop a rune split by the cut.
	for len(s) > 0 && !utf8.RuneStart(s[0]) {
		s = s[1:]
	}
	return strings.TrimSpace(s)
}

// scrub removes the artifact location from a reason.
func (s *Supervisor) scrub(reason string, art *Artifact) string {
	if art != nil && art.Path != "" {
		reason = strings.ReplaceAll(reason, art.Path, requestPlaceholder)
		reason = strings.ReplaceAll(reason, filepath.Base(art.Path), requestPlaceholder)
	}
	return reason
}
