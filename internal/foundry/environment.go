package foundry

import (
	"maps"
	"slices"
	"strings"
)

// CPU-forcing overlay keys understood by the runtime.
const (
	EnvExecutionProvider = "FOUNDRY_EXECUTION_PROVIDER"
	EnvVisibleDevices    = "CUDA_VISIBLE_DEVICES"
	EnvSkipCUDACheck     = "FOUNDRY_SKIP_CUDA_CHECK"
	EnvVersionOverride   = "FOUNDRY_CUDA_VERSION_OVERRIDE"
	EnvCUDAVersion       = "CUDA_VERSION"
)

// Launch parameters handed to the fallback wrapper, which only sees the
// artifact and its environment. EnvTimeout keeps the wrapper's deadline no
// longer than the supervisor's.
const (
	EnvModel   = "FOUNDRY_MODEL"
	EnvBinary  = "FOUNDRY_BINARY"
	EnvTimeout = "FOUNDRY_TIMEOUT"
)

// CPUExecutionProvider is the only execution provider the gateway selects.
const CPUExecutionProvider = "CPUExecutionProvider"

// CPUOverlay returns the fixed overlay for version v.
func CPUOverlay(v SanitizedVersion) map[string]string {
	return map[string]string{
		EnvExecutionProvider: CPUExecutionProvider,
		EnvVisibleDevices:    "-1",
		EnvSkipCUDACheck:     "1",
		EnvVersionOverride:   v.String(),
		EnvCUDAVersion:       v.String(),
	}
}

// ProcessEnvironment is an immutable child-process environment. The zero
// value is empty.
type ProcessEnvironment struct {
	vars    map[string]string
	overlay map[string]string
}

// NegotiateEnvironment overlays the CPU-forcing keys for v onto ambient,
// which is in os.Environ form. Overlay values always win. Entries without
// a key are dropped. Nothing is read from or written to the process
// environment.
func NegotiateEnvironment(ambient []string, v SanitizedVersion) ProcessEnvironment {
	vars := parseEnviron(ambient)
	overlay := CPUOverlay(v)
	maps.Copy(vars, overlay)
	return ProcessEnvironment{vars: vars, overlay: overlay}
}

func parseEnviron(environ []string) map[string]string {
	vars := make(map[string]string, len(environ)+8)
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		vars[k] = v
	}
	return vars
}

// With returns a copy of e with extra set on top. Extra keys do not become
// part of the overlay.
func (e ProcessEnvironment) With(extra map[string]string) ProcessEnvironment {
	vars := maps.Clone(e.vars)
	if vars == nil {
		vars = make(map[string]string, len(extra))
	}
	maps.Copy(vars, extra)
	return ProcessEnvironment{vars: vars, overlay: e.overlay}
}

// Get returns the value of key, or "".
func (e ProcessEnvironment) Get(key string) string {
	return e.vars[key]
}

// Lookup returns the value of key and whether it is set.
func (e ProcessEnvironment) Lookup(key string) (string, bool) {
	v, ok := e.vars[key]
	return v, ok
}

// Len returns the number of variables.
func (e ProcessEnvironment) Len() int {
	return len(e.vars)
}

// Environ returns the variables as sorted KEY=VALUE pairs. The result is
// never nil so executors use it verbatim.
func (e ProcessEnvironment) Environ() []string {
	keys := slices.Sorted(maps.Keys(e.vars))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+e.vars[k])
	}
	return out
}

// Overlay returns a copy of the CPU-forcing overlay.
func (e ProcessEnvironment) Overlay() map[string]string {
	return maps.Clone(e.overlay)
}
