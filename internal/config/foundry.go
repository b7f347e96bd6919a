package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultFoundryTimeout bounds a single primary or fallback launch.
const DefaultFoundryTimeout = 300 * time.Second

// DefaultMaxVersionDigits bounds each sanitized version component.
const DefaultMaxVersionDigits = 9

// FoundryConfig configures invocation of the local runtime CLI.
type FoundryConfig struct {
	// Binary is the primary runtime executable (looked up on PATH).
	Binary string `yaml:"binary"`

	// Args is the primary argument template. {model} and {artifact} are
	// substituted per invocation.
	Args []string `yaml:"args"`

	// Timeout per launch, e.g. "300s".
	Timeout string `yaml:"timeout"`

	// TempDir holds request artifacts. Empty means os.TempDir().
	TempDir string `yaml:"temp_dir"`

	// CUDAVersion is the raw runtime version string. It is sanitized before
	// use, so malformed values are accepted here.
	CUDAVersion string `yaml:"cuda_version"`

	// MaxVersionDigits bounds each version component before falling back to 0.0.0.
	MaxVersionDigits int `yaml:"max_version_digits"`

	Fallback FallbackConfig `yaml:"fallback"`
}

// FallbackConfig locates the CPU-only fallback wrapper.
type FallbackConfig struct {
	// Path is an explicit location. Takes precedence over Search.
	Path string `yaml:"path"`

	// Search holds doublestar patterns resolved against BaseDir.
	Search []string `yaml:"search"`

	// BaseDir anchors Search. Empty means the gateway executable's directory.
	BaseDir string `yaml:"base_dir"`

	// Launcher prefixes the fallback command (e.g. ["dotnet"]). When empty,
	// .dll targets get "dotnet" automatically.
	Launcher []string `yaml:"launcher"`
}

// DefaultFoundryConfig returns the default runtime invocation settings.
func DefaultFoundryConfig() FoundryConfig {
	return FoundryConfig{
		Binary:           "foundry",
		Args:             []string{"model", "run", "{model}", "--input", "{artifact}"},
		Timeout:          "300s",
		CUDAVersion:      "",
		MaxVersionDigits: DefaultMaxVersionDigits,
		Fallback: FallbackConfig{
			Search: []string{
				"foundry-cpu",
				"foundry-cpu.exe",
				"bin/foundry-cpu*",
				"FoundryLocalForceCPU/bin/**/FoundryLocalForceCPU.dll",
			},
		},
	}
}

// GetMaxVersionDigits returns the component bound with defaults applied.
func (f FoundryConfig) GetMaxVersionDigits() int {
	if f.MaxVersionDigits <= 0 {
		return DefaultMaxVersionDigits
	}
	return f.MaxVersionDigits
}

// Validate checks the runtime invocation settings.
func (f FoundryConfig) Validate() error {
	var errs []error
	if strings.TrimSpace(f.Binary) == "" {
		errs = append(errs, errors.New("foundry.binary is required"))
	}
	hasArtifact := false
	for _, a := range f.Args {
		if strings.Contains(a, "{artifact}") {
			hasArtifact = true
			break
		}
	}
	if !hasArtifact {
		errs = append(errs, errors.New("foundry.args must reference {artifact}"))
	}
	if f.Timeout != "" {
		d, err := time.ParseDuration(f.Timeout)
		if err != nil {
			errs = append(errs, fmt.Errorf("foundry.timeout: %w", err))
		} else if d <= 0 {
			errs = append(errs, fmt.Errorf("foundry.timeout must be positive, got %s", f.Timeout))
		}
	}
	if f.MaxVersionDigits < 0 || f.MaxVersionDigits > 18 {
		errs = append(errs, fmt.Errorf("foundry.max_version_digits out of range: %d", f.MaxVersionDigits))
	}
	return errors.Join(errs...)
}
