package foundry

import (
	"os"
	"path/filepath"
	"strings"

	"foundrygate/internal/config"
	"foundrygate/internal/logging"

	"github.com/bmatcuk/doublestar/v4"
)

// FallbackTarget is a located fallback wrapper.
type FallbackTarget struct {
	// Path is the wrapper file.
	Path string

	// Launcher prefixes Path on the command line, e.g. ["dotnet"] for
	// managed assemblies. Empty means Path is executed directly.
	Launcher []string
}

// Command returns the binary and arguments that launch the target on
// artifactPath.
func (t FallbackTarget) Command(artifactPath string) (string, []string) {
	if len(t.Launcher) == 0 {
		return t.Path, []string{artifactPath}
	}
	args := make([]string, 0, len(t.Launcher)+1)
	args = append(args, t.Launcher[1:]...)
	args = append(args, t.Path, artifactPath)
	return t.Launcher[0], args
}

// Locator finds the fallback wrapper. It is consulted only after the primary
// tier has failed.
type Locator interface {
	Locate() (FallbackTarget, bool)
}

// FallbackLocator resolves the wrapper from an explicit path or from
// doublestar patterns under a base directory.
type FallbackLocator struct {
	Path     string
	Patterns []string
	BaseDir  string
	Launcher []string
}

// NewFallbackLocator builds a locator from configuration. An empty base
// directory resolves to the directory of the running executable.
func NewFallbackLocator(cfg config.FallbackConfig) *FallbackLocator {
	base := cfg.BaseDir
	if base == "" {
		base = executableDir()
	}
	return &FallbackLocator{
		Path:     cfg.Path,
		Patterns: cfg.Search,
		BaseDir:  base,
		Launcher: cfg.Launcher,
	}
}

func executableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}

// Locate returns the first existing regular file: the explicit path, then
// each pattern in order.
func (l *FallbackLocator) Locate() (FallbackTarget, bool) {
	if l.Path != "" {
		if isRegularFile(l.Path) {
			return l.target(l.Path), true
		}
		logging.FallbackDebug("Configured fallback path does not exist: %s", l.Path)
	}

	for _, pattern := range l.Patterns {
		if path, ok := l.match(pattern); ok {
			logging.FallbackDebug("Fallback matched %q: %s", pattern, path)
			return l.target(path), true
		}
	}

	logging.FallbackDebug("No fallback found (base=%s, patterns=%d)", l.BaseDir, len(l.Patterns))
	return FallbackTarget{}, false
}

func (l *FallbackLocator) match(pattern string) (string, bool) {
	var matches []string
	if filepath.IsAbs(pattern) {
		m, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			logging.FallbackError("Bad fallback pattern %q: %v", pattern, err)
			return "", false
		}
		matches = m
	} else {
		if l.BaseDir == "" {
			return "", false
		}
		m, err := doublestar.Glob(os.DirFS(l.BaseDir), filepath.ToSlash(pattern))
		if err != nil {
			logging.FallbackError("Bad fallback pattern %q: %v", pattern, err)
			return "", false
		}
		for _, rel := range m {
			matches = append(matches, filepath.Join(l.BaseDir, filepath.FromSlash(rel)))
		}
	}

	for _, path := range matches {
		if isRegularFile(path) {
			return path, true
		}
	}
	return "", false
}

func (l *FallbackLocator) target(path string) FallbackTarget {
	t := FallbackTarget{Path: path}
	switch {
	case len(l.Launcher) > 0:
		t.Launcher = append([]string(nil), l.Launcher...)
	case strings.EqualFold(filepath.Ext(path), ".dll"):
		t.Launcher = []string{"dotnet"}
	}
	return t
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
