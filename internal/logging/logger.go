// Package logging provides config-driven categorized logging for foundrygate.
// Every category is a named child of one zap logger. Logging is controlled by
// debug_mode in the gateway config - when false, every logger is a no-op.
package logging

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot       Category = "boot"       // Boot/initialization
	CategoryGateway    Category = "gateway"    // Invocation supervisor, state transitions
	CategoryTactile    Category = "tactile"    // Subprocess execution
	CategoryPerception Category = "perception" // History normalization, provider dispatch
	CategoryFallback   Category = "fallback"   // CPU-only fallback wrapper
)

// Options mirrors config.LoggingConfig to avoid an import cycle.
type Options struct {
	DebugMode  bool
	Level      string          // debug, info, warn, error
	Format     string          // json, console
	File       string          // empty means stderr
	Categories map[string]bool // nil enables every category
}

// Logger is a category-scoped printf-style logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu      sync.RWMutex
	base    = zap.NewNop()
	opts    Options
	loggers = make(map[Category]*Logger)
)

// Initialize builds the process-wide zap logger from opts.
// With DebugMode false the call is a silent no-op and all loggers stay disabled.
func Initialize(o Options) error {
	if !o.DebugMode {
		SetLogger(zap.NewNop(), o)
		return nil
	}

	level, err := parseLevel(o.Level)
	if err != nil {
		return err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Sampling = nil
	cfg.DisableStacktrace = true
	if strings.EqualFold(o.Format, "console") || strings.EqualFold(o.Format, "text") {
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if o.File != "" {
		cfg.OutputPaths = []string{o.File}
	} else {
		cfg.OutputPaths = []string{"stderr"}
	}

	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	SetLogger(l, o)

	Boot("=== foundrygate logging initialized ===")
	BootDebug("level=%s format=%s file=%q", level, cfg.Encoding, o.File)
	return nil
}

// SetLogger installs l as the base logger. Tests use this with zap.NewNop or
// an observer core.
func SetLogger(l *zap.Logger, o Options) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	defer mu.Unlock()
	base = l
	opts = o
	loggers = make(map[Category]*Logger)
}

// Sync flushes buffered entries. Call at shutdown.
func Sync() {
	mu.RLock()
	l := base
	mu.RUnlock()
	_ = l.Sync()
}

func parseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warning":
		return zapcore.WarnLevel, nil
	}
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return lvl, nil
}

// IsDebugMode returns whether logging is enabled at all.
func IsDebugMode() bool {
	mu.RLock()
	defer mu.RUnlock()
	return opts.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return categoryEnabledLocked(category)
}

func categoryEnabledLocked(category Category) bool {
	if !opts.DebugMode {
		return false
	}
	if opts.Categories == nil {
		return true
	}
	enabled, exists := opts.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode is disabled or category is disabled.
func Get(category Category) *Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	var z *zap.Logger
	if categoryEnabledLocked(category) {
		z = base.Named(string(category))
	} else {
		z = zap.NewNop()
	}
	l := &Logger{category: category, sugar: z.Sugar()}
	loggers[category] = l
	return l
}

// With returns a child logger carrying structured key/value context.
func (l *Logger) With(keysAndValues ...any) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// WithRequestID creates a request-scoped logger for correlating one invocation.
func WithRequestID(category Category, requestID string) *Logger {
	return Get(category).With("req", requestID)
}

func (l *Logger) Debug(format string, args ...any) { l.sugar.Debugf(format, args...) }
func (l *Logger) Info(format string, args ...any)  { l.sugar.Infof(format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.sugar.Warnf(format, args...) }
func (l *Logger) Error(format string, args ...any) { l.sugar.Errorf(format, args...) }

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// These are no-ops if the category is disabled
// =============================================================================

func Boot(format string, args ...any)      { Get(CategoryBoot).Info(format, args...) }
func BootDebug(format string, args ...any) { Get(CategoryBoot).Debug(format, args...) }
func BootWarn(format string, args ...any)  { Get(CategoryBoot).Warn(format, args...) }

func Gateway(format string, args ...any)      { Get(CategoryGateway).Info(format, args...) }
func GatewayDebug(format string, args ...any) { Get(CategoryGateway).Debug(format, args...) }
func GatewayWarn(format string, args ...any)  { Get(CategoryGateway).Warn(format, args...) }
func GatewayError(format string, args ...any) { Get(CategoryGateway).Error(format, args...) }

func Tactile(format string, args ...any)      { Get(CategoryTactile).Info(format, args...) }
func TactileDebug(format string, args ...any) { Get(CategoryTactile).Debug(format, args...) }
func TactileWarn(format string, args ...any)  { Get(CategoryTactile).Warn(format, args...) }
func TactileError(format string, args ...any) { Get(CategoryTactile).Error(format, args...) }

func Perception(format string, args ...any)      { Get(CategoryPerception).Info(format, args...) }
func PerceptionDebug(format string, args ...any) { Get(CategoryPerception).Debug(format, args...) }
func PerceptionWarn(format string, args ...any)  { Get(CategoryPerception).Warn(format, args...) }

func Fallback(format string, args ...any)      { Get(CategoryFallback).Info(format, args...) }
func FallbackDebug(format string, args ...any) { Get(CategoryFallback).Debug(format, args...) }
func FallbackError(format string, args ...any) { Get(CategoryFallback).Error(format, args...) }

// =============================================================================
// TIMING HELPERS
// =============================================================================

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
