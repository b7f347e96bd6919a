package foundry

import (
	"errors"
	"fmt"
)

// FailureClass is the caller-visible failure taxonomy. Raw exit codes never
// cross this boundary.
type FailureClass string

const (
	ClassBinaryNotFound FailureClass = "binary_not_found"
	ClassTimeout        FailureClass = "timeout"
	ClassNonZeroExit    FailureClass = "non_zero_exit"
	ClassArtifactIO     FailureClass = "artifact_io"
)

// Sentinels for errors.Is against an *InvocationError.
var (
	ErrBinaryNotFound = errors.New("Foundry Local CLI not found")
	ErrTimeout        = errors.New("Foundry Local timed out")
	ErrNonZeroExit    = errors.New("Foundry Local provider failed")
	ErrArtifactIO     = errors.New("request artifact I/O failed")
)

func (c FailureClass) sentinel() error {
	switch c {
	case ClassBinaryNotFound:
		return ErrBinaryNotFound
	case ClassTimeout:
		return ErrTimeout
	case ClassNonZeroExit:
		return ErrNonZeroExit
	case ClassArtifactIO:
		return ErrArtifactIO
	default:
		return nil
	}
}

// Tier identifies where a failure happened.
type Tier string

const (
	TierPrepare  Tier = "prepare"
	TierPrimary  Tier = "primary"
	TierFallback Tier = "fallback"
	TierCleanup  Tier = "cleanup"
)

// InvocationError is the single error type a failed Run returns.
type InvocationError struct {
	Class  FailureClass
	Tier   Tier
	Reason string

	// Err is an underlying cause, such as context.Canceled, when there is one.
	Err error
}

func (e *InvocationError) Error() string {
	label := string(e.Class)
	if s := e.Class.sentinel(); s != nil {
		label = s.Error()
	}
	msg := fmt.Sprintf("%s (%s)", label, e.Tier)
	if e.Reason == "" {
		return msg
	}
	return msg + ": " + e.Reason
}

// Is matches the sentinel for e.Class.
func (e *InvocationError) Is(target error) bool {
	s := e.Class.sentinel()
	return s != nil && target == s
}

func (e *InvocationError) Unwrap() error { return e.Err }
