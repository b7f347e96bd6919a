package foundry

import "fmt"

// State is a supervisor state.
type State int

const (
	Idle State = iota
	Preparing
	PrimaryRunning
	PrimaryFailed
	FallbackRunning
	Succeeded
	FatallyFailed
)

var stateNames = [...]string{
	Idle:            "idle",
	Preparing:       "preparing",
	PrimaryRunning:  "primary_running",
	PrimaryFailed:   "primary_failed",
	FallbackRunning: "fallback_running",
	Succeeded:       "succeeded",
	FatallyFailed:   "fatally_failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// IsTerminal reports whether the state ends a run.
func IsTerminal(s State) bool {
	return s == Succeeded || s == FatallyFailed
}

// StateChange is delivered to an Observer on every transition.
type StateChange struct {
	InvocationID string
	From         State
	To           State
}

// Observer receives state changes. It runs synchronously on the Run goroutine.
type Observer func(StateChange)

// Transition validates and applies from -> to on cur.
//
// The caller supplies the expected prior state (from) to make misuse
// observable. cur is changed if and only if the transition is valid.
func Transition(cur *State, from, to State) error {
	if *cur != from {
		return fmt.Errorf("invalid transition: expected %s, got %s", from, *cur)
	}
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("disallowed transition: %s -> %s", from, to)
	}
	*cur = to
	return nil
}

func isAllowedTransition(from, to State) bool {
	switch from {
	case Idle:
		return to == Preparing
	case Preparing:
		// Artifact write failures and cancellation end the run here.
		return to == PrimaryRunning || to == FatallyFailed
	case PrimaryRunning:
		return to == Succeeded || to == PrimaryFailed
	case PrimaryFailed:
		return to == FallbackRunning || to == FatallyFailed
	case FallbackRunning:
		return to == Succeeded || to == FatallyFailed
	case Succeeded:
		// A reply is discarded when the artifact cannot be released.
		return to == FatallyFailed
	default:
		return false
	}
}
