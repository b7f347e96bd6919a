package foundry

// OutcomeKind tags an Outcome.
type OutcomeKind int

const (
	Success OutcomeKind = iota
	RecoverableFailure
	FatalFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case RecoverableFailure:
		return "recoverable_failure"
	case FatalFailure:
		return "fatal_failure"
	default:
		return "unknown"
	}
}

// Outcome is the result of one tier, or of a whole Run.
type Outcome struct {
	Kind OutcomeKind

	// Text is the trimmed reply on Success.
	Text string

	// Class, Tier and Reason describe a failure.
	Class  FailureClass
	Tier   Tier
	Reason string

	// InvocationID correlates the outcome with log lines.
	InvocationID string

	// Final is the state the run ended in.
	Final State

	cause error
}

func (o Outcome) Succeeded() bool { return o.Kind == Success }

// Err returns nil on Success and an *InvocationError otherwise.
func (o Outcome) Err() error {
	if o.Kind == Success {
		return nil
	}
	return &InvocationError{Class: o.Class, Tier: o.Tier, Reason: o.Reason, Err: o.cause}
}

func succeeded(text string) Outcome {
	return Outcome{Kind: Success, Text: text}
}

// failed builds a failure outcome whose kind depends on the tier: only the
// primary tier can recover.
func failed(tier Tier, class FailureClass, reason string) Outcome {
	kind := FatalFailure
	if tier == TierPrimary {
		kind = RecoverableFailure
	}
	return Outcome{Kind: kind, Tier: tier, Class: class, Reason: reason}
}

// fatal promotes o to a FatalFailure, keeping its class and reason.
func (o Outcome) fatal() Outcome {
	o.Kind = FatalFailure
	return o
}
