// Package types provides shared type definitions used across foundrygate packages.
// This package exists to break import cycles between perception and foundry.
// Types in this package should be foundational data structures with no complex dependencies.
package types

// Well-known conversation roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationTurn is one role/content pair of a conversation.
// Turns are values; once built they are never mutated.
type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CanonicalRequest is the normalized, order-preserving form of a conversation
// together with the model it targets.
type CanonicalRequest struct {
	Model string
	Turns []ConversationTurn
}

// Len returns the number of turns.
func (r CanonicalRequest) Len() int {
	return len(r.Turns)
}

// Clone returns a copy whose turn slice does not alias the receiver's.
func (r CanonicalRequest) Clone() CanonicalRequest {
	turns := make([]ConversationTurn, len(r.Turns))
	copy(turns, r.Turns)
	return CanonicalRequest{Model: r.Model, Turns: turns}
}
