package core

import (
	"errors"
	"fmt"
)

var (
	// ErrChannelOverflow indicates the event consumer fell too far behind and
	// a producer could not publish within its timeout. The session fails fast.
	ErrChannelOverflow = errors.New("event channel overflow")

	// ErrChannelClosed indicates a publish after the terminal event.
	ErrChannelClosed = errors.New("event channel closed")

	// ErrCancelled indicates explicit caller cancellation of a session.
	ErrCancelled = errors.New("cancelled")
)

// DuplicateAgentIDError reports a catalog registration with an id that is
// already present.
type DuplicateAgentIDError struct {
	ID string
}

func (e *DuplicateAgentIDError) Error() string {
	return fmt.Sprintf("agent %s already registered", e.ID)
}

// UnknownAgentError reports a lookup for an agent id that is not registered.
// It fails the specific tool call only, never the session.
type UnknownAgentError struct {
	ID string
}

func (e *UnknownAgentError) Error() string {
	return fmt.Sprintf("agent %s not registered", e.ID)
}

// AgentInvocationError reports a failed HTTP invocation of a single agent
// (network failure, timeout, non-2xx status or malformed body). It degrades
// that agent's contribution to an inline error string and never aborts the
// session or sibling calls.
type AgentInvocationError struct {
	AgentID string
	Cause   error
}

func (e *AgentInvocationError) Error() string {
	return fmt.Sprintf("agent %s invocation failed: %v", e.AgentID, e.Cause)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *AgentInvocationError) Unwrap() error { return e.Cause }

// DecisionError reports that the decision model failed or returned an
// unparseable result. The engine falls back to keyword routing before
// surfacing it as a session failure.
type DecisionError struct {
	Cause error
}

func (e *DecisionError) Error() string {
	return fmt.Sprintf("decision model failed: %v", e.Cause)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *DecisionError) Unwrap() error { return e.Cause }
