package core

// Event represents a single orchestration event streamed to clients during a
// session. Concrete event types implement the unexported isEvent marker
// enabling a closed set: token chunks, agent call lifecycle notifications and
// exactly one terminal event (Done or ErrorEvent) per session.
type Event interface{ isEvent() }

// TokenChunk carries one fragment of the model's final natural-language
// answer, emitted in generation order.
type TokenChunk struct {
	Text string `json:"text"`
}

func (TokenChunk) isEvent() {}

// AgentCallStarted signals that an agent invocation has been dispatched.
// Every started call is followed by exactly one AgentCallCompleted for the
// same agent, even on failure.
type AgentCallStarted struct {
	AgentID string `json:"agent_id"`
	Query   string `json:"query"`
}

func (AgentCallStarted) isEvent() {}

// AgentCallCompleted signals that an agent invocation finished. On failure
// Error is non-empty and Response holds the degraded inline error string.
type AgentCallCompleted struct {
	AgentID  string `json:"agent_id"`
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

func (AgentCallCompleted) isEvent() {}

// ErrorEvent terminates a failed or cancelled session. No event follows it.
type ErrorEvent struct {
	Message string `json:"message"`
}

func (ErrorEvent) isEvent() {}

// Done terminates a successful session with the composed answer and the
// de-duplicated list of agent ids ordered by first invocation.
type Done struct {
	FinalResponse string   `json:"final_response"`
	AgentsUsed    []string `json:"agents_used"`
}

func (Done) isEvent() {}

// Kind returns a stable discriminator name for an event, used by transports
// and logs.
func Kind(ev Event) string {
	switch ev.(type) {
	case TokenChunk:
		return "token"
	case AgentCallStarted:
		return "agent_call_started"
	case AgentCallCompleted:
		return "agent_call_completed"
	case ErrorEvent:
		return "error"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether ev ends a session stream.
func IsTerminal(ev Event) bool {
	switch ev.(type) {
	case Done, ErrorEvent:
		return true
	default:
		return false
	}
}
