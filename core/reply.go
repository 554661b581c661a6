package core

import "time"

// TraceEntry records one agent invocation made while composing a reply.
// Entries appear in dispatch order and include failures.
type TraceEntry struct {
	AgentID   string    `json:"agent_id"`
	Query     string    `json:"query"`
	Response  string    `json:"response,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Reply is the composed answer returned to callers: the final
// natural-language content plus bookkeeping about how it was produced.
// AgentsUsed lists each invoked agent id exactly once, ordered by first
// invocation. ExecutionTrace is populated only for verbose sessions.
type Reply struct {
	MessageID      string       `json:"messageId"`
	ConversationID string       `json:"conversationId"`
	SenderID       string       `json:"senderId"`
	RecipientID    string       `json:"recipientId"`
	Content        string       `json:"content"`
	Timestamp      string       `json:"timestamp"`
	Type           MessageType  `json:"type"`
	AgentsUsed     []string     `json:"agents_used"`
	ExecutionTrace []TraceEntry `json:"execution_trace,omitempty"`
}

// NewReply constructs a runtime-authored reply addressed to the user.
func NewReply(conversationID, recipientID, content string) *Reply {
	return &Reply{
		MessageID:      NewID(),
		ConversationID: conversationID,
		SenderID:       "runtime",
		RecipientID:    recipientID,
		Content:        content,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		Type:           MessageTypeText,
		AgentsUsed:     []string{},
	}
}
