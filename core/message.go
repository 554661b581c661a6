package core

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageType enumerates wire message kinds. Only Text is defined today; the
// numeric base keeps room for future kinds without breaking the wire format.
type MessageType int

// MessageTypeText is the only message kind currently spoken on the wire.
const MessageTypeText MessageType = 0

// String returns the canonical wire name of the message type.
func (t MessageType) String() string {
	switch t {
	case MessageTypeText:
		return "Text"
	default:
		return fmt.Sprintf("MessageType(%d)", int(t))
	}
}

// MarshalJSON emits the string form ("Text"). Agents that return the numeric
// enum form are tolerated on decode; see UnmarshalJSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	if t == MessageTypeText {
		return json.Marshal("Text")
	}
	return json.Marshal(int(t))
}

// UnmarshalJSON accepts both encodings deployed agents use for the type
// field: the string "Text" and the integer 0. Neither form is canonical.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "Text" {
			*t = MessageTypeText
			return nil
		}
		return fmt.Errorf("unknown message type %q", s)
	}
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*t = MessageType(n)
		return nil
	}
	return fmt.Errorf("message type must be a string or integer, got %s", string(data))
}

// Message is the fixed JSON payload exchanged with external agent services.
// Messages are immutable once created; replies swap sender and recipient.
type Message struct {
	MessageID      string      `json:"messageId"`
	ConversationID string      `json:"conversationId"`
	SenderID       string      `json:"senderId"`
	RecipientID    string      `json:"recipientId"`
	Content        string      `json:"content"`
	Timestamp      string      `json:"timestamp"` // ISO-8601 UTC
	Type           MessageType `json:"type"`
}

// NewMessage constructs a text message with a fresh id and UTC timestamp.
func NewMessage(conversationID, senderID, recipientID, content string) Message {
	return Message{
		MessageID:      NewID(),
		ConversationID: conversationID,
		SenderID:       senderID,
		RecipientID:    recipientID,
		Content:        content,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		Type:           MessageTypeText,
	}
}

// NewID generates a new unique identifier for messages, events and sessions.
func NewID() string { return uuid.NewString() }
