// Package conversation provides the process-wide conversation history store.
// Records are append-only and keyed by conversation id; appends for one id
// are serialized while distinct ids proceed fully in parallel.
package conversation

import (
	"sync"
	"time"
)

// Turn is one entry of a conversation record. Turns are immutable once
// appended.
type Turn struct {
	Role       string    `json:"role"` // user or assistant
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	AgentsUsed []string  `json:"agents_used,omitempty"` // assistant turns only
}

// NewUserTurn constructs a user turn stamped now.
func NewUserTurn(content string) Turn {
	return Turn{Role: "user", Content: content, Timestamp: time.Now().UTC()}
}

// NewAssistantTurn constructs an assistant turn recording the contributing
// agents.
func NewAssistantTurn(content string, agentsUsed []string) Turn {
	return Turn{Role: "assistant", Content: content, Timestamp: time.Now().UTC(), AgentsUsed: agentsUsed}
}

// Record is the ordered history for one conversation id.
type Record struct {
	ID    string `json:"id"`
	Turns []Turn `json:"messages"`
}

// Store persists conversation records. Implementations must guarantee the
// single-writer-per-key invariant: no two appends for the same conversation
// id may interleave.
type Store interface {
	Append(conversationID string, turn Turn) error
	Get(conversationID string) (Record, bool)
	History(conversationID string) []Turn
}

// InMemoryStore is a volatile Store implementation keeping records in a
// process local map. It is safe for concurrent access; appends are
// serialized per conversation id by a per-record mutex while different ids
// never contend. Returned records are defensive copies.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]*record
}

type record struct {
	mu    sync.Mutex
	turns []Turn
}

// NewInMemoryStore constructs an empty in-memory conversation store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]*record)}
}

// Append adds a turn to a conversation, creating the record on first append.
func (s *InMemoryStore) Append(conversationID string, turn Turn) error {
	rec := s.getOrCreate(conversationID)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.turns = append(rec.turns, turn)
	return nil
}

// Get returns a copy of the record for a conversation id. The boolean
// reports whether the conversation exists.
func (s *InMemoryStore) Get(conversationID string) (Record, bool) {
	s.mu.RLock()
	rec, ok := s.records[conversationID]
	s.mu.RUnlock()
	if !ok {
		return Record{ID: conversationID}, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	turns := make([]Turn, len(rec.turns))
	copy(turns, rec.turns)
	return Record{ID: conversationID, Turns: turns}, true
}

// History returns a copy of the turns for a conversation id (nil if absent).
func (s *InMemoryStore) History(conversationID string) []Turn {
	rec, ok := s.Get(conversationID)
	if !ok {
		return nil
	}
	return rec.Turns
}

func (s *InMemoryStore) getOrCreate(conversationID string) *record {
	s.mu.RLock()
	rec, ok := s.records[conversationID]
	s.mu.RUnlock()
	if ok {
		return rec
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok = s.records[conversationID]; ok {
		return rec
	}
	rec = &record{}
	s.records[conversationID] = rec
	return rec
}
