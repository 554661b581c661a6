package model

import (
	"context"
	"encoding/json"
	"fmt"
)

// ToolCall represents a function call request surfaced by a model provider.
// Unified across vendors so downstream logic does not need per-provider branching.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"` // JSON object, e.g. {"query": "..."}
}

// QueryArgument extracts the "query" argument from a tool call. The tool
// parameter schema is fixed to {query: string}; when the payload is missing
// or malformed the fallback (usually the original user query) is returned.
func (tc ToolCall) QueryArgument(fallback string) string {
	if len(tc.Arguments) == 0 {
		return fallback
	}
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(tc.Arguments, &args); err != nil || args.Query == "" {
		return fallback
	}
	return args.Query
}

// ToolDefinition declaratively exposes a callable agent to the model.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"` // JSON Schema
}

// ChatMessage is one normalized turn of model input.
type ChatMessage struct {
	Role       string     `json:"role"` // system, user, assistant, tool
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // assistant turns requesting calls
	ToolCallID string     `json:"tool_call_id,omitempty"` // tool turns answering a call
	Name       string     `json:"name,omitempty"`         // tool name for tool turns
}

// Request captures the normalized model input produced by the engine.
type Request struct {
	Instructions string           `json:"instructions"` // System prompt
	Messages     []ChatMessage    `json:"messages"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
}

// LastUserMessage returns the content of the most recent user turn, or "".
func (r Request) LastUserMessage() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == "user" {
			return r.Messages[i].Content
		}
	}
	return ""
}

// Response is a (partial or final) chunk emitted by a model. A response may
// carry text, tool calls, or both; partial responses stream incrementally and
// exactly one non-partial response closes each Generate call.
type Response struct {
	Partial      bool       `json:"partial"`
	Text         string     `json:"text,omitempty"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	FinishReason string     `json:"finish_reason,omitempty"` // "stop", "tool_calls", etc.
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "keyword", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface the engine requires from a decision
// collaborator: given history and tool specs, produce the next action.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockModel is a lightweight in-memory Model useful for tests & examples.
// Canned tool calls are returned for matching user prompts; otherwise a
// canned (or echoed) text completion is produced, optionally streamed as
// per-character chunks.
type MockModel struct {
	info      Info
	responses map[string]string
	toolCalls map[string][]ToolCall
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: true,
		},
		responses: make(map[string]string),
		toolCalls: make(map[string][]ToolCall),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) { m.responses[prompt] = response }

// AddToolCalls registers tool calls to emit when the last message is the
// given user prompt. After tool results are appended the next Generate falls
// through to the canned (or echoed) text completion.
func (m *MockModel) AddToolCalls(prompt string, calls ...ToolCall) {
	m.toolCalls[prompt] = calls
}

// Generate implements Model; emits scripted tool calls or streaming char
// chunks followed by the final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)
		if len(req.Messages) == 0 {
			errCh <- fmt.Errorf("no messages provided")
			return
		}
		last := req.Messages[len(req.Messages)-1]
		if last.Role == "user" {
			if calls, ok := m.toolCalls[last.Content]; ok {
				respCh <- Response{ToolCalls: calls, FinishReason: "tool_calls"}
				return
			}
		}
		prompt := req.LastUserMessage()
		full := m.responses[prompt]
		if full == "" {
			full = fmt.Sprintf("Mock response to: %s", prompt)
		}
		if req.Stream {
			for _, r := range full {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Text: string(r)}:
				}
			}
		}
		respCh <- Response{Text: full, FinishReason: "stop"}
	}()
	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
