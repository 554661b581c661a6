package model

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Route binds an agent's tool name to the keywords that select it during
// degraded-mode routing.
type Route struct {
	ToolName string
	Keywords []string
}

// KeywordModel is the deterministic fallback decision strategy used when the
// LLM provider is unreachable or returns unparseable results. It selects
// agents whose keywords appear in the user query (every agent when nothing
// matches), requests one tool call per selected agent, and once tool results
// arrive composes the final answer by joining them in call order.
type KeywordModel struct {
	routes    []Route
	maxAgents int
}

// NewKeywordModel constructs a keyword router over the given routes. Routes
// are evaluated in order, which fixes both selection order and the order of
// the composed answer. maxAgents caps the selection; 0 means no cap.
func NewKeywordModel(routes []Route, maxAgents int) *KeywordModel {
	return &KeywordModel{routes: routes, maxAgents: maxAgents}
}

// Generate implements Model deterministically: identical inputs always yield
// identical outputs.
func (m *KeywordModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)
		if len(req.Messages) == 0 {
			errCh <- fmt.Errorf("no messages provided")
			return
		}

		last := req.Messages[len(req.Messages)-1]
		if last.Role == "tool" {
			respCh <- Response{Text: m.composeFromResults(req.Messages), FinishReason: "stop"}
			return
		}

		query := req.LastUserMessage()
		selected := m.selectRoutes(query)
		calls := make([]ToolCall, 0, len(selected))
		for i, route := range selected {
			args, _ := json.Marshal(map[string]string{"query": query})
			calls = append(calls, ToolCall{
				ID:        fmt.Sprintf("kw-%d", i),
				Name:      route.ToolName,
				Arguments: args,
			})
		}
		respCh <- Response{ToolCalls: calls, FinishReason: "tool_calls"}
	}()

	return respCh, errCh
}

// selectRoutes picks routes whose keywords occur in the query. When nothing
// matches every route is selected, capped by maxAgents.
func (m *KeywordModel) selectRoutes(query string) []Route {
	lowered := strings.ToLower(query)
	var selected []Route
	for _, route := range m.routes {
		for _, kw := range route.Keywords {
			if strings.Contains(lowered, strings.ToLower(kw)) {
				selected = append(selected, route)
				break
			}
		}
	}
	if len(selected) == 0 {
		selected = append(selected, m.routes...)
	}
	if m.maxAgents > 0 && len(selected) > m.maxAgents {
		selected = selected[:m.maxAgents]
	}
	return selected
}

// composeFromResults joins the trailing run of tool results into one answer.
func (m *KeywordModel) composeFromResults(messages []ChatMessage) string {
	var parts []string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != "tool" {
			break
		}
		if messages[i].Content != "" {
			parts = append([]string{messages[i].Content}, parts...)
		}
	}
	return strings.Join(parts, " ")
}

// Info implements Model interface.
func (m *KeywordModel) Info() Info {
	return Info{Name: "keyword-router", Provider: "keyword", SupportsTools: true}
}
