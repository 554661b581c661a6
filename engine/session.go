package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rundex/agentrelay/conversation"
	"github.com/rundex/agentrelay/core"
	"github.com/rundex/agentrelay/model"
)

// sessionResult accumulates the bookkeeping of one orchestration session.
type sessionResult struct {
	final      string
	agentsUsed []string
	seen       map[string]bool
	trace      []core.TraceEntry
	rounds     int
}

func (r *sessionResult) markUsed(agentID string) {
	if agentID == "" || r.seen[agentID] {
		return
	}
	r.seen[agentID] = true
	r.agentsUsed = append(r.agentsUsed, agentID)
}

// callResult is the outcome of one dispatched tool call within a round.
type callResult struct {
	agentID string // empty when the call never reached an agent
	content string
	trace   core.TraceEntry
	pubErr  error // non-nil publish failure aborts the session
}

// run drives one session through the decision loop. It always returns a
// non-nil result so callers can record rounds even on failure. publish may be
// nil for synchronous sessions.
func (e *Engine) run(ctx context.Context, query, conversationID string, stream bool, publish func(core.Event) error) (*sessionResult, error) {
	if publish == nil {
		publish = func(core.Event) error { return nil }
	}

	res := &sessionResult{
		agentsUsed: []string{},
		seen:       make(map[string]bool),
	}

	sessionCtx, done := e.registerSession(ctx, conversationID)
	defer done()

	// Idle: the query becomes a user turn before any decision is made.
	if err := e.store.Append(conversationID, conversation.NewUserTurn(query)); err != nil {
		return res, fmt.Errorf("failed to append user turn: %w", err)
	}

	req := model.Request{
		Instructions: e.config.Instructions,
		Messages:     historyMessages(e.store.History(conversationID)),
		Tools:        e.catalog.ToolSpecs(),
		Stream:       stream,
	}

	m := e.model
	usedFallback := false
	streamedFinal := false

	for res.rounds < e.config.MaxDecisionRounds {
		if sessionCtx.Err() != nil {
			return res, core.ErrCancelled
		}
		res.rounds++

		// Deciding
		text, calls, streamed, err := e.decide(sessionCtx, m, req, publish)
		if err != nil {
			if isPublishFailure(err) {
				return res, err
			}
			if sessionCtx.Err() != nil || errors.Is(err, context.Canceled) {
				return res, core.ErrCancelled
			}
			if !usedFallback {
				usedFallback = true
				res.rounds--
				m = e.fallback
				e.logger.Warn("decision model failed, switching to keyword fallback",
					"conversation_id", conversationID, "error", err.Error())
				continue
			}
			return res, err
		}

		if len(calls) == 0 {
			// Responding
			res.final = text
			streamedFinal = streamed
			break
		}

		// Invoking
		results, err := e.invokeRound(sessionCtx, calls, query, conversationID, publish)
		if err != nil {
			return res, err
		}
		if sessionCtx.Err() != nil {
			return res, core.ErrCancelled
		}

		req.Messages = append(req.Messages, model.ChatMessage{
			Role:      "assistant",
			Content:   text,
			ToolCalls: calls,
		})
		for i, call := range calls {
			res.markUsed(results[i].agentID)
			res.trace = append(res.trace, results[i].trace)
			req.Messages = append(req.Messages, model.ChatMessage{
				Role:       "tool",
				ToolCallID: call.ID,
				Name:       call.Name,
				Content:    results[i].content,
			})
		}
	}

	// Round budget exhausted without a plain-text decision: respond with
	// whatever the agents contributed.
	if res.final == "" {
		res.final = trailingToolResults(req.Messages)
	}

	if stream && !streamedFinal && res.final != "" {
		if err := publish(core.TokenChunk{Text: res.final}); err != nil {
			return res, err
		}
	}

	if err := e.store.Append(conversationID, conversation.NewAssistantTurn(res.final, res.agentsUsed)); err != nil {
		return res, fmt.Errorf("failed to append assistant turn: %w", err)
	}

	e.logger.Info("session completed",
		"conversation_id", conversationID,
		"rounds", res.rounds,
		"agents_used", len(res.agentsUsed),
		"fallback", usedFallback,
	)
	return res, nil
}

// decide drains one Generate call. Partial text is forwarded as TokenChunk
// events as it arrives; the accumulated text, any tool calls, and whether
// text was streamed are returned together.
func (e *Engine) decide(ctx context.Context, m model.Model, req model.Request, publish func(core.Event) error) (string, []model.ToolCall, bool, error) {
	start := time.Now()
	respCh, errCh := m.Generate(ctx, req)

	var (
		text     strings.Builder
		final    string
		calls    []model.ToolCall
		streamed bool
	)

	for resp := range respCh {
		if resp.Partial {
			if resp.Text != "" {
				streamed = true
				text.WriteString(resp.Text)
				if err := publish(core.TokenChunk{Text: resp.Text}); err != nil {
					e.recorder.ObserveModelCall(m.Info().Provider, false, time.Since(start))
					return "", nil, streamed, err
				}
			}
			continue
		}
		if resp.Text != "" {
			final = resp.Text
		}
		calls = append(calls, resp.ToolCalls...)
	}

	if err := <-errCh; err != nil {
		e.recorder.ObserveModelCall(m.Info().Provider, false, time.Since(start))
		return "", nil, streamed, &core.DecisionError{Cause: err}
	}
	e.recorder.ObserveModelCall(m.Info().Provider, true, time.Since(start))

	// The non-partial response carries the full text when present; otherwise
	// fall back to the concatenated partials.
	if final == "" {
		final = text.String()
	}
	return final, calls, streamed, nil
}

// invokeRound dispatches the tool calls of one decision round, bounded by the
// configured concurrency limit. Results come back in call order; completions
// are published in arrival order as they happen inside the agent client.
func (e *Engine) invokeRound(ctx context.Context, calls []model.ToolCall, query, conversationID string, publish func(core.Event) error) ([]callResult, error) {
	results := make([]callResult, len(calls))

	maxPar := e.config.MaxConcurrentInvocations
	if maxPar <= 0 || maxPar > len(calls) {
		maxPar = len(calls)
	}
	sem := make(chan struct{}, maxPar)

	var wg sync.WaitGroup
	for i := range calls {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, call model.ToolCall) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = e.invokeOne(ctx, call, query, conversationID, publish)
		}(i, calls[i])
	}
	wg.Wait()

	for i := range results {
		if results[i].pubErr != nil {
			return results, results[i].pubErr
		}
	}
	return results, nil
}

// invokeOne resolves and executes a single tool call. An unknown agent fails
// only that call; an invocation failure degrades to an inline error string.
func (e *Engine) invokeOne(ctx context.Context, call model.ToolCall, query, conversationID string, publish func(core.Event) error) callResult {
	q := call.QueryArgument(query)
	entry := core.TraceEntry{Query: q, Timestamp: time.Now().UTC()}

	d, err := e.catalog.ResolveToolName(call.Name)
	if err != nil {
		entry.AgentID = call.Name
		entry.Error = err.Error()
		return callResult{
			content: fmt.Sprintf("Error calling agent %s: %v", call.Name, err),
			trace:   entry,
		}
	}
	entry.AgentID = d.ID

	content, err := e.invoker.Invoke(ctx, d, q, "user", conversationID, publish)
	if err != nil {
		var invErr *core.AgentInvocationError
		if !errors.As(err, &invErr) {
			// Publish failure from inside the invocation, not an agent error.
			return callResult{agentID: d.ID, trace: entry, pubErr: err}
		}
		entry.Error = invErr.Error()
		return callResult{
			agentID: d.ID,
			content: fmt.Sprintf("Error calling agent %s: %v", d.ID, invErr.Cause),
			trace:   entry,
		}
	}

	entry.Response = content
	return callResult{agentID: d.ID, content: content, trace: entry}
}

// historyMessages converts stored conversation turns to model input.
func historyMessages(turns []conversation.Turn) []model.ChatMessage {
	msgs := make([]model.ChatMessage, 0, len(turns))
	for _, turn := range turns {
		msgs = append(msgs, model.ChatMessage{Role: turn.Role, Content: turn.Content})
	}
	return msgs
}

// trailingToolResults joins the tool results of the last round into one
// answer, used when the round budget runs out before a plain-text decision.
func trailingToolResults(messages []model.ChatMessage) string {
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

func isPublishFailure(err error) bool {
	return errors.Is(err, core.ErrChannelOverflow) || errors.Is(err, core.ErrChannelClosed)
}
