package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rundex/agentrelay/agent"
	"github.com/rundex/agentrelay/catalog"
	"github.com/rundex/agentrelay/conversation"
	"github.com/rundex/agentrelay/core"
	"github.com/rundex/agentrelay/logging"
	"github.com/rundex/agentrelay/metrics"
	"github.com/rundex/agentrelay/model"
)

// DefaultInstructions is the system prompt handed to the decision model.
const DefaultInstructions = `You are an orchestrator for multiple specialized agents. Your job is to:
1. Understand user queries and decide which agent functions should handle them
2. Provide a complete, coherent response that incorporates information from the agents
3. Only call agent functions when necessary to answer the query

The available agent functions each have specific capabilities. Call only the functions needed
to fully address all aspects of the user's query.`

// Config defines tuning parameters for session execution.
type Config struct {
	// MaxDecisionRounds bounds the Deciding/Invoking loop. When exhausted the
	// session transitions to Responding with whatever content accumulated.
	MaxDecisionRounds int

	// MaxConcurrentInvocations limits how many agent calls of one decision
	// round run simultaneously. 0 means one goroutine per call.
	MaxConcurrentInvocations int

	// EventBufferSize sets the EventChannel buffer for streaming sessions.
	EventBufferSize int

	// PublishTimeout bounds how long a producer may block on a full event
	// buffer before the session fails with ErrChannelOverflow.
	PublishTimeout time.Duration

	// Instructions is the system prompt. Defaults to DefaultInstructions.
	Instructions string

	// MaxFallbackAgents caps how many agents the keyword fallback may select
	// per round. 0 means no cap.
	MaxFallbackAgents int
}

// DefaultConfig provides defaults suitable for a handful of demo agents.
var DefaultConfig = Config{
	MaxDecisionRounds:        5,
	MaxConcurrentInvocations: 10,
	EventBufferSize:          64,
	PublishTimeout:           core.DefaultPublishTimeout,
	Instructions:             DefaultInstructions,
	MaxFallbackAgents:        0,
}

// Invoker dispatches one external agent invocation. *agent.Client is the
// production implementation.
type Invoker interface {
	Invoke(ctx context.Context, d catalog.Descriptor, query, senderID, conversationID string, publish agent.Publisher) (string, error)
}

// Options configures an Engine instance.
type Options struct {
	// Config contains operational parameters. Defaults to DefaultConfig.
	Config Config

	// Invoker performs agent HTTP calls. Defaults to agent.New().
	Invoker Invoker

	// Store persists conversation history. Defaults to an in-memory store.
	Store conversation.Store

	// Fallback is the degraded-mode decision model used when the primary
	// model fails. Defaults to a KeywordModel built from the catalog's
	// capability keywords.
	Fallback model.Model

	// Logger defaults to NoOpLogger.
	Logger logging.Logger

	// Recorder defaults to NoOpRecorder.
	Recorder metrics.Recorder
}

// Engine orchestrates decision rounds and agent dispatch for one catalog and
// one decision model. It is safe for concurrent sessions.
type Engine struct {
	catalog  *catalog.Catalog
	model    model.Model
	fallback model.Model
	invoker  Invoker
	store    conversation.Store
	config   Config
	logger   logging.Logger
	recorder metrics.Recorder

	// Active session cancellation functions keyed by conversation id, then by
	// a per-session id. Concurrent sessions may share a conversation id.
	activeSessions map[string]map[string]context.CancelFunc
	sessionsMu     sync.Mutex
}

// New creates an Engine over the given catalog and decision model.
func New(cat *catalog.Catalog, m model.Model, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config:   DefaultConfig,
		Store:    conversation.NewInMemoryStore(),
		Logger:   logging.NoOpLogger{},
		Recorder: metrics.NoOpRecorder{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Config.MaxDecisionRounds <= 0 {
		opts.Config.MaxDecisionRounds = DefaultConfig.MaxDecisionRounds
	}
	if opts.Config.Instructions == "" {
		opts.Config.Instructions = DefaultInstructions
	}
	if opts.Invoker == nil {
		opts.Invoker = agent.New(func(o *agent.Options) {
			o.Logger = opts.Logger
			o.Recorder = opts.Recorder
		})
	}
	if opts.Fallback == nil {
		opts.Fallback = model.NewKeywordModel(cat.Routes(), opts.Config.MaxFallbackAgents)
	}

	return &Engine{
		catalog:        cat,
		model:          m,
		fallback:       opts.Fallback,
		invoker:        opts.Invoker,
		store:          opts.Store,
		config:         opts.Config,
		logger:         opts.Logger,
		recorder:       opts.Recorder,
		activeSessions: make(map[string]map[string]context.CancelFunc),
	}
}

// Store exposes the conversation store backing this engine.
func (e *Engine) Store() conversation.Store { return e.store }

// Catalog exposes the agent catalog backing this engine.
func (e *Engine) Catalog() *catalog.Catalog { return e.catalog }

// ProcessQuery runs one synchronous orchestration session and returns the
// composed reply. Agent call events are recorded in the execution trace but
// not streamed; the trace is attached only when verbose is set, agents_used
// always. An empty conversationID starts a fresh conversation.
func (e *Engine) ProcessQuery(ctx context.Context, query, conversationID string, verbose bool) (*core.Reply, error) {
	if query == "" {
		return nil, fmt.Errorf("query must not be empty")
	}
	if conversationID == "" {
		conversationID = core.NewID()
	}

	start := time.Now()
	res, err := e.run(ctx, query, conversationID, false, nil)
	e.recorder.ObserveSession("query", outcomeLabel(err), res.rounds, time.Since(start))
	if err != nil {
		return nil, err
	}

	reply := core.NewReply(conversationID, "user", res.final)
	reply.AgentsUsed = res.agentsUsed
	if verbose {
		reply.ExecutionTrace = res.trace
	}
	return reply, nil
}

// StreamQuery starts a streaming orchestration session and returns its event
// channel plus the (possibly generated) conversation id. The returned channel
// delivers token chunks and agent call events in arrival order and is closed
// after exactly one terminal Done or Error event.
func (e *Engine) StreamQuery(ctx context.Context, query, conversationID string) (*core.EventChannel, string, error) {
	if query == "" {
		return nil, "", fmt.Errorf("query must not be empty")
	}
	if conversationID == "" {
		conversationID = core.NewID()
	}

	ch := core.NewEventChannel(e.config.EventBufferSize, e.config.PublishTimeout)
	publish := func(ev core.Event) error {
		e.recorder.ObserveEvent(core.Kind(ev))
		return ch.Publish(ev)
	}

	go func() {
		start := time.Now()
		res, err := e.run(ctx, query, conversationID, true, publish)
		e.recorder.ObserveSession("stream", outcomeLabel(err), res.rounds, time.Since(start))

		switch {
		case err == nil:
			e.recorder.ObserveEvent(core.Kind(core.Done{}))
			_ = ch.CloseWith(core.Done{FinalResponse: res.final, AgentsUsed: res.agentsUsed})
		case errors.Is(err, core.ErrCancelled):
			e.recorder.ObserveEvent(core.Kind(core.ErrorEvent{}))
			_ = ch.CloseWith(core.ErrorEvent{Message: "cancelled"})
		default:
			e.logger.Error("session failed", "conversation_id", conversationID, "error", err.Error())
			e.recorder.ObserveEvent(core.Kind(core.ErrorEvent{}))
			_ = ch.CloseWith(core.ErrorEvent{Message: err.Error()})
		}
	}()

	return ch, conversationID, nil
}

// Cancel aborts all active sessions for a conversation id. In-flight agent
// calls are interrupted and each session terminates with Error{"cancelled"}.
func (e *Engine) Cancel(conversationID string) error {
	e.sessionsMu.Lock()
	sessions := e.activeSessions[conversationID]
	cancels := make([]context.CancelFunc, 0, len(sessions))
	for _, cancel := range sessions {
		cancels = append(cancels, cancel)
	}
	e.sessionsMu.Unlock()

	if len(cancels) == 0 {
		return fmt.Errorf("no active session for conversation %s", conversationID)
	}
	for _, cancel := range cancels {
		cancel()
	}
	return nil
}

// registerSession tracks a session under a fresh session id so concurrent
// sessions on the same conversation never displace each other's cancel func.
func (e *Engine) registerSession(ctx context.Context, conversationID string) (context.Context, func()) {
	sessionCtx, cancel := context.WithCancel(ctx)
	sessionID := core.NewID()

	e.sessionsMu.Lock()
	sessions := e.activeSessions[conversationID]
	if sessions == nil {
		sessions = make(map[string]context.CancelFunc)
		e.activeSessions[conversationID] = sessions
	}
	sessions[sessionID] = cancel
	e.sessionsMu.Unlock()

	return sessionCtx, func() {
		e.sessionsMu.Lock()
		if sessions := e.activeSessions[conversationID]; sessions != nil {
			delete(sessions, sessionID)
			if len(sessions) == 0 {
				delete(e.activeSessions, conversationID)
			}
		}
		e.sessionsMu.Unlock()
		cancel()
	}
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "done"
	case errors.Is(err, core.ErrCancelled):
		return "cancelled"
	default:
		return "failed"
	}
}
