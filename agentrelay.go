// Package agentrelay provides a high-level façade over the orchestration
// engine and the group-chat coordinator. Most applications interact with this
// package by:
//  1. Creating a Runtime via New() with a catalog and a decision model
//  2. Processing queries synchronously (ProcessQuery) or as an event stream
//     (StreamQuery), or broadcasting to explicit participants (ProcessGroupChat)
//
// The façade delegates orchestration to engine.Engine and groupchat.Coordinator
// while keeping setup ergonomics concise. All defaults are safe for local
// development; production deployments typically supply a structured logger and
// a Prometheus recorder.
package agentrelay

import (
	"context"

	"github.com/rundex/agentrelay/agent"
	"github.com/rundex/agentrelay/catalog"
	"github.com/rundex/agentrelay/conversation"
	"github.com/rundex/agentrelay/core"
	"github.com/rundex/agentrelay/engine"
	"github.com/rundex/agentrelay/groupchat"
	"github.com/rundex/agentrelay/logging"
	"github.com/rundex/agentrelay/metrics"
	"github.com/rundex/agentrelay/model"
)

// Options configures the Runtime instance.
type Options struct {
	// EngineConfig tunes decision rounds, concurrency and event buffering.
	EngineConfig engine.Config

	// Policy governs group-chat termination. Defaults to one-shot broadcast.
	Policy groupchat.TerminationPolicy

	// Invoker performs agent HTTP calls. Defaults to agent.New(). The same
	// invoker serves both orchestration modes.
	Invoker engine.Invoker

	// Store persists conversation history across both modes. Defaults to a
	// shared in-memory store.
	Store conversation.Store

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger

	// Recorder (defaults to NoOp recorder if nil)
	Recorder metrics.Recorder
}

// Runtime is the high-level façade aggregating the engine, the group-chat
// coordinator and the shared conversation store.
type Runtime struct {
	catalog     *catalog.Catalog
	engine      *engine.Engine
	coordinator *groupchat.Coordinator
	store       conversation.Store
}

// New creates a Runtime over a catalog and a decision model. Both
// orchestration modes share one conversation store and one agent invoker.
func New(cat *catalog.Catalog, m model.Model, optFns ...func(o *Options)) *Runtime {
	opts := Options{
		EngineConfig: engine.DefaultConfig,
		Policy:       groupchat.NewMaxRoundsPolicy(1),
		Store:        conversation.NewInMemoryStore(),
		Logger:       logging.NoOpLogger{},
		Recorder:     metrics.NoOpRecorder{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Invoker == nil {
		opts.Invoker = agent.New(func(o *agent.Options) {
			o.Logger = opts.Logger
			o.Recorder = opts.Recorder
		})
	}

	e := engine.New(cat, m, func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.Invoker = opts.Invoker
		o.Store = opts.Store
		o.Logger = opts.Logger
		o.Recorder = opts.Recorder
	})

	c := groupchat.New(cat, func(o *groupchat.Options) {
		o.Policy = opts.Policy
		o.Invoker = opts.Invoker
		o.Store = opts.Store
		o.Logger = opts.Logger
		o.Recorder = opts.Recorder
	})

	return &Runtime{catalog: cat, engine: e, coordinator: c, store: opts.Store}
}

// ProcessQuery runs one synchronous orchestration session and returns the
// composed reply. The execution trace is attached when verbose is set.
func (r *Runtime) ProcessQuery(ctx context.Context, query, conversationID string, verbose bool) (*core.Reply, error) {
	return r.engine.ProcessQuery(ctx, query, conversationID, verbose)
}

// StreamQuery starts a streaming session and returns its event channel plus
// the conversation id (generated when empty).
func (r *Runtime) StreamQuery(ctx context.Context, query, conversationID string) (*core.EventChannel, string, error) {
	return r.engine.StreamQuery(ctx, query, conversationID)
}

// ProcessGroupChat broadcasts the query to the named agents and returns the
// composed reply.
func (r *Runtime) ProcessGroupChat(ctx context.Context, query string, agentIDs []string, conversationID string) (*core.Reply, error) {
	return r.coordinator.Run(ctx, query, agentIDs, "user", conversationID)
}

// ListAgents returns the registered agent descriptors in insertion order.
func (r *Runtime) ListAgents() []catalog.Descriptor {
	return r.catalog.List()
}

// GetConversation returns the history record for a conversation id. The
// boolean reports whether the conversation exists.
func (r *Runtime) GetConversation(conversationID string) (conversation.Record, bool) {
	return r.store.Get(conversationID)
}

// Cancel aborts the active session for a conversation id.
func (r *Runtime) Cancel(conversationID string) error {
	return r.engine.Cancel(conversationID)
}
