// Package groupchat implements the broadcast orchestration mode: the caller
// names the participants explicitly and every participant is asked the
// original query in successive rounds, governed by a termination policy.
package groupchat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rundex/agentrelay/agent"
	"github.com/rundex/agentrelay/catalog"
	"github.com/rundex/agentrelay/conversation"
	"github.com/rundex/agentrelay/core"
	"github.com/rundex/agentrelay/logging"
	"github.com/rundex/agentrelay/metrics"
)

// TerminationPolicy decides whether a group chat should stop before the next
// round. Implementations must be total: for increasing round numbers the
// policy must eventually return true.
type TerminationPolicy interface {
	ShouldStop(round int, messages []core.Message) bool
}

// MaxRoundsPolicy stops once the round counter reaches a fixed limit. The
// default limit of 1 makes group chat a one-shot broadcast-and-collect.
type MaxRoundsPolicy struct {
	MaxRounds int
}

// NewMaxRoundsPolicy constructs a MaxRoundsPolicy; limits below 1 become 1.
func NewMaxRoundsPolicy(maxRounds int) MaxRoundsPolicy {
	if maxRounds < 1 {
		maxRounds = 1
	}
	return MaxRoundsPolicy{MaxRounds: maxRounds}
}

// ShouldStop implements TerminationPolicy.
func (p MaxRoundsPolicy) ShouldStop(round int, _ []core.Message) bool {
	return round >= p.MaxRounds
}

// Invoker dispatches one agent invocation. *agent.Client is the production
// implementation.
type Invoker interface {
	Invoke(ctx context.Context, d catalog.Descriptor, query, senderID, conversationID string, publish agent.Publisher) (string, error)
}

// State is the transcript of one group chat run. It is owned exclusively by
// that run and never shared across concurrent group chats.
type State struct {
	Messages     []core.Message
	Round        int
	Participants []catalog.Descriptor
}

// Options configures a Coordinator.
type Options struct {
	// Policy decides when rounds stop. Defaults to one-shot (MaxRounds 1).
	Policy TerminationPolicy

	// Invoker performs agent HTTP calls. Defaults to agent.New().
	Invoker Invoker

	// Store persists the conversation. Defaults to an in-memory store.
	Store conversation.Store

	// Logger defaults to NoOpLogger.
	Logger logging.Logger

	// Recorder defaults to NoOpRecorder.
	Recorder metrics.Recorder
}

// Coordinator runs group chats over a catalog. It is safe for concurrent use;
// each Run owns its own State.
type Coordinator struct {
	catalog  *catalog.Catalog
	policy   TerminationPolicy
	invoker  Invoker
	store    conversation.Store
	logger   logging.Logger
	recorder metrics.Recorder
}

// New creates a Coordinator over the given catalog.
func New(cat *catalog.Catalog, optFns ...func(o *Options)) *Coordinator {
	opts := Options{
		Policy:   NewMaxRoundsPolicy(1),
		Store:    conversation.NewInMemoryStore(),
		Logger:   logging.NoOpLogger{},
		Recorder: metrics.NoOpRecorder{},
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

	return &Coordinator{
		catalog:  cat,
		policy:   opts.Policy,
		invoker:  opts.Invoker,
		store:    opts.Store,
		logger:   opts.Logger,
		recorder: opts.Recorder,
	}
}

// Store exposes the conversation store backing this coordinator.
func (c *Coordinator) Store() conversation.Store { return c.store }

// Run executes one group chat: every named participant is invoked with the
// original query in list order, round after round, until the policy stops the
// loop. An individual invocation failure is noted in the transcript and does
// not stop the run. The composed reply concatenates the per-agent responses
// in a stable order and lists each participating agent id once.
func (c *Coordinator) Run(ctx context.Context, query string, agentIDs []string, userID, conversationID string) (*core.Reply, error) {
	if query == "" {
		return nil, fmt.Errorf("query must not be empty")
	}
	if len(agentIDs) == 0 {
		return nil, fmt.Errorf("at least one agent id is required")
	}
	if userID == "" {
		userID = "user"
	}
	if conversationID == "" {
		conversationID = core.NewID()
	}

	participants := make([]catalog.Descriptor, 0, len(agentIDs))
	for _, id := range agentIDs {
		d, err := c.catalog.Get(id)
		if err != nil {
			return nil, err
		}
		participants = append(participants, d)
	}

	if err := c.store.Append(conversationID, conversation.NewUserTurn(query)); err != nil {
		return nil, fmt.Errorf("failed to append user turn: %w", err)
	}

	start := time.Now()
	state := &State{
		Messages:     []core.Message{core.NewMessage(conversationID, userID, "groupchat", query)},
		Participants: participants,
	}

	var (
		responses  []string
		agentsUsed []string
		seen       = make(map[string]bool)
	)

	for !c.policy.ShouldStop(state.Round, state.Messages) {
		state.Round++

		for _, d := range participants {
			if ctx.Err() != nil {
				c.recorder.ObserveSession("groupchat", "cancelled", state.Round, time.Since(start))
				return nil, core.ErrCancelled
			}

			content, err := c.invoker.Invoke(ctx, d, query, userID, conversationID, nil)
			if err != nil {
				var invErr *core.AgentInvocationError
				if !errors.As(err, &invErr) {
					c.recorder.ObserveSession("groupchat", "failed", state.Round, time.Since(start))
					return nil, err
				}
				content = fmt.Sprintf("Error calling agent %s: %v", d.ID, invErr.Cause)
				c.logger.Warn("group chat participant failed",
					"conversation_id", conversationID, "agent_id", d.ID, "error", invErr.Error())
			}

			state.Messages = append(state.Messages, core.NewMessage(conversationID, d.ID, userID, content))
			responses = append(responses, content)
			if !seen[d.ID] {
				seen[d.ID] = true
				agentsUsed = append(agentsUsed, d.ID)
			}
		}
	}

	composed := strings.Join(responses, " ")
	if err := c.store.Append(conversationID, conversation.NewAssistantTurn(composed, agentsUsed)); err != nil {
		return nil, fmt.Errorf("failed to append assistant turn: %w", err)
	}

	c.recorder.ObserveSession("groupchat", "done", state.Round, time.Since(start))
	c.logger.Info("group chat completed",
		"conversation_id", conversationID,
		"rounds", state.Round,
		"participants", len(participants),
	)

	reply := core.NewReply(conversationID, userID, composed)
	reply.AgentsUsed = agentsUsed
	return reply, nil
}
