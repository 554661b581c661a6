package groupchat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rundex/agentrelay/catalog"
	"github.com/rundex/agentrelay/core"
	"github.com/rundex/agentrelay/internal/testutil"
)

func descriptor(id, url string) catalog.Descriptor {
	return catalog.Descriptor{
		ID:          id,
		Name:        id,
		Description: "test agent",
		Endpoint:    url,
	}
}

func TestOneShotBroadcastInvokesEachOnce(t *testing.T) {
	hello, helloCalls := testutil.CountingAgent(t, "hello-agent", "Hola!")
	goodbye, goodbyeCalls := testutil.CountingAgent(t, "goodbye-agent", "Au revoir!")
	cat := testutil.GreetingCatalog(t, hello.URL, goodbye.URL)

	c := New(cat)
	reply, err := c.Run(context.Background(), "greet everyone", []string{"hello-agent", "goodbye-agent"}, "user", "conv-1")
	require.NoError(t, err)

	assert.Equal(t, int64(1), helloCalls.Load())
	assert.Equal(t, int64(1), goodbyeCalls.Load())
	assert.Equal(t, "Hola! Au revoir!", reply.Content)
	assert.Equal(t, []string{"hello-agent", "goodbye-agent"}, reply.AgentsUsed)
	assert.Equal(t, "conv-1", reply.ConversationID)

	// Deterministic: same inputs, same composition.
	reply2, err := c.Run(context.Background(), "greet everyone", []string{"hello-agent", "goodbye-agent"}, "user", "conv-2")
	require.NoError(t, err)
	assert.Equal(t, reply.Content, reply2.Content)
}

func TestFailedParticipantDoesNotStopTheRun(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer broken.Close()
	goodbye := testutil.StubAgent(t, "goodbye-agent", "Au revoir!")
	cat := testutil.GreetingCatalog(t, broken.URL, goodbye.URL)

	c := New(cat)
	reply, err := c.Run(context.Background(), "greet everyone", []string{"hello-agent", "goodbye-agent"}, "user", "")
	require.NoError(t, err)

	// A's failure is noted inline, B's contribution is still present.
	assert.Contains(t, reply.Content, "Error calling agent hello-agent")
	assert.Contains(t, reply.Content, "Au revoir!")
	assert.Equal(t, []string{"hello-agent", "goodbye-agent"}, reply.AgentsUsed)
}

func TestMultiRoundPolicy(t *testing.T) {
	hello, calls := testutil.CountingAgent(t, "hello-agent", "Hola!")

	cat := catalog.New()
	require.NoError(t, cat.Register(descriptor("hello-agent", hello.URL)))

	c := New(cat, func(o *Options) {
		o.Policy = NewMaxRoundsPolicy(3)
	})
	reply, err := c.Run(context.Background(), "hello", []string{"hello-agent"}, "user", "")
	require.NoError(t, err)

	assert.Equal(t, int64(3), calls.Load())
	assert.Equal(t, "Hola! Hola! Hola!", reply.Content)
	// agents_used is de-duplicated across rounds.
	assert.Equal(t, []string{"hello-agent"}, reply.AgentsUsed)
}

func TestUnknownParticipantRejected(t *testing.T) {
	cat := catalog.New()
	c := New(cat)

	_, err := c.Run(context.Background(), "hello", []string{"missing-agent"}, "user", "")
	var unknown *core.UnknownAgentError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "missing-agent", unknown.ID)
}

func TestTranscriptLandsInStore(t *testing.T) {
	hello := testutil.StubAgent(t, "hello-agent", "Hola!")

	cat := catalog.New()
	require.NoError(t, cat.Register(descriptor("hello-agent", hello.URL)))

	c := New(cat)
	reply, err := c.Run(context.Background(), "hello", []string{"hello-agent"}, "user", "")
	require.NoError(t, err)

	turns := c.Store().History(reply.ConversationID)
	require.Len(t, turns, 2)
	assert.Equal(t, "user", turns[0].Role)
	assert.Equal(t, "hello", turns[0].Content)
	assert.Equal(t, "assistant", turns[1].Role)
	assert.Equal(t, "Hola!", turns[1].Content)
}

func TestMaxRoundsPolicyIsTotal(t *testing.T) {
	p := NewMaxRoundsPolicy(0)
	assert.Equal(t, 1, p.MaxRounds)
	assert.False(t, p.ShouldStop(0, nil))
	assert.True(t, p.ShouldStop(1, nil))
	assert.True(t, p.ShouldStop(100, nil))
}
