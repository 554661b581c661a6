package core

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventChannelOrderedDelivery(t *testing.T) {
	ch := NewEventChannel(8, time.Second)

	require.NoError(t, ch.Publish(AgentCallStarted{AgentID: "hello-agent", Query: "hi"}))
	require.NoError(t, ch.Publish(AgentCallCompleted{AgentID: "hello-agent", Response: "Hola!"}))
	require.NoError(t, ch.Publish(TokenChunk{Text: "Hola"}))
	require.NoError(t, ch.CloseWith(Done{FinalResponse: "Hola", AgentsUsed: []string{"hello-agent"}}))

	var kinds []string
	for ev := range ch.Events() {
		kinds = append(kinds, Kind(ev))
	}
	assert.Equal(t, []string{"agent_call_started", "agent_call_completed", "token", "done"}, kinds)
}

func TestEventChannelTerminalIsExactlyOnce(t *testing.T) {
	ch := NewEventChannel(4, time.Second)

	require.NoError(t, ch.CloseWith(Done{FinalResponse: "ok"}))
	assert.ErrorIs(t, ch.CloseWith(ErrorEvent{Message: "late"}), ErrChannelClosed)
	assert.ErrorIs(t, ch.Publish(TokenChunk{Text: "late"}), ErrChannelClosed)

	var events []Event
	for ev := range ch.Events() {
		events = append(events, ev)
	}
	require.Len(t, events, 1)
	assert.True(t, IsTerminal(events[0]))
}

func TestEventChannelOverflow(t *testing.T) {
	ch := NewEventChannel(1, 10*time.Millisecond)

	require.NoError(t, ch.Publish(TokenChunk{Text: "a"}))
	// Nothing drains the channel, so the second publish must time out.
	assert.ErrorIs(t, ch.Publish(TokenChunk{Text: "b"}), ErrChannelOverflow)
}

func TestEventChannelTerminalDeliveredOnFullBuffer(t *testing.T) {
	ch := NewEventChannel(2, 20*time.Millisecond)

	require.NoError(t, ch.Publish(TokenChunk{Text: "a"}))
	require.NoError(t, ch.Publish(TokenChunk{Text: "b"}))
	assert.ErrorIs(t, ch.Publish(TokenChunk{Text: "c"}), ErrChannelOverflow)

	// Even with every regular slot occupied the terminal event lands.
	require.NoError(t, ch.CloseWith(Done{FinalResponse: "ab"}))

	var events []Event
	for ev := range ch.Events() {
		events = append(events, ev)
	}
	require.Len(t, events, 3)
	assert.True(t, IsTerminal(events[2]))
}

func TestEventChannelConcurrentProducers(t *testing.T) {
	ch := NewEventChannel(128, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(agent string) {
			defer wg.Done()
			assert.NoError(t, ch.Publish(AgentCallStarted{AgentID: agent}))
			assert.NoError(t, ch.Publish(AgentCallCompleted{AgentID: agent}))
		}(string(rune('a' + i)))
	}
	wg.Wait()
	require.NoError(t, ch.CloseWith(Done{}))

	started := map[string]int{}
	completed := map[string]int{}
	var last Event
	for ev := range ch.Events() {
		switch e := ev.(type) {
		case AgentCallStarted:
			started[e.AgentID]++
		case AgentCallCompleted:
			completed[e.AgentID]++
			// Each agent's Started strictly precedes its Completed.
			assert.Equal(t, started[e.AgentID], completed[e.AgentID])
		}
		last = ev
	}
	assert.True(t, IsTerminal(last))
	assert.Equal(t, started, completed)
}

func TestEventChannelCloseRacesPublish(t *testing.T) {
	// Publishers racing CloseWith must either deliver before the terminal
	// event or fail with ErrChannelClosed; never panic, never trail Done.
	ch := NewEventChannel(64, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := ch.Publish(TokenChunk{Text: "x"})
			if err != nil {
				assert.ErrorIs(t, err, ErrChannelClosed)
			}
		}()
	}
	require.NoError(t, ch.CloseWith(Done{}))
	wg.Wait()

	sawTerminal := false
	for ev := range ch.Events() {
		assert.False(t, sawTerminal, "event after terminal")
		if IsTerminal(ev) {
			sawTerminal = true
		}
	}
	assert.True(t, sawTerminal)
}
