package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rundex/agentrelay/catalog"
	"github.com/rundex/agentrelay/core"
)

func descriptorFor(url string) catalog.Descriptor {
	return catalog.Descriptor{
		ID:           "hello-agent",
		Name:         "Hello Agent",
		Description:  "Says hello in multiple languages",
		Capabilities: []string{"hello", "hi", "greet"},
		Endpoint:     url,
	}
}

func collectEvents() (Publisher, *[]core.Event) {
	events := &[]core.Event{}
	return func(ev core.Event) error {
		*events = append(*events, ev)
		return nil
	}, events
}

func TestInvokeSuccess(t *testing.T) {
	var received core.Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		reply := core.NewMessage(received.ConversationID, "hello-agent", received.SenderID, "Hola! Bonjour!")
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(reply))
	}))
	defer srv.Close()

	c := New()
	publish, events := collectEvents()

	content, err := c.Invoke(context.Background(), descriptorFor(srv.URL), "Say hello in Spanish", "user", "conv-1", publish)
	require.NoError(t, err)
	assert.Equal(t, "Hola! Bonjour!", content)

	assert.Equal(t, "Say hello in Spanish", received.Content)
	assert.Equal(t, "hello-agent", received.RecipientID)
	assert.Equal(t, "conv-1", received.ConversationID)

	require.Len(t, *events, 2)
	started, ok := (*events)[0].(core.AgentCallStarted)
	require.True(t, ok)
	assert.Equal(t, "hello-agent", started.AgentID)
	completed, ok := (*events)[1].(core.AgentCallCompleted)
	require.True(t, ok)
	assert.Equal(t, "Hola! Bonjour!", completed.Response)
	assert.Empty(t, completed.Error)
}

func TestInvokeAcceptsNumericMessageType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// goodbye-agent replies with the numeric type variant
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"messageId": "m-1",
			"conversationId": "conv-1",
			"senderId": "goodbye-agent",
			"recipientId": "user",
			"content": "Adios! Au revoir!",
			"timestamp": "2026-01-01T00:00:00Z",
			"type": 0
		}`))
	}))
	defer srv.Close()

	c := New()
	content, err := c.Invoke(context.Background(), descriptorFor(srv.URL), "bye", "user", "conv-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "Adios! Au revoir!", content)
}

func TestInvokeNon2xxStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "agent exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New()
	publish, events := collectEvents()

	_, err := c.Invoke(context.Background(), descriptorFor(srv.URL), "hi", "user", "conv-1", publish)
	var invErr *core.AgentInvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, "hello-agent", invErr.AgentID)

	// Started and Completed stay balanced even on failure.
	require.Len(t, *events, 2)
	completed, ok := (*events)[1].(core.AgentCallCompleted)
	require.True(t, ok)
	assert.NotEmpty(t, completed.Error)
	assert.Contains(t, completed.Response, "Error calling agent hello-agent")
}

func TestInvokeMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := New()
	_, err := c.Invoke(context.Background(), descriptorFor(srv.URL), "hi", "user", "conv-1", nil)
	var invErr *core.AgentInvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Contains(t, err.Error(), "malformed agent response")
}

func TestInvokeTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := New(func(o *Options) {
		o.Timeout = 50 * time.Millisecond
	})
	publish, events := collectEvents()

	start := time.Now()
	_, err := c.Invoke(context.Background(), descriptorFor(srv.URL), "hi", "user", "conv-1", publish)
	var invErr *core.AgentInvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Less(t, time.Since(start), 2*time.Second)

	require.Len(t, *events, 2)
}

func TestInvokeRespectsCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New()
	_, err := c.Invoke(ctx, descriptorFor(srv.URL), "hi", "user", "conv-1", nil)
	var invErr *core.AgentInvocationError
	require.ErrorAs(t, err, &invErr)
	assert.ErrorIs(t, invErr.Cause, context.Canceled)
}
