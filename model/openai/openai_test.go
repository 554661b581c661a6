package openai

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rundex/agentrelay/model"
)

// newTestModel wires the adapter to an httptest server speaking the Chat
// Completions SSE protocol.
func newTestModel(t *testing.T, handler http.HandlerFunc) *Model {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := openai.NewClient(option.WithBaseURL(srv.URL+"/"), option.WithAPIKey("test"))
	return NewModelFromClient(&client)
}

// writeChunk sends one SSE frame. Write errors are ignored since a
// cancelling client disconnects mid-stream.
func writeChunk(t *testing.T, w http.ResponseWriter, payload string) {
	t.Helper()
	fmt.Fprintf(w, "data: %s\n\n", payload)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func contentChunk(text string) string {
	return fmt.Sprintf(`{"id":"chatcmpl-1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{"content":%q},"finish_reason":null}]}`, text)
}

func finishChunk(reason string) string {
	return fmt.Sprintf(`{"id":"chatcmpl-1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{},"finish_reason":%q}]}`, reason)
}

func streamRequest(query string) model.Request {
	return model.Request{
		Messages: []model.ChatMessage{{Role: "user", Content: query}},
		Stream:   true,
	}
}

func TestGenerateStreamsTextDeltas(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		writeChunk(t, w, contentChunk("Hol"))
		writeChunk(t, w, contentChunk("a!"))
		writeChunk(t, w, finishChunk("stop"))
		writeChunk(t, w, "[DONE]")
	})

	out, errCh := m.Generate(context.Background(), streamRequest("say hello"))

	var got []model.Response
	for resp := range out {
		got = append(got, resp)
	}
	require.NoError(t, <-errCh)

	require.Len(t, got, 3)
	assert.Equal(t, model.Response{Partial: true, Text: "Hol"}, got[0])
	assert.Equal(t, model.Response{Partial: true, Text: "a!"}, got[1])
	assert.False(t, got[2].Partial)
	assert.Equal(t, "Hola!", got[2].Text)
	assert.Equal(t, "stop", got[2].FinishReason)
}

func TestGenerateAggregatesToolCallDeltas(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		writeChunk(t, w, `{"id":"chatcmpl-1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call-1","type":"function","function":{"name":"hello_agent","arguments":"{\"que"}}]},"finish_reason":null}]}`)
		writeChunk(t, w, `{"id":"chatcmpl-1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"ry\":\"hi\"}"}}]},"finish_reason":null}]}`)
		writeChunk(t, w, finishChunk("tool_calls"))
		writeChunk(t, w, "[DONE]")
	})

	out, errCh := m.Generate(context.Background(), streamRequest("hi"))

	var got []model.Response
	for resp := range out {
		got = append(got, resp)
	}
	require.NoError(t, <-errCh)

	require.NotEmpty(t, got)
	final := got[len(got)-1]
	assert.Equal(t, "tool_calls", final.FinishReason)
	require.Len(t, final.ToolCalls, 1)
	assert.Equal(t, "call-1", final.ToolCalls[0].ID)
	assert.Equal(t, "hello_agent", final.ToolCalls[0].Name)
	assert.JSONEq(t, `{"query":"hi"}`, string(final.ToolCalls[0].Arguments))
}

func TestGenerateStopsOnCancelledContext(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for i := 0; i < 100; i++ {
			writeChunk(t, w, contentChunk("x"))
		}
		writeChunk(t, w, finishChunk("stop"))
		writeChunk(t, w, "[DONE]")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out, errCh := m.Generate(ctx, streamRequest("flood"))

	// Take a single delta, then stop draining so the producer's buffer fills.
	select {
	case resp := <-out:
		assert.True(t, resp.Partial)
	case <-time.After(5 * time.Second):
		t.Fatal("no delta arrived")
	}
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("generate did not stop after cancellation")
	}

	// The response channel closes once the producer exits.
	for {
		select {
		case _, ok := <-out:
			if !ok {
				return
			}
		case <-time.After(5 * time.Second):
			t.Fatal("response channel never closed")
		}
	}
}
