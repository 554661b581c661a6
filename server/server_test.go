package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rundex/agentrelay"
	"github.com/rundex/agentrelay/catalog"
	"github.com/rundex/agentrelay/core"
	"github.com/rundex/agentrelay/internal/testutil"
	"github.com/rundex/agentrelay/model"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	hello := testutil.StubAgent(t, "hello-agent", "Hola!")
	goodbye := testutil.StubAgent(t, "goodbye-agent", "Au revoir!")
	cat := testutil.GreetingCatalog(t, hello.URL, goodbye.URL)

	rt := agentrelay.New(cat, model.NewKeywordModel(cat.Routes(), 0))
	srv := httptest.NewServer(New(rt).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListAgents(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/agents")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Agents []catalog.Descriptor `json:"agents"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Agents, 2)
	assert.Equal(t, "hello-agent", body.Agents[0].ID)
	assert.Equal(t, "goodbye-agent", body.Agents[1].ID)
}

func TestQuerySynchronous(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/query", map[string]interface{}{
		"query":           "say hello please",
		"conversation_id": "conv-1",
		"verbose":         true,
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var reply core.Reply
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reply))
	assert.Equal(t, "Hola!", reply.Content)
	assert.Equal(t, "conv-1", reply.ConversationID)
	assert.Equal(t, []string{"hello-agent"}, reply.AgentsUsed)
	require.Len(t, reply.ExecutionTrace, 1)
	assert.Equal(t, "hello-agent", reply.ExecutionTrace[0].AgentID)
}

func TestQueryStreamSSE(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/query", map[string]interface{}{
		"query":  "hello and goodbye",
		"stream": true,
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get("X-Conversation-Id"))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(raw)

	assert.Contains(t, body, "event: agent_call_started")
	assert.Contains(t, body, "event: agent_call_completed")
	assert.Contains(t, body, "event: done")

	// The done event is the last one in the stream.
	frames := strings.Split(strings.TrimSpace(body), "\n\n")
	last := frames[len(frames)-1]
	require.True(t, strings.HasPrefix(last, "event: done"))

	var done core.Done
	dataLine := strings.TrimPrefix(strings.SplitN(last, "\n", 2)[1], "data: ")
	require.NoError(t, json.Unmarshal([]byte(dataLine), &done))
	assert.Equal(t, []string{"hello-agent", "goodbye-agent"}, done.AgentsUsed)
	assert.Contains(t, done.FinalResponse, "Hola!")
}

func TestQueryRejectsEmpty(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/query", map[string]interface{}{"query": ""})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGroupChat(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/group-chat", map[string]interface{}{
		"query":     "everyone greet",
		"agent_ids": []string{"hello-agent", "goodbye-agent"},
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var reply core.Reply
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reply))
	assert.Equal(t, "Hola! Au revoir!", reply.Content)
	assert.Equal(t, []string{"hello-agent", "goodbye-agent"}, reply.AgentsUsed)
}

func TestGroupChatUnknownAgent(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/group-chat", map[string]interface{}{
		"query":     "hi",
		"agent_ids": []string{"missing-agent"},
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetConversation(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/conversations/conv-x")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	qr := postJSON(t, srv.URL+"/api/query", map[string]interface{}{
		"query":           "hello",
		"conversation_id": "conv-x",
	})
	qr.Body.Close()
	require.Equal(t, http.StatusOK, qr.StatusCode)

	resp, err = http.Get(srv.URL + "/api/conversations/conv-x")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rec struct {
		ID    string `json:"id"`
		Turns []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	assert.Equal(t, "conv-x", rec.ID)
	require.Len(t, rec.Turns, 2)
	assert.Equal(t, "user", rec.Turns[0].Role)
}

func TestCancelUnknownSession(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/cancel/conv-none", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
