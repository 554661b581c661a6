package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rundex/agentrelay/core"
)

// StubAgent starts a test server speaking the agent wire protocol and
// answering every query with reply. The server is closed via t.Cleanup.
func StubAgent(t *testing.T, agentID, reply string) *httptest.Server {
	t.Helper()
	srv, _ := CountingAgent(t, agentID, reply)
	return srv
}

// CountingAgent is StubAgent plus a counter incremented once per request.
func CountingAgent(t *testing.T, agentID, reply string) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var in core.Message
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		out := core.NewMessage(in.ConversationID, agentID, in.SenderID, reply)
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(out))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}
