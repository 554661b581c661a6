package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rundex/agentrelay/core"
)

type queryRequest struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversation_id,omitempty"`
	Verbose        bool   `json:"verbose,omitempty"`
	Stream         bool   `json:"stream,omitempty"`
}

type groupChatRequest struct {
	Query          string   `json:"query"`
	AgentIDs       []string `json:"agent_ids"`
	ConversationID string   `json:"conversation_id,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, format string, args ...interface{}) {
	writeJSON(w, status, errorResponse{Error: fmt.Sprintf(format, args...)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query must not be empty")
		return
	}

	if req.Stream {
		s.streamQuery(w, r, req)
		return
	}

	reply, err := s.runtime.ProcessQuery(r.Context(), req.Query, req.ConversationID, req.Verbose || s.verbose)
	if err != nil {
		s.logger.Error("query failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "query failed: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// streamQuery relays the session's event channel as server-sent events. Each
// event is written as an SSE message whose event name is the kind
// discriminator; the terminal Done or Error event ends the stream.
func (s *Server) streamQuery(w http.ResponseWriter, r *http.Request, req queryRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ch, conversationID, err := s.runtime.StreamQuery(r.Context(), req.Query, req.ConversationID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed: %v", err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Conversation-Id", conversationID)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// A disconnected client cancels the session so producers unwind instead
	// of blocking on a full buffer. Cancel after a normal finish is a no-op.
	go func() {
		<-r.Context().Done()
		_ = s.runtime.Cancel(conversationID)
	}()

	for ev := range ch.Events() {
		data, err := json.Marshal(ev)
		if err != nil {
			s.logger.Error("failed to encode event", "kind", core.Kind(ev), "error", err.Error())
			continue
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", core.Kind(ev), data)
		flusher.Flush()
	}
}

func (s *Server) handleGroupChat(w http.ResponseWriter, r *http.Request) {
	var req groupChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query must not be empty")
		return
	}
	if len(req.AgentIDs) == 0 {
		writeError(w, http.StatusBadRequest, "agent_ids must not be empty")
		return
	}

	reply, err := s.runtime.ProcessGroupChat(r.Context(), req.Query, req.AgentIDs, req.ConversationID)
	if err != nil {
		var unknown *core.UnknownAgentError
		if errors.As(err, &unknown) {
			writeError(w, http.StatusNotFound, "%v", err)
			return
		}
		s.logger.Error("group chat failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "group chat failed: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"agents": s.runtime.ListAgents(),
	})
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rec, ok := s.runtime.GetConversation(id)
	if !ok {
		writeError(w, http.StatusNotFound, "conversation %s not found", id)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.runtime.Cancel(id); err != nil {
		writeError(w, http.StatusNotFound, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled", "conversation_id": id})
}
