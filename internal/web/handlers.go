/*-------------------------------------------------------------------------
 *
 * sqlpilot - Web Chat Handlers
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"sqlpilot/internal/agent"
	"sqlpilot/internal/conversations"
	"sqlpilot/internal/llm"
	"sqlpilot/internal/logging"

	"github.com/google/uuid"
)

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

type chatResponse struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
	SQL       string `json:"sql,omitempty"`
	State     string `json:"state"`
	Rounds    int    `json:"rounds"`
}

type historyEntry struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type historyResponse struct {
	SessionID string         `json:"session_id"`
	Turns     []historyEntry `json:"turns"`
}

type sessionsResponse struct {
	Sessions []conversations.Session `json:"sessions"`
}

// handleChat runs one question turn against the requested session. A missing
// session_id starts a fresh session; its ID comes back in the response so
// follow-ups land on the same conversation.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	id := req.SessionID
	if id == "" {
		id = uuid.NewString()
	}

	live, err := s.session(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load session: "+err.Error())
		return
	}

	answer, err := live.conv.TryAsk(r.Context(), req.Message)
	if errors.Is(err, agent.ErrSessionBusy) {
		writeError(w, http.StatusConflict, "a turn is already in flight for this session")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	// The answer is already produced; a persistence failure costs history,
	// not the response.
	if err := live.persist(s.store); err != nil {
		logging.Warn("failed to persist turns", "session", id, "error", err)
	}

	writeJSON(w, http.StatusOK, chatResponse{
		SessionID: id,
		Answer:    answer.Text,
		SQL:       answer.SQL,
		State:     live.conv.State().String(),
		Rounds:    answer.Rounds,
	})
}

// handleHistory returns a session's displayable turns: user questions and
// assistant prose. Tool traffic stays internal.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("session_id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	if _, err := s.store.GetSession(id); err != nil {
		if errors.Is(err, conversations.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found: "+id)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	history, err := s.store.LoadHistory(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, historyResponse{
		SessionID: id,
		Turns:     displayTurns(history),
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.ListSessions(0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sessions == nil {
		sessions = []conversations.Session{}
	}
	writeJSON(w, http.StatusOK, sessionsResponse{Sessions: sessions})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.store.CreateSession(uuid.NewString())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// displayTurns flattens stored messages into what the chat page shows.
// Messages whose content is pure tool traffic render as nothing and are
// dropped.
func displayTurns(history []llm.Message) []historyEntry {
	entries := make([]historyEntry, 0, len(history))
	for _, msg := range history {
		text := llm.ContentText(msg.Content)
		if text == "" {
			continue
		}
		entries = append(entries, historyEntry{Role: msg.Role, Text: text})
	}
	return entries
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
