package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/openclaw/claw-deck/internal/deck"
	"github.com/openclaw/claw-deck/internal/openclaw"
)

type chatTranscriptResponse struct {
	SessionKey string       `json:"sessionKey"`
	Entries    []deck.Entry `json:"entries"`
}

type chatSendRequest struct {
	Message   string `json:"message"`
	AgentID   string `json:"agentId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Thinking  string `json:"thinking,omitempty"`
}

// handleChat dispatches GET /api/chat?session=&agent= (transcript) and
// POST /api/chat (send one message).
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !s.guard(w, r, false) {
			return
		}
		s.handleChatTranscript(w, r)
	case http.MethodPost:
		if !s.guard(w, r, true) {
			return
		}
		s.handleChatSend(w, r)
	default:
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	}
}

func (s *Server) handleChatTranscript(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key := deck.TranscriptKey(q.Get("session"), q.Get("agent"))
	writeJSON(w, http.StatusOK, chatTranscriptResponse{
		SessionKey: key,
		Entries:    s.deck.Transcript().Entries(key),
	})
}

func (s *Server) handleChatSend(w http.ResponseWriter, r *http.Request) {
	var req chatSendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", "message is required")
		return
	}
	if !openclaw.ValidThinkingLevel(req.Thinking) {
		writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid thinking level")
		return
	}

	res, err := s.deck.SendChat(r.Context(), openclaw.MessageRequest{
		Message:   req.Message,
		AgentID:   req.AgentID,
		SessionID: req.SessionID,
		Thinking:  req.Thinking,
	})
	switch {
	case errors.Is(err, deck.ErrRateLimited):
		writeAPIError(w, http.StatusTooManyRequests, "RATE_LIMITED", err.Error())
		return
	case err != nil:
		writeAPIError(w, http.StatusBadGateway, "OPENCLAW_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}
