package web

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/openclaw/claw-deck/internal/deck"
	"github.com/openclaw/claw-deck/internal/hierarchy"
	"github.com/openclaw/claw-deck/internal/openclaw"
)

type agentsListResponse struct {
	Agents []openclaw.Agent `json:"agents"`
}

type sessionsListResponse struct {
	Sessions []openclaw.Session `json:"sessions"`
}

type hierarchyResponse struct {
	Entries map[string]hierarchy.Entry `json:"entries"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

// handleMission serves GET /api/mission with an optional ?q= filter.
func (s *Server) handleMission(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w, r, false) {
		return
	}
	if r.Method != http.MethodGet {
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}

	view, err := s.sessions.LoadMissionView(r.Context(), strings.TrimSpace(r.URL.Query().Get("q")))
	if err != nil {
		writeAPIError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleAgents dispatches GET /api/agents and POST /api/agents.
func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !s.guard(w, r, false) {
			return
		}
		s.handleAgentsList(w, r)
	case http.MethodPost:
		if !s.guard(w, r, true) {
			return
		}
		s.handleAgentsCreate(w, r)
	default:
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	}
}

func (s *Server) handleAgentsList(w http.ResponseWriter, r *http.Request) {
	agents, err := s.deck.CLI().ListAgents(r.Context())
	if err != nil {
		writeAPIError(w, http.StatusBadGateway, "OPENCLAW_ERROR", err.Error())
		return
	}
	agents = deck.FilterAgents(agents, r.URL.Query().Get("q"))
	if agents == nil {
		agents = []openclaw.Agent{}
	}
	writeJSON(w, http.StatusOK, agentsListResponse{Agents: agents})
}

func (s *Server) handleAgentsCreate(w http.ResponseWriter, r *http.Request) {
	var req openclaw.AddAgentOptions
	if err := decodeJSON(w, r, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", "name is required")
		return
	}
	if err := s.deck.CLI().AddAgent(r.Context(), req); err != nil {
		writeAPIError(w, http.StatusBadGateway, "OPENCLAW_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, okResponse{OK: true})
}

// handleSessions serves GET /api/sessions with optional ?active=<minutes>
// and ?q= filters.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w, r, false) {
		return
	}
	if r.Method != http.MethodGet {
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}

	active := 0
	if raw := r.URL.Query().Get("active"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", "active must be a non-negative integer")
			return
		}
		active = n
	}

	sessions, err := s.deck.CLI().ListSessions(r.Context(), active)
	if err != nil {
		writeAPIError(w, http.StatusBadGateway, "OPENCLAW_ERROR", err.Error())
		return
	}
	sessions = deck.FilterSessions(sessions, r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, sessionsListResponse{Sessions: sessions})
}

// handleHierarchy serves GET /api/hierarchy and DELETE /api/hierarchy.
func (s *Server) handleHierarchy(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !s.guard(w, r, false) {
			return
		}
		writeJSON(w, http.StatusOK, hierarchyResponse{Entries: s.deck.Hierarchy().Snapshot()})
	case http.MethodDelete:
		if !s.guard(w, r, true) {
			return
		}
		if err := s.deck.Hierarchy().Clear(); err != nil {
			writeAPIError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to clear hierarchy")
			return
		}
		writeJSON(w, http.StatusOK, okResponse{OK: true})
	default:
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	}
}
