package web

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/openclaw/claw-deck/internal/deck"
	"github.com/openclaw/claw-deck/internal/gateway"
	"github.com/openclaw/claw-deck/internal/openclaw"
)

type gatewayResponse struct {
	Connection gateway.Diagnostics     `json:"connection"`
	Status     *openclaw.GatewayStatus `json:"status,omitempty"`
	Error      string                  `json:"error,omitempty"`
}

type gatewayActionResponse struct {
	OK         bool                `json:"ok"`
	Action     string              `json:"action"`
	Connection gateway.Diagnostics `json:"connection"`
}

type gatewayLogsResponse struct {
	Logs string `json:"logs"`
}

type pollingSettings struct {
	MissionControlMs int64 `json:"missionControlMs"`
	ChatSessionsMs   int64 `json:"chatSessionsMs"`
}

type settingsResponse struct {
	Gateway  deck.GatewaySettings `json:"gateway"`
	Polling  pollingSettings      `json:"polling"`
	ReadOnly bool                 `json:"readOnly"`
}

// handleGateway serves GET /api/gateway: connection diagnostics plus a fresh
// `gateway status` probe.
func (s *Server) handleGateway(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w, r, false) {
		return
	}
	if r.Method != http.MethodGet {
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}

	resp := gatewayResponse{}
	status, err := s.deck.CLI().GatewayStatus(r.Context())
	if err != nil {
		resp.Error = err.Error()
	} else {
		resp.Status = status
	}
	resp.Connection = s.deck.Connection().Diagnostics()
	writeJSON(w, http.StatusOK, resp)
}

// handleGatewayAction dispatches /api/gateway/{action}.
func (s *Server) handleGatewayAction(w http.ResponseWriter, r *http.Request) {
	const prefix = "/api/gateway/"
	action := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")

	if action == "logs" {
		if !s.guard(w, r, false) {
			return
		}
		if r.Method != http.MethodGet {
			writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
			return
		}
		s.handleGatewayLogs(w, r)
		return
	}

	if !s.guard(w, r, true) {
		return
	}
	if r.Method != http.MethodPost {
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}

	cli := s.deck.CLI()
	conn := s.deck.Connection()
	var err error
	switch action {
	case "start":
		err = cli.GatewayStart(r.Context())
	case "stop":
		err = cli.GatewayStop(r.Context())
	case "restart":
		err = cli.GatewayRestart(r.Context())
	case "connect":
		// Connection failures surface through diagnostics and the event
		// stream; the reconnect procedure owns them from here.
		s.runDetached(conn.Connect)
	case "disconnect":
		conn.Disconnect()
	case "reconnect":
		s.runDetached(conn.Reconnect)
	default:
		writeAPIError(w, http.StatusNotFound, "NOT_FOUND", "route not found")
		return
	}
	if err != nil {
		writeAPIError(w, http.StatusBadGateway, "OPENCLAW_ERROR", err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, gatewayActionResponse{OK: true, Action: action, Connection: conn.Diagnostics()})
}

// runDetached runs a connection call without tying it to the request, so a
// probe that outlives the response is not cancelled.
func (s *Server) runDetached(fn func(context.Context) error) {
	s.streams.Add(1)
	go func() {
		defer s.streams.Done()
		if err := fn(s.baseCtx); err != nil {
			s.logger.Debug("gateway connect request failed", "error", err)
		}
	}()
}

func (s *Server) handleGatewayLogs(w http.ResponseWriter, r *http.Request) {
	limit := 200
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	logs, err := s.deck.CLI().GatewayLogs(r.Context(), limit)
	if err != nil {
		writeAPIError(w, http.StatusBadGateway, "OPENCLAW_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, gatewayLogsResponse{Logs: logs})
}

// handleSettings serves GET /api/settings and PUT /api/settings.
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !s.guard(w, r, false) {
			return
		}
	case http.MethodPut:
		if !s.guard(w, r, true) {
			return
		}
		var req deck.GatewaySettings
		if err := decodeJSON(w, r, &req); err != nil {
			writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON body")
			return
		}
		if err := s.deck.SetGatewaySettings(req); err != nil {
			writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
			return
		}
	default:
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}

	cfg := s.deck.Config()
	writeJSON(w, http.StatusOK, settingsResponse{
		Gateway: s.deck.GatewaySettings().Redacted(),
		Polling: pollingSettings{
			MissionControlMs: cfg.Polling.MissionControl.Milliseconds(),
			ChatSessionsMs:   cfg.Polling.ChatSessions.Milliseconds(),
		},
		ReadOnly: s.cfg.ReadOnly,
	})
}
