package web

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/openclaw/claw-deck/internal/gateway"
)

const (
	streamBuffer       = 64
	streamWriteTimeout = 5 * time.Second
	streamPingInterval = 30 * time.Second
)

// streamFrame is one message on /ws.
type streamFrame struct {
	Type       string           `json:"type"` // "connection" or "socket"
	Connection *connectionFrame `json:"connection,omitempty"`
	Socket     *gateway.Message `json:"socket,omitempty"`
}

type connectionFrame struct {
	gateway.Event
	Error string `json:"error,omitempty"`
}

// handleEvents upgrades /ws and forwards connection events and push-socket
// messages until the browser goes away or the server shuts down. A browser
// that cannot keep up loses frames rather than stalling the emitters.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeRequest(r) {
		writeAPIError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}
	if s.deck == nil {
		writeAPIError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dashboard not initialized")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("event stream upgrade failed", "error", err)
		return
	}
	s.streams.Add(1)
	defer s.streams.Done()
	defer conn.Close()

	frames := make(chan streamFrame, streamBuffer)
	offer := func(f streamFrame) {
		select {
		case frames <- f:
		default:
			s.logger.Debug("event stream full, dropping frame", "type", f.Type)
		}
	}

	connSub := s.deck.Connection().Subscribe(func(ev gateway.Event) {
		offer(streamFrame{Type: "connection", Connection: &connectionFrame{Event: ev, Error: ev.ErrorMessage()}})
	})
	defer s.deck.Connection().Unsubscribe(connSub)

	sockSub := s.deck.Socket().Subscribe(func(m gateway.Message) {
		offer(streamFrame{Type: "socket", Socket: &m})
	})
	defer s.deck.Socket().Unsubscribe(sockSub)

	// Greet with the current state so the page does not wait for a transition.
	d := s.deck.Connection().Diagnostics()
	offer(streamFrame{Type: "connection", Connection: &connectionFrame{
		Event: gateway.Event{Kind: gateway.EventKind(d.State), State: d.State, At: time.Now()},
		Error: d.LastError,
	}})

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-s.baseCtx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteTimeout)); err != nil {
				return
			}
		case f := <-frames:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteJSON(f); err != nil {
				return
			}
		}
	}
}
