package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/openclaw/claw-deck/internal/openclaw"
)

// MessageType tags push-socket messages.
type MessageType string

const (
	MessageChat          MessageType = "message"
	MessageAgentUpdate   MessageType = "agent_update"
	MessageGatewayStatus MessageType = "gateway_status"
	MessageSpawn         MessageType = "spawn"
	MessageStop          MessageType = "stop"
)

// ErrSocketClosed is returned by Send and Probe after the read loop ended.
var ErrSocketClosed = errors.New("gateway socket closed")

const (
	socketWriteTimeout = 5 * time.Second
	socketMaxMessage   = 1 << 20
)

// Message is one push-socket message. Text is normalized from payload.text
// when the top-level field is empty.
type Message struct {
	Type      MessageType          `json:"type"`
	ID        string               `json:"id,omitempty"`
	Text      string               `json:"text,omitempty"`
	Sender    string               `json:"sender,omitempty"`
	SessionID string               `json:"sessionId,omitempty"`
	AgentID   string               `json:"agentId,omitempty"`
	ParentID  string               `json:"parentId,omitempty"`
	Label     string               `json:"label,omitempty"`
	Status    openclaw.LooseString `json:"status,omitempty"`
	Uptime    openclaw.LooseString `json:"uptime,omitempty"`
	Version   openclaw.LooseString `json:"version,omitempty"`
	Payload   *struct {
		Text string `json:"text,omitempty"`
	} `json:"payload,omitempty"`
}

// DecodeMessage parses and normalizes one socket frame.
func DecodeMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, &openclaw.ParseError{Op: "socket message", Raw: string(data), Err: err}
	}
	if m.Type == "" {
		return Message{}, &openclaw.ParseError{Op: "socket message", Raw: string(data), Err: errors.New("missing type")}
	}
	if m.Text == "" && m.Payload != nil {
		m.Text = m.Payload.Text
	}
	return m, nil
}

// Known reports whether the message type is one the dashboard handles.
func (m Message) Known() bool {
	switch m.Type {
	case MessageChat, MessageAgentUpdate, MessageGatewayStatus, MessageSpawn, MessageStop:
		return true
	}
	return false
}

// SocketConfig is the gateway URL and optional API key.
type SocketConfig struct {
	URL    string `json:"url"`
	APIKey string `json:"apiKey,omitempty"`
}

// PushSocket holds the WebSocket connection to the gateway. It doubles as a
// Bridge so the Client's heartbeat and reconnect logic supervise it.
type PushSocket struct {
	dialer    *websocket.Dialer
	logger    *slog.Logger
	observers *Observers[Message]

	mu         sync.Mutex
	cfg        SocketConfig
	conn       *websocket.Conn
	readErr    error
	lastStatus *openclaw.GatewayStatus

	writeMu sync.Mutex
}

// NewPushSocket creates an unconnected socket.
func NewPushSocket(cfg SocketConfig, logger *slog.Logger) *PushSocket {
	if logger == nil {
		logger = slog.Default()
	}
	return &PushSocket{
		dialer:    &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger:    logger,
		observers: NewObservers[Message](logger),
		cfg:       cfg,
	}
}

// Subscribe registers fn for inbound messages of known types.
func (s *PushSocket) Subscribe(fn func(Message)) Subscription {
	return s.observers.Subscribe(fn)
}

// Unsubscribe removes a message listener.
func (s *PushSocket) Unsubscribe(id Subscription) {
	s.observers.Unsubscribe(id)
}

// Config returns the current socket configuration.
func (s *PushSocket) Config() SocketConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// SetConfig replaces the URL/API key; an open connection is closed so the
// next probe dials the new endpoint.
func (s *PushSocket) SetConfig(cfg SocketConfig) {
	s.mu.Lock()
	s.cfg = cfg
	conn := s.conn
	s.conn = nil
	s.readErr = nil
	s.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

// Connected reports whether a live connection exists.
func (s *PushSocket) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil && s.readErr == nil
}

func (s *PushSocket) Name() string { return "socket" }

// Available reports whether a usable gateway URL is configured.
func (s *PushSocket) Available() error {
	_, err := socketURL(s.Config().URL)
	return err
}

// Probe dials when needed and pings the gateway. It reports the last
// gateway_status message, or running when none was received yet.
func (s *PushSocket) Probe(ctx context.Context) (*openclaw.GatewayStatus, error) {
	s.mu.Lock()
	conn := s.conn
	if conn != nil && s.readErr != nil {
		err := s.readErr
		s.conn = nil
		s.readErr = nil
		s.mu.Unlock()
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %v", ErrSocketClosed, err)
	}
	s.mu.Unlock()

	if conn == nil {
		var err error
		conn, err = s.dial(ctx)
		if err != nil {
			return nil, err
		}
	}

	s.writeMu.Lock()
	err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(socketWriteTimeout))
	s.writeMu.Unlock()
	if err != nil {
		s.dropConn(conn)
		return nil, fmt.Errorf("ping gateway socket: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastStatus != nil {
		st := *s.lastStatus
		return &st, nil
	}
	return &openclaw.GatewayStatus{Running: true}, nil
}

func (s *PushSocket) dial(ctx context.Context) (*websocket.Conn, error) {
	cfg := s.Config()
	target, err := socketURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+cfg.APIKey)
	}

	conn, resp, err := s.dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial gateway socket %s: %w (http %d)", target, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial gateway socket %s: %w", target, err)
	}
	conn.SetReadLimit(socketMaxMessage)

	s.mu.Lock()
	old := s.conn
	s.conn = conn
	s.readErr = nil
	s.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}

	s.logger.Info("gateway socket connected", "url", target)
	go s.readLoop(conn)
	return conn, nil
}

func (s *PushSocket) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			if s.conn == conn {
				s.readErr = err
			}
			s.mu.Unlock()
			s.logger.Debug("gateway socket read loop ended", "error", err)
			return
		}

		msg, err := DecodeMessage(data)
		if err != nil {
			s.logger.Warn("dropping malformed socket message", "error", err)
			continue
		}
		if !msg.Known() {
			s.logger.Debug("dropping socket message of unknown type", "type", string(msg.Type))
			continue
		}
		if msg.Type == MessageGatewayStatus {
			s.mu.Lock()
			s.lastStatus = &openclaw.GatewayStatus{
				Running: openclaw.IsRunningStatus(string(msg.Status)),
				Uptime:  openclaw.FormatUptime(string(msg.Uptime)),
				Version: string(msg.Version),
			}
			s.mu.Unlock()
		}
		s.observers.Emit(msg)
	}
}

func (s *PushSocket) dropConn(conn *websocket.Conn) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
		s.readErr = nil
	}
	s.mu.Unlock()
	_ = conn.Close()
}

// Send writes v as a JSON text frame.
func (s *PushSocket) Send(v any) error {
	s.mu.Lock()
	conn := s.conn
	readErr := s.readErr
	s.mu.Unlock()
	if conn == nil {
		return ErrSocketClosed
	}
	if readErr != nil {
		return fmt.Errorf("%w: %v", ErrSocketClosed, readErr)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(socketWriteTimeout))
	if err := conn.WriteJSON(v); err != nil {
		return fmt.Errorf("write gateway socket: %w", err)
	}
	return nil
}

// Close closes the connection. The socket can be dialed again by Probe.
func (s *PushSocket) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.readErr = nil
	s.mu.Unlock()
	if conn == nil {
		return nil
	}

	s.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	s.writeMu.Unlock()
	return conn.Close()
}

// ValidateURL reports whether raw is usable as a gateway socket URL.
func ValidateURL(raw string) error {
	_, err := socketURL(raw)
	return err
}

// socketURL validates raw and maps http(s) to ws(s).
func socketURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("gateway URL not configured")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid gateway URL %q: %w", raw, err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid gateway URL %q: scheme must be ws, wss, http or https", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid gateway URL %q: missing host", raw)
	}
	return u.String(), nil
}
