// Package web serves the browser dashboard: embedded static pages plus a JSON
// API and a WebSocket event stream over a deck.Deck.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzhttp"

	"github.com/openclaw/claw-deck/internal/deck"
)

// Config configures the web server.
type Config struct {
	ListenAddr string
	ReadOnly   bool
	Token      string
	Version    string
	Deck       *deck.Deck
	Logger     *slog.Logger
}

// Server is the dashboard HTTP server.
type Server struct {
	cfg        Config
	deck       *deck.Deck
	logger     *slog.Logger
	sessions   *SessionDataService
	upgrader   websocket.Upgrader
	httpServer *http.Server
	handler    http.Handler

	baseCtx context.Context
	cancel  context.CancelFunc
	streams sync.WaitGroup
}

// NewServer builds the server and its routes. Deck may be nil; API routes then
// answer 503.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:     cfg,
		deck:    cfg.Deck,
		logger:  logger,
		baseCtx: ctx,
		cancel:  cancel,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
	if cfg.Deck != nil {
		s.sessions = NewSessionDataService(cfg.Deck)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/api/mission", s.handleMission)
	mux.HandleFunc("/api/agents", s.handleAgents)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/hierarchy", s.handleHierarchy)
	mux.HandleFunc("/api/gateway", s.handleGateway)
	mux.HandleFunc("/api/gateway/", s.handleGatewayAction)
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/settings", s.handleSettings)
	mux.Handle("/static/", http.StripPrefix("/static/", s.staticFileServer()))
	mux.HandleFunc("/", s.handleIndex)

	compressed := gzhttp.GzipHandler(mux)
	s.handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The event stream hijacks the connection; keep it out of the gzip writer.
		if r.URL.Path == "/ws" {
			s.handleEvents(w, r)
			return
		}
		compressed.ServeHTTP(w, r)
	})

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}
	return s
}

// Handler returns the root handler (used by tests and Start).
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens and serves until Shutdown. It returns nil after a clean
// shutdown.
func (s *Server) Start() error {
	s.logger.Info("web server listening", "addr", s.cfg.ListenAddr, "read_only", s.cfg.ReadOnly)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests, closes event streams and waits for
// in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	err := s.httpServer.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.streams.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	return err
}

func (s *Server) authorizeRequest(r *http.Request) bool {
	if s.cfg.Token == "" {
		return true
	}
	token := r.URL.Query().Get("token")
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		token = strings.TrimPrefix(auth, "Bearer ")
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.Token)) == 1
}

// guard runs the checks shared by every API route. mutating routes are
// refused in read-only mode.
func (s *Server) guard(w http.ResponseWriter, r *http.Request, mutating bool) bool {
	if !s.authorizeRequest(r) {
		writeAPIError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return false
	}
	if s.deck == nil {
		writeAPIError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dashboard not initialized")
		return false
	}
	if mutating && s.cfg.ReadOnly {
		writeAPIError(w, http.StatusForbidden, "READ_ONLY", "server is in read-only mode")
		return false
	}
	return true
}

type healthResponse struct {
	OK         bool      `json:"ok"`
	Version    string    `json:"version,omitempty"`
	ReadOnly   bool      `json:"readOnly"`
	Connection string    `json:"connection,omitempty"`
	Time       time.Time `json:"time"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}
	resp := healthResponse{
		OK:       true,
		Version:  s.cfg.Version,
		ReadOnly: s.cfg.ReadOnly,
		Time:     time.Now().UTC(),
	}
	if s.deck != nil {
		resp.Connection = string(s.deck.Connection().State())
	}
	writeJSON(w, http.StatusOK, resp)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiErrorResponse struct {
	Error apiError `json:"error"`
}

func writeAPIError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiErrorResponse{Error: apiError{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v)
}
