// Package server is the WebSocket acceptor: it upgrades HTTP requests,
// owns the read loop feeding raw frames into sessions, and tracks live
// sessions in a Manager. The session core never touches the socket
// directly; it sees only the session.Conn port.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sockframe-dev/sockframe/pkg/session"
)

// SessionFactory builds a session for a freshly upgraded connection.
// Implementations wire the registry, gate, broker and middleware.
type SessionFactory func(conn session.Conn) *session.Session

// Server is the HTTP/WebSocket acceptor.
type Server struct {
	config   *Config
	factory  SessionFactory
	sessions *Manager
	upgrader websocket.Upgrader

	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server. The factory is required.
func New(config *Config, factory SessionFactory, logger *slog.Logger) *Server {
	config = config.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "server")

	return &Server{
		config:   config,
		factory:  factory,
		sessions: NewManager(config.MaxSessions, logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		logger: logger,
	}
}

// Sessions returns the session manager.
func (s *Server) Sessions() *Manager {
	return s.sessions
}

// Handler returns the HTTP handler serving the WebSocket endpoint,
// health check, and (if enabled) Prometheus metrics.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get(s.config.WebSocketPath, s.handleWS)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if s.config.EnableMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}
	return r
}

// handleWS upgrades the request and runs the connection to completion.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	wsocket, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	conn := newWSConn(wsocket, s.config.WriteTimeout)
	sess := s.factory(conn)

	if err := s.sessions.Add(sess); err != nil {
		s.logger.Warn("session rejected", "error", err)
		conn.Close(websocket.CloseTryAgainLater)
		return
	}

	if err := sess.Connect(r.Context()); err != nil {
		// The accept hook denied the handshake.
		s.logger.Info("connection denied", "session_id", sess.ID(), "error", err)
		s.sessions.Remove(sess.ID())
		conn.Close(websocket.ClosePolicyViolation)
		return
	}

	s.readLoop(wsocket, sess)
}

// readLoop pumps frames from the socket into the session until the
// connection drops, then tears the session down.
func (s *Server) readLoop(wsocket *websocket.Conn, sess *session.Session) {
	defer func() {
		sess.Disconnect(websocket.CloseNormalClosure)
		s.sessions.Remove(sess.ID())
	}()

	wsocket.SetReadLimit(s.config.MaxMessageSize)

	for {
		if s.config.ReadTimeout > 0 {
			wsocket.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		}

		_, msg, err := wsocket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.logger.Error("read error", "session_id", sess.ID(), "error", err)
			}
			return
		}

		if err := sess.ReceiveFrame(msg); err != nil {
			if errors.Is(err, session.ErrSessionClosed) {
				return
			}
			s.logger.Warn("frame dropped", "session_id", sess.ID(), "error", err)
		}
	}
}

// Start runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    s.config.Address,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()

	s.logger.Info("listening", "address", s.config.Address, "path", s.config.WebSocketPath)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server: sessions are disconnected
// (tearing down their group memberships) and the HTTP listener drains
// within the shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.sessions.Shutdown(websocket.CloseGoingAway)

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}
