// Package session implements the connection session state machine: one
// Session per physical connection, moving through Connecting → Open →
// Closing → Closed, dispatching client requests into the API namespace
// and broker-delivered broadcasts into the event namespace.
//
// All of a session's mutable state is touched from a single goroutine:
// inbound frames and broker events are queued onto channels and drained
// by one loop, so no two invocations ever run concurrently on the same
// session.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sockframe-dev/sockframe/pkg/auth"
	"github.com/sockframe-dev/sockframe/pkg/broker"
	"github.com/sockframe-dev/sockframe/pkg/protocol"
	"github.com/sockframe-dev/sockframe/pkg/registry"
)

// State is the externally visible lifecycle state of a session.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conn is the outbound half of the transport, supplied by the acceptor.
type Conn interface {
	// WriteFrame sends one already-encoded frame to the client.
	WriteFrame(ctx context.Context, data []byte) error

	// Close closes the underlying connection with a transport close code.
	Close(code int) error
}

// Registry is the method registry specialized to sessions.
type Registry = registry.Registry[*Session]

// Options configures a new Session. Conn, Registry and Broker are
// required; the rest default sensibly.
type Options struct {
	Conn     Conn
	Registry *Registry
	Gate     *auth.Gate
	Broker   broker.Broker
	Config   *Config
	Logger   *slog.Logger

	// Middleware wraps every API and event dispatch, in order.
	Middleware []Middleware

	// OnConnect runs during Connect, before the session opens. Returning
	// an error denies the connection and the handshake is rejected.
	OnConnect func(*Session) error
}

// inboundEvent pairs a broker-delivered event with its group.
type inboundEvent struct {
	group string
	ev    *protocol.Event
}

// Session is the server-side state for one physical connection.
type Session struct {
	id     string
	conn   Conn
	reg    *Registry
	gate   *auth.Gate
	broker broker.Broker
	bind   *broker.Binding
	cfg    *Config
	logger *slog.Logger

	state  atomic.Int32
	closed atomic.Bool

	// mu guards authenticated and principal. Both are written only on
	// the session loop but read from other goroutines.
	mu            sync.RWMutex
	authenticated bool
	principal     *auth.Principal

	frames chan []byte
	events chan inboundEvent
	done   chan struct{}

	middlewares []Middleware
	onConnect   func(*Session) error

	createdAt time.Time
}

// generateSessionID generates a cryptographically random session ID.
func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// Weak IDs are dangerous; fail hard on entropy failure.
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return hex.EncodeToString(b)
}

// New creates a Session in the Connecting state.
func New(opts Options) *Session {
	cfg := opts.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	id := generateSessionID()
	s := &Session{
		id:          id,
		conn:        opts.Conn,
		reg:         opts.Registry,
		gate:        opts.Gate,
		broker:      opts.Broker,
		cfg:         cfg,
		logger:      logger.With("session_id", id),
		frames:      make(chan []byte, cfg.FrameQueueSize),
		events:      make(chan inboundEvent, cfg.EventQueueSize),
		done:        make(chan struct{}),
		middlewares: opts.Middleware,
		onConnect:   opts.OnConnect,
		createdAt:   time.Now(),
	}
	s.bind = broker.NewBinding(opts.Broker, s, s.logger)
	s.state.Store(int32(StateConnecting))
	return s
}

// Connect accepts the connection: it runs the accept hook, joins the
// configured base groups (concurrently, best-effort) and starts the
// session loop. Idempotent; only the first call does anything.
func (s *Session) Connect(ctx context.Context) error {
	if s.onConnect != nil {
		if err := s.onConnect(s); err != nil {
			s.state.Store(int32(StateClosed))
			s.closed.Store(true)
			return fmt.Errorf("%w: %v", ErrConnectionDenied, err)
		}
	}

	if !s.state.CompareAndSwap(int32(StateConnecting), int32(StateOpen)) {
		return nil
	}

	var wg sync.WaitGroup
	for _, group := range s.cfg.BaseGroups {
		wg.Add(1)
		go func(group string) {
			defer wg.Done()
			if err := s.bind.Attach(ctx, group); err != nil {
				s.logger.Warn("base group join failed", "group", group, "error", err)
			}
		}(group)
	}
	wg.Wait()

	go s.loop()

	s.logger.Info("session open", "base_groups", len(s.cfg.BaseGroups))
	return nil
}

// loop serializes all dispatch on one goroutine. Teardown takes
// priority over queued work: once done is closed, frames and events
// still in the queues are dropped, never dispatched.
func (s *Session) loop() {
	for {
		select {
		case <-s.done:
			return
		default:
		}

		select {
		case raw := <-s.frames:
			s.handleFrame(raw)

		case in := <-s.events:
			s.handleGroupEvent(in.group, in.ev)

		case <-s.done:
			return
		}
	}
}

// ReceiveFrame queues a raw inbound frame for dispatch. Frames from one
// connection are handled strictly in arrival order. Fails once teardown
// has begun or when the frame queue is full.
func (s *Session) ReceiveFrame(raw []byte) error {
	if s.closed.Load() || s.State() != StateOpen {
		return ErrSessionClosed
	}
	select {
	case s.frames <- raw:
		return nil
	default:
		s.logger.Warn("frame queue full, dropping frame")
		return ErrFrameQueueFull
	}
}

// MemberID implements broker.Member.
func (s *Session) MemberID() string {
	return s.id
}

// DeliverEvent implements broker.Member: it queues a broker-delivered
// event for dispatch on the session loop without blocking the broker.
func (s *Session) DeliverEvent(group string, ev *protocol.Event) {
	if s.closed.Load() {
		return
	}
	select {
	case s.events <- inboundEvent{group: group, ev: ev}:
	case <-s.done:
	default:
		s.logger.Warn("event queue full, dropping group event",
			"group", group, "event", ev.Name)
	}
}

// Disconnect tears the session down: no further frames are processed,
// every group membership is left (concurrently, each awaited to
// completion or failure), and the transport is closed. Teardown failures
// are logged, never surfaced; the client is already gone. Idempotent.
func (s *Session) Disconnect(code int) {
	if s.closed.Swap(true) {
		return
	}
	s.state.Store(int32(StateClosing))
	close(s.done)

	// Not cancellable mid-flight: every pending leave is awaited.
	if err := s.bind.DetachAll(context.Background()); err != nil {
		s.logger.Warn("group teardown incomplete", "error", err)
	}

	if s.conn != nil {
		if err := s.conn.Close(code); err != nil {
			s.logger.Debug("transport close failed", "error", err)
		}
	}

	s.state.Store(int32(StateClosed))
	s.logger.Info("session closed", "code", code)
}

// Send encodes a payload as JSON and writes it to the client.
func (s *Session) Send(ctx context.Context, payload any) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	if s.conn == nil {
		return ErrNoConnection
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("session: encode response: %w", err)
	}
	return s.conn.WriteFrame(ctx, data)
}

// AttachGroup joins a broadcast group. Idempotent.
func (s *Session) AttachGroup(ctx context.Context, group string) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	return s.bind.Attach(ctx, group)
}

// DetachGroup leaves a broadcast group. Idempotent.
func (s *Session) DetachGroup(ctx context.Context, group string) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	return s.bind.Detach(ctx, group)
}

// Groups returns the session's current group memberships, sorted.
func (s *Session) Groups() []string {
	return s.bind.Groups()
}

// InGroup reports whether the session is currently a member of a group.
func (s *Session) InGroup(group string) bool {
	return s.bind.Has(group)
}

// EventCommonReturn is the built-in event used by ReturnToUser to fan
// data out to every concurrent session of the current user.
const EventCommonReturn = "common_return"

// PublishEvent publishes an event to a group through the broker. The
// initiator ID is stamped when the session is authenticated.
func (s *Session) PublishEvent(ctx context.Context, group, name string, args []any, kwargs map[string]any) error {
	ev := protocol.NewEvent(name, args, kwargs)
	if p := s.Principal(); p != nil {
		ev.InitiatorID = p.ID
	}
	return s.broker.Publish(ctx, group, ev)
}

// PublishToUser publishes an event to every session of one user.
func (s *Session) PublishToUser(ctx context.Context, userID, name string, args []any, kwargs map[string]any) error {
	return s.PublishEvent(ctx, s.cfg.UserGroup(userID), name, args, kwargs)
}

// ReturnToUser sends data to all connections the current user is logged
// in from, via the common_return event.
func (s *Session) ReturnToUser(ctx context.Context, data any) error {
	p := s.Principal()
	if p == nil {
		return ErrNotAuthenticated
	}
	return s.PublishToUser(ctx, p.ID, EventCommonReturn, []any{data}, nil)
}

// ID returns the session's opaque connection handle.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Authenticated reports whether the session has authenticated.
func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// Principal returns a copy of the authenticated principal, or nil.
// Non-nil exactly when Authenticated is true.
func (s *Session) Principal() *auth.Principal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.principal == nil {
		return nil
	}
	p := *s.principal
	return &p
}

// Done returns a channel closed when session teardown begins.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Config returns the session configuration.
func (s *Session) Config() *Config {
	return s.cfg
}

// Logger returns the session's logger.
func (s *Session) Logger() *slog.Logger {
	return s.logger
}

// CreatedAt returns the session creation time.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}
