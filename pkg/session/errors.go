package session

import "errors"

// Sentinel errors for common session error conditions.
var (
	// ErrSessionClosed is returned when an operation is attempted on a
	// session whose teardown has begun.
	ErrSessionClosed = errors.New("session: closed")

	// ErrConnectionDenied is returned by Connect when the accept hook
	// rejects the handshake.
	ErrConnectionDenied = errors.New("session: connection denied")

	// ErrFrameQueueFull is returned when an inbound frame is dropped
	// because the frame queue is full.
	ErrFrameQueueFull = errors.New("session: frame queue full")

	// ErrNotAuthenticated is returned by helpers that require an
	// authenticated session.
	ErrNotAuthenticated = errors.New("session: not authenticated")

	// ErrNoConnection is returned when attempting to send on a session
	// without a transport connection.
	ErrNoConnection = errors.New("session: no connection")
)
