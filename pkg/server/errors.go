package server

import "errors"

// Sentinel errors for common acceptor error conditions.
var (
	// ErrMaxSessionsReached is returned when the maximum number of
	// concurrent sessions is reached.
	ErrMaxSessionsReached = errors.New("server: max sessions reached")

	// ErrSessionNotFound is returned when a session ID does not exist.
	ErrSessionNotFound = errors.New("server: session not found")

	// ErrServerClosed is returned for operations on a stopped server.
	ErrServerClosed = errors.New("server: closed")
)
