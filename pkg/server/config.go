package server

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sockframe-dev/sockframe/pkg/session"
)

// Config holds configuration for the HTTP/WebSocket acceptor.
type Config struct {
	// Address is the address to listen on (e.g., ":8080").
	// Default: ":8080".
	Address string

	// WebSocketPath is the route the acceptor upgrades on.
	// Default: "/ws".
	WebSocketPath string

	// ReadBufferSize is the WebSocket read buffer size.
	// Default: 4096.
	ReadBufferSize int

	// WriteBufferSize is the WebSocket write buffer size.
	// Default: 4096.
	WriteBufferSize int

	// CheckOrigin is called to validate the request origin.
	// Default: SameOriginCheck.
	CheckOrigin func(r *http.Request) bool

	// ReadTimeout is the maximum time to wait for a client frame.
	// Default: 60 seconds.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait when sending a frame.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// MaxMessageSize is the maximum size of an incoming frame.
	// Default: 64KB.
	MaxMessageSize int64

	// MaxSessions is the maximum number of concurrent sessions.
	// 0 means no limit. Default: 0.
	MaxSessions int

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 30 seconds.
	ShutdownTimeout time.Duration

	// SessionConfig is the configuration handed to new sessions.
	// Default: session.DefaultConfig().
	SessionConfig *session.Config

	// EnableMetrics serves Prometheus metrics on /metrics.
	// Default: true.
	EnableMetrics bool
}

// DefaultConfig returns a Config with sensible defaults. CheckOrigin
// enforces same-origin by default to prevent cross-site WebSocket
// hijacking.
func DefaultConfig() *Config {
	return &Config{
		Address:         ":8080",
		WebSocketPath:   "/ws",
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     SameOriginCheck,
		ReadTimeout:     60 * time.Second,
		WriteTimeout:    10 * time.Second,
		MaxMessageSize:  64 * 1024,
		ShutdownTimeout: 30 * time.Second,
		SessionConfig:   session.DefaultConfig(),
		EnableMetrics:   true,
	}
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	clone.SessionConfig = c.SessionConfig.Clone()
	return &clone
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("server: Address must not be empty")
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("server: MaxMessageSize must be positive, got %d", c.MaxMessageSize)
	}
	if c.MaxSessions < 0 {
		return fmt.Errorf("server: MaxSessions must not be negative, got %d", c.MaxSessions)
	}
	if c.SessionConfig != nil {
		if err := c.SessionConfig.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// SameOriginCheck validates that the WebSocket request origin matches the
// host. This is the secure default for CheckOrigin.
func SameOriginCheck(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// No Origin header (e.g., same-origin request or curl).
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if r.Host == "" {
		return false
	}
	return originURL.Host == r.Host
}

// withDefaults fills unset fields from DefaultConfig.
func (c *Config) withDefaults() *Config {
	if c == nil {
		return DefaultConfig()
	}
	defaults := DefaultConfig()
	if c.Address == "" {
		c.Address = defaults.Address
	}
	if c.WebSocketPath == "" {
		c.WebSocketPath = defaults.WebSocketPath
	}
	if c.ReadBufferSize == 0 {
		c.ReadBufferSize = defaults.ReadBufferSize
	}
	if c.WriteBufferSize == 0 {
		c.WriteBufferSize = defaults.WriteBufferSize
	}
	if c.CheckOrigin == nil {
		c.CheckOrigin = defaults.CheckOrigin
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = defaults.ReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = defaults.WriteTimeout
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = defaults.MaxMessageSize
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if c.SessionConfig == nil {
		c.SessionConfig = defaults.SessionConfig
	}
	return c
}
