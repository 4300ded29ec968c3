package session

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Environment variables consumed by ConfigFromEnv.
const (
	EnvDebug           = "SOCKFRAME_DEBUG"
	EnvUserGroupPrefix = "SOCKFRAME_USER_GROUP_PREFIX"
	EnvBaseGroups      = "SOCKFRAME_BASE_GROUPS"
)

// Config holds per-session configuration.
type Config struct {
	// DebugMode exposes internal error details to clients verbatim.
	// When false, non-client errors are masked as a generic message.
	// Default: false.
	DebugMode bool

	// UserGroupPrefix is prepended to a principal ID to derive the
	// per-user broadcast group, enabling fan-out to every concurrent
	// session of one user. Default: "user__".
	UserGroupPrefix string

	// BaseGroups are joined by every session on connect, best-effort.
	// Default: none.
	BaseGroups []string

	// FrameQueueSize is the inbound frame channel buffer.
	// Default: 64.
	FrameQueueSize int

	// EventQueueSize is the broker event channel buffer.
	// Default: 64.
	EventQueueSize int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		UserGroupPrefix: "user__",
		FrameQueueSize:  64,
		EventQueueSize:  64,
	}
}

// ConfigFromEnv returns DefaultConfig overridden by the SOCKFRAME_*
// environment variables. SOCKFRAME_BASE_GROUPS is a comma-separated list.
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()
	if v := os.Getenv(EnvDebug); v != "" {
		if debug, err := strconv.ParseBool(v); err == nil {
			cfg.DebugMode = debug
		}
	}
	if v := os.Getenv(EnvUserGroupPrefix); v != "" {
		cfg.UserGroupPrefix = v
	}
	if v := os.Getenv(EnvBaseGroups); v != "" {
		for _, group := range strings.Split(v, ",") {
			if group = strings.TrimSpace(group); group != "" {
				cfg.BaseGroups = append(cfg.BaseGroups, group)
			}
		}
	}
	return cfg
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	if c.BaseGroups != nil {
		clone.BaseGroups = make([]string, len(c.BaseGroups))
		copy(clone.BaseGroups, c.BaseGroups)
	}
	return &clone
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.FrameQueueSize <= 0 {
		return fmt.Errorf("session: FrameQueueSize must be positive, got %d", c.FrameQueueSize)
	}
	if c.EventQueueSize <= 0 {
		return fmt.Errorf("session: EventQueueSize must be positive, got %d", c.EventQueueSize)
	}
	if c.UserGroupPrefix == "" {
		return fmt.Errorf("session: UserGroupPrefix must not be empty")
	}
	return nil
}

// UserGroup derives the well-known broadcast group for one user.
func (c *Config) UserGroup(principalID string) string {
	return c.UserGroupPrefix + principalID
}
