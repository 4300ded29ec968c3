// Package auth implements the authentication gate: it resolves an opaque
// access token to a Principal through a pluggable Lookup and shapes
// failures for the wire.
//
// The gate deliberately reports every lookup failure as the same
// authorization error so clients cannot distinguish a bad token from a
// failing lookup service.
package auth

import (
	"context"
	"log/slog"

	"github.com/sockframe-dev/sockframe/pkg/protocol"
)

// Principal is the resolved identity of an authenticated user.
// Intentionally minimal; ID must be stable for the user's lifetime.
type Principal struct {
	ID    string   `json:"id"`
	Name  string   `json:"name,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// Lookup resolves an access token to a Principal. Implementations wrap
// whatever store actually holds credentials; the session core never
// assumes a particular one.
type Lookup interface {
	Resolve(ctx context.Context, token string) (Principal, error)
}

// Gate authenticates tokens on behalf of a session.
type Gate struct {
	lookup Lookup
	logger *slog.Logger
}

// NewGate creates a Gate backed by the given lookup.
func NewGate(lookup Lookup, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		lookup: lookup,
		logger: logger.With("component", "auth"),
	}
}

// Authenticate resolves a token to a Principal.
//
// An empty token fails with a field_error. Any lookup failure, including
// a resolved principal without a stable ID, fails with an
// authorization_error carrying a uniform detail message.
func (g *Gate) Authenticate(ctx context.Context, token string) (Principal, error) {
	if token == "" {
		return Principal{}, protocol.NewFieldError("There is no access token.")
	}

	principal, err := g.lookup.Resolve(ctx, token)
	if err != nil || principal.ID == "" {
		if err != nil {
			g.logger.Debug("token lookup failed", "error", err)
		}
		return Principal{}, protocol.NewAuthorizationError("Authorization failed.")
	}

	return principal, nil
}
