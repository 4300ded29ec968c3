package auth

import (
	"context"
	"errors"
	"sync"
)

// ErrUnknownToken is returned by StaticLookup for tokens it does not hold.
var ErrUnknownToken = errors.New("auth: unknown token")

// StaticLookup resolves tokens from a fixed in-memory map. Useful for
// tests and local development.
type StaticLookup struct {
	mu     sync.RWMutex
	tokens map[string]Principal
}

// NewStaticLookup creates a StaticLookup from a token→principal map.
// The map is copied.
func NewStaticLookup(tokens map[string]Principal) *StaticLookup {
	copied := make(map[string]Principal, len(tokens))
	for token, principal := range tokens {
		copied[token] = principal
	}
	return &StaticLookup{tokens: copied}
}

// Add registers or replaces a token.
func (l *StaticLookup) Add(token string, principal Principal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tokens[token] = principal
}

// Revoke removes a token.
func (l *StaticLookup) Revoke(token string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.tokens, token)
}

// Resolve implements Lookup.
func (l *StaticLookup) Resolve(_ context.Context, token string) (Principal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	principal, ok := l.tokens[token]
	if !ok {
		return Principal{}, ErrUnknownToken
	}
	return principal, nil
}
