package session

import "context"

// Dispatch namespaces reported to middleware.
const (
	NamespaceAPI   = "api"
	NamespaceEvent = "event"
)

// Invocation describes one method dispatch flowing through the
// middleware chain.
type Invocation struct {
	Session   *Session
	Namespace string // NamespaceAPI or NamespaceEvent
	Method    string
}

// InvokeFunc continues the middleware chain. The result is nil for
// event-namespace dispatches.
type InvokeFunc func(ctx context.Context) (any, error)

// Middleware wraps method invocation. Middlewares run in registration
// order around both API and event dispatches.
type Middleware func(ctx context.Context, inv *Invocation, next InvokeFunc) (any, error)

// invoke runs core through the session's middleware chain.
func (s *Session) invoke(ctx context.Context, inv *Invocation, core InvokeFunc) (any, error) {
	next := core
	for i := len(s.middlewares) - 1; i >= 0; i-- {
		mw, wrapped := s.middlewares[i], next
		next = func(ctx context.Context) (any, error) {
			return mw(ctx, inv, wrapped)
		}
	}
	return next(ctx)
}
