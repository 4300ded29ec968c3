// Package registry holds the two method namespaces a session dispatches
// into: API methods reachable from direct client requests, and event
// methods reachable only through broker-delivered broadcasts.
//
// A registry is populated at startup and immutable afterwards, so it is
// safe to share read-only across every session in the process. It is
// generic over the session type to stay free of session dependencies.
package registry

import (
	"context"
	"fmt"

	"github.com/sockframe-dev/sockframe/pkg/protocol"
)

// Call carries the decoded arguments of an API invocation.
type Call struct {
	Method string
	Args   []any
	Kwargs map[string]any
}

// EventCall carries the decoded arguments of a broker-delivered event.
type EventCall struct {
	Name        string
	InitiatorID string
	Args        []any
	Kwargs      map[string]any
	ResponseKey any
}

// APIHandler handles a direct client request. A nil result means no
// response frame is sent (fire-and-forget).
type APIHandler[S any] func(ctx context.Context, sess S, call *Call) (any, error)

// EventHandler handles a broker-delivered event. There is no reply channel
// back through the broker, so there is no result.
type EventHandler[S any] func(ctx context.Context, sess S, ev *EventCall) error

// Method describes a registered API method.
type Method[S any] struct {
	Handler APIHandler[S]

	// AllowUnauthenticated permits invocation before the session has
	// authenticated. Methods are privileged by default.
	AllowUnauthenticated bool

	// MinArgs is the minimum number of positional args required.
	MinArgs int

	// RequiredKwargs lists keyword args that must be present.
	RequiredKwargs []string
}

// ValidateCall checks arity and required kwargs before the handler runs.
// Violations fail with a type_error, matching unknown-method resolution.
func (m *Method[S]) ValidateCall(call *Call) error {
	if len(call.Args) < m.MinArgs {
		return protocol.NewTypeError(fmt.Sprintf(
			"Method %q requires at least %d positional args, got %d.",
			call.Method, m.MinArgs, len(call.Args)))
	}
	for _, key := range m.RequiredKwargs {
		if _, ok := call.Kwargs[key]; !ok {
			return protocol.NewTypeError(fmt.Sprintf(
				"Method %q requires kwarg %q.", call.Method, key))
		}
	}
	return nil
}

// Registry maps method names to handlers in two disjoint namespaces.
type Registry[S any] struct {
	api    map[string]*Method[S]
	events map[string]EventHandler[S]
}

// New creates an empty registry.
func New[S any]() *Registry[S] {
	return &Registry[S]{
		api:    make(map[string]*Method[S]),
		events: make(map[string]EventHandler[S]),
	}
}

// RegisterAPI adds a client-invocable method. Duplicate names are rejected.
func (r *Registry[S]) RegisterAPI(name string, method *Method[S]) error {
	if name == "" {
		return fmt.Errorf("registry: empty API method name")
	}
	if method == nil || method.Handler == nil {
		return fmt.Errorf("registry: API method %q has no handler", name)
	}
	if _, exists := r.api[name]; exists {
		return fmt.Errorf("registry: duplicate API method %q", name)
	}
	r.api[name] = method
	return nil
}

// MustRegisterAPI is RegisterAPI that panics on error. Intended for
// startup wiring where a registration failure is a programming error.
func (r *Registry[S]) MustRegisterAPI(name string, method *Method[S]) {
	if err := r.RegisterAPI(name, method); err != nil {
		panic(err)
	}
}

// RegisterEvent adds a broadcast-only event handler. Duplicate names are
// rejected.
func (r *Registry[S]) RegisterEvent(name string, handler EventHandler[S]) error {
	if name == "" {
		return fmt.Errorf("registry: empty event method name")
	}
	if handler == nil {
		return fmt.Errorf("registry: event method %q has no handler", name)
	}
	if _, exists := r.events[name]; exists {
		return fmt.Errorf("registry: duplicate event method %q", name)
	}
	r.events[name] = handler
	return nil
}

// MustRegisterEvent is RegisterEvent that panics on error.
func (r *Registry[S]) MustRegisterEvent(name string, handler EventHandler[S]) {
	if err := r.RegisterEvent(name, handler); err != nil {
		panic(err)
	}
}

// ResolveAPI looks up a client-invocable method by exact name. Unknown
// names fail with a type_error so dispatch failures remain distinguishable
// from application errors.
func (r *Registry[S]) ResolveAPI(name string) (*Method[S], error) {
	method, ok := r.api[name]
	if !ok {
		return nil, protocol.NewTypeError(fmt.Sprintf("Unknown method %q.", name))
	}
	return method, nil
}

// ResolveEvent looks up an event handler by exact name.
func (r *Registry[S]) ResolveEvent(name string) (EventHandler[S], error) {
	handler, ok := r.events[name]
	if !ok {
		return nil, protocol.NewTypeError(fmt.Sprintf("Unknown event method %q.", name))
	}
	return handler, nil
}

// APINames returns the registered API method names.
func (r *Registry[S]) APINames() []string {
	names := make([]string, 0, len(r.api))
	for name := range r.api {
		names = append(names, name)
	}
	return names
}

// EventNames returns the registered event method names.
func (r *Registry[S]) EventNames() []string {
	names := make([]string, 0, len(r.events))
	for name := range r.events {
		names = append(names, name)
	}
	return names
}
