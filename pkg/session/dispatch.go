package session

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/sockframe-dev/sockframe/pkg/protocol"
	"github.com/sockframe-dev/sockframe/pkg/registry"
)

// maskedDetail replaces internal error details unless debug mode is on.
const maskedDetail = "Internal Server Error"

// handleFrame decodes and dispatches one client request. Every failure
// on this path is converted to an error response; nothing propagates to
// the transport layer.
func (s *Session) handleFrame(raw []byte) {
	// Frames queued before teardown began are dropped, not dispatched.
	if s.closed.Load() {
		return
	}

	ctx := context.Background()

	req, err := protocol.DecodeRequest(raw)
	if err != nil {
		s.reportError(ctx, err, nil)
		return
	}

	result, err := s.dispatchAPI(ctx, req)
	if err != nil {
		s.reportError(ctx, err, req.ResponseKey())
		return
	}

	// A nil result means fire-and-forget: no response frame.
	if result == nil {
		return
	}
	if err := s.Send(ctx, result); err != nil {
		s.logger.Error("response send failed", "method", req.Method, "error", err)
	}
}

// dispatchAPI resolves and invokes a method from the API namespace,
// authenticating lazily on the first privileged call.
func (s *Session) dispatchAPI(ctx context.Context, req *protocol.Request) (any, error) {
	method, err := s.reg.ResolveAPI(req.Method)
	if err != nil {
		return nil, err
	}

	if !s.Authenticated() && !method.AllowUnauthenticated {
		if err := s.authenticate(ctx, req.AccessToken()); err != nil {
			return nil, err
		}
	}

	call := &registry.Call{
		Method: req.Method,
		Args:   req.Args,
		Kwargs: req.Kwargs,
	}
	if err := method.ValidateCall(call); err != nil {
		return nil, err
	}

	inv := &Invocation{Session: s, Namespace: NamespaceAPI, Method: req.Method}
	return s.invoke(ctx, inv, func(ctx context.Context) (any, error) {
		return s.safeInvokeAPI(ctx, method, call)
	})
}

// authenticate consumes a token, resolves the principal, and joins the
// user's well-known group. On failure the triggering request is aborted;
// the session stays unauthenticated.
func (s *Session) authenticate(ctx context.Context, token string) error {
	if s.gate == nil {
		return protocol.NewAuthorizationError("Authorization failed.")
	}

	principal, err := s.gate.Authenticate(ctx, token)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.principal = &principal
	s.authenticated = true
	s.mu.Unlock()

	group := s.cfg.UserGroup(principal.ID)
	if err := s.bind.Attach(ctx, group); err != nil {
		s.logger.Warn("user group join failed", "group", group, "error", err)
	}

	s.logger.Info("session authenticated", "user_id", principal.ID)
	return nil
}

// handleGroupEvent resolves and invokes a method from the event
// namespace. There is no reply channel back through the broker, so a
// failing handler reports its error over this session's own transport.
func (s *Session) handleGroupEvent(group string, ev *protocol.Event) {
	if s.closed.Load() {
		return
	}

	ctx := context.Background()

	handler, err := s.reg.ResolveEvent(ev.Name)
	if err != nil {
		s.reportError(ctx, err, ev.ResponseKey)
		return
	}

	call := &registry.EventCall{
		Name:        ev.Name,
		InitiatorID: ev.InitiatorID,
		Args:        ev.Args,
		Kwargs:      ev.Kwargs,
		ResponseKey: ev.ResponseKey,
	}

	inv := &Invocation{Session: s, Namespace: NamespaceEvent, Method: ev.Name}
	_, err = s.invoke(ctx, inv, func(ctx context.Context) (any, error) {
		return nil, s.safeInvokeEvent(ctx, handler, call)
	})
	if err != nil {
		s.logger.Warn("event handler failed",
			"group", group, "event", ev.Name, "error", err)
		s.reportError(ctx, err, ev.ResponseKey)
	}
}

// safeInvokeAPI runs an API handler with panic recovery.
func (s *Session) safeInvokeAPI(ctx context.Context, method *registry.Method[*Session], call *registry.Call) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("handler panic",
				"method", call.Method,
				"panic", r,
				"stack", string(debug.Stack()))
			result = nil
			err = fmt.Errorf("session: handler panic: %v", r)
		}
	}()
	return method.Handler(ctx, s, call)
}

// safeInvokeEvent runs an event handler with panic recovery.
func (s *Session) safeInvokeEvent(ctx context.Context, handler registry.EventHandler[*Session], call *registry.EventCall) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("event handler panic",
				"event", call.Name,
				"panic", r,
				"stack", string(debug.Stack()))
			err = fmt.Errorf("session: event handler panic: %v", r)
		}
	}()
	return handler(ctx, s, call)
}

// reportError converts any dispatch failure into an error response.
// ClientError details are always shown verbatim; everything else is
// masked unless debug mode is enabled, to avoid leaking internals.
func (s *Session) reportError(ctx context.Context, err error, responseKey any) {
	resp := &protocol.ErrorResponse{
		Type:        protocol.ErrorTypeSystem,
		ResponseKey: responseKey,
	}
	if ce, ok := protocol.AsClientError(err); ok {
		resp.Detail = ce.Detail
		resp.Type = ce.Type
		resp.Extra = ce.Extra
	} else if s.cfg.DebugMode {
		resp.Detail = err.Error()
	} else {
		resp.Detail = maskedDetail
	}

	s.logger.Warn("request failed", "type_code", resp.Type, "error", err)

	if sendErr := s.Send(ctx, resp); sendErr != nil {
		s.logger.Error("error response send failed", "error", sendErr)
	}
}
