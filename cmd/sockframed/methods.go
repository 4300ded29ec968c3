package main

import (
	"context"

	"github.com/sockframe-dev/sockframe/pkg/protocol"
	"github.com/sockframe-dev/sockframe/pkg/registry"
	"github.com/sockframe-dev/sockframe/pkg/session"
)

// newRegistry builds the server's method registry. API methods are
// client-invocable; event methods are reachable only through group
// broadcasts.
func newRegistry() *session.Registry {
	reg := registry.New[*session.Session]()

	reg.MustRegisterAPI("ping", &registry.Method[*session.Session]{
		AllowUnauthenticated: true,
		Handler:              handlePing,
	})

	reg.MustRegisterAPI("echo", &registry.Method[*session.Session]{
		MinArgs: 1,
		Handler: handleEcho,
	})

	reg.MustRegisterAPI("whoami", &registry.Method[*session.Session]{
		Handler: handleWhoami,
	})

	reg.MustRegisterAPI("send_to_user", &registry.Method[*session.Session]{
		RequiredKwargs: []string{"user_id", "data"},
		Handler:        handleSendToUser,
	})

	reg.MustRegisterEvent(session.EventCommonReturn, handleCommonReturn)

	return reg
}

func handlePing(_ context.Context, _ *session.Session, _ *registry.Call) (any, error) {
	return map[string]any{"type": "pong"}, nil
}

func handleEcho(_ context.Context, _ *session.Session, call *registry.Call) (any, error) {
	return map[string]any{"type": "echo", "data": call.Args[0]}, nil
}

func handleWhoami(_ context.Context, sess *session.Session, _ *registry.Call) (any, error) {
	p := sess.Principal()
	if p == nil {
		return nil, protocol.NewAccessError("Not authenticated.")
	}
	return map[string]any{"type": "whoami", "user_id": p.ID, "name": p.Name}, nil
}

// handleSendToUser fans data out to every connection of the target user.
// Fire-and-forget: no response frame is sent to the caller.
func handleSendToUser(ctx context.Context, sess *session.Session, call *registry.Call) (any, error) {
	userID, ok := call.Kwargs["user_id"].(string)
	if !ok || userID == "" {
		return nil, protocol.NewTypeError("Kwarg \"user_id\" has to be a non-empty string.")
	}
	err := sess.PublishToUser(ctx, userID, session.EventCommonReturn,
		[]any{call.Kwargs["data"]}, nil)
	return nil, err
}

// handleCommonReturn re-emits broadcast data to this session's client.
func handleCommonReturn(ctx context.Context, sess *session.Session, ev *registry.EventCall) error {
	var data any
	if len(ev.Args) > 0 {
		data = ev.Args[0]
	}
	return sess.Send(ctx, map[string]any{
		"type":        "common_return",
		"data":        data,
		"initiatorId": ev.InitiatorID,
	})
}
