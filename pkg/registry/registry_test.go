package registry

import (
	"context"
	"strings"
	"testing"

	"github.com/sockframe-dev/sockframe/pkg/protocol"
)

type fakeSession struct{ id string }

func okHandler(_ context.Context, _ *fakeSession, _ *Call) (any, error) {
	return "ok", nil
}

func okEventHandler(_ context.Context, _ *fakeSession, _ *EventCall) error {
	return nil
}

func TestRegisterAndResolveAPI(t *testing.T) {
	reg := New[*fakeSession]()

	if err := reg.RegisterAPI("ping", &Method[*fakeSession]{Handler: okHandler}); err != nil {
		t.Fatalf("RegisterAPI() error = %v", err)
	}

	method, err := reg.ResolveAPI("ping")
	if err != nil {
		t.Fatalf("ResolveAPI() error = %v", err)
	}
	result, err := method.Handler(context.Background(), &fakeSession{}, &Call{Method: "ping"})
	if err != nil || result != "ok" {
		t.Errorf("Handler() = (%v, %v), want (ok, nil)", result, err)
	}
}

func TestRegisterAPI_Invalid(t *testing.T) {
	reg := New[*fakeSession]()
	reg.MustRegisterAPI("ping", &Method[*fakeSession]{Handler: okHandler})

	tests := []struct {
		name   string
		method string
		m      *Method[*fakeSession]
	}{
		{"duplicate", "ping", &Method[*fakeSession]{Handler: okHandler}},
		{"empty name", "", &Method[*fakeSession]{Handler: okHandler}},
		{"nil method", "other", nil},
		{"nil handler", "other", &Method[*fakeSession]{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := reg.RegisterAPI(tt.method, tt.m); err == nil {
				t.Error("RegisterAPI() expected error, got nil")
			}
		})
	}
}

func TestResolveAPI_Unknown(t *testing.T) {
	reg := New[*fakeSession]()

	_, err := reg.ResolveAPI("nope")
	if err == nil {
		t.Fatal("ResolveAPI() expected error")
	}
	ce, ok := protocol.AsClientError(err)
	if !ok {
		t.Fatalf("error %v is not a ClientError", err)
	}
	if ce.Type != protocol.ErrorTypeType {
		t.Errorf("error type = %q, want %q", ce.Type, protocol.ErrorTypeType)
	}
	if !strings.Contains(ce.Detail, "nope") {
		t.Errorf("detail %q does not name the method", ce.Detail)
	}
}

func TestNamespacesAreDisjoint(t *testing.T) {
	reg := New[*fakeSession]()
	reg.MustRegisterAPI("notify", &Method[*fakeSession]{Handler: okHandler})
	reg.MustRegisterEvent("notify", okEventHandler)

	if _, err := reg.ResolveAPI("notify"); err != nil {
		t.Errorf("ResolveAPI() error = %v", err)
	}
	if _, err := reg.ResolveEvent("notify"); err != nil {
		t.Errorf("ResolveEvent() error = %v", err)
	}
}

func TestResolveEvent_Unknown(t *testing.T) {
	reg := New[*fakeSession]()
	reg.MustRegisterAPI("ping", &Method[*fakeSession]{Handler: okHandler})

	// API registrations must not leak into the event namespace.
	_, err := reg.ResolveEvent("ping")
	if err == nil {
		t.Fatal("ResolveEvent() expected error")
	}
	ce, ok := protocol.AsClientError(err)
	if !ok || ce.Type != protocol.ErrorTypeType {
		t.Errorf("error = %v, want type_error ClientError", err)
	}
}

func TestRegisterEvent_Invalid(t *testing.T) {
	reg := New[*fakeSession]()
	reg.MustRegisterEvent("tick", okEventHandler)

	if err := reg.RegisterEvent("tick", okEventHandler); err == nil {
		t.Error("duplicate RegisterEvent() expected error")
	}
	if err := reg.RegisterEvent("", okEventHandler); err == nil {
		t.Error("empty-name RegisterEvent() expected error")
	}
	if err := reg.RegisterEvent("other", nil); err == nil {
		t.Error("nil-handler RegisterEvent() expected error")
	}
}

func TestMustRegisterAPI_Panics(t *testing.T) {
	reg := New[*fakeSession]()
	reg.MustRegisterAPI("ping", &Method[*fakeSession]{Handler: okHandler})

	defer func() {
		if recover() == nil {
			t.Error("MustRegisterAPI() did not panic on duplicate")
		}
	}()
	reg.MustRegisterAPI("ping", &Method[*fakeSession]{Handler: okHandler})
}

func TestValidateCall(t *testing.T) {
	m := &Method[*fakeSession]{
		Handler:        okHandler,
		MinArgs:        2,
		RequiredKwargs: []string{"room"},
	}

	tests := []struct {
		name    string
		call    *Call
		wantErr bool
	}{
		{
			"valid",
			&Call{Method: "m", Args: []any{1, 2}, Kwargs: map[string]any{"room": "lobby"}},
			false,
		},
		{
			"extra args ok",
			&Call{Method: "m", Args: []any{1, 2, 3}, Kwargs: map[string]any{"room": "lobby"}},
			false,
		},
		{
			"too few args",
			&Call{Method: "m", Args: []any{1}, Kwargs: map[string]any{"room": "lobby"}},
			true,
		},
		{
			"missing kwarg",
			&Call{Method: "m", Args: []any{1, 2}, Kwargs: map[string]any{}},
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.ValidateCall(tt.call)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateCall() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				ce, ok := protocol.AsClientError(err)
				if !ok || ce.Type != protocol.ErrorTypeType {
					t.Errorf("error = %v, want type_error ClientError", err)
				}
			}
		})
	}
}

func TestNames(t *testing.T) {
	reg := New[*fakeSession]()
	reg.MustRegisterAPI("a", &Method[*fakeSession]{Handler: okHandler})
	reg.MustRegisterAPI("b", &Method[*fakeSession]{Handler: okHandler})
	reg.MustRegisterEvent("c", okEventHandler)

	if got := len(reg.APINames()); got != 2 {
		t.Errorf("len(APINames()) = %d, want 2", got)
	}
	if got := len(reg.EventNames()); got != 1 {
		t.Errorf("len(EventNames()) = %d, want 1", got)
	}
}
