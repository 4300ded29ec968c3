package server

import (
	"context"
	"errors"
	"testing"

	"github.com/sockframe-dev/sockframe/pkg/broker"
	"github.com/sockframe-dev/sockframe/pkg/session"
)

type nopConn struct{}

func (nopConn) WriteFrame(context.Context, []byte) error { return nil }
func (nopConn) Close(int) error                          { return nil }

func newTestSession(t *testing.T) *session.Session {
	t.Helper()
	s := session.New(session.Options{
		Conn:   nopConn{},
		Broker: broker.NewMemoryBroker(),
	})
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	return s
}

func TestManager_AddRemove(t *testing.T) {
	m := NewManager(0, nil)
	s := newTestSession(t)

	if err := m.Add(s); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if got := m.Count(); got != 1 {
		t.Errorf("Count() = %d, want 1", got)
	}
	if got := m.Get(s.ID()); got != s {
		t.Errorf("Get() = %v", got)
	}

	m.Remove(s.ID())
	if got := m.Count(); got != 0 {
		t.Errorf("Count() = %d after Remove, want 0", got)
	}
	if got := m.Get(s.ID()); got != nil {
		t.Errorf("Get() = %v after Remove, want nil", got)
	}

	// Removing an unknown ID is a no-op.
	m.Remove("nope")
}

func TestManager_Disconnect(t *testing.T) {
	m := NewManager(0, nil)
	s := newTestSession(t)
	m.Add(s)

	if err := m.Disconnect(s.ID(), 1001); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	if got := s.State(); got != session.StateClosed {
		t.Errorf("session state = %v after Disconnect, want closed", got)
	}
	if got := m.Count(); got != 0 {
		t.Errorf("Count() = %d after Disconnect, want 0", got)
	}
	if got := m.Stats().TotalClosed; got != 1 {
		t.Errorf("TotalClosed = %d, want 1", got)
	}

	if err := m.Disconnect("nope", 1001); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Disconnect() of unknown ID error = %v, want ErrSessionNotFound", err)
	}
}

func TestManager_MaxSessions(t *testing.T) {
	m := NewManager(1, nil)

	if err := m.Add(newTestSession(t)); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := m.Add(newTestSession(t)); !errors.Is(err, ErrMaxSessionsReached) {
		t.Errorf("Add() over the limit error = %v, want ErrMaxSessionsReached", err)
	}
}

func TestManager_ForEach(t *testing.T) {
	m := NewManager(0, nil)
	for i := 0; i < 3; i++ {
		m.Add(newTestSession(t))
	}

	var visited int
	m.ForEach(func(*session.Session) bool {
		visited++
		return true
	})
	if visited != 3 {
		t.Errorf("visited %d sessions, want 3", visited)
	}

	visited = 0
	m.ForEach(func(*session.Session) bool {
		visited++
		return false
	})
	if visited != 1 {
		t.Errorf("visited %d sessions with early stop, want 1", visited)
	}
}

func TestManager_Stats(t *testing.T) {
	m := NewManager(0, nil)
	a := newTestSession(t)
	b := newTestSession(t)

	m.Add(a)
	m.Add(b)
	m.Remove(a.ID())

	stats := m.Stats()
	if stats.Active != 1 {
		t.Errorf("Active = %d, want 1", stats.Active)
	}
	if stats.TotalCreated != 2 {
		t.Errorf("TotalCreated = %d, want 2", stats.TotalCreated)
	}
	if stats.TotalClosed != 1 {
		t.Errorf("TotalClosed = %d, want 1", stats.TotalClosed)
	}
	if stats.Peak != 2 {
		t.Errorf("Peak = %d, want 2", stats.Peak)
	}
}

func TestManager_Shutdown(t *testing.T) {
	m := NewManager(0, nil)
	a := newTestSession(t)
	b := newTestSession(t)
	m.Add(a)
	m.Add(b)

	m.Shutdown(1001)

	if got := m.Count(); got != 0 {
		t.Errorf("Count() = %d after Shutdown, want 0", got)
	}
	for _, s := range []*session.Session{a, b} {
		if got := s.State(); got != session.StateClosed {
			t.Errorf("session state = %v after Shutdown, want closed", got)
		}
	}
}
