package broker

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
)

// countingBroker counts Join and Leave calls per group.
type countingBroker struct {
	*MemoryBroker

	mu     sync.Mutex
	joins  map[string]int
	leaves map[string]int

	leaveErr error
}

func newCountingBroker() *countingBroker {
	return &countingBroker{
		MemoryBroker: NewMemoryBroker(),
		joins:        make(map[string]int),
		leaves:       make(map[string]int),
	}
}

func (b *countingBroker) Join(ctx context.Context, group string, m Member) error {
	b.mu.Lock()
	b.joins[group]++
	b.mu.Unlock()
	return b.MemoryBroker.Join(ctx, group, m)
}

func (b *countingBroker) Leave(ctx context.Context, group string, m Member) error {
	b.mu.Lock()
	b.leaves[group]++
	err := b.leaveErr
	b.mu.Unlock()
	if err != nil {
		return err
	}
	return b.MemoryBroker.Leave(ctx, group, m)
}

func TestBinding_AttachIdempotent(t *testing.T) {
	b := newCountingBroker()
	bind := NewBinding(b, newRecordingMember("m"), nil)
	ctx := context.Background()

	if err := bind.Attach(ctx, "room"); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	if err := bind.Attach(ctx, "room"); err != nil {
		t.Fatalf("repeated Attach() error = %v", err)
	}

	if got := b.joins["room"]; got != 1 {
		t.Errorf("broker Join called %d times, want 1", got)
	}
	if !bind.Has("room") {
		t.Error("Has(room) = false after Attach")
	}
	if got := bind.Count(); got != 1 {
		t.Errorf("Count() = %d, want 1", got)
	}
}

func TestBinding_DetachIdempotent(t *testing.T) {
	b := newCountingBroker()
	bind := NewBinding(b, newRecordingMember("m"), nil)
	ctx := context.Background()

	bind.Attach(ctx, "room")
	if err := bind.Detach(ctx, "room"); err != nil {
		t.Fatalf("Detach() error = %v", err)
	}
	if err := bind.Detach(ctx, "room"); err != nil {
		t.Fatalf("repeated Detach() error = %v", err)
	}

	if got := b.leaves["room"]; got != 1 {
		t.Errorf("broker Leave called %d times, want 1", got)
	}
	if bind.Has("room") {
		t.Error("Has(room) = true after Detach")
	}
}

func TestBinding_Groups(t *testing.T) {
	bind := NewBinding(NewMemoryBroker(), newRecordingMember("m"), nil)
	ctx := context.Background()

	bind.Attach(ctx, "zeta")
	bind.Attach(ctx, "alpha")
	bind.Attach(ctx, "mid")

	want := []string{"alpha", "mid", "zeta"}
	if got := bind.Groups(); !reflect.DeepEqual(got, want) {
		t.Errorf("Groups() = %v, want %v", got, want)
	}
}

func TestBinding_DetachAll(t *testing.T) {
	b := newCountingBroker()
	member := newRecordingMember("m")
	bind := NewBinding(b, member, nil)
	ctx := context.Background()

	for _, group := range []string{"a", "b", "c"} {
		bind.Attach(ctx, group)
	}

	if err := bind.DetachAll(ctx); err != nil {
		t.Fatalf("DetachAll() error = %v", err)
	}
	if got := bind.Count(); got != 0 {
		t.Errorf("Count() = %d after DetachAll, want 0", got)
	}
	for _, group := range []string{"a", "b", "c"} {
		if got := b.leaves[group]; got != 1 {
			t.Errorf("broker Leave(%s) called %d times, want 1", group, got)
		}
		if got := b.MemberCount(group); got != 0 {
			t.Errorf("MemberCount(%s) = %d after DetachAll", group, got)
		}
	}
}

func TestBinding_DetachAllClearsOnError(t *testing.T) {
	b := newCountingBroker()
	bind := NewBinding(b, newRecordingMember("m"), nil)
	ctx := context.Background()

	bind.Attach(ctx, "a")
	bind.Attach(ctx, "b")
	b.mu.Lock()
	b.leaveErr = errors.New("transport down")
	b.mu.Unlock()

	if err := bind.DetachAll(ctx); err == nil {
		t.Fatal("DetachAll() expected error")
	}
	// The membership set is cleared even when leaves fail.
	if got := bind.Count(); got != 0 {
		t.Errorf("Count() = %d after failed DetachAll, want 0", got)
	}
}

func TestBinding_AttachAfterDetachAll(t *testing.T) {
	b := newCountingBroker()
	bind := NewBinding(b, newRecordingMember("m"), nil)
	ctx := context.Background()

	bind.Attach(ctx, "room")
	if err := bind.DetachAll(ctx); err != nil {
		t.Fatalf("DetachAll() error = %v", err)
	}

	if err := bind.Attach(ctx, "user__u1"); !errors.Is(err, ErrBindingClosed) {
		t.Errorf("Attach() after DetachAll error = %v, want ErrBindingClosed", err)
	}
	if got := b.joins["user__u1"]; got != 0 {
		t.Errorf("broker Join called %d times after DetachAll, want 0", got)
	}
	if got := b.MemberCount("user__u1"); got != 0 {
		t.Errorf("MemberCount(user__u1) = %d after closed Attach, want 0", got)
	}
	if got := bind.Count(); got != 0 {
		t.Errorf("Count() = %d after closed Attach, want 0", got)
	}
}

func TestBinding_DetachAllEmpty(t *testing.T) {
	bind := NewBinding(NewMemoryBroker(), newRecordingMember("m"), nil)
	if err := bind.DetachAll(context.Background()); err != nil {
		t.Errorf("DetachAll() on empty binding error = %v", err)
	}
}
