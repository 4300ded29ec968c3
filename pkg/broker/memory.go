package broker

import (
	"context"
	"sync"

	"github.com/sockframe-dev/sockframe/pkg/protocol"
)

// MemoryBroker is an in-process Broker: a mutex-guarded group→member map
// with synchronous fan-out. Delivery order to each member matches the
// publish order of a single publisher.
type MemoryBroker struct {
	mu     sync.RWMutex
	groups map[string]map[string]Member
	closed bool
}

// NewMemoryBroker creates an empty in-process broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		groups: make(map[string]map[string]Member),
	}
}

// Join implements Broker. Joining a group twice is a no-op.
func (b *MemoryBroker) Join(_ context.Context, group string, m Member) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBrokerClosed
	}

	members, ok := b.groups[group]
	if !ok {
		members = make(map[string]Member)
		b.groups[group] = members
	}
	members[m.MemberID()] = m
	return nil
}

// Leave implements Broker. Leaving a group the member is not in is a no-op.
func (b *MemoryBroker) Leave(_ context.Context, group string, m Member) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBrokerClosed
	}

	members, ok := b.groups[group]
	if !ok {
		return nil
	}
	delete(members, m.MemberID())
	if len(members) == 0 {
		delete(b.groups, group)
	}
	return nil
}

// Publish implements Broker. With no members in the group it is a no-op.
func (b *MemoryBroker) Publish(_ context.Context, group string, ev *protocol.Event) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBrokerClosed
	}
	members := make([]Member, 0, len(b.groups[group]))
	for _, m := range b.groups[group] {
		members = append(members, m)
	}
	b.mu.RUnlock()

	// Synchronous fan-out outside the lock; members enqueue and return.
	for _, m := range members {
		m.DeliverEvent(group, ev)
	}
	return nil
}

// MemberCount returns the number of members currently joined to a group.
func (b *MemoryBroker) MemberCount(group string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.groups[group])
}

// Close implements Broker. Further operations fail with ErrBrokerClosed.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.groups = make(map[string]map[string]Member)
	return nil
}
