package broker

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrBindingClosed is returned by Attach once DetachAll has begun. A
// closed binding never accepts a new membership, so teardown cannot
// race with a late join.
var ErrBindingClosed = errors.New("broker: binding closed")

// Binding tracks one member's group memberships against a shared Broker.
// It owns the activeGroups set: Attach and Detach are idempotent, and
// DetachAll leaves every group concurrently, returning only once each
// leave has completed or failed. DetachAll also closes the binding.
type Binding struct {
	broker Broker
	member Member
	logger *slog.Logger

	mu     sync.Mutex
	groups map[string]struct{}
	closed bool
}

// NewBinding creates a Binding for a member against a broker.
func NewBinding(b Broker, m Member, logger *slog.Logger) *Binding {
	if logger == nil {
		logger = slog.Default()
	}
	return &Binding{
		broker: b,
		member: m,
		logger: logger,
		groups: make(map[string]struct{}),
	}
}

// Attach joins a group. A no-op if the member is already attached.
// Returns ErrBindingClosed once DetachAll has begun.
func (b *Binding) Attach(ctx context.Context, group string) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBindingClosed
	}
	if _, attached := b.groups[group]; attached {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	if err := b.broker.Join(ctx, group, b.member); err != nil {
		return err
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		// DetachAll ran while the join was in flight; the membership
		// must not outlive teardown, so undo it.
		if err := b.broker.Leave(ctx, group, b.member); err != nil {
			b.logger.Warn("leave after late join failed", "group", group, "error", err)
		}
		return ErrBindingClosed
	}
	b.groups[group] = struct{}{}
	b.mu.Unlock()
	return nil
}

// Detach leaves a group. A no-op if the member is not attached.
func (b *Binding) Detach(ctx context.Context, group string) error {
	b.mu.Lock()
	if _, attached := b.groups[group]; !attached {
		b.mu.Unlock()
		return nil
	}
	delete(b.groups, group)
	b.mu.Unlock()

	return b.broker.Leave(ctx, group, b.member)
}

// DetachAll closes the binding, leaves every attached group
// concurrently and waits for every leave to complete or fail. The first
// failure is returned; the set is cleared regardless so no membership
// survives teardown. Subsequent Attach calls fail with ErrBindingClosed.
func (b *Binding) DetachAll(ctx context.Context) error {
	b.mu.Lock()
	b.closed = true
	groups := make([]string, 0, len(b.groups))
	for group := range b.groups {
		groups = append(groups, group)
	}
	b.groups = make(map[string]struct{})
	b.mu.Unlock()

	var eg errgroup.Group
	for _, group := range groups {
		group := group
		eg.Go(func() error {
			if err := b.broker.Leave(ctx, group, b.member); err != nil {
				b.logger.Warn("group leave failed during teardown",
					"group", group, "error", err)
				return err
			}
			return nil
		})
	}
	return eg.Wait()
}

// Has reports whether the member is attached to a group.
func (b *Binding) Has(group string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, attached := b.groups[group]
	return attached
}

// Groups returns the attached group names, sorted.
func (b *Binding) Groups() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	groups := make([]string, 0, len(b.groups))
	for group := range b.groups {
		groups = append(groups, group)
	}
	sort.Strings(groups)
	return groups
}

// Count returns the number of attached groups.
func (b *Binding) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.groups)
}
