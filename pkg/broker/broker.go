// Package broker defines the group broadcast port: named groups that
// sessions join and leave dynamically, with at-least-once fan-out of event
// envelopes to every current member.
//
// Two implementations satisfy the same contract: MemoryBroker, an
// in-process fan-out used by unit tests and single-process deployments,
// and PubSubBroker, which rides any watermill publisher/subscriber pair
// (gochannel in-process, NATS across processes).
package broker

import (
	"context"
	"errors"

	"github.com/sockframe-dev/sockframe/pkg/protocol"
)

// ErrBrokerClosed is returned for operations on a closed broker.
var ErrBrokerClosed = errors.New("broker: closed")

// Member receives events published to groups it has joined.
//
// DeliverEvent must not block: session members enqueue the event onto
// their own serialized loop and return.
type Member interface {
	// MemberID identifies the member within the process. Stable for the
	// member's lifetime.
	MemberID() string

	// DeliverEvent hands over one event published to a joined group.
	DeliverEvent(group string, ev *protocol.Event)
}

// Broker is the group broadcast port.
//
// Join and Leave are idempotent. Publish delivers the envelope to every
// member currently joined to the group, at-least-once, preserving the
// publish order of a single publisher within one group; publishing to a
// group with no members is a no-op.
type Broker interface {
	Join(ctx context.Context, group string, m Member) error
	Leave(ctx context.Context, group string, m Member) error
	Publish(ctx context.Context, group string, ev *protocol.Event) error
	Close() error
}
