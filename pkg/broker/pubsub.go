package broker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/sockframe-dev/sockframe/pkg/protocol"
)

// PubSubBroker implements Broker on top of a watermill publisher and
// subscriber. Groups map to topics; every member holds its own
// subscription per group, so each subscribed member receives every
// published envelope.
//
// Backed by gochannel it fans out within one process; backed by NATS it
// fans out across every process subscribed to the same subjects.
type PubSubBroker struct {
	pub    message.Publisher
	sub    message.Subscriber
	logger *slog.Logger

	mu     sync.Mutex
	subs   map[subKey]context.CancelFunc
	closed bool

	wg sync.WaitGroup
}

type subKey struct {
	group  string
	member string
}

// NewPubSubBroker wraps an existing publisher/subscriber pair.
func NewPubSubBroker(pub message.Publisher, sub message.Subscriber, logger *slog.Logger) *PubSubBroker {
	if logger == nil {
		logger = slog.Default()
	}
	return &PubSubBroker{
		pub:    pub,
		sub:    sub,
		logger: logger.With("component", "broker"),
		subs:   make(map[subKey]context.CancelFunc),
	}
}

// NewGoChannelBroker creates a PubSubBroker backed by watermill's
// in-memory gochannel transport. Single-process only.
func NewGoChannelBroker(logger *slog.Logger) *PubSubBroker {
	if logger == nil {
		logger = slog.Default()
	}
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewSlogLogger(logger))
	return NewPubSubBroker(pubSub, pubSub, logger)
}

// Join implements Broker. The first join opens a topic subscription owned
// by the member; repeated joins are no-ops.
func (b *PubSubBroker) Join(_ context.Context, group string, m Member) error {
	key := subKey{group: group, member: m.MemberID()}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBrokerClosed
	}
	if _, exists := b.subs[key]; exists {
		return nil
	}

	// The subscription outlives the Join call; it is torn down by Leave
	// or Close, not by the caller's context.
	subCtx, cancel := context.WithCancel(context.Background())
	msgs, err := b.sub.Subscribe(subCtx, group)
	if err != nil {
		cancel()
		return err
	}

	b.subs[key] = cancel
	b.wg.Add(1)
	go b.forward(group, m, msgs)
	return nil
}

// forward pumps messages from one subscription into the member.
func (b *PubSubBroker) forward(group string, m Member, msgs <-chan *message.Message) {
	defer b.wg.Done()

	for msg := range msgs {
		ev, err := protocol.DecodeEvent(msg.Payload)
		if err != nil {
			b.logger.Warn("dropping undecodable group event",
				"group", group,
				"message_id", msg.UUID,
				"error", err)
			msg.Ack()
			continue
		}
		m.DeliverEvent(group, ev)
		msg.Ack()
	}
}

// Leave implements Broker. Cancels the member's subscription for the
// group; leaving a group the member never joined is a no-op.
func (b *PubSubBroker) Leave(_ context.Context, group string, m Member) error {
	key := subKey{group: group, member: m.MemberID()}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBrokerClosed
	}
	cancel, exists := b.subs[key]
	if !exists {
		return nil
	}
	delete(b.subs, key)
	cancel()
	return nil
}

// Publish implements Broker.
func (b *PubSubBroker) Publish(_ context.Context, group string, ev *protocol.Event) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBrokerClosed
	}
	b.mu.Unlock()

	payload, err := protocol.EncodeEvent(ev)
	if err != nil {
		return err
	}
	return b.pub.Publish(group, message.NewMessage(watermill.NewUUID(), payload))
}

// Close implements Broker. Cancels every subscription, waits for the
// forwarding goroutines, and closes the underlying publisher and
// subscriber.
func (b *PubSubBroker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for key, cancel := range b.subs {
		cancel()
		delete(b.subs, key)
	}
	b.mu.Unlock()

	b.wg.Wait()

	errPub := b.pub.Close()
	errSub := b.sub.Close()
	return errors.Join(errPub, errSub)
}
