package broker

import (
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/nats-io/nats.go"
)

// NewNATSBroker creates a PubSubBroker backed by NATS, fanning out group
// events to every process subscribed to the same subjects. Group names
// map directly to NATS subjects.
func NewNATSBroker(url string, logger *slog.Logger) (*PubSubBroker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	wmLogger := watermill.NewSlogLogger(logger)
	marshaler := &wmnats.NATSMarshaler{}

	natsOptions := []nats.Option{
		nats.Name("sockframe"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.Timeout(10 * time.Second),
	}

	pub, err := wmnats.NewPublisher(wmnats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOptions,
		Marshaler:   marshaler,
	}, wmLogger)
	if err != nil {
		return nil, err
	}

	sub, err := wmnats.NewSubscriber(wmnats.SubscriberConfig{
		URL:         url,
		NatsOptions: natsOptions,
		Unmarshaler: marshaler,
	}, wmLogger)
	if err != nil {
		pub.Close()
		return nil, err
	}

	return NewPubSubBroker(pub, sub, logger), nil
}
