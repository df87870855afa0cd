package nats

import (
	"context"
	"fmt"

	"github.com/abgdnv/bazaar/pkg/messaging"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const eventTypeHeader = "Bazaar-Event"

// Publisher stores messaging events in JetStream. Events with a message id are published with
// it so the stream drops duplicates within its window.
type Publisher struct {
	js jetstream.JetStream
}

func NewPublisher(js jetstream.JetStream) *Publisher {
	return &Publisher{js: js}
}

func (p *Publisher) Publish(ctx context.Context, event messaging.Event) error {
	data, err := event.Payload()
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event.Subject(), err)
	}
	msg := &nats.Msg{Subject: event.Subject(), Data: data, Header: nats.Header{}}
	msg.Header.Set(eventTypeHeader, event.Subject())
	msg.Header.Set("Content-Type", "application/json")

	var opts []jetstream.PublishOpt
	if id := messaging.MessageID(event); id != "" {
		opts = append(opts, jetstream.WithMsgID(id))
	}
	if _, err := p.js.PublishMsg(ctx, msg, opts...); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", event.Subject(), err)
	}
	return nil
}
