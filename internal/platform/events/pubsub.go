package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/trendora/api/internal/services"
)

// PubSubPublisher publishes order events to a Pub/Sub topic.
type PubSubPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

var _ services.OrderEventPublisher = (*PubSubPublisher)(nil)

// NewPubSubPublisher constructs a Pub/Sub backed order event publisher.
func NewPubSubPublisher(topic *pubsub.Topic) (*PubSubPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub event publisher: topic is required")
	}
	return &PubSubPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishOrderEvent sends the event and waits for the server to acknowledge it. When the topic
// has ordering enabled, events for the same order are delivered in publish order.
func (p *PubSubPublisher) PublishOrderEvent(ctx context.Context, event services.OrderEvent) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub event publisher: not initialised")
	}

	data, err := p.marshal(newMessage(event))
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	msg := &pubsub.Message{
		Data:       data,
		Attributes: attributes(event),
	}
	if p.topic.EnableMessageOrdering {
		msg.OrderingKey = event.OrderID
	}

	if _, err := p.topic.Publish(ctx, msg).Get(ctx); err != nil {
		if msg.OrderingKey != "" {
			p.topic.ResumePublish(msg.OrderingKey)
		}
		return fmt.Errorf("publish order event: %w", err)
	}
	return nil
}

// Stop flushes pending messages.
func (p *PubSubPublisher) Stop() {
	if p != nil && p.topic != nil {
		p.topic.Stop()
	}
}
