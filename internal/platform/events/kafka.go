package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/trendora/api/internal/services"
)

const kafkaWriteTimeout = 10 * time.Second

// messageWriter is the subset of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes order events to a Kafka topic keyed by order id.
type KafkaPublisher struct {
	writer  messageWriter
	marshal func(any) ([]byte, error)
}

var _ services.OrderEventPublisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher builds a publisher writing to topic on the given brokers.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	addrs := make([]string, 0, len(brokers))
	for _, broker := range brokers {
		if broker = strings.TrimSpace(broker); broker != "" {
			addrs = append(addrs, broker)
		}
	}
	if len(addrs) == 0 {
		return nil, errors.New("kafka event publisher: at least one broker is required")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, errors.New("kafka event publisher: topic is required")
	}
	return newKafkaPublisher(&kafka.Writer{
		Addr:                   kafka.TCP(addrs...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		WriteTimeout:           kafkaWriteTimeout,
		AllowAutoTopicCreation: false,
	}), nil
}

func newKafkaPublisher(writer messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, marshal: json.Marshal}
}

// PublishOrderEvent writes the event synchronously. The Hash balancer keeps all events for one
// order on the same partition.
func (p *KafkaPublisher) PublishOrderEvent(ctx context.Context, event services.OrderEvent) error {
	if p == nil || p.writer == nil {
		return errors.New("kafka event publisher: not initialised")
	}

	data, err := p.marshal(newMessage(event))
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	attrs := attributes(event)
	headers := make([]kafka.Header, 0, len(attrs))
	for key, value := range attrs {
		headers = append(headers, kafka.Header{Key: key, Value: []byte(value)})
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(event.OrderID),
		Value:   data,
		Headers: headers,
		Time:    event.OccurredAt.UTC(),
	}); err != nil {
		return fmt.Errorf("publish order event: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
