package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/nkiryanov/betplatform/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publishes outbox messages to kafka, every message goes to its own topic
type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not provided")
	}

	// Topic is not set on writer: it is taken from every message
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
		ReadTimeout:            10 * time.Second,
		WriteTimeout:           10 * time.Second,
	}

	return &KafkaPublisher{writer: writer}, nil
}

// Publish writes messages keyed by aggregate id, so messages of one aggregate stay ordered
func (p *KafkaPublisher) Publish(ctx context.Context, messages ...models.OutboxMessage) error {
	if len(messages) == 0 {
		return nil
	}

	batch := make([]kafka.Message, 0, len(messages))
	for _, m := range messages {
		batch = append(batch, toKafka(m))
	}

	if err := p.writer.WriteMessages(ctx, batch...); err != nil {
		return fmt.Errorf("publish %d messages: %w", len(batch), err)
	}

	return nil
}

// Close flushes pending writes and releases connections
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func toKafka(m models.OutboxMessage) kafka.Message {
	return kafka.Message{
		Topic: m.Topic,
		Key:   []byte(m.Key),
		Value: m.Payload,
		Time:  m.CreatedAt,
		Headers: []kafka.Header{
			{Key: "outbox-id", Value: fmt.Appendf(nil, "%d", m.ID)},
		},
	}
}
