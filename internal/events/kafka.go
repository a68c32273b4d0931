package events

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaPublisher writes events to a kafka topic, keyed by event name.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	if topic == "" {
		topic = DefaultChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	sugar := logger.Named("kafka").Sugar()
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			sugar.Errorf(msg, args...)
		}),
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, name string, payload interface{}) error {
	msg, err := newMessage(name, payload)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write %s to kafka: %w", name, err)
	}
	return nil
}

// Close flushes pending writes.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func newMessage(name string, payload interface{}) (kafka.Message, error) {
	data, err := encode(name, payload)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(name),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(name)},
		},
	}, nil
}
