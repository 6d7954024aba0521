package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/DukeRupert/tsfwatch/internal/metrics"
)

// MessageWriter is the subset of *kafka.Writer the sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter returns a synchronous writer for topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
}

// KafkaSink forwards bus events to a Kafka topic, keyed by event type.
// Broker failures are logged and the event is dropped.
type KafkaSink struct {
	writer       MessageWriter
	writeTimeout time.Duration
	logger       *slog.Logger
}

// NewKafkaSink wraps writer.
func NewKafkaSink(writer MessageWriter, logger *slog.Logger) *KafkaSink {
	return &KafkaSink{
		writer:       writer,
		writeTimeout: 5 * time.Second,
		logger:       logger.With("component", "kafka-sink"),
	}
}

// Run forwards events until the channel closes or ctx is done, then closes
// the writer.
func (s *KafkaSink) Run(ctx context.Context, events <-chan Event) {
	defer func() {
		if err := s.writer.Close(); err != nil {
			s.logger.Warn("failed to close kafka writer", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			s.forward(ctx, event)
		}
	}
}

func (s *KafkaSink) forward(ctx context.Context, event Event) {
	value, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("failed to encode event", "type", event.Type, "error", err)
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()

	err = s.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(event.Type),
		Value: value,
		Time:  event.At,
	})
	if err != nil {
		metrics.CollaboratorFallback("kafka")
		s.logger.Warn("failed to publish event to kafka", "type", event.Type, "error", err)
	}
}
