package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/ride-booking/internal/models"
)

// batchTimeout caps how long a partial batch waits before it is flushed.
const batchTimeout = 10 * time.Millisecond

// KafkaProducer writes driver locations and ride lifecycle events. Writes are
// asynchronous: Publish* only enqueue, and delivery failures are logged from
// the writer's completion callback.
type KafkaProducer struct {
	locations *kafka.Writer
	events    *kafka.Writer
}

func NewKafkaProducer(brokers []string, locationTopic, eventsTopic string, logger *slog.Logger) *KafkaProducer {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaProducer{
		locations: newWriter(brokers, locationTopic, logger),
		events:    newWriter(brokers, eventsTopic, logger),
	}
}

func newWriter(brokers []string, topic string, logger *slog.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: batchTimeout,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion:   logFailedDelivery(logger, topic),
	}
}

func logFailedDelivery(logger *slog.Logger, topic string) func([]kafka.Message, error) {
	return func(msgs []kafka.Message, err error) {
		if err == nil {
			return
		}
		keys := make([]string, len(msgs))
		for i, m := range msgs {
			keys[i] = string(m.Key)
		}
		logger.Warn("kafka_delivery_failed", "topic", topic, "messages", len(msgs), "keys", keys, "error", err)
	}
}

// PublishLocation is keyed by driver id so one driver's positions stay ordered.
func (k *KafkaProducer) PublishLocation(ctx context.Context, p models.DriverPosition) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return k.locations.WriteMessages(ctx, kafka.Message{Key: []byte(strconv.FormatInt(p.DriverID, 10)), Value: b})
}

// PublishRideEvent keys by ride id so one ride's events stay ordered.
func (k *KafkaProducer) PublishRideEvent(ctx context.Context, e models.RideEvent) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return k.events.WriteMessages(ctx, kafka.Message{Key: []byte(strconv.FormatInt(e.RideID, 10)), Value: b})
}

// Close flushes pending messages.
func (k *KafkaProducer) Close() error {
	var first error
	for _, w := range []*kafka.Writer{k.locations, k.events} {
		if w == nil {
			continue
		}
		if err := w.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
