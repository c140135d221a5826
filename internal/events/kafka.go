package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// KafkaSink publishes events keyed by appointment id so one appointment's
// events stay ordered within a partition.
type KafkaSink struct {
	writer *kafka.Writer
}

// NewKafkaSink returns Nop when no brokers are configured.
func NewKafkaSink(brokers, topic string, logger zerolog.Logger) (Sink, func() error) {
	list := splitBrokers(brokers)
	if len(list) == 0 {
		logger.Warn().Msg("kafka event publishing disabled (no KAFKA_BROKERS configured)")
		return Nop, func() error { return nil }
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(list...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaSink{writer: w}, w.Close
}

func (k *KafkaSink) Publish(ctx context.Context, ev Event) error {
	err := k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.AppointmentID.String()),
		Value: ev.Payload,
		Time:  ev.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
			{Key: "appointment_id", Value: []byte(ev.AppointmentID.String())},
		},
	})
	if err != nil {
		return fmt.Errorf("kafka publish %s: %w", ev.Type, err)
	}
	return nil
}

func splitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// KafkaPing reports whether any configured broker accepts a connection.
func KafkaPing(brokers string) func(ctx context.Context) error {
	list := splitBrokers(brokers)
	return func(ctx context.Context) error {
		var lastErr error
		for _, addr := range list {
			conn, err := kafka.DialContext(ctx, "tcp", addr)
			if err != nil {
				lastErr = err
				continue
			}
			return conn.Close()
		}
		if lastErr == nil {
			return fmt.Errorf("no kafka brokers configured")
		}
		return fmt.Errorf("dial kafka: %w", lastErr)
	}
}
