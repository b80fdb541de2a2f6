package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

// KafkaSource consumes envelopes from a Kafka topic. Canonical ordering is
// the topic's job: all events for one contract family go through a single
// partition. Offsets are committed only after the handler completes, so a
// crash replays the in-flight event (at-least-once).
type KafkaSource struct {
	reader     *kafka.Reader
	dispatcher *Dispatcher
	log        *slog.Logger
}

// NewKafkaSource builds a source reading from topic via the given brokers.
func NewKafkaSource(brokers []string, topic, groupID string, dispatcher *Dispatcher, log *slog.Logger) *KafkaSource {
	if log == nil {
		log = slog.Default()
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10 << 20,
	})
	return &KafkaSource{reader: reader, dispatcher: dispatcher, log: log}
}

// Run consumes until ctx is cancelled. A dispatch failure stops the source
// without committing the offset; the event is redelivered on restart.
func (s *KafkaSource) Run(ctx context.Context) error {
	for {
		msg, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("ingest: fetch message: %w", err)
		}

		env, err := ParseEnvelope(msg.Value)
		if err != nil {
			// Malformed input cannot succeed on redelivery; drop it so one
			// bad message doesn't wedge the partition.
			s.log.Error("dropping malformed envelope", "offset", msg.Offset, "err", err)
			if err := s.reader.CommitMessages(ctx, msg); err != nil {
				return fmt.Errorf("ingest: commit offset: %w", err)
			}
			continue
		}

		evt, err := env.Decode()
		if err != nil {
			s.log.Error("dropping undecodable envelope", "delivery", env.DeliveryID, "kind", env.Kind, "err", err)
			if err := s.reader.CommitMessages(ctx, msg); err != nil {
				return fmt.Errorf("ingest: commit offset: %w", err)
			}
			continue
		}

		if err := s.dispatcher.Dispatch(ctx, evt); err != nil {
			return fmt.Errorf("ingest: dispatch %s (delivery %s): %w", env.Kind, env.DeliveryID, err)
		}
		s.log.Debug("event applied", "delivery", env.DeliveryID, "kind", env.Kind)

		if err := s.reader.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("ingest: commit offset: %w", err)
		}
	}
}

// Close releases the underlying reader.
func (s *KafkaSource) Close() error {
	return s.reader.Close()
}
