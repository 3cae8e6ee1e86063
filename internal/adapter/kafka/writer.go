package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/launch-monitor-etl/internal/domain"
)

// Writer produces cleaned shots to a Kafka topic.
// It implements pipeline.Loader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the given brokers and topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Load serializes and publishes shots in a single WriteMessages call. Shots
// are keyed by ID, so replays land on the same partition.
func (w *Writer) Load(ctx context.Context, shots []domain.Shot) error {
	if len(shots) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(shots))
	for i := range shots {
		msg, err := serializeToMessage(shots[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d shots: %w", len(msgs), err)
	}
	w.logger.Debug("shots published", "topic", w.writer.Topic, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Shot into a Kafka message.
func serializeToMessage(shot domain.Shot) (kafkago.Message, error) {
	data, err := json.Marshal(shot)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize shot: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(shot.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "club", Value: []byte(shot.Club)},
			{Key: "session_file", Value: []byte(shot.SessionFile)},
			{Key: "processed_at", Value: []byte(shot.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}
