package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/fire-incident-pipeline/internal/config"
	"github.com/couchcryptid/fire-incident-pipeline/internal/domain"
	"github.com/couchcryptid/fire-incident-pipeline/internal/notify"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes each newly verified record to the sink topic.
// It implements notify.Notifier.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Notify publishes n.Records in a single WriteMessages call.
func (w *Writer) Notify(ctx context.Context, n notify.Notification) error {
	if len(n.Records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(n.Records))
	for i := range n.Records {
		msg, err := serializeToMessage(n.Records[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish verified records: %w", err)
	}
	w.logger.Info("verified records published", "topic", w.writer.Topic, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a VerifiedRecord into a Kafka message keyed by
// the record's deterministic ID.
func serializeToMessage(rec domain.VerifiedRecord) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize verified record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(rec.Key().ID()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "verification_result", Value: []byte(rec.VerificationResult)},
			{Key: "verified_at", Value: []byte(rec.VerifiedAt.Format(time.RFC3339))},
		},
	}, nil
}
