// Package kafka adapts Kafka topics to the pipeline: a harvester source and a
// verified-record publisher.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/fire-incident-pipeline/internal/config"
	"github.com/couchcryptid/fire-incident-pipeline/internal/domain"
	"github.com/couchcryptid/fire-incident-pipeline/internal/harvest"
	kafkago "github.com/segmentio/kafka-go"
)

// fetcher is the subset of *kafkago.Reader the Reader uses.
type fetcher interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Reader consumes harvested posts, one JSON object per message.
// Offsets are committed only after the pipeline has ingested the batch. Until
// then every fetched record is returned again by the next ReadBatch.
type Reader struct {
	reader    fetcher
	logger    *slog.Logger
	batchSize int
	wait      time.Duration
	pending   []kafkago.Message
	records   []domain.RawRecord // decoded from pending
}

// NewReader creates a consumer-group reader for the configured source topic.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		GroupID:  cfg.KafkaGroupID,
		Topic:    cfg.KafkaSourceTopic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return newReader(r, cfg.BatchSize, cfg.BatchFlushInterval, logger)
}

func newReader(f fetcher, batchSize int, wait time.Duration, logger *slog.Logger) *Reader {
	return &Reader{reader: f, logger: logger, batchSize: batchSize, wait: wait}
}

// ReadBatch returns every uncommitted record, topping the batch up to
// batchSize messages while waiting at most the flush interval. Messages that
// do not decode are logged, skipped, and still committed with the batch.
func (r *Reader) ReadBatch(ctx context.Context) ([]domain.RawRecord, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, r.wait)
	defer cancel()

	for len(r.pending) < r.batchSize {
		msg, err := r.reader.FetchMessage(fetchCtx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				break
			}
			return nil, fmt.Errorf("fetch harvested message: %w", err)
		}
		r.pending = append(r.pending, msg)

		rec, err := mapMessageToRecord(msg)
		if err != nil {
			r.logger.Warn("skipping malformed harvested message",
				"error", err, "topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)
			continue
		}
		r.records = append(r.records, rec)
	}
	return append([]domain.RawRecord(nil), r.records...), nil
}

// Commit acknowledges every message fetched since the last commit.
func (r *Reader) Commit(ctx context.Context) error {
	if len(r.pending) == 0 {
		return nil
	}
	if err := r.reader.CommitMessages(ctx, r.pending...); err != nil {
		return fmt.Errorf("commit offsets: %w", err)
	}
	r.pending = r.pending[:0]
	r.records = r.records[:0]
	return nil
}

func (r *Reader) Close() error {
	return r.reader.Close()
}

func mapMessageToRecord(msg kafkago.Message) (domain.RawRecord, error) {
	rec, err := harvest.DecodeRecord(msg.Value)
	if err != nil {
		return domain.RawRecord{}, err
	}
	if rec.Timestamp == "" && !msg.Time.IsZero() {
		rec.Timestamp = msg.Time.UTC().Format(time.RFC3339)
	}
	return rec, nil
}
