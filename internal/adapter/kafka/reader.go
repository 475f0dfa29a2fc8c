package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/couchcryptid/aq-forecast-service/internal/config"
	"github.com/couchcryptid/aq-forecast-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Reader consumes reading rows from a Kafka topic.
// It implements ingest.BatchExtractor.
type Reader struct {
	reader        *kafkago.Reader
	flushInterval time.Duration
	logger        *slog.Logger
}

// NewReader creates a consumer-group reader for the configured source topic.
// Offsets are committed explicitly after each row is loaded or rejected.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    cfg.KafkaSourceTopic,
		GroupID:  cfg.KafkaGroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Reader{reader: r, flushInterval: cfg.BatchFlushInterval, logger: logger}
}

// ExtractBatch blocks for the first message, then collects more until the batch
// is full or the flush interval elapses.
func (r *Reader) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawRow, error) {
	first, err := r.reader.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]domain.RawRow, 0, batchSize)
	rows = append(rows, r.toRawRow(first))

	fillCtx, cancel := context.WithTimeout(ctx, r.flushInterval)
	defer cancel()
	for len(rows) < batchSize {
		msg, err := r.reader.FetchMessage(fillCtx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !errors.Is(err, context.DeadlineExceeded) {
				r.logger.Warn("fetch interrupted, flushing partial batch", "error", err, "rows", len(rows))
			}
			break
		}
		rows = append(rows, r.toRawRow(msg))
	}
	return rows, nil
}

func (r *Reader) toRawRow(msg kafkago.Message) domain.RawRow {
	raw := mapMessageToRawRow(msg)
	raw.Commit = func(ctx context.Context) error {
		return r.reader.CommitMessages(ctx, msg)
	}
	return raw
}

// Close leaves the consumer group.
func (r *Reader) Close() error {
	return r.reader.Close()
}

// mapMessageToRawRow converts a Kafka message to a RawRow without a commit hook.
func mapMessageToRawRow(msg kafkago.Message) domain.RawRow {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return domain.RawRow{
		Key:       msg.Key,
		Value:     msg.Value,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
		Headers:   headers,
	}
}
