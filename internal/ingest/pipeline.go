// Package ingest runs the batch loop that moves hourly reading rows from the
// source topic into storage and the in-memory store, one cache epoch per batch.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/aq-forecast-service/internal/domain"
	"github.com/couchcryptid/aq-forecast-service/internal/observability"
	sharedretry "github.com/couchcryptid/storm-data-shared/retry"
)

// BatchExtractor reads up to batchSize raw rows from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawRow, error)
}

// Parser converts a raw row into a reading.
type Parser interface {
	Parse(ctx context.Context, raw domain.RawRow) (domain.Reading, error)
}

// BatchLoader makes a batch of readings visible to queries.
type BatchLoader interface {
	LoadBatch(ctx context.Context, readings []domain.Reading) error
}

// Pipeline orchestrates the extract-parse-load loop.
type Pipeline struct {
	extractor BatchExtractor
	parser    Parser
	loader    BatchLoader
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
	batchSize int
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, p Parser, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor: e,
		parser:    p,
		loader:    l,
		logger:    logger,
		metrics:   metrics,
		batchSize: batchSize,
	}
}

// CheckReadiness returns nil once the pipeline has loaded at least one batch.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("ingestion has not loaded any rows yet")
	}
	return nil
}

// Run executes the batch loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("ingestion started", "batch_size", p.batchSize)
	p.metrics.IngestRunning.Set(1)
	defer p.metrics.IngestRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := initialBackoff
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("ingestion stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processBatch(ctx, &backoff) {
			return nil
		}
	}
}

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// processBatch runs one extract-parse-load cycle. Returns false if the pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, backoff *time.Duration) bool {
	start := time.Now()

	rawBatch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return p.backoffOrStop(ctx, backoff)
	}

	if len(rawBatch) == 0 {
		return ctx.Err() == nil
	}

	p.metrics.RowsConsumed.Add(float64(len(rawBatch)))
	p.metrics.BatchSize.Observe(float64(len(rawBatch)))
	*backoff = initialBackoff

	loaded, ok := p.parseAndLoad(ctx, rawBatch, backoff)
	if !ok {
		return false
	}

	if loaded > 0 {
		p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
		p.ready.Store(true)
	}
	return true
}

// parseAndLoad parses each row, loads the successes as one batch, and commits
// offsets. Rows that fail to parse are committed and skipped. Returns the number
// of loaded rows and false if the pipeline should stop.
func (p *Pipeline) parseAndLoad(ctx context.Context, rawBatch []domain.RawRow, backoff *time.Duration) (int, bool) {
	readings := make([]domain.Reading, 0, len(rawBatch))
	parsed := make([]domain.RawRow, 0, len(rawBatch))

	for _, raw := range rawBatch {
		r, err := p.parser.Parse(ctx, raw)
		if err != nil {
			p.logger.Warn("parse failed, skipping row",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.ParseErrors.Inc()
			p.commitOffset(ctx, raw)
			continue
		}
		readings = append(readings, r)
		parsed = append(parsed, raw)
	}

	if len(readings) == 0 {
		return 0, true
	}

	if err := p.loader.LoadBatch(ctx, readings); err != nil {
		p.logger.Error("load batch failed", "error", err, "batch_size", len(readings))
		return 0, p.backoffOrStop(ctx, backoff)
	}

	p.metrics.RowsLoaded.Add(float64(len(readings)))

	for _, raw := range parsed {
		p.commitOffset(ctx, raw)
	}
	return len(readings), true
}

// backoffOrStop sleeps with the current backoff and advances it. Returns false
// if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sharedretry.SleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = sharedretry.NextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffset commits the row offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawRow) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}
