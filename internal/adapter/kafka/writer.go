package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/couchcryptid/aq-forecast-service/internal/config"
	"github.com/couchcryptid/aq-forecast-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes cluster assignments to a Kafka topic, one message per city.
// It implements cluster.SnapshotSink.
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

// SaveSnapshot publishes every assignment of the snapshot in a single
// WriteMessages call. Messages are keyed by city so a compacted topic keeps the
// latest tier per city.
func (w *Writer) SaveSnapshot(ctx context.Context, snap *domain.ClusterSnapshot) error {
	if snap == nil || len(snap.Assignments) == 0 {
		return nil
	}
	cities := make([]string, 0, len(snap.Assignments))
	for city := range snap.Assignments {
		cities = append(cities, city)
	}
	sort.Strings(cities)

	msgs := make([]kafkago.Message, len(cities))
	for i, city := range cities {
		msg, err := serializeToMessage(snap, snap.Assignments[city])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish cluster assignments: %w", err)
	}
	w.logger.Info("cluster assignments published", "run_id", snap.RunID, "messages", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// assignmentMessage is the wire form of one published assignment.
type assignmentMessage struct {
	RunID       string      `json:"run_id"`
	GeneratedAt time.Time   `json:"generated_at"`
	City        string      `json:"city"`
	Tier        domain.Tier `json:"tier"`
	Rank        int         `json:"rank"`
	Color       string      `json:"color"`
	Distance    float64     `json:"distance"`
	Level       float64     `json:"level"`
}

// serializeToMessage marshals one assignment into a Kafka message.
func serializeToMessage(snap *domain.ClusterSnapshot, a domain.ClusterAssignment) (kafkago.Message, error) {
	data, err := json.Marshal(assignmentMessage{
		RunID:       snap.RunID,
		GeneratedAt: snap.GeneratedAt,
		City:        a.City,
		Tier:        a.Tier,
		Rank:        a.Rank,
		Color:       a.Tier.Color(),
		Distance:    a.Distance,
		Level:       a.Level,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize cluster assignment for %s: %w", a.City, err)
	}
	return kafkago.Message{
		Key:   []byte(a.City),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "tier", Value: []byte(a.Tier.String())},
			{Key: "run_id", Value: []byte(snap.RunID)},
		},
	}, nil
}
