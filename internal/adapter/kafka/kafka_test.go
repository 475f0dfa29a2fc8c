package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/couchcryptid/aq-forecast-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapMessageToRawRow(t *testing.T) {
	now := time.Now()
	msg := kafkago.Message{
		Key:       []byte("Delhi"),
		Value:     []byte(`{"City":"Delhi","Datetime":"2019-11-03 14:00:00","PM2.5":412.6}`),
		Topic:     "aq-hourly-readings",
		Partition: 2,
		Offset:    42,
		Time:      now,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte("cpcb")},
		},
	}

	raw := mapMessageToRawRow(msg)

	assert.Equal(t, []byte("Delhi"), raw.Key)
	assert.JSONEq(t, `{"City":"Delhi","Datetime":"2019-11-03 14:00:00","PM2.5":412.6}`, string(raw.Value))
	assert.Equal(t, "aq-hourly-readings", raw.Topic)
	assert.Equal(t, 2, raw.Partition)
	assert.Equal(t, int64(42), raw.Offset)
	assert.Equal(t, now, raw.Timestamp)
	assert.Equal(t, "cpcb", raw.Headers["source"])
	assert.Nil(t, raw.Commit)

	r, err := domain.ParseReadingRow(raw)
	require.NoError(t, err)
	assert.Equal(t, "Delhi", r.City)
}

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	snap := &domain.ClusterSnapshot{RunID: "run-1", GeneratedAt: now}
	a := domain.ClusterAssignment{City: "Patna", Tier: domain.TierHigh, Rank: 2, Distance: 0.4, Level: 180.5}

	msg, err := serializeToMessage(snap, a)
	require.NoError(t, err)

	assert.Equal(t, []byte("Patna"), msg.Key)
	assert.JSONEq(t, `{
		"run_id": "run-1",
		"generated_at": "2024-04-26T15:10:00Z",
		"city": "Patna",
		"tier": "High",
		"rank": 2,
		"color": "#ff0000",
		"distance": 0.4,
		"level": 180.5
	}`, string(msg.Value))
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "tier", msg.Headers[0].Key)
	assert.Equal(t, []byte("High"), msg.Headers[0].Value)
	assert.Equal(t, "run_id", msg.Headers[1].Key)
	assert.Equal(t, []byte("run-1"), msg.Headers[1].Value)
}

func TestSerializeToMessage_InvalidTier(t *testing.T) {
	_, err := serializeToMessage(&domain.ClusterSnapshot{RunID: "run-1"}, domain.ClusterAssignment{City: "X", Tier: domain.Tier(9)})
	assert.Error(t, err)
}

func TestWriter_SaveSnapshotEmptyIsNoop(t *testing.T) {
	w := &Writer{}
	assert.NoError(t, w.SaveSnapshot(context.Background(), nil))
	assert.NoError(t, w.SaveSnapshot(context.Background(), &domain.ClusterSnapshot{RunID: "run-1"}))
}
