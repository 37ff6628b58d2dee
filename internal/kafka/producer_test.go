package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyWriter fails its first `failures` writes and records the rest.
type flakyWriter struct {
	mu       sync.Mutex
	failures int
	calls    int
	written  []kafka.Message
}

func (w *flakyWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.calls <= w.failures {
		return errors.New("leader not available")
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *flakyWriter) Close() error { return nil }

func newTestProducer(w messageWriter) *Producer {
	return &Producer{brokers: []string{"localhost:9092"}, writer: w, backoff: time.Millisecond}
}

func TestProducer_PublishWithRetry_RecoversAfterFailures(t *testing.T) {
	w := &flakyWriter{failures: 2}
	p := newTestProducer(w)

	err := p.PublishWithRetry(context.Background(), "bookings", "7", BookingEvent{BookingID: 7}, 3)

	require.NoError(t, err)
	assert.Equal(t, 3, w.calls)
	require.Len(t, w.written, 1)
	assert.Equal(t, "bookings", w.written[0].Topic)
	assert.Equal(t, []byte("7"), w.written[0].Key)

	var event BookingEvent
	require.NoError(t, json.Unmarshal(w.written[0].Value, &event))
	assert.Equal(t, int64(7), event.BookingID)
}

func TestProducer_PublishWithRetry_GivesUp(t *testing.T) {
	w := &flakyWriter{failures: 10}
	p := newTestProducer(w)

	err := p.PublishWithRetry(context.Background(), "bookings", "7", BookingEvent{}, 3)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 retries")
	assert.Equal(t, 3, w.calls)
}

func TestProducer_PublishWithRetry_StopsWhenContextDone(t *testing.T) {
	w := &flakyWriter{failures: 10}
	p := newTestProducer(w)
	p.backoff = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.PublishWithRetry(ctx, "bookings", "7", BookingEvent{}, 3)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, w.calls)
}

func TestProducer_CheckConnection_NoBrokers(t *testing.T) {
	p := newTestProducer(&flakyWriter{})
	p.brokers = nil

	err := p.CheckConnection(context.Background())

	assert.EqualError(t, err, "no kafka brokers configured")
}
