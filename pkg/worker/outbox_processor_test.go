package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/vip-booking/internal/model"
	"github.com/jwalitptl/vip-booking/internal/repository/memory"
	"github.com/jwalitptl/vip-booking/pkg/logger"
	"github.com/jwalitptl/vip-booking/pkg/messaging"
	"github.com/jwalitptl/vip-booking/pkg/metrics"
)

type recordingBroker struct {
	mu        sync.Mutex
	published []messaging.Message
	failWith  error
}

func (b *recordingBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failWith != nil {
		return b.failWith
	}
	payload, _ := json.Marshal(message)
	b.published = append(b.published, messaging.Message{Channel: channel, Payload: payload})
	return nil
}

func (b *recordingBroker) Subscribe(ctx context.Context, channel string) (<-chan messaging.Message, error) {
	return nil, errors.New("not supported")
}

func (b *recordingBroker) Close() error { return nil }

func testConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  time.Second,
		RetryAttempts: 2,
		RetryDelay:    time.Millisecond,
		MaxDeliveries: 2,
	}
}

func seedEvent(t *testing.T, store *memory.Store, eventType string) {
	t.Helper()
	err := store.Outbox().Create(context.Background(), &model.OutboxEvent{
		EventType:   eventType,
		AggregateID: "apt-1",
		Payload:     json.RawMessage(`{"appointment_id":"apt-1"}`),
	})
	require.NoError(t, err)
}

func TestOutboxProcessor_PublishesAndMarksProcessed(t *testing.T) {
	store := memory.NewStore()
	broker := &recordingBroker{}
	seedEvent(t, store, model.EventAppointmentConfirmed)

	p, err := NewOutboxProcessor(store, broker, testConfig(), logger.Nop(), metrics.NewNop())
	require.NoError(t, err)

	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, broker.published, 1)
	assert.Equal(t, "appointments.AppointmentConfirmed", broker.published[0].Channel)
	assert.JSONEq(t, `{"appointment_id":"apt-1"}`, string(broker.published[0].Payload))

	events := store.OutboxEvents()
	require.Len(t, events, 1)
	assert.Equal(t, model.OutboxStatusProcessed, events[0].Status)
	assert.NotNil(t, events[0].ProcessedAt)

	n, err = p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOutboxProcessor_FailureSchedulesRetryThenDeadLetters(t *testing.T) {
	now := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := memory.NewStore(memory.WithClock(clock))
	broker := &recordingBroker{failWith: errors.New("redis down")}
	seedEvent(t, store, model.EventAppointmentCancelled)

	p, err := NewOutboxProcessor(store, broker, testConfig(), logger.Nop(), metrics.NewNop())
	require.NoError(t, err)
	p.now = clock

	_, err = p.ProcessBatch(context.Background())
	require.NoError(t, err)

	events := store.OutboxEvents()
	require.Len(t, events, 1)
	assert.Equal(t, model.OutboxStatusFailed, events[0].Status)
	assert.Equal(t, 1, events[0].RetryCount)
	require.NotNil(t, events[0].RetryAt)
	assert.Equal(t, "redis down", *events[0].ErrorMessage)

	// Not due yet.
	_, err = p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, store.OutboxEvents()[0].RetryCount)

	now = now.Add(time.Hour)
	_, err = p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, store.OutboxEvents())
	require.Len(t, store.DeadLetters(), 1)
	assert.Equal(t, model.EventAppointmentCancelled, store.DeadLetters()[0].EventType)
}

func TestOutboxProcessor_Cleanup(t *testing.T) {
	now := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := memory.NewStore(memory.WithClock(clock))
	seedEvent(t, store, model.EventAppointmentCompleted)

	cfg := testConfig()
	cfg.Retention = 24 * time.Hour
	p, err := NewOutboxProcessor(store, &recordingBroker{}, cfg, logger.Nop(), metrics.NewNop())
	require.NoError(t, err)
	p.now = clock

	_, err = p.ProcessBatch(context.Background())
	require.NoError(t, err)

	require.NoError(t, p.Cleanup(context.Background()))
	assert.Len(t, store.OutboxEvents(), 1)

	now = now.Add(48 * time.Hour)
	require.NoError(t, p.Cleanup(context.Background()))
	assert.Empty(t, store.OutboxEvents())
}

func TestNewOutboxProcessor_RejectsBadConfig(t *testing.T) {
	_, err := NewOutboxProcessor(memory.NewStore(), &recordingBroker{}, OutboxProcessorConfig{}, logger.Nop(), metrics.NewNop())
	assert.Error(t, err)
}
