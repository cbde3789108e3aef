package webhook

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathanmorav/unified-dashboard/internal/config"
	"github.com/jonathanmorav/unified-dashboard/internal/domain/event"

	"go.uber.org/zap"
)

func newQueueFixture(t *testing.T) (*dispatcherFixture, *QueueProcessor) {
	t.Helper()

	f := newDispatcherFixture(t)
	cfg := &config.Config{
		MaxEventAttempts:  2,
		RetryBaseDelay:    time.Millisecond,
		QueuePollInterval: 10 * time.Millisecond,
		QueueBatchSize:    10,
	}
	queue := NewQueueProcessor(cfg, f.events, f.dispatcher, zap.NewNop())
	return f, queue
}

func TestQueueProcessor_StartIsIdempotent(t *testing.T) {
	_, queue := newQueueFixture(t)
	defer queue.Stop()

	assert.False(t, queue.IsActive())

	queue.Start(context.Background())
	assert.True(t, queue.IsActive())

	// Second Start must not spawn a second loop.
	queue.Start(context.Background())
	assert.True(t, queue.IsActive())

	queue.Stop()
	assert.False(t, queue.IsActive())

	// Stop when already stopped is a no-op.
	queue.Stop()
	assert.False(t, queue.IsActive())
}

func TestQueueProcessor_RetriesFailedEvent(t *testing.T) {
	f, queue := newQueueFixture(t)
	defer queue.Stop()

	// Fail the first dispatch, then let the queue pick the event up once
	// the repository recovers.
	f.transfers.failSave = true
	evt := f.newEvent(t, "evt-1", "transfer_created", "transfer", "T1", nil)
	res := f.dispatcher.Dispatch(context.Background(), evt)
	require.Equal(t, event.StateFailed, res.State)

	f.transfers.mu.Lock()
	f.transfers.failSave = false
	f.transfers.mu.Unlock()

	queue.Start(context.Background())

	assert.Eventually(t, func() bool {
		stored, err := f.events.FindByID(context.Background(), evt.ID)
		return err == nil && stored.State == event.StateCompleted
	}, 2*time.Second, 10*time.Millisecond)

	f.transfers.mu.Lock()
	mirrored := f.transfers.byDwolla["T1"]
	f.transfers.mu.Unlock()
	assert.NotNil(t, mirrored)
}

func TestQueueProcessor_RecoversEventStrandedBeforeProcessing(t *testing.T) {
	f, queue := newQueueFixture(t)
	defer queue.Stop()

	// A transient repository error during the inline dispatch leaves the
	// event in received with zero attempts, but the delivery was already
	// acknowledged with a 200 and the provider will not send it again.
	f.events.failProcessingOnce = true
	evt := f.newEvent(t, "evt-1", "transfer_created", "transfer", "T1", nil)
	res := f.dispatcher.Dispatch(context.Background(), evt)
	require.NotEmpty(t, res.Err)
	require.Equal(t, event.StateReceived, evt.State)

	// Age the event past the grace window so the claim picks it up.
	f.events.mu.Lock()
	evt.ReceivedAt = evt.ReceivedAt.Add(-2 * event.ReceivedGracePeriod)
	f.events.mu.Unlock()

	queue.Start(context.Background())

	assert.Eventually(t, func() bool {
		stored, err := f.events.FindByID(context.Background(), evt.ID)
		return err == nil && stored.State == event.StateCompleted
	}, 2*time.Second, 10*time.Millisecond)

	f.transfers.mu.Lock()
	mirrored := f.transfers.byDwolla["T1"]
	f.transfers.mu.Unlock()
	assert.NotNil(t, mirrored)
}

func TestQueueProcessor_ReclaimsStaleProcessingEvent(t *testing.T) {
	f, queue := newQueueFixture(t)
	defer queue.Stop()

	// A claim whose worker died leaves the event parked in processing.
	evt := f.newEvent(t, "evt-1", "transfer_created", "transfer", "T1", nil)
	f.events.mu.Lock()
	evt.State = event.StateProcessing
	evt.UpdatedAt = time.Now().UTC().Add(-2 * event.ProcessingStaleAfter)
	f.events.mu.Unlock()

	queue.Start(context.Background())

	assert.Eventually(t, func() bool {
		stored, err := f.events.FindByID(context.Background(), evt.ID)
		return err == nil && stored.State == event.StateCompleted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestQueueProcessor_Status(t *testing.T) {
	f, queue := newQueueFixture(t)
	defer queue.Stop()

	evt := f.newEvent(t, "evt-1", "transfer_created", "transfer", "T1", nil)
	f.dispatcher.Dispatch(context.Background(), evt)

	status, err := queue.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Active)
	assert.Equal(t, int64(1), status.Counts[event.StateCompleted])
}

func TestQueueProcessor_QuarantinedStaysPut(t *testing.T) {
	f, queue := newQueueFixture(t)
	defer queue.Stop()

	f.transfers.failSave = true
	evt := f.newEvent(t, "evt-1", "transfer_created", "transfer", "T1", nil)

	// Exhaust the attempt ceiling.
	f.dispatcher.Dispatch(context.Background(), evt)
	f.dispatcher.Dispatch(context.Background(), evt)
	require.Equal(t, event.StateQuarantined, evt.State)

	queue.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	queue.Stop()

	stored, err := f.events.FindByID(context.Background(), evt.ID)
	require.NoError(t, err)
	assert.Equal(t, event.StateQuarantined, stored.State)
	assert.Equal(t, 2, stored.Attempts)
}
