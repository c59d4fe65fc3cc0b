package settlement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesa-pay/mesa_pay/internal/logging"
)

type fakeDepositor struct {
	mu    sync.Mutex
	calls int
	errs  int // number of leading calls that fail
}

func (f *fakeDepositor) Deposit(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.errs {
		return errors.New("deposit endpoint unavailable")
	}
	return nil
}

type workerTracker struct {
	mu   sync.Mutex
	errs []error
}

func (t *workerTracker) CaptureMessage(string) {}

func (t *workerTracker) CaptureException(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errs = append(t.errs, err)
}

func dueTask(store *InMemoryStore, t *testing.T) Task {
	t.Helper()
	err := store.Schedule(context.Background(), Task{
		OutgoingPaymentID: "op-1",
		WalletAddressID:   "wa-1",
		DueAt:             time.Now().UTC().Add(-time.Second),
	})
	require.NoError(t, err)
	task, ok := store.TaskByOutgoingPayment("op-1")
	require.True(t, ok)
	return task
}

func TestScheduleIsUniquePerOutgoingPayment(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	first := Task{OutgoingPaymentID: "op-1", DueAt: time.Now().UTC()}
	require.NoError(t, store.Schedule(ctx, first))
	require.NoError(t, store.Schedule(ctx, Task{OutgoingPaymentID: "op-1", DueAt: time.Now().UTC().Add(time.Hour)}))

	task, ok := store.TaskByOutgoingPayment("op-1")
	require.True(t, ok)
	assert.WithinDuration(t, first.DueAt, task.DueAt, time.Second)
}

func TestWorkerDepositsDueTask(t *testing.T) {
	store := NewInMemory()
	depositor := &fakeDepositor{}
	dueTask(store, t)

	worker := NewWorker(store, depositor, time.Second, nil, logging.Discard())
	worker.RunOnce(context.Background())

	task, ok := store.TaskByOutgoingPayment("op-1")
	require.True(t, ok)
	assert.Equal(t, StatusDone, task.Status)
	assert.Equal(t, 1, depositor.calls)
}

func TestWorkerIgnoresFutureTasks(t *testing.T) {
	store := NewInMemory()
	depositor := &fakeDepositor{}
	require.NoError(t, store.Schedule(context.Background(), Task{
		OutgoingPaymentID: "op-1",
		DueAt:             time.Now().UTC().Add(time.Hour),
	}))

	worker := NewWorker(store, depositor, time.Second, nil, logging.Discard())
	worker.RunOnce(context.Background())

	task, _ := store.TaskByOutgoingPayment("op-1")
	assert.Equal(t, StatusPending, task.Status)
	assert.Zero(t, depositor.calls)
}

func TestWorkerRetriesTransientFailure(t *testing.T) {
	store := NewInMemory()
	// Every in-process attempt of the first cycle fails, then the task is
	// returned to pending with a later due time.
	depositor := &fakeDepositor{errs: depositAttempts}
	dueTask(store, t)

	worker := NewWorker(store, depositor, time.Second, nil, logging.Discard())
	worker.RunOnce(context.Background())

	task, ok := store.TaskByOutgoingPayment("op-1")
	require.True(t, ok)
	assert.Equal(t, StatusPending, task.Status)
	assert.True(t, task.DueAt.After(time.Now().UTC()))
	assert.Equal(t, 1, task.Attempts)

	// Re-due the task; the next cycle succeeds.
	require.NoError(t, store.MarkRetry(context.Background(), task.ID, time.Now().UTC().Add(-time.Second)))
	worker.RunOnce(context.Background())

	task, _ = store.TaskByOutgoingPayment("op-1")
	assert.Equal(t, StatusDone, task.Status)
}

func TestWorkerParksExhaustedTaskAsDead(t *testing.T) {
	store := NewInMemory()
	depositor := &fakeDepositor{errs: 1 << 30}
	tracker := &workerTracker{}
	dueTask(store, t)

	worker := NewWorker(store, depositor, time.Second, tracker, logging.Discard())

	for i := 0; i < maxStoreAttempts; i++ {
		worker.RunOnce(context.Background())

		task, ok := store.TaskByOutgoingPayment("op-1")
		require.True(t, ok)
		if task.Status == StatusDead {
			break
		}
		require.Equal(t, StatusPending, task.Status)
		require.NoError(t, store.MarkRetry(context.Background(), task.ID, time.Now().UTC().Add(-time.Second)))
	}

	task, _ := store.TaskByOutgoingPayment("op-1")
	assert.Equal(t, StatusDead, task.Status)
	assert.Equal(t, maxStoreAttempts, task.Attempts)

	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	assert.Len(t, tracker.errs, 1)
}
