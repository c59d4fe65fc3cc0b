package settlement

import (
	"context"
	"log/slog"
	"time"

	retry "github.com/avast/retry-go/v4"

	"github.com/mesa-pay/mesa_pay/internal/apptracker"
)

const (
	claimBatchSize   = 10
	depositAttempts  = 3
	maxStoreAttempts = 5
	retryBackoff     = 30 * time.Second
)

// Worker drains due settlement tasks and performs the deposit call with
// at-least-once semantics. Tasks that keep failing are parked as dead rather
// than retried forever.
type Worker struct {
	store     Store
	depositor Depositor
	interval  time.Duration
	tracker   apptracker.AppTracker
	logger    *slog.Logger
}

// NewWorker builds a settlement worker polling at the given interval.
func NewWorker(store Store, depositor Depositor, interval time.Duration, tracker apptracker.AppTracker, logger *slog.Logger) *Worker {
	if tracker == nil {
		tracker = apptracker.Noop{}
	}
	return &Worker{
		store:     store,
		depositor: depositor,
		interval:  interval,
		tracker:   tracker,
		logger:    logger,
	}
}

// Run polls until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce claims and processes one batch of due tasks.
func (w *Worker) RunOnce(ctx context.Context) {
	tasks, err := w.store.Claim(ctx, time.Now().UTC(), claimBatchSize)
	if err != nil {
		w.logger.Error("claim settlement tasks", "error", err)
		return
	}

	for _, task := range tasks {
		w.process(ctx, task)
	}
}

func (w *Worker) process(ctx context.Context, task Task) {
	err := retry.Do(
		func() error {
			return w.depositor.Deposit(ctx, task.OutgoingPaymentID)
		},
		retry.Context(ctx),
		retry.Attempts(depositAttempts),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err == nil {
		if err := w.store.MarkDone(ctx, task.ID); err != nil {
			w.logger.Error("mark settlement done", "task", task.ID, "error", err)
		}
		w.logger.Info("settlement deposited", "outgoing_payment", task.OutgoingPaymentID, "attempts", task.Attempts)
		return
	}

	w.logger.Error("settlement deposit failed", "outgoing_payment", task.OutgoingPaymentID, "attempts", task.Attempts, "error", err)

	if task.Attempts >= maxStoreAttempts {
		w.tracker.CaptureException(err)
		if err := w.store.MarkDead(ctx, task.ID); err != nil {
			w.logger.Error("mark settlement dead", "task", task.ID, "error", err)
		}
		return
	}

	if err := w.store.MarkRetry(ctx, task.ID, time.Now().UTC().Add(retryBackoff)); err != nil {
		w.logger.Error("mark settlement retry", "task", task.ID, "error", err)
	}
}
