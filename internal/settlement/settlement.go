package settlement

import (
	"context"
	"time"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusDead       = "dead"
)

// Task is a persisted intent to run the deposit-settlement call for one
// outgoing payment. Scheduling is unique per outgoing payment id, so a task
// survives restarts and is executed at least once but never re-created.
type Task struct {
	ID                string
	OutgoingPaymentID string
	WalletAddressID   string
	DueAt             time.Time
	Attempts          int
	Status            string
}

// Store persists settlement tasks through the claim lifecycle
// pending -> processing -> done|dead.
type Store interface {
	// Schedule inserts the task; scheduling an outgoing payment id that is
	// already known is a no-op.
	Schedule(ctx context.Context, task Task) error

	// Claim atomically picks up to limit due pending tasks and marks them
	// processing.
	Claim(ctx context.Context, now time.Time, limit int) ([]Task, error)

	MarkDone(ctx context.Context, id string) error

	// MarkRetry returns a failed task to pending with a new due time.
	MarkRetry(ctx context.Context, id string, dueAt time.Time) error

	MarkDead(ctx context.Context, id string) error
}

// Depositor performs the deposit-settlement call against the payment network.
// The call is keyed by outgoing payment id so redelivery is safe.
type Depositor interface {
	Deposit(ctx context.Context, outgoingPaymentID string) error
}
