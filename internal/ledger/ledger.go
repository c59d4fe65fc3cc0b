package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrEventAlreadyApplied indicates the event id was applied before and the
	// operation should be treated as an idempotent no-op.
	ErrEventAlreadyApplied = errors.New("event already applied")

	// ErrWalletNotFound indicates a balance entry referenced an unknown wallet.
	ErrWalletNotFound = errors.New("wallet not found")
)

const (
	TransactionTypeIncoming = "INCOMING"
	TransactionTypeOutgoing = "OUTGOING"

	TransactionStatePending   = "PENDING"
	TransactionStateCompleted = "COMPLETED"
)

// BalanceDelta is a signed adjustment to the four balance counters of one
// wallet. Pending counters reserve funds before settlement; posted counters
// reflect settled amounts.
type BalanceDelta struct {
	PendingCredits int64
	PendingDebits  int64
	PostedCredits  int64
	PostedDebits   int64
}

// IsZero reports whether the delta adjusts nothing.
func (d BalanceDelta) IsZero() bool {
	return d == BalanceDelta{}
}

// Add accumulates another delta.
func (d BalanceDelta) Add(other BalanceDelta) BalanceDelta {
	return BalanceDelta{
		PendingCredits: d.PendingCredits + other.PendingCredits,
		PendingDebits:  d.PendingDebits + other.PendingDebits,
		PostedCredits:  d.PostedCredits + other.PostedCredits,
		PostedDebits:   d.PostedDebits + other.PostedDebits,
	}
}

// Entry binds a delta to the wallet it adjusts.
type Entry struct {
	WalletID string
	Delta    BalanceDelta
}

// Transaction is the immutable record of one observed transfer leg.
type Transaction struct {
	ID                string
	Type              string
	IncomingPaymentID string
	OutgoingPaymentID string
	WalletAddressID   string
	State             string
	Value             int64
	AssetCode         string
	AssetScale        int
	SenderAddress     string
	ReceiverAddress   string
	Description       string
	InitiatedBy       string
	CreatedAt         time.Time
}

// PaymentRecord tracks a user's in-flight incoming payment reservation.
type PaymentRecord struct {
	IncomingPaymentID string
	WalletID          string
	Active            bool
	CreatedAt         time.Time
}

// ApplyInput is the full outcome of one lifecycle event. The store applies it
// atomically: the applied-event mark, every balance entry and every record
// land together or not at all.
type ApplyInput struct {
	EventID   string
	PaymentID string
	EventType string

	Entries             []Entry
	Transactions        []Transaction
	PaymentRecord       *PaymentRecord
	DeactivatePaymentID string
}

// Store durably applies lifecycle outcomes to wallet balances.
//
// Implementations must guarantee that concurrent deltas to the same wallet
// are both reflected (atomic increments, no read-modify-write) and that
// re-applying an already-seen event id returns ErrEventAlreadyApplied without
// touching any balance.
type Store interface {
	Apply(ctx context.Context, input ApplyInput) error
	Transactions(ctx context.Context, walletAddressID string) ([]Transaction, error)
}
