package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mesa-pay/mesa_pay/internal/apptracker"
	"github.com/mesa-pay/mesa_pay/internal/ledger"
	"github.com/mesa-pay/mesa_pay/internal/notification"
	"github.com/mesa-pay/mesa_pay/internal/openpayments"
	"github.com/mesa-pay/mesa_pay/internal/settlement"
	"github.com/mesa-pay/mesa_pay/internal/wallet"
)

// ErrEventTriggerFailed is the single error surfaced to the webhook caller;
// the payment network's retry policy governs redelivery.
var ErrEventTriggerFailed = errors.New("event trigger failed")

// WalletFinder resolves the wallets implicated by an event.
type WalletFinder interface {
	GetByAddressID(ctx context.Context, addressID string) (wallet.Wallet, error)
	GetByUserID(ctx context.Context, userID string) (wallet.Wallet, error)
}

// PaymentLookup fetches payment resources needed for reconciliation.
type PaymentLookup interface {
	GetIncomingPayment(ctx context.Context, paymentURL string) (*openpayments.IncomingPayment, error)
}

// Scheduler persists deferred settlement intents.
type Scheduler interface {
	Schedule(ctx context.Context, task settlement.Task) error
}

// Dispatcher routes lifecycle events to their ledger handlers. Event types it
// does not implement are acknowledged silently.
type Dispatcher struct {
	wallets         WalletFinder
	payments        PaymentLookup
	store           ledger.Store
	scheduler       Scheduler
	settlementDelay time.Duration
	notifier        notification.Notifier
	tracker         apptracker.AppTracker
	logger          *slog.Logger
}

// NewDispatcher wires the dispatcher.
func NewDispatcher(wallets WalletFinder, payments PaymentLookup, store ledger.Store, scheduler Scheduler, settlementDelay time.Duration, notifier notification.Notifier, tracker apptracker.AppTracker, logger *slog.Logger) *Dispatcher {
	if tracker == nil {
		tracker = apptracker.Noop{}
	}
	return &Dispatcher{
		wallets:         wallets,
		payments:        payments,
		store:           store,
		scheduler:       scheduler,
		settlementDelay: settlementDelay,
		notifier:        notifier,
		tracker:         tracker,
		logger:          logger,
	}
}

// Dispatch applies one event. Handler failures are captured for observability
// and surfaced as a single generic error.
func (d *Dispatcher) Dispatch(ctx context.Context, evt Event) error {
	handler, ok := handlerFor(evt.Type)
	if !ok {
		d.logger.Debug("no handler for event type", "type", evt.Type, "event", evt.ID)
		return nil
	}

	if err := d.run(ctx, evt, handler); err != nil {
		d.tracker.CaptureException(fmt.Errorf("event %s (%s): %w", evt.ID, evt.Type, err))
		d.logger.Error("event trigger failed", "event", evt.ID, "type", evt.Type, "error", err)
		return ErrEventTriggerFailed
	}

	return nil
}

func (d *Dispatcher) run(ctx context.Context, evt Event, handler handlerFunc) error {
	sc, err := d.resolve(ctx, evt)
	if err != nil {
		return err
	}

	delta, err := handler(evt, sc)
	if err != nil {
		return err
	}

	for _, warning := range delta.Warnings {
		d.logger.Warn(warning)
	}

	err = d.store.Apply(ctx, ledger.ApplyInput{
		EventID:             evt.ID,
		PaymentID:           evt.Data.ID,
		EventType:           string(evt.Type),
		Entries:             delta.Entries,
		Transactions:        delta.Transactions,
		PaymentRecord:       delta.PaymentRecord,
		DeactivatePaymentID: delta.DeactivatePaymentID,
	})
	duplicate := errors.Is(err, ledger.ErrEventAlreadyApplied)
	if err != nil && !duplicate {
		return err
	}
	if duplicate {
		d.logger.Info("event already applied", "event", evt.ID, "type", evt.Type)
	}

	// Scheduling runs on redelivery too: if the ledger apply committed but the
	// process crashed or the scheduler failed before the task landed, the
	// redelivered event is the only remaining chance to persist it. Schedule
	// is unique per outgoing payment id, so repeats are no-ops.
	if delta.ScheduleSettlement {
		task := settlement.Task{
			OutgoingPaymentID: evt.Data.ID,
			WalletAddressID:   evt.Data.WalletAddressID,
			DueAt:             time.Now().UTC().Add(d.settlementDelay),
		}
		if err := d.scheduler.Schedule(ctx, task); err != nil {
			return fmt.Errorf("scheduling settlement: %w", err)
		}
	}

	// The notifier is fire-and-forget; a duplicate delivery stays silent so
	// the receiver is not notified twice for one payment.
	if !duplicate {
		d.notify(ctx, evt, sc)
	}

	return nil
}

// resolve loads every wallet and payment resource the handler will need, so
// the handler itself stays a pure function over the event and scope.
func (d *Dispatcher) resolve(ctx context.Context, evt Event) (Scope, error) {
	sc := Scope{Now: time.Now().UTC()}

	w, err := d.wallets.GetByAddressID(ctx, evt.Data.WalletAddressID)
	if err != nil {
		return Scope{}, fmt.Errorf("resolving wallet for address %s: %w", evt.Data.WalletAddressID, err)
	}
	sc.Wallet = w

	if userID := evt.Data.Metadata.UserID; userID != "" {
		uw, err := d.wallets.GetByUserID(ctx, userID)
		if err != nil {
			return Scope{}, fmt.Errorf("resolving wallet for user %s: %w", userID, err)
		}
		sc.UserWallet = &uw
	}

	switch evt.Type {
	case EventOutgoingPaymentCreated, EventOutgoingPaymentCompleted:
		if evt.Data.Receiver != "" {
			incoming, err := d.payments.GetIncomingPayment(ctx, evt.Data.Receiver)
			if err != nil {
				return Scope{}, fmt.Errorf("resolving incoming payment %s: %w", evt.Data.Receiver, err)
			}
			sc.Incoming = incoming
		}
		if evt.Type == EventOutgoingPaymentCompleted {
			if sc.Incoming == nil {
				return Scope{}, fmt.Errorf("outgoing payment %s completed without a resolvable receiver", evt.Data.ID)
			}
			rw, err := d.wallets.GetByAddressID(ctx, sc.Incoming.WalletAddressID)
			if err != nil {
				return Scope{}, fmt.Errorf("resolving receiving wallet %s: %w", sc.Incoming.WalletAddressID, err)
			}
			sc.ReceiverWallet = &rw
		}
	}

	return sc, nil
}

func (d *Dispatcher) notify(ctx context.Context, evt Event, sc Scope) {
	if d.notifier == nil || evt.Type != EventOutgoingPaymentCompleted || sc.ReceiverWallet == nil {
		return
	}
	value := ""
	if evt.Data.ReceiveAmount != nil {
		value = evt.Data.ReceiveAmount.Value
	}
	_ = d.notifier.Send(ctx, notification.Message{
		Kind:        notification.KindPaymentCompleted,
		Destination: sc.ReceiverWallet.UserID,
		Body:        fmt.Sprintf("Payment of %s settled to wallet %s", value, sc.ReceiverWallet.ID),
	})
}
