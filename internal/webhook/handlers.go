package webhook

import (
	"fmt"
	"time"

	"github.com/mesa-pay/mesa_pay/internal/ledger"
	"github.com/mesa-pay/mesa_pay/internal/openpayments"
	"github.com/mesa-pay/mesa_pay/internal/wallet"
)

// Scope carries everything a handler may need, resolved by the dispatcher
// before the pure computation runs.
type Scope struct {
	// Wallet is the wallet implicated by the event's walletAddressId.
	Wallet wallet.Wallet

	// UserWallet is the initiating user's own wallet, when the event names one.
	UserWallet *wallet.Wallet

	// ReceiverWallet is the receiving side of an outgoing payment, resolved
	// through the incoming payment's wallet address id.
	ReceiverWallet *wallet.Wallet

	// Incoming is the looked-up incoming payment for outgoing events.
	Incoming *openpayments.IncomingPayment

	Now time.Time
}

// LedgerDelta is the pure outcome of one lifecycle event: which balances move,
// which records are written, whether a settlement must be scheduled.
type LedgerDelta struct {
	Entries             []ledger.Entry
	Transactions        []ledger.Transaction
	PaymentRecord       *ledger.PaymentRecord
	DeactivatePaymentID string
	ScheduleSettlement  bool
	Warnings            []string
}

type handlerFunc func(evt Event, sc Scope) (LedgerDelta, error)

// handlerFor is the closed dispatch table over the ten event kinds. Types
// without a handler are acknowledged without side effects.
func handlerFor(t EventType) (handlerFunc, bool) {
	switch t {
	case EventIncomingPaymentCreated:
		return handleIncomingPaymentCreated, true
	case EventIncomingPaymentCompleted:
		return handleIncomingPaymentCompleted, true
	case EventIncomingPaymentExpired:
		return handleIncomingPaymentExpired, true
	case EventOutgoingPaymentCreated:
		return handleOutgoingPaymentCreated, true
	case EventOutgoingPaymentCompleted:
		return handleOutgoingPaymentCompleted, true
	case EventOutgoingPaymentFailed,
		EventWalletAddressMonetized,
		EventWalletAddressNotFound,
		EventAssetLiquidityLow,
		EventPeerLiquidityLow:
		return nil, false
	default:
		return nil, false
	}
}

// handleIncomingPaymentCreated reserves the incoming funds: pending credit on
// the receiving wallet, and a matching pending debit on the initiating user's
// wallet when the event names one. Provider-typed events additionally record
// an immutable transaction.
func handleIncomingPaymentCreated(evt Event, sc Scope) (LedgerDelta, error) {
	if evt.Data.IncomingAmount == nil {
		return LedgerDelta{}, fmt.Errorf("incoming payment %s carries no incoming amount", evt.Data.ID)
	}
	value, err := evt.Data.IncomingAmount.Int64()
	if err != nil {
		return LedgerDelta{}, err
	}

	delta := LedgerDelta{
		Entries: []ledger.Entry{{
			WalletID: sc.Wallet.ID,
			Delta:    ledger.BalanceDelta{PendingCredits: value},
		}},
	}

	if sc.UserWallet != nil {
		delta.Entries = append(delta.Entries, ledger.Entry{
			WalletID: sc.UserWallet.ID,
			Delta:    ledger.BalanceDelta{PendingDebits: value},
		})
		delta.PaymentRecord = &ledger.PaymentRecord{
			IncomingPaymentID: evt.Data.ID,
			WalletID:          sc.UserWallet.ID,
			Active:            true,
			CreatedAt:         sc.Now,
		}
	}

	if evt.Data.Provider() {
		delta.Transactions = []ledger.Transaction{{
			Type:              ledger.TransactionTypeIncoming,
			IncomingPaymentID: evt.Data.ID,
			WalletAddressID:   evt.Data.WalletAddressID,
			State:             ledger.TransactionStatePending,
			Value:             value,
			AssetCode:         evt.Data.IncomingAmount.AssetCode,
			AssetScale:        evt.Data.IncomingAmount.AssetScale,
			SenderAddress:     evt.Data.Metadata.Sender,
			ReceiverAddress:   sc.Wallet.Address,
			Description:       evt.Data.Metadata.Description,
			InitiatedBy:       evt.Data.Metadata.UserID,
			CreatedAt:         sc.Now,
		}}
	}

	return delta, nil
}

// handleIncomingPaymentCompleted marks the reservation settled.
func handleIncomingPaymentCompleted(evt Event, _ Scope) (LedgerDelta, error) {
	return LedgerDelta{DeactivatePaymentID: evt.Data.ID}, nil
}

// handleIncomingPaymentExpired reverses the initiating user's pending debit
// and marks the reservation inactive.
func handleIncomingPaymentExpired(evt Event, sc Scope) (LedgerDelta, error) {
	delta := LedgerDelta{DeactivatePaymentID: evt.Data.ID}

	if sc.UserWallet != nil {
		if evt.Data.IncomingAmount == nil {
			return LedgerDelta{}, fmt.Errorf("expired incoming payment %s carries no incoming amount", evt.Data.ID)
		}
		value, err := evt.Data.IncomingAmount.Int64()
		if err != nil {
			return LedgerDelta{}, err
		}
		delta.Entries = []ledger.Entry{{
			WalletID: sc.UserWallet.ID,
			Delta:    ledger.BalanceDelta{PendingDebits: -value},
		}}
	}

	return delta, nil
}

// handleOutgoingPaymentCreated reserves the payer-side debit. Provider-typed
// events defer the debit to completion. Settlement is scheduled unless the
// associated incoming payment is provider-typed.
func handleOutgoingPaymentCreated(evt Event, sc Scope) (LedgerDelta, error) {
	if evt.Data.ReceiveAmount == nil {
		return LedgerDelta{}, fmt.Errorf("outgoing payment %s carries no receive amount", evt.Data.ID)
	}
	value, err := evt.Data.ReceiveAmount.Int64()
	if err != nil {
		return LedgerDelta{}, err
	}

	var delta LedgerDelta
	if !evt.Data.Provider() {
		delta.Entries = []ledger.Entry{{
			WalletID: sc.Wallet.ID,
			Delta:    ledger.BalanceDelta{PendingDebits: value},
		}}
	}

	delta.ScheduleSettlement = !incomingProviderTyped(sc.Incoming)

	return delta, nil
}

// handleOutgoingPaymentCompleted posts both sides of the transfer: the payer
// moves the amount from pending to posted debits, the receiver from pending
// credits to posted credits.
func handleOutgoingPaymentCompleted(evt Event, sc Scope) (LedgerDelta, error) {
	if evt.Data.ReceiveAmount == nil {
		return LedgerDelta{}, fmt.Errorf("outgoing payment %s carries no receive amount", evt.Data.ID)
	}
	value, err := evt.Data.ReceiveAmount.Int64()
	if err != nil {
		return LedgerDelta{}, err
	}
	if sc.ReceiverWallet == nil {
		return LedgerDelta{}, fmt.Errorf("outgoing payment %s: receiving wallet not resolved", evt.Data.ID)
	}

	delta := LedgerDelta{
		Entries: []ledger.Entry{
			{
				WalletID: sc.Wallet.ID,
				Delta: ledger.BalanceDelta{
					PendingDebits: -value,
					PostedDebits:  value,
					PostedCredits: -value,
				},
			},
			{
				WalletID: sc.ReceiverWallet.ID,
				Delta: ledger.BalanceDelta{
					PendingCredits: -value,
					PostedCredits:  value,
				},
			},
		},
	}

	if sc.Incoming != nil && !evt.Data.ReceiveAmount.SameAsset(sc.Incoming.IncomingAmount) {
		delta.Warnings = append(delta.Warnings, fmt.Sprintf(
			"asset mismatch between legs of outgoing payment %s: %s/%d vs %s/%d",
			evt.Data.ID,
			evt.Data.ReceiveAmount.AssetCode, evt.Data.ReceiveAmount.AssetScale,
			sc.Incoming.IncomingAmount.AssetCode, sc.Incoming.IncomingAmount.AssetScale))
	}

	return delta, nil
}

func incomingProviderTyped(incoming *openpayments.IncomingPayment) bool {
	if incoming == nil {
		return false
	}
	t, _ := incoming.Metadata["type"].(string)
	return t == MetadataTypeProvider
}
