package webhook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesa-pay/mesa_pay/internal/ledger"
	"github.com/mesa-pay/mesa_pay/internal/openpayments"
	"github.com/mesa-pay/mesa_pay/internal/wallet"
)

func usd(value int64) *openpayments.Amount {
	a := openpayments.NewAmount(value, "USD", 2)
	return &a
}

func testScope() Scope {
	return Scope{
		Wallet: wallet.Wallet{ID: "w-recv", Address: "https://wallet.example/alice", AddressID: "wa-recv"},
		Now:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestIncomingPaymentCreated(t *testing.T) {
	evt := Event{
		ID:   "evt-1",
		Type: EventIncomingPaymentCreated,
		Data: EventData{ID: "ip-1", WalletAddressID: "wa-recv", IncomingAmount: usd(500)},
	}

	delta, err := handleIncomingPaymentCreated(evt, testScope())
	require.NoError(t, err)

	require.Len(t, delta.Entries, 1)
	assert.Equal(t, "w-recv", delta.Entries[0].WalletID)
	assert.Equal(t, ledger.BalanceDelta{PendingCredits: 500}, delta.Entries[0].Delta)

	assert.Empty(t, delta.Transactions)
	assert.Nil(t, delta.PaymentRecord)
	assert.False(t, delta.ScheduleSettlement)
}

func TestIncomingPaymentCreatedReservesUserDebit(t *testing.T) {
	sc := testScope()
	sc.UserWallet = &wallet.Wallet{ID: "w-user", AddressID: "wa-user"}

	evt := Event{
		ID:   "evt-1",
		Type: EventIncomingPaymentCreated,
		Data: EventData{
			ID:              "ip-1",
			WalletAddressID: "wa-recv",
			IncomingAmount:  usd(500),
			Metadata:        Metadata{UserID: "u-1"},
		},
	}

	delta, err := handleIncomingPaymentCreated(evt, sc)
	require.NoError(t, err)

	require.Len(t, delta.Entries, 2)
	assert.Equal(t, ledger.BalanceDelta{PendingCredits: 500}, delta.Entries[0].Delta)
	assert.Equal(t, "w-user", delta.Entries[1].WalletID)
	assert.Equal(t, ledger.BalanceDelta{PendingDebits: 500}, delta.Entries[1].Delta)

	require.NotNil(t, delta.PaymentRecord)
	assert.Equal(t, "ip-1", delta.PaymentRecord.IncomingPaymentID)
	assert.Equal(t, "w-user", delta.PaymentRecord.WalletID)
	assert.True(t, delta.PaymentRecord.Active)
}

func TestIncomingPaymentCreatedProviderRecordsTransaction(t *testing.T) {
	evt := Event{
		ID:   "evt-1",
		Type: EventIncomingPaymentCreated,
		Data: EventData{
			ID:              "ip-1",
			WalletAddressID: "wa-recv",
			IncomingAmount:  usd(500),
			Metadata: Metadata{
				Type:        MetadataTypeProvider,
				UserID:      "u-1",
				Description: "subscription",
				Sender:      "https://wallet.example/bob",
			},
		},
	}

	delta, err := handleIncomingPaymentCreated(evt, testScope())
	require.NoError(t, err)

	require.Len(t, delta.Transactions, 1)
	txn := delta.Transactions[0]
	assert.Equal(t, ledger.TransactionTypeIncoming, txn.Type)
	assert.Equal(t, ledger.TransactionStatePending, txn.State)
	assert.Equal(t, int64(500), txn.Value)
	assert.Equal(t, "USD", txn.AssetCode)
	assert.Equal(t, 2, txn.AssetScale)
	assert.Equal(t, "ip-1", txn.IncomingPaymentID)
	assert.Equal(t, "https://wallet.example/bob", txn.SenderAddress)
	assert.Equal(t, "https://wallet.example/alice", txn.ReceiverAddress)
	assert.Equal(t, "subscription", txn.Description)
	assert.Equal(t, "u-1", txn.InitiatedBy)
}

func TestIncomingPaymentCreatedRequiresAmount(t *testing.T) {
	evt := Event{Type: EventIncomingPaymentCreated, Data: EventData{ID: "ip-1"}}
	_, err := handleIncomingPaymentCreated(evt, testScope())
	assert.ErrorContains(t, err, "no incoming amount")
}

func TestIncomingPaymentCompleted(t *testing.T) {
	evt := Event{Type: EventIncomingPaymentCompleted, Data: EventData{ID: "ip-1"}}
	delta, err := handleIncomingPaymentCompleted(evt, testScope())
	require.NoError(t, err)

	assert.Equal(t, "ip-1", delta.DeactivatePaymentID)
	assert.Empty(t, delta.Entries)
}

func TestIncomingPaymentExpiredReversesUserDebit(t *testing.T) {
	sc := testScope()
	sc.UserWallet = &wallet.Wallet{ID: "w-user"}

	evt := Event{
		Type: EventIncomingPaymentExpired,
		Data: EventData{ID: "ip-1", IncomingAmount: usd(500), Metadata: Metadata{UserID: "u-1"}},
	}

	delta, err := handleIncomingPaymentExpired(evt, sc)
	require.NoError(t, err)

	assert.Equal(t, "ip-1", delta.DeactivatePaymentID)
	require.Len(t, delta.Entries, 1)
	assert.Equal(t, "w-user", delta.Entries[0].WalletID)
	assert.Equal(t, ledger.BalanceDelta{PendingDebits: -500}, delta.Entries[0].Delta)
}

func TestOutgoingPaymentCreated(t *testing.T) {
	evt := Event{
		Type: EventOutgoingPaymentCreated,
		Data: EventData{ID: "op-1", WalletAddressID: "wa-recv", ReceiveAmount: usd(500)},
	}

	delta, err := handleOutgoingPaymentCreated(evt, testScope())
	require.NoError(t, err)

	require.Len(t, delta.Entries, 1)
	assert.Equal(t, ledger.BalanceDelta{PendingDebits: 500}, delta.Entries[0].Delta)
	assert.True(t, delta.ScheduleSettlement)
}

func TestOutgoingPaymentCreatedProviderDefersDebit(t *testing.T) {
	evt := Event{
		Type: EventOutgoingPaymentCreated,
		Data: EventData{
			ID:            "op-1",
			ReceiveAmount: usd(500),
			Metadata:      Metadata{Type: MetadataTypeProvider},
		},
	}

	delta, err := handleOutgoingPaymentCreated(evt, testScope())
	require.NoError(t, err)

	assert.Empty(t, delta.Entries)
	assert.True(t, delta.ScheduleSettlement)
}

func TestOutgoingPaymentCreatedSkipsSettlementForProviderReceiver(t *testing.T) {
	sc := testScope()
	sc.Incoming = &openpayments.IncomingPayment{
		ID:       "ip-1",
		Metadata: map[string]any{"type": MetadataTypeProvider},
	}

	evt := Event{
		Type: EventOutgoingPaymentCreated,
		Data: EventData{ID: "op-1", ReceiveAmount: usd(500), Receiver: "https://pay.example/incoming-payments/ip-1"},
	}

	delta, err := handleOutgoingPaymentCreated(evt, sc)
	require.NoError(t, err)
	assert.False(t, delta.ScheduleSettlement)
}

func TestOutgoingPaymentCompleted(t *testing.T) {
	sc := testScope()
	sc.Wallet = wallet.Wallet{ID: "w-payer"}
	sc.ReceiverWallet = &wallet.Wallet{ID: "w-recv"}
	sc.Incoming = &openpayments.IncomingPayment{ID: "ip-1", IncomingAmount: openpayments.NewAmount(500, "USD", 2)}

	evt := Event{
		Type: EventOutgoingPaymentCompleted,
		Data: EventData{ID: "op-1", ReceiveAmount: usd(500), Receiver: "https://pay.example/incoming-payments/ip-1"},
	}

	delta, err := handleOutgoingPaymentCompleted(evt, sc)
	require.NoError(t, err)

	require.Len(t, delta.Entries, 2)
	assert.Equal(t, "w-payer", delta.Entries[0].WalletID)
	assert.Equal(t, ledger.BalanceDelta{PendingDebits: -500, PostedDebits: 500, PostedCredits: -500}, delta.Entries[0].Delta)
	assert.Equal(t, "w-recv", delta.Entries[1].WalletID)
	assert.Equal(t, ledger.BalanceDelta{PendingCredits: -500, PostedCredits: 500}, delta.Entries[1].Delta)
	assert.Empty(t, delta.Warnings)
}

func TestOutgoingPaymentCompletedWarnsOnAssetMismatch(t *testing.T) {
	sc := testScope()
	sc.ReceiverWallet = &wallet.Wallet{ID: "w-recv"}
	sc.Incoming = &openpayments.IncomingPayment{ID: "ip-1", IncomingAmount: openpayments.NewAmount(420, "EUR", 2)}

	evt := Event{
		Type: EventOutgoingPaymentCompleted,
		Data: EventData{ID: "op-1", ReceiveAmount: usd(500)},
	}

	delta, err := handleOutgoingPaymentCompleted(evt, sc)
	require.NoError(t, err)
	require.Len(t, delta.Warnings, 1)
	assert.Contains(t, delta.Warnings[0], "asset mismatch")
}

func TestOutgoingPaymentCompletedRequiresReceiverWallet(t *testing.T) {
	evt := Event{Type: EventOutgoingPaymentCompleted, Data: EventData{ID: "op-1", ReceiveAmount: usd(500)}}
	_, err := handleOutgoingPaymentCompleted(evt, testScope())
	assert.ErrorContains(t, err, "receiving wallet not resolved")
}

// A created followed by a completed leaves nothing pending on either side.
func TestOutgoingLifecycleNetsPendingToZero(t *testing.T) {
	payer := wallet.Wallet{ID: "w-payer"}
	receiver := wallet.Wallet{ID: "w-recv"}

	createdSc := testScope()
	createdSc.Wallet = payer
	created, err := handleOutgoingPaymentCreated(Event{
		Type: EventOutgoingPaymentCreated,
		Data: EventData{ID: "op-1", ReceiveAmount: usd(500)},
	}, createdSc)
	require.NoError(t, err)

	incomingSc := testScope()
	incomingSc.Wallet = receiver
	credited, err := handleIncomingPaymentCreated(Event{
		Type: EventIncomingPaymentCreated,
		Data: EventData{ID: "ip-1", IncomingAmount: usd(500)},
	}, incomingSc)
	require.NoError(t, err)

	completedSc := testScope()
	completedSc.Wallet = payer
	completedSc.ReceiverWallet = &receiver
	completed, err := handleOutgoingPaymentCompleted(Event{
		Type: EventOutgoingPaymentCompleted,
		Data: EventData{ID: "op-1", ReceiveAmount: usd(500)},
	}, completedSc)
	require.NoError(t, err)

	totals := map[string]ledger.BalanceDelta{}
	for _, delta := range []LedgerDelta{created, credited, completed} {
		for _, entry := range delta.Entries {
			totals[entry.WalletID] = totals[entry.WalletID].Add(entry.Delta)
		}
	}

	assert.Zero(t, totals["w-payer"].PendingDebits)
	assert.Zero(t, totals["w-recv"].PendingCredits)
	assert.Equal(t, int64(500), totals["w-payer"].PostedDebits)
	assert.Equal(t, int64(500), totals["w-recv"].PostedCredits)
}

func TestHandlerTableIsClosed(t *testing.T) {
	handled := []EventType{
		EventIncomingPaymentCreated,
		EventIncomingPaymentCompleted,
		EventIncomingPaymentExpired,
		EventOutgoingPaymentCreated,
		EventOutgoingPaymentCompleted,
	}
	for _, typ := range handled {
		_, ok := handlerFor(typ)
		assert.True(t, ok, "expected handler for %s", typ)
	}

	acknowledged := []EventType{
		EventOutgoingPaymentFailed,
		EventWalletAddressMonetized,
		EventWalletAddressNotFound,
		EventAssetLiquidityLow,
		EventPeerLiquidityLow,
		EventType("something.unknown"),
	}
	for _, typ := range acknowledged {
		_, ok := handlerFor(typ)
		assert.False(t, ok, "expected no handler for %s", typ)
	}
}
