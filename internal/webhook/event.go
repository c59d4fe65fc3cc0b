package webhook

import "github.com/mesa-pay/mesa_pay/internal/openpayments"

// EventType enumerates the payment-network lifecycle events.
type EventType string

const (
	EventIncomingPaymentCreated   EventType = "incoming_payment.created"
	EventIncomingPaymentCompleted EventType = "incoming_payment.completed"
	EventIncomingPaymentExpired   EventType = "incoming_payment.expired"
	EventOutgoingPaymentCreated   EventType = "outgoing_payment.created"
	EventOutgoingPaymentCompleted EventType = "outgoing_payment.completed"
	EventOutgoingPaymentFailed    EventType = "outgoing_payment.failed"
	EventWalletAddressMonetized   EventType = "wallet_address.web_monetization"
	EventWalletAddressNotFound    EventType = "wallet_address.not_found"
	EventAssetLiquidityLow        EventType = "asset.liquidity_low"
	EventPeerLiquidityLow         EventType = "peer.liquidity_low"
)

// MetadataTypeProvider marks a payment that belongs to a service-provider
// flow. Provider flows defer debits to completion and are recorded as
// transactions.
const MetadataTypeProvider = "PROVIDER"

// Event is the at-most-once-delivered webhook envelope. It is consumed
// synchronously and never persisted.
type Event struct {
	ID   string    `json:"id"`
	Type EventType `json:"type"`
	Data EventData `json:"data"`
}

// EventData is the typed payload. Which fields are set depends on the event
// type.
type EventData struct {
	ID              string               `json:"id"`
	WalletAddressID string               `json:"walletAddressId"`
	IncomingAmount  *openpayments.Amount `json:"incomingAmount,omitempty"`
	ReceiveAmount   *openpayments.Amount `json:"receiveAmount,omitempty"`
	DebitAmount     *openpayments.Amount `json:"debitAmount,omitempty"`
	Receiver        string               `json:"receiver,omitempty"`
	State           string               `json:"state,omitempty"`
	Completed       bool                 `json:"completed,omitempty"`
	Metadata        Metadata             `json:"metadata,omitempty"`
}

// Metadata is the free-form event annotation this backend understands.
type Metadata struct {
	Type        string `json:"type,omitempty"`
	UserID      string `json:"userId,omitempty"`
	Description string `json:"description,omitempty"`
	ContentID   string `json:"contentId,omitempty"`
	Sender      string `json:"sender,omitempty"`
}

// Provider reports whether the event is provider-typed.
func (d EventData) Provider() bool {
	return d.Metadata.Type == MetadataTypeProvider
}
