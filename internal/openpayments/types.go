package openpayments

import "time"

// GrantScope identifies what a grant's access token may do.
type GrantScope string

const (
	ScopeIncomingPayment GrantScope = "incoming-payment"
	ScopeQuote           GrantScope = "quote"
	ScopeOutgoingPayment GrantScope = "outgoing-payment"
)

// Limits bound what an outgoing-payment grant is allowed to spend.
type Limits struct {
	DebitAmount   Amount `json:"debitAmount"`
	ReceiveAmount Amount `json:"receiveAmount"`
}

// Grant is the result of a grant negotiation with the authorization server.
// Immediate grants carry a usable AccessToken; interactive grants carry the
// interaction details and a nil-check on Interaction distinguishes the two.
type Grant struct {
	AccessToken string
	Interaction *Interaction
}

// Interactive reports whether the grant still requires human consent.
func (g *Grant) Interactive() bool {
	return g != nil && g.Interaction != nil
}

// Interaction holds everything needed to walk the consent redirect and resume
// the grant afterwards.
type Interaction struct {
	RedirectURI         string
	InteractionID       string
	FinishID            string
	ContinueURI         string
	ContinueAccessToken string
}

// IncomingPayment is a resource created on the receiver's resource server.
type IncomingPayment struct {
	ID              string         `json:"id"`
	WalletAddress   string         `json:"walletAddress"`
	WalletAddressID string         `json:"walletAddressId,omitempty"`
	IncomingAmount  Amount         `json:"incomingAmount"`
	ReceivedAmount  Amount         `json:"receivedAmount"`
	Completed       bool           `json:"completed"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	ExpiresAt       *time.Time     `json:"expiresAt,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
}

// Quote binds a sender-side debit amount to a receiver-side receive amount
// for one transfer.
type Quote struct {
	ID            string    `json:"id"`
	WalletAddress string    `json:"walletAddress"`
	Receiver      string    `json:"receiver"`
	DebitAmount   Amount    `json:"debitAmount"`
	ReceiveAmount Amount    `json:"receiveAmount"`
	CreatedAt     time.Time `json:"createdAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// OutgoingPayment is the final resource of a transfer leg.
type OutgoingPayment struct {
	ID            string         `json:"id"`
	WalletAddress string         `json:"walletAddress"`
	QuoteID       string         `json:"quoteId,omitempty"`
	Receiver      string         `json:"receiver,omitempty"`
	DebitAmount   Amount         `json:"debitAmount"`
	ReceiveAmount Amount         `json:"receiveAmount"`
	SentAmount    Amount         `json:"sentAmount"`
	Failed        bool           `json:"failed,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}
