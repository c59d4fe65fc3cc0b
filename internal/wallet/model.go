package wallet

import "time"

// Wallet is a stored-value account on the payment network. Balance counters
// are mutated only by the ledger store in response to lifecycle events;
// wallets are deactivated, never deleted.
type Wallet struct {
	ID        string
	Name      string
	Address   string // network-assigned, URL shaped
	AddressID string // opaque id the network uses in webhook payloads

	UserID     string // optional owner linkage
	ProviderID string // optional service-provider linkage

	PendingCredits int64
	PendingDebits  int64
	PostedCredits  int64
	PostedDebits   int64

	// Key material used when the wallet itself acts as a payment-network client.
	KeyID      string
	PublicKey  string
	PrivateKey string

	Active    bool
	CreatedAt time.Time
}

// Balances is the point-in-time view of the four counters.
type Balances struct {
	WalletID       string
	PendingCredits int64
	PendingDebits  int64
	PostedCredits  int64
	PostedDebits   int64
	AsOf           time.Time
}
