package openpayments

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ResourceClient creates and reads payment resources on resource servers.
// Every call carries the bearer token for its scope and signs its own
// envelope independently.
type ResourceClient struct {
	protocolClient
	logger *slog.Logger
}

// NewResourceClient builds a resource client signing with the given key material.
func NewResourceClient(signer Signer, keyID, privateKey string, logger *slog.Logger) *ResourceClient {
	return &ResourceClient{
		protocolClient: newProtocolClient(signer, keyID, privateKey),
		logger:         logger,
	}
}

type incomingPaymentRequest struct {
	WalletAddress  string         `json:"walletAddress"`
	IncomingAmount Amount         `json:"incomingAmount"`
	ExpiresAt      string         `json:"expiresAt,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// CreateIncomingPayment creates an incoming payment on the receiver's wallet
// address.
func (c *ResourceClient) CreateIncomingPayment(ctx context.Context, resourceServer, accessToken, receiverWalletAddress string, amount Amount, expiresAt time.Time, metadata map[string]any) (*IncomingPayment, error) {
	body := incomingPaymentRequest{
		WalletAddress:  receiverWalletAddress,
		IncomingAmount: amount,
		Metadata:       metadata,
	}
	if !expiresAt.IsZero() {
		body.ExpiresAt = expiresAt.UTC().Format(time.RFC3339)
	}

	var payment IncomingPayment
	endpoint := resourceServer + "/incoming-payments"
	if err := c.doSigned(ctx, "POST", endpoint, accessToken, body, &payment); err != nil {
		return nil, fmt.Errorf("creating incoming payment: %w", err)
	}

	return &payment, nil
}

type quoteRequest struct {
	WalletAddress string `json:"walletAddress"`
	Receiver      string `json:"receiver"`
	Method        string `json:"method"`
}

// CreateQuote prices the transfer of an incoming payment from the sender's
// wallet address.
func (c *ResourceClient) CreateQuote(ctx context.Context, resourceServer, accessToken, senderWalletAddress, receiver string) (*Quote, error) {
	body := quoteRequest{
		WalletAddress: senderWalletAddress,
		Receiver:      receiver,
		Method:        "ilp",
	}

	var quote Quote
	endpoint := resourceServer + "/quotes"
	if err := c.doSigned(ctx, "POST", endpoint, accessToken, body, &quote); err != nil {
		return nil, fmt.Errorf("creating quote: %w", err)
	}

	return &quote, nil
}

type outgoingPaymentRequest struct {
	WalletAddress string         `json:"walletAddress"`
	QuoteID       string         `json:"quoteId"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// CreateOutgoingPayment creates the outgoing payment that actually moves the
// money, using the token obtained from the finished interaction.
func (c *ResourceClient) CreateOutgoingPayment(ctx context.Context, resourceServer, accessToken, senderWalletAddress, quoteID string, metadata map[string]any) (*OutgoingPayment, error) {
	body := outgoingPaymentRequest{
		WalletAddress: senderWalletAddress,
		QuoteID:       quoteID,
		Metadata:      metadata,
	}

	var payment OutgoingPayment
	endpoint := resourceServer + "/outgoing-payments"
	if err := c.doSigned(ctx, "POST", endpoint, accessToken, body, &payment); err != nil {
		return nil, fmt.Errorf("creating outgoing payment: %w", err)
	}

	return &payment, nil
}

// GetIncomingPayment fetches an incoming payment by its resource URL. Used by
// ledger reconciliation to resolve the receiving side of a transfer.
func (c *ResourceClient) GetIncomingPayment(ctx context.Context, paymentURL string) (*IncomingPayment, error) {
	var payment IncomingPayment
	if err := c.doSigned(ctx, "GET", paymentURL, "", nil, &payment); err != nil {
		return nil, fmt.Errorf("getting incoming payment: %w", err)
	}
	return &payment, nil
}

// GetOutgoingPayment fetches an outgoing payment by its resource URL.
func (c *ResourceClient) GetOutgoingPayment(ctx context.Context, paymentURL string) (*OutgoingPayment, error) {
	var payment OutgoingPayment
	if err := c.doSigned(ctx, "GET", paymentURL, "", nil, &payment); err != nil {
		return nil, fmt.Errorf("getting outgoing payment: %w", err)
	}
	return &payment, nil
}

// ReceiverURL builds the quote receiver reference from the payment host and
// an incoming payment id.
func ReceiverURL(paymentHost, incomingPaymentID string) string {
	if strings.HasPrefix(incomingPaymentID, "http://") || strings.HasPrefix(incomingPaymentID, "https://") {
		return incomingPaymentID
	}
	return strings.TrimSuffix(paymentHost, "/") + "/incoming-payments/" + incomingPaymentID
}
