package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mesa-pay/mesa_pay/internal/openpayments"
)

// State tracks the orchestrator through one transfer attempt.
type State string

const (
	StateQuoting          State = "QUOTING"
	StateGrantingOutgoing State = "GRANTING_OUTGOING"
	StateInteracting      State = "INTERACTING"
	StatePaying           State = "PAYING"
	StateDone             State = "DONE"
	StateFailed           State = "FAILED"
)

// defaultIncomingExpiry bounds how long an unclaimed incoming payment stays
// open on the receiver side.
const defaultIncomingExpiry = 10 * time.Minute

// GrantRequester negotiates grants with the authorization server.
type GrantRequester interface {
	Request(ctx context.Context, authServer string, scope openpayments.GrantScope, clientWalletAddress string, limits *openpayments.Limits) (*openpayments.Grant, error)
}

// InteractionCompleter walks the consent flow of an interactive grant.
type InteractionCompleter interface {
	Complete(ctx context.Context, grant *openpayments.Grant) (string, error)
}

// ResourceCreator creates payment resources on resource servers.
type ResourceCreator interface {
	CreateIncomingPayment(ctx context.Context, resourceServer, accessToken, receiverWalletAddress string, amount openpayments.Amount, expiresAt time.Time, metadata map[string]any) (*openpayments.IncomingPayment, error)
	CreateQuote(ctx context.Context, resourceServer, accessToken, senderWalletAddress, receiver string) (*openpayments.Quote, error)
	CreateOutgoingPayment(ctx context.Context, resourceServer, accessToken, senderWalletAddress, quoteID string, metadata map[string]any) (*openpayments.OutgoingPayment, error)
}

// Config holds the network endpoints and client identity the orchestrator
// operates with.
type Config struct {
	AuthServerURL       string
	ResourceServerURL   string
	PaymentHost         string
	ClientWalletAddress string
}

// Service drives one outbound transfer end to end: incoming payment, quote,
// outgoing-payment grant, interactive consent, outgoing payment. Single-shot:
// no step is retried and re-invocation creates fresh resources.
type Service struct {
	cfg          Config
	grants       GrantRequester
	interactions InteractionCompleter
	resources    ResourceCreator
	logger       *slog.Logger
}

// NewService constructs the transfer orchestrator.
func NewService(cfg Config, grants GrantRequester, interactions InteractionCompleter, resources ResourceCreator, logger *slog.Logger) *Service {
	return &Service{
		cfg:          cfg,
		grants:       grants,
		interactions: interactions,
		resources:    resources,
		logger:       logger,
	}
}

// SendInput captures one transfer order.
type SendInput struct {
	SenderWalletAddress   string
	ReceiverWalletAddress string
	Amount                openpayments.Amount
	Description           string
	UserID                string
}

// SendResult reports where the attempt ended up. State is FAILED when the
// returned error is non-nil, and the ids of resources created before the
// failure are preserved for diagnostics.
type SendResult struct {
	State             State
	IncomingPaymentID string
	QuoteID           string
	Payment           *openpayments.OutgoingPayment
	CompletedAt       time.Time
}

// Send runs the transfer state machine to completion.
func (s *Service) Send(ctx context.Context, input SendInput) (SendResult, error) {
	res := SendResult{State: StateQuoting}

	metadata := map[string]any{}
	if input.Description != "" {
		metadata["description"] = input.Description
	}
	if input.UserID != "" {
		metadata["userId"] = input.UserID
	}
	metadata["orderId"] = uuid.NewString()

	incoming, quote, err := s.quote(ctx, input, metadata)
	if incoming != nil {
		res.IncomingPaymentID = incoming.ID
	}
	if quote != nil {
		res.QuoteID = quote.ID
	}
	if err != nil {
		return s.fail(res, err)
	}

	res.State = StateGrantingOutgoing
	limits := &openpayments.Limits{
		DebitAmount:   quote.DebitAmount,
		ReceiveAmount: quote.ReceiveAmount,
	}
	grant, err := s.grants.Request(ctx, s.cfg.AuthServerURL, openpayments.ScopeOutgoingPayment, s.cfg.ClientWalletAddress, limits)
	if err != nil {
		return s.fail(res, fmt.Errorf("granting outgoing payment: %w", err))
	}

	token := grant.AccessToken
	if grant.Interactive() {
		res.State = StateInteracting
		token, err = s.interactions.Complete(ctx, grant)
		if err != nil {
			return s.fail(res, fmt.Errorf("interacting: %w", err))
		}
	} else {
		s.logger.Info("outgoing grant resolved without interaction", "quote", quote.ID)
	}

	res.State = StatePaying
	payment, err := s.resources.CreateOutgoingPayment(ctx, s.cfg.ResourceServerURL, token, input.SenderWalletAddress, quote.ID, metadata)
	if err != nil {
		return s.fail(res, fmt.Errorf("paying: %w", err))
	}

	res.State = StateDone
	res.Payment = payment
	res.CompletedAt = time.Now().UTC()
	s.logger.Info("transfer completed", "outgoing_payment", payment.ID, "quote", quote.ID)

	return res, nil
}

// quote covers the first leg: an incoming payment on the receiver followed by
// a quote binding the sender's debit to it.
func (s *Service) quote(ctx context.Context, input SendInput, metadata map[string]any) (*openpayments.IncomingPayment, *openpayments.Quote, error) {
	ipGrant, err := s.grants.Request(ctx, s.cfg.AuthServerURL, openpayments.ScopeIncomingPayment, s.cfg.ClientWalletAddress, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("granting incoming payment: %w", err)
	}
	if ipGrant.Interactive() {
		return nil, nil, fmt.Errorf("granting incoming payment: unexpected interactive grant")
	}

	expiresAt := time.Now().UTC().Add(defaultIncomingExpiry)
	incoming, err := s.resources.CreateIncomingPayment(ctx, s.cfg.ResourceServerURL, ipGrant.AccessToken, input.ReceiverWalletAddress, input.Amount, expiresAt, metadata)
	if err != nil {
		return nil, nil, fmt.Errorf("quoting: %w", err)
	}

	quoteGrant, err := s.grants.Request(ctx, s.cfg.AuthServerURL, openpayments.ScopeQuote, s.cfg.ClientWalletAddress, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("granting quote: %w", err)
	}
	if quoteGrant.Interactive() {
		return nil, nil, fmt.Errorf("granting quote: unexpected interactive grant")
	}

	receiver := openpayments.ReceiverURL(s.cfg.PaymentHost, incoming.ID)
	quote, err := s.resources.CreateQuote(ctx, s.cfg.ResourceServerURL, quoteGrant.AccessToken, input.SenderWalletAddress, receiver)
	if err != nil {
		return incoming, nil, fmt.Errorf("quoting: %w", err)
	}

	return incoming, quote, nil
}

// fail stamps the terminal state. Resources created on the network before the
// failure are outside local control and are not rolled back.
func (s *Service) fail(res SendResult, err error) (SendResult, error) {
	s.logger.Error("transfer failed", "state_reached", res.State, "incoming_payment", res.IncomingPaymentID, "quote", res.QuoteID, "error", err)
	res.State = StateFailed
	return res, err
}
