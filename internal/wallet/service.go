package wallet

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Service exposes wallet provisioning and lookups.
type Service struct {
	repo Repository
}

// NewService builds a wallet service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateInput captures data required to provision a wallet.
type CreateInput struct {
	Name       string
	Address    string
	AddressID  string
	UserID     string
	ProviderID string

	// AsClient provisions an Ed25519 key pair so the wallet can sign
	// payment-network requests itself.
	AsClient bool
}

// Create provisions a wallet for a network-assigned address.
func (s *Service) Create(ctx context.Context, input CreateInput) (Wallet, error) {
	if input.Address == "" {
		return Wallet{}, fmt.Errorf("wallet address is required")
	}
	if input.AddressID == "" {
		return Wallet{}, fmt.Errorf("wallet address id is required")
	}

	wallet := Wallet{
		ID:         uuid.NewString(),
		Name:       input.Name,
		Address:    input.Address,
		AddressID:  input.AddressID,
		UserID:     input.UserID,
		ProviderID: input.ProviderID,
		Active:     true,
		CreatedAt:  time.Now().UTC(),
	}

	if input.AsClient {
		public, private, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return Wallet{}, fmt.Errorf("generating client key pair: %w", err)
		}
		wallet.KeyID = uuid.NewString()
		wallet.PublicKey = base64.StdEncoding.EncodeToString(public)
		wallet.PrivateKey = base64.StdEncoding.EncodeToString(private)
	}

	if err := s.repo.Create(ctx, wallet); err != nil {
		return Wallet{}, err
	}

	return wallet, nil
}

// Get retrieves a wallet by id.
func (s *Service) Get(ctx context.Context, id string) (Wallet, error) {
	return s.repo.Get(ctx, id)
}

// GetByAddressID retrieves the wallet implicated by a webhook payload.
func (s *Service) GetByAddressID(ctx context.Context, addressID string) (Wallet, error) {
	return s.repo.GetByAddressID(ctx, addressID)
}

// GetByUserID retrieves the wallet linked to a user.
func (s *Service) GetByUserID(ctx context.Context, userID string) (Wallet, error) {
	return s.repo.GetByUserID(ctx, userID)
}

// Deactivate flips the wallet inactive.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	return s.repo.Deactivate(ctx, id)
}

// Balances returns the wallet's pending and posted counters.
func (s *Service) Balances(ctx context.Context, id string) (Balances, error) {
	wallet, err := s.repo.Get(ctx, id)
	if err != nil {
		return Balances{}, err
	}
	return Balances{
		WalletID:       wallet.ID,
		PendingCredits: wallet.PendingCredits,
		PendingDebits:  wallet.PendingDebits,
		PostedCredits:  wallet.PostedCredits,
		PostedDebits:   wallet.PostedDebits,
		AsOf:           time.Now().UTC(),
	}, nil
}
