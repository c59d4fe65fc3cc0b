package wallet

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	Name       string `json:"name"`
	Address    string `json:"address"`
	AddressID  string `json:"address_id"`
	UserID     string `json:"user_id"`
	ProviderID string `json:"provider_id"`
	AsClient   bool   `json:"as_client"`
}

type walletResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Address   string `json:"address"`
	AddressID string `json:"address_id"`
	UserID    string `json:"user_id,omitempty"`
	KeyID     string `json:"key_id,omitempty"`
	PublicKey string `json:"public_key,omitempty"`
	Active    bool   `json:"active"`
}

// Create provisions a wallet for a network-assigned address. The private key,
// when generated, stays server side.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	wallet, err := h.service.Create(c.UserContext(), CreateInput{
		Name:       req.Name,
		Address:    req.Address,
		AddressID:  req.AddressID,
		UserID:     req.UserID,
		ProviderID: req.ProviderID,
		AsClient:   req.AsClient,
	})
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(toResponse(wallet))
}

// Get returns wallet metadata.
func (h *Handler) Get(c *fiber.Ctx) error {
	wallet, err := h.service.Get(c.UserContext(), c.Params("walletId"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		}
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusOK).JSON(toResponse(wallet))
}

// Balances returns the four balance counters.
func (h *Handler) Balances(c *fiber.Ctx) error {
	balances, err := h.service.Balances(c.UserContext(), c.Params("walletId"))
	if err != nil {
		return fiber.NewError(http.StatusNotFound, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"wallet_id":       balances.WalletID,
		"pending_credits": balances.PendingCredits,
		"pending_debits":  balances.PendingDebits,
		"posted_credits":  balances.PostedCredits,
		"posted_debits":   balances.PostedDebits,
		"timestamp":       balances.AsOf,
	})
}

// Deactivate flips the wallet inactive.
func (h *Handler) Deactivate(c *fiber.Ctx) error {
	if err := h.service.Deactivate(c.UserContext(), c.Params("walletId")); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		}
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.SendStatus(http.StatusNoContent)
}

func toResponse(w Wallet) walletResponse {
	return walletResponse{
		ID:        w.ID,
		Name:      w.Name,
		Address:   w.Address,
		AddressID: w.AddressID,
		UserID:    w.UserID,
		KeyID:     w.KeyID,
		PublicKey: w.PublicKey,
		Active:    w.Active,
	}
}
