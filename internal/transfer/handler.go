package transfer

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/mesa-pay/mesa_pay/internal/openpayments"
)

// Handler exposes transfer endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a transfer handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type sendRequest struct {
	SenderWalletAddress   string `json:"sender_wallet_address"`
	ReceiverWalletAddress string `json:"receiver_wallet_address"`
	Amount                struct {
		Value      string `json:"value"`
		AssetCode  string `json:"asset_code"`
		AssetScale int    `json:"asset_scale"`
	} `json:"amount"`
	Description string `json:"description"`
	UserID      string `json:"user_id"`
}

// Send runs one transfer attempt end to end.
func (h *Handler) Send(c *fiber.Ctx) error {
	var req sendRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.SenderWalletAddress == "" || req.ReceiverWalletAddress == "" {
		return fiber.NewError(http.StatusBadRequest, "sender and receiver wallet addresses are required")
	}
	amount := openpayments.Amount{
		Value:      req.Amount.Value,
		AssetCode:  req.Amount.AssetCode,
		AssetScale: req.Amount.AssetScale,
	}
	if _, err := amount.Int64(); err != nil {
		return fiber.NewError(http.StatusBadRequest, "amount value must be a string-encoded integer")
	}

	res, err := h.service.Send(c.UserContext(), SendInput{
		SenderWalletAddress:   req.SenderWalletAddress,
		ReceiverWalletAddress: req.ReceiverWalletAddress,
		Amount:                amount,
		Description:           req.Description,
		UserID:                req.UserID,
	})
	if err != nil {
		return c.Status(http.StatusBadGateway).JSON(fiber.Map{
			"state":               res.State,
			"incoming_payment_id": res.IncomingPaymentID,
			"quote_id":            res.QuoteID,
			"error":               "transfer failed",
		})
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"state":               res.State,
		"incoming_payment_id": res.IncomingPaymentID,
		"quote_id":            res.QuoteID,
		"outgoing_payment_id": res.Payment.ID,
		"completed_at":        res.CompletedAt,
	})
}
