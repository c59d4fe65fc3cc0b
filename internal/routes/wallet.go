package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mesa-pay/mesa_pay/internal/wallet"
)

// RegisterWalletRoutes wires wallet-related endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	r.Post("/wallets", h.Create)
	r.Get("/wallets/:walletId", h.Get)
	r.Get("/wallets/:walletId/balances", h.Balances)
	r.Delete("/wallets/:walletId", h.Deactivate)
}
