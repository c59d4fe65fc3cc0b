package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mesa-pay/mesa_pay/internal/transfer"
)

// RegisterTransferRoutes wires transfer endpoints.
func RegisterTransferRoutes(r fiber.Router, h *transfer.Handler) {
	r.Post("/transfers", h.Send)
}
