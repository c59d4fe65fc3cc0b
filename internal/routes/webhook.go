package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mesa-pay/mesa_pay/internal/webhook"
)

// RegisterWebhookRoute wires the inbound payment-network event endpoint.
func RegisterWebhookRoute(app *fiber.App, h *webhook.Handler) {
	app.Post("/webhook", h.Receive)
}
