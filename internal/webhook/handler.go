package webhook

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes the inbound webhook endpoint.
type Handler struct {
	dispatcher *Dispatcher
}

// NewHandler builds the webhook HTTP handler.
func NewHandler(dispatcher *Dispatcher) *Handler {
	return &Handler{dispatcher: dispatcher}
}

// Receive accepts one lifecycle event from the payment network. The response
// envelope never exposes protocol-internal detail; a failure status tells the
// network to redeliver.
func (h *Handler) Receive(c *fiber.Ctx) error {
	var evt Event
	if err := c.BodyParser(&evt); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"customCode": http.StatusBadRequest,
		})
	}

	if err := h.dispatcher.Dispatch(c.UserContext(), evt); err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"customCode": http.StatusInternalServerError,
		})
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"data":       fiber.Map{"id": evt.ID, "type": evt.Type},
		"customCode": http.StatusOK,
	})
}
