package webhook

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWebhookApp(fx dispatcherFixture) *fiber.App {
	app := fiber.New()
	app.Post("/webhook", NewHandler(fx.dispatcher).Receive)
	return app
}

func TestReceiveAcksEvent(t *testing.T) {
	app := newWebhookApp(newDispatcherFixture(receiverWallets(), &fakePayments{}))

	body := `{
		"id": "evt-1",
		"type": "incoming_payment.created",
		"data": {
			"id": "ip-1",
			"walletAddressId": "wa-recv",
			"incomingAmount": {"value": "500", "assetCode": "USD", "assetScale": 2}
		}
	}`
	req := httptest.NewRequest(fiber.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestReceiveRejectsMalformedBody(t *testing.T) {
	app := newWebhookApp(newDispatcherFixture(receiverWallets(), &fakePayments{}))

	req := httptest.NewRequest(fiber.MethodPost, "/webhook", strings.NewReader("not-json"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestReceiveSignalsRedeliveryOnFailure(t *testing.T) {
	app := newWebhookApp(newDispatcherFixture(&fakeWallets{}, &fakePayments{}))

	body := `{
		"id": "evt-1",
		"type": "incoming_payment.created",
		"data": {
			"id": "ip-1",
			"walletAddressId": "wa-unknown",
			"incomingAmount": {"value": "500", "assetCode": "USD", "assetScale": 2}
		}
	}`
	req := httptest.NewRequest(fiber.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}
