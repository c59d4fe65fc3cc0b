package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mesa-pay/mesa_pay/internal/openpayments"
)

// HTTPDepositor performs the deposit-settlement call by posting a signed
// request to the payment network's deposit endpoint.
type HTTPDepositor struct {
	httpClient *http.Client
	endpoint   string
	signer     openpayments.Signer
	keyID      string
	privateKey string
}

var _ Depositor = (*HTTPDepositor)(nil)

// NewHTTPDepositor builds a depositor for the given endpoint and key material.
func NewHTTPDepositor(endpoint string, signer openpayments.Signer, keyID, privateKey string) *HTTPDepositor {
	return &HTTPDepositor{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		endpoint:   endpoint,
		signer:     signer,
		keyID:      keyID,
		privateKey: privateKey,
	}
}

// Deposit posts the settlement for one outgoing payment. The payment id keys
// the call, making redelivery safe on the network side.
func (d *HTTPDepositor) Deposit(ctx context.Context, outgoingPaymentID string) error {
	payload, err := json.Marshal(map[string]string{"outgoingPaymentId": outgoingPaymentID})
	if err != nil {
		return fmt.Errorf("marshaling deposit request: %w", err)
	}

	headers := map[string]string{"Content-Type": "application/json"}
	sigHeaders, err := d.signer.Sign(ctx, openpayments.Envelope{
		URL:     d.endpoint,
		Method:  http.MethodPost,
		Headers: headers,
		Body:    string(payload),
	}, d.keyID, d.privateKey)
	if err != nil {
		return fmt.Errorf("signing deposit for outgoing payment %s: %w", outgoingPaymentID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building deposit request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	for k, v := range sigHeaders {
		req.Header.Set(k, v)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling deposit endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("deposit endpoint returned status %d for outgoing payment %s", resp.StatusCode, outgoingPaymentID)
	}

	return nil
}
