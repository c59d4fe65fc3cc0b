package openpayments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Envelope is the canonical request submitted to the signature service.
type Envelope struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// Signer produces transport-level signature headers for an outbound request.
// A request must never be sent when signing fails.
type Signer interface {
	Sign(ctx context.Context, env Envelope, keyID, privateKey string) (map[string]string, error)
}

type signatureRequest struct {
	KeyID     string   `json:"keyId"`
	Base64Key string   `json:"base64Key"`
	Request   Envelope `json:"request"`
}

// HTTPSigner delegates HTTP message signing to an external signature service.
// The key material is submitted with each call and not retained.
type HTTPSigner struct {
	httpClient *http.Client
	endpoint   string
}

var _ Signer = (*HTTPSigner)(nil)

// NewHTTPSigner builds a signer that posts canonical requests to endpoint.
func NewHTTPSigner(endpoint string) *HTTPSigner {
	return &HTTPSigner{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		endpoint:   endpoint,
	}
}

// Sign submits the canonical request plus key material and returns the
// signature headers to merge into the outbound request.
func (s *HTTPSigner) Sign(ctx context.Context, env Envelope, keyID, privateKey string) (map[string]string, error) {
	payload, err := json.Marshal(signatureRequest{
		KeyID:     keyID,
		Base64Key: privateKey,
		Request:   env,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling signature request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building signature request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling signature service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("signature service returned status %d", resp.StatusCode)
	}

	var headers map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&headers); err != nil {
		return nil, fmt.Errorf("decoding signature headers: %w", err)
	}

	return headers, nil
}
