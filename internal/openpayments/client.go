package openpayments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ProtocolError is a non-2xx response from an authorization or resource server.
type ProtocolError struct {
	Status int
	URL    string
	Body   string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("payment network returned status %d for %s: %s", e.Status, e.URL, e.Body)
}

// protocolClient holds what every signed protocol call needs. Each call signs
// its own envelope independently of the bearer token that authorizes it.
type protocolClient struct {
	httpClient *http.Client
	signer     Signer
	keyID      string
	privateKey string
}

func newProtocolClient(signer Signer, keyID, privateKey string) protocolClient {
	return protocolClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		signer:     signer,
		keyID:      keyID,
		privateKey: privateKey,
	}
}

// doSigned signs the canonical request, merges the returned signature headers
// and performs the call. An empty gnapToken omits the Authorization header.
func (c *protocolClient) doSigned(ctx context.Context, method, url, gnapToken string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling %s %s body: %w", method, url, err)
		}
	}

	headers := map[string]string{"Content-Type": "application/json"}
	if gnapToken != "" {
		headers["Authorization"] = "GNAP " + gnapToken
	}

	sigHeaders, err := c.signer.Sign(ctx, Envelope{
		URL:     url,
		Method:  method,
		Headers: headers,
		Body:    string(payload),
	}, c.keyID, c.privateKey)
	if err != nil {
		return fmt.Errorf("signing %s %s: %w", method, url, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building %s %s: %w", method, url, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	for k, v := range sigHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &ProtocolError{Status: resp.StatusCode, URL: url, Body: string(bytes.TrimSpace(snippet))}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding %s %s response: %w", method, url, err)
		}
	}

	return nil
}
