package openpayments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesa-pay/mesa_pay/internal/logging"
)

// staticSigner avoids a signature service round trip in tests.
type staticSigner struct{}

func (staticSigner) Sign(context.Context, Envelope, string, string) (map[string]string, error) {
	return map[string]string{"Signature": "sig=:test:"}, nil
}

func TestGrantRequestImmediate(t *testing.T) {
	var body grantRequestBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":{"value":"tok-incoming"}}`))
	}))
	defer srv.Close()

	client := NewGrantClient(staticSigner{}, "key-1", "cHJpdmF0ZQ==", logging.Discard())
	grant, err := client.Request(context.Background(), srv.URL, ScopeIncomingPayment, "https://wallet.example/me", nil)
	require.NoError(t, err)

	assert.False(t, grant.Interactive())
	assert.Equal(t, "tok-incoming", grant.AccessToken)

	require.Len(t, body.AccessToken.Access, 1)
	assert.Equal(t, "incoming-payment", body.AccessToken.Access[0].Type)
	assert.Equal(t, []string{"create", "read", "complete"}, body.AccessToken.Access[0].Actions)
	assert.Equal(t, "https://wallet.example/me", body.Client)
	assert.Nil(t, body.Interact)
}

func TestGrantRequestInteractive(t *testing.T) {
	var body grantRequestBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"interact": {"redirect": "https://auth.example/interact/abc123/nonce456"},
			"continue": {
				"access_token": {"value": "continue-tok"},
				"uri": "https://auth.example/continue/c1"
			}
		}`))
	}))
	defer srv.Close()

	limits := &Limits{
		DebitAmount:   NewAmount(505, "USD", 2),
		ReceiveAmount: NewAmount(500, "USD", 2),
	}

	client := NewGrantClient(staticSigner{}, "key-1", "cHJpdmF0ZQ==", logging.Discard())
	grant, err := client.Request(context.Background(), srv.URL, ScopeOutgoingPayment, "https://wallet.example/me", limits)
	require.NoError(t, err)

	require.True(t, grant.Interactive())
	assert.Equal(t, "abc123", grant.Interaction.InteractionID)
	assert.Equal(t, "nonce456", grant.Interaction.FinishID)
	assert.Equal(t, "https://auth.example/interact/abc123/nonce456", grant.Interaction.RedirectURI)
	assert.Equal(t, "https://auth.example/continue/c1", grant.Interaction.ContinueURI)
	assert.Equal(t, "continue-tok", grant.Interaction.ContinueAccessToken)

	require.NotNil(t, body.Interact)
	assert.Equal(t, []string{"redirect"}, body.Interact.Start)
	require.Len(t, body.AccessToken.Access, 1)
	require.NotNil(t, body.AccessToken.Access[0].Limits)
	assert.Equal(t, *limits, *body.AccessToken.Access[0].Limits)
}

func TestGrantRequestDenied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"access_denied"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewGrantClient(staticSigner{}, "key-1", "cHJpdmF0ZQ==", logging.Discard())
	_, err := client.Request(context.Background(), srv.URL, ScopeQuote, "https://wallet.example/me", nil)
	require.Error(t, err)

	var protoErr *ProtocolError
	require.True(t, errors.As(err, &protoErr))
	assert.Equal(t, http.StatusForbidden, protoErr.Status)
}

func TestGrantRequestRejectsEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewGrantClient(staticSigner{}, "key-1", "cHJpdmF0ZQ==", logging.Discard())
	_, err := client.Request(context.Background(), srv.URL, ScopeQuote, "https://wallet.example/me", nil)
	assert.ErrorContains(t, err, "neither access token nor interaction")
}

func TestParseInteractionRef(t *testing.T) {
	id, finish, err := parseInteractionRef("https://auth.example/interact/abc/def")
	require.NoError(t, err)
	assert.Equal(t, "abc", id)
	assert.Equal(t, "def", finish)

	_, _, err = parseInteractionRef("https://auth.example/justone")
	assert.Error(t, err)
}
