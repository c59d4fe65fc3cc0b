package openpayments

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

// GrantClient negotiates authorization grants with the authorization server.
type GrantClient struct {
	protocolClient
	logger *slog.Logger
}

// NewGrantClient builds a grant client signing with the given key material.
func NewGrantClient(signer Signer, keyID, privateKey string, logger *slog.Logger) *GrantClient {
	return &GrantClient{
		protocolClient: newProtocolClient(signer, keyID, privateKey),
		logger:         logger,
	}
}

type accessRequest struct {
	Type    string   `json:"type"`
	Actions []string `json:"actions"`
	Limits  *Limits  `json:"limits,omitempty"`
}

type grantRequestBody struct {
	AccessToken struct {
		Access []accessRequest `json:"access"`
	} `json:"access_token"`
	Client   string           `json:"client"`
	Interact *interactRequest `json:"interact,omitempty"`
}

type interactRequest struct {
	Start []string `json:"start"`
}

type grantResponseBody struct {
	AccessToken *struct {
		Value string `json:"value"`
	} `json:"access_token"`
	Interact *struct {
		Redirect string `json:"redirect"`
	} `json:"interact"`
	Continue *struct {
		AccessToken struct {
			Value string `json:"value"`
		} `json:"access_token"`
		URI string `json:"uri"`
	} `json:"continue"`
}

// Request asks the authorization server for a grant covering scope on behalf
// of clientWalletAddress. Outgoing-payment grants embed the spending limits
// and request redirect interaction; the response is classified by the
// presence of the interact field.
func (c *GrantClient) Request(ctx context.Context, authServer string, scope GrantScope, clientWalletAddress string, limits *Limits) (*Grant, error) {
	body := grantRequestBody{Client: clientWalletAddress}
	body.AccessToken.Access = []accessRequest{{
		Type:    string(scope),
		Actions: actionsFor(scope),
		Limits:  limits,
	}}
	if scope == ScopeOutgoingPayment {
		body.Interact = &interactRequest{Start: []string{"redirect"}}
	}

	var resp grantResponseBody
	if err := c.doSigned(ctx, "POST", authServer, "", body, &resp); err != nil {
		c.logger.Error("grant request failed", "scope", scope, "error", err)
		return nil, fmt.Errorf("requesting %s grant: %w", scope, err)
	}

	if resp.Interact == nil {
		if resp.AccessToken == nil || resp.AccessToken.Value == "" {
			return nil, fmt.Errorf("requesting %s grant: response carries neither access token nor interaction", scope)
		}
		return &Grant{AccessToken: resp.AccessToken.Value}, nil
	}

	if resp.Continue == nil {
		return nil, fmt.Errorf("requesting %s grant: interactive response missing continuation", scope)
	}

	interactionID, finishID, err := parseInteractionRef(resp.Interact.Redirect)
	if err != nil {
		return nil, fmt.Errorf("requesting %s grant: %w", scope, err)
	}

	return &Grant{
		Interaction: &Interaction{
			RedirectURI:         resp.Interact.Redirect,
			InteractionID:       interactionID,
			FinishID:            finishID,
			ContinueURI:         resp.Continue.URI,
			ContinueAccessToken: resp.Continue.AccessToken.Value,
		},
	}, nil
}

func actionsFor(scope GrantScope) []string {
	switch scope {
	case ScopeIncomingPayment:
		return []string{"create", "read", "complete"}
	case ScopeQuote:
		return []string{"create", "read"}
	case ScopeOutgoingPayment:
		return []string{"create", "read", "list"}
	default:
		return []string{"read"}
	}
}

// parseInteractionRef extracts the interaction id and finish nonce from the
// consent redirect URI, whose path ends in .../{interactionID}/{finishID}.
func parseInteractionRef(redirect string) (string, string, error) {
	u, err := url.Parse(redirect)
	if err != nil {
		return "", "", fmt.Errorf("parsing interaction redirect %q: %w", redirect, err)
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 {
		return "", "", fmt.Errorf("interaction redirect %q has no interaction reference", redirect)
	}
	return segments[len(segments)-2], segments[len(segments)-1], nil
}
