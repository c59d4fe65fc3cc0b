package openpayments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	retry "github.com/avast/retry-go/v4"
)

// errContinuationPending marks a continuation attempt made before the
// authorization server converged on the finished interaction.
var errContinuationPending = errors.New("grant continuation not ready")

// InteractionDriver walks the redirect-based consent flow for an interactive
// grant and exchanges the finished interaction for a usable access token.
type InteractionDriver struct {
	protocolClient
	continueWait     time.Duration
	continueAttempts uint
	logger           *slog.Logger
}

// NewInteractionDriver builds a driver. continueWait is the initial delay
// before polling the continuation endpoint; attempts back off from there.
func NewInteractionDriver(signer Signer, keyID, privateKey string, continueWait time.Duration, continueAttempts uint, logger *slog.Logger) *InteractionDriver {
	return &InteractionDriver{
		protocolClient:   newProtocolClient(signer, keyID, privateKey),
		continueWait:     continueWait,
		continueAttempts: continueAttempts,
		logger:           logger,
	}
}

// Complete drives the consent walk in strict order: establish the interaction
// session, accept, finish with the captured session cookie, then poll the
// continuation endpoint for the final token. A failure at any leg aborts the
// interaction.
func (d *InteractionDriver) Complete(ctx context.Context, grant *Grant) (string, error) {
	if !grant.Interactive() {
		return "", fmt.Errorf("grant is not interactive")
	}
	ia := grant.Interaction

	jar, err := cookiejar.New(nil)
	if err != nil {
		return "", fmt.Errorf("creating cookie jar: %w", err)
	}
	session := &http.Client{Jar: jar, Timeout: d.httpClient.Timeout}

	host, err := interactionHost(ia.RedirectURI)
	if err != nil {
		return "", err
	}

	if err := d.visit(ctx, session, http.MethodGet, ia.RedirectURI); err != nil {
		return "", fmt.Errorf("establishing interaction session: %w", err)
	}

	acceptURL := fmt.Sprintf("%s/grant/%s/%s/accept", host, ia.InteractionID, ia.FinishID)
	if err := d.visit(ctx, session, http.MethodPost, acceptURL); err != nil {
		return "", fmt.Errorf("accepting interaction %s: %w", ia.InteractionID, err)
	}

	finishURL := fmt.Sprintf("%s/interact/%s/%s/finish", host, ia.InteractionID, ia.FinishID)
	if err := d.visit(ctx, session, http.MethodGet, finishURL); err != nil {
		return "", fmt.Errorf("finishing interaction %s: %w", ia.InteractionID, err)
	}

	token, err := d.continueGrant(ctx, ia)
	if err != nil {
		return "", fmt.Errorf("continuing grant for interaction %s: %w", ia.InteractionID, err)
	}

	return token, nil
}

// visit performs one bare leg of the consent walk using the shared session so
// cookies set by the interaction host are replayed on later legs.
func (d *InteractionDriver) visit(ctx context.Context, session *http.Client, method, target string) error {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return fmt.Errorf("building %s %s: %w", method, target, err)
	}

	resp, err := session.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &ProtocolError{Status: resp.StatusCode, URL: target}
	}

	return nil
}

// continueGrant polls the continuation URI until the authorization server has
// converged on the finished interaction. Denials are surfaced immediately;
// only the not-yet-ready signal is retried.
func (d *InteractionDriver) continueGrant(ctx context.Context, ia *Interaction) (string, error) {
	var token string

	err := retry.Do(
		func() error {
			var resp grantResponseBody
			err := d.doSigned(ctx, "POST", ia.ContinueURI, ia.ContinueAccessToken, map[string]any{}, &resp)

			var protoErr *ProtocolError
			if errors.As(err, &protoErr) {
				// 401/403/404 mean the continuation was denied or the grant is
				// gone; anything else below 500 is the server still converging.
				switch protoErr.Status {
				case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
					return retry.Unrecoverable(err)
				default:
					d.logger.Debug("grant continuation pending", "status", protoErr.Status)
					return fmt.Errorf("%w: %s", errContinuationPending, err)
				}
			}
			if err != nil {
				return retry.Unrecoverable(err)
			}

			if resp.AccessToken == nil || resp.AccessToken.Value == "" {
				return errContinuationPending
			}

			token = resp.AccessToken.Value
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(d.continueAttempts),
		retry.Delay(d.continueWait),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return "", err
	}

	return token, nil
}

func interactionHost(redirect string) (string, error) {
	u, err := url.Parse(redirect)
	if err != nil {
		return "", fmt.Errorf("parsing interaction redirect %q: %w", redirect, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("interaction redirect %q is not absolute", redirect)
	}
	return u.Scheme + "://" + u.Host, nil
}
