package openpayments

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesa-pay/mesa_pay/internal/logging"
)

// consentServer fakes the interaction host and the continuation endpoint for
// one grant. The finish leg requires the session cookie set on the first leg.
type consentServer struct {
	srv *httptest.Server

	accepted      atomic.Bool
	finished      atomic.Bool
	continueCalls atomic.Int32

	// continueReadyAfter is how many continuation calls return pending before
	// the token is released.
	continueReadyAfter int32
	continueStatus     int
}

func newConsentServer(t *testing.T, readyAfter int32) *consentServer {
	t.Helper()
	cs := &consentServer{continueReadyAfter: readyAfter, continueStatus: http.StatusOK}

	cs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/interact/abc/def":
			http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "s-1", Path: "/"})
			w.WriteHeader(http.StatusOK)

		case "/grant/abc/def/accept":
			if r.Method != http.MethodPost {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if _, err := r.Cookie("sessionid"); err != nil {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			cs.accepted.Store(true)
			w.WriteHeader(http.StatusAccepted)

		case "/interact/abc/def/finish":
			if _, err := r.Cookie("sessionid"); err != nil {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			cs.finished.Store(true)
			w.WriteHeader(http.StatusOK)

		case "/continue/c1":
			calls := cs.continueCalls.Add(1)
			if cs.continueStatus != http.StatusOK {
				w.WriteHeader(cs.continueStatus)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			if calls <= cs.continueReadyAfter {
				_, _ = w.Write([]byte(`{}`))
				return
			}
			_, _ = w.Write([]byte(`{"access_token":{"value":"final-tok"}}`))

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(cs.srv.Close)

	return cs
}

func (cs *consentServer) grant() *Grant {
	return &Grant{
		Interaction: &Interaction{
			RedirectURI:         cs.srv.URL + "/interact/abc/def",
			InteractionID:       "abc",
			FinishID:            "def",
			ContinueURI:         cs.srv.URL + "/continue/c1",
			ContinueAccessToken: "continue-tok",
		},
	}
}

func newTestDriver() *InteractionDriver {
	return NewInteractionDriver(staticSigner{}, "key-1", "cHJpdmF0ZQ==", time.Millisecond, 5, logging.Discard())
}

func TestInteractionCompleteWalksAllLegs(t *testing.T) {
	cs := newConsentServer(t, 0)

	token, err := newTestDriver().Complete(context.Background(), cs.grant())
	require.NoError(t, err)

	assert.Equal(t, "final-tok", token)
	assert.True(t, cs.accepted.Load())
	assert.True(t, cs.finished.Load())
	assert.Equal(t, int32(1), cs.continueCalls.Load())
}

func TestInteractionCompletePollsUntilReady(t *testing.T) {
	cs := newConsentServer(t, 2)

	token, err := newTestDriver().Complete(context.Background(), cs.grant())
	require.NoError(t, err)

	assert.Equal(t, "final-tok", token)
	assert.Equal(t, int32(3), cs.continueCalls.Load())
}

func TestInteractionCompleteStopsOnDenial(t *testing.T) {
	cs := newConsentServer(t, 0)
	cs.continueStatus = http.StatusForbidden

	_, err := newTestDriver().Complete(context.Background(), cs.grant())
	require.Error(t, err)

	// A denial is terminal, not retried.
	assert.Equal(t, int32(1), cs.continueCalls.Load())
}

func TestInteractionCompleteRequiresInteractiveGrant(t *testing.T) {
	_, err := newTestDriver().Complete(context.Background(), &Grant{AccessToken: "tok"})
	assert.ErrorContains(t, err, "not interactive")
}
