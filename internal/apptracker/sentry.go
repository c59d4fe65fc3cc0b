package apptracker

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

// SentryTracker forwards captured errors and messages to Sentry.
type SentryTracker struct {
	flushTimeout time.Duration
}

var _ AppTracker = (*SentryTracker)(nil)

// NewSentryTracker initializes the Sentry SDK for the given DSN and environment.
func NewSentryTracker(dsn, environment string, flushTimeout time.Duration) (*SentryTracker, error) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing sentry: %w", err)
	}
	return &SentryTracker{flushTimeout: flushTimeout}, nil
}

func (t *SentryTracker) CaptureMessage(message string) {
	sentry.CaptureMessage(message)
}

func (t *SentryTracker) CaptureException(exception error) {
	sentry.CaptureException(exception)
}

// Flush waits for buffered events to be delivered. Called on shutdown.
func (t *SentryTracker) Flush() {
	sentry.Flush(t.flushTimeout)
}
