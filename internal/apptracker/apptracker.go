package apptracker

// AppTracker reports unexpected failures to an error-observability backend.
type AppTracker interface {
	CaptureMessage(message string)
	CaptureException(exception error)
}

// Noop drops all reports. Used in tests and when no DSN is configured.
type Noop struct{}

var _ AppTracker = (*Noop)(nil)

func (Noop) CaptureMessage(string)  {}
func (Noop) CaptureException(error) {}
