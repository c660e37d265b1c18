package errors

import (
	"os"
	"sync"

	"github.com/certifi/gocertifi"
	"github.com/getsentry/sentry-go"
	"moff.io/moff-connector/pkg/log"
)

// Setting this env disables every reporter.
const debugMode = "DEBUG"

// Reporter receives errors created through the *AndReport helpers and Report.
type Reporter interface {
	Report(error)
}

var (
	reportersMu sync.RWMutex
	reporters   []Reporter
)

// Register adds r to the reporters consulted by report.
func Register(r Reporter) {
	reportersMu.Lock()
	defer reportersMu.Unlock()
	reporters = append(reporters, r)
}

// Reset drops every registered reporter.
func Reset() {
	reportersMu.Lock()
	defer reportersMu.Unlock()
	reporters = nil
}

func report(err error) {
	if err == nil || os.Getenv(debugMode) != "" {
		return
	}
	reportersMu.RLock()
	defer reportersMu.RUnlock()
	for _, r := range reporters {
		r.Report(err)
	}
}

type sentryReporter struct{}

func (s *sentryReporter) Report(err error) {
	sentry.CaptureException(err)
}

// NewSentryReporter initializes the sentry client and registers it as a reporter.
// An empty DSN skips initialization.
func NewSentryReporter(sentryDSN string) error {
	if sentryDSN == "" {
		log.Warn("empty DSN found, skipping sentry reporter initialization.")
		return nil
	}
	rootCAs, err := gocertifi.CACerts()
	if err != nil {
		return Wrap(err, "init sentry CA")
	}
	err = sentry.Init(sentry.ClientOptions{
		Dsn:     sentryDSN,
		CaCerts: rootCAs,
	})
	if err != nil {
		return Wrap(err, "init sentry")
	}
	Register(&sentryReporter{})
	log.Info("sentry error reporter initialized.")
	return nil
}
