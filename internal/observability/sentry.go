package observability

import (
	"time"

	"github.com/getsentry/sentry-go"
)

// How long shutdown waits for buffered events before dropping them.
const sentryFlushTimeout = 2 * time.Second

// InitSentry is a no-op without a DSN, so local runs and tests never report
// events. Handlers only capture errors outside the shared taxonomy; expected
// failures (bad tokens, missing cards, a second daily draw) stay out of Sentry.
func InitSentry(dsn, environment, release string) error {
	if dsn == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		AttachStacktrace: true,
	})
}

// FlushSentry drains buffered events. Called from Runtime.Close so the last
// captures of a serverless instance are not lost when it is reclaimed.
func FlushSentry() {
	sentry.Flush(sentryFlushTimeout)
}
