// Package errs centralizes error wrapping and optional crash
// reporting for everything above the core primitives. The core
// packages (internal/alist, internal/epoch, resourcemanager,
// boundedlist) keep spec.md's error policy verbatim and never import
// this package; it exists for the demo service layer, the same
// boundary the teacher draws between its lock-free primitives and
// its service/WAL/API code.
package errs

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/getsentry/sentry-go"
)

// Wrap annotates err with msg and a stack trace via cockroachdb/errors,
// the error-handling library already pulled in transitively by
// cockroachdb/pebble. It returns nil if err is nil.
func Wrap(err error, msg string) error {
	return errors.Wrap(err, msg)
}

// Wrapf is Wrap with a format string.
func Wrapf(err error, format string, args ...any) error {
	return errors.Wrapf(err, format, args...)
}

// New constructs a new error carrying a stack trace.
func New(msg string) error {
	return errors.New(msg)
}

var sentryEnabled bool

// InitSentry configures crash reporting if SENTRY_DSN is set in the
// environment; it is a no-op otherwise so the demo service runs
// without any external dependency by default.
func InitSentry() error {
	dsn := os.Getenv("SENTRY_DSN")
	if dsn == "" {
		return nil
	}
	if err := sentry.Init(sentry.ClientOptions{Dsn: dsn}); err != nil {
		return Wrap(err, "errs: sentry init failed")
	}
	sentryEnabled = true
	return nil
}

// Report sends err to Sentry if crash reporting was configured; it
// is always safe to call, and always also returns err unchanged so
// it composes at call sites like `return errs.Report(err)`.
func Report(err error) error {
	if err == nil || !sentryEnabled {
		return err
	}
	sentry.CaptureException(err)
	return err
}

// RecoverAndReport is meant to be deferred at the top of a goroutine
// or request handler; it reports a panic to Sentry (if configured)
// and re-panics so callers still see the usual Go crash behavior.
func RecoverAndReport() {
	if r := recover(); r != nil {
		if sentryEnabled {
			sentry.CurrentHub().Recover(r)
			sentry.Flush(2 * time.Second)
		}
		panic(r)
	}
}
