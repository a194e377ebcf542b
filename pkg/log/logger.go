// Package log provides the leveled, tagged logging port used by every
// component together with its zerolog-backed implementations.
package log

import (
	"io"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
)

type Fields map[string]interface{}

// Logger is the capability each component logs through. The tag names the
// originating component.
type Logger interface {
	Debug(tag, msg string, fields ...Fields)
	Info(tag, msg string, fields ...Fields)
	Warn(tag, msg string, err error, fields ...Fields)
	Error(tag, msg string, err error, fields ...Fields)
}

type zeroLogger struct {
	zl     zerolog.Logger
	sentry bool
}

// New returns the platform logger: JSON on stderr, a console writer for the
// local environment. Errors are also captured to Sentry when dsn is set.
func New(env, sentryDSN string) Logger {
	var out io.Writer = os.Stderr
	level := zerolog.InfoLevel
	if env == "local" {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		level = zerolog.DebugLevel
	}
	l := &zeroLogger{zl: zerolog.New(out).Level(level).With().Timestamp().Logger()}
	if sentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: sentryDSN, Environment: env}); err == nil {
			l.sentry = true
		} else {
			l.zl.Warn().Err(err).Str("tag", "Logger").Msg("sentry init failed")
		}
	}
	return l
}

// NewWriter prints plain lines without timestamps to w.
func NewWriter(w io.Writer) Logger {
	cw := zerolog.ConsoleWriter{Out: w, NoColor: true, PartsExclude: []string{zerolog.TimestampFieldName}}
	return &zeroLogger{zl: zerolog.New(cw).Level(zerolog.DebugLevel)}
}

func Nop() Logger {
	return &zeroLogger{zl: zerolog.Nop()}
}

func (l *zeroLogger) Debug(tag, msg string, fields ...Fields) {
	withFields(l.zl.Debug().Str("tag", tag), fields).Msg(msg)
}

func (l *zeroLogger) Info(tag, msg string, fields ...Fields) {
	withFields(l.zl.Info().Str("tag", tag), fields).Msg(msg)
}

func (l *zeroLogger) Warn(tag, msg string, err error, fields ...Fields) {
	withFields(l.zl.Warn().Str("tag", tag).Err(err), fields).Msg(msg)
}

func (l *zeroLogger) Error(tag, msg string, err error, fields ...Fields) {
	withFields(l.zl.Error().Str("tag", tag).Err(err), fields).Msg(msg)
	if l.sentry && err != nil {
		sentry.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("component", tag)
			scope.SetExtra("message", msg)
			sentry.CaptureException(err)
		})
	}
}

// Flush waits for buffered Sentry events. No-op for loggers without Sentry.
func Flush(l Logger, timeout time.Duration) {
	if zl, ok := l.(*zeroLogger); ok && zl.sentry {
		sentry.Flush(timeout)
	}
}

func withFields(e *zerolog.Event, fields []Fields) *zerolog.Event {
	for _, f := range fields {
		for k, v := range f {
			e = e.Interface(k, v)
		}
	}
	return e
}
