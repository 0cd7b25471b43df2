// Package logger provides context-aware structured logging on top of
// logrus. Handlers and storage backends pull their logger from the request
// context so fields like the conversation ID follow a command through the
// whole dispatch chain.
package logger

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// G retrieves the logger carried by a context, falling back to L.
	G = FromContext
	// L is the process-global fallback entry.
	L = logrus.NewEntry(newLogger())
)

type contextKey struct{}

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.Formatter = &logrus.TextFormatter{
		TimestampFormat: time.RFC3339,
		FullTimestamp:   true,
	}
	return l
}

// WithLogger returns a context carrying the given entry.
func WithLogger(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, contextKey{}, entry.WithContext(ctx))
}

// FromContext returns the entry attached to ctx, or the global fallback.
func FromContext(ctx context.Context) *logrus.Entry {
	if entry, ok := ctx.Value(contextKey{}).(*logrus.Entry); ok {
		return entry
	}
	return L.WithContext(ctx)
}

// Configure applies the level and format ("text" or "json") to the global
// logger. Unknown levels are rejected; unknown formats fall back to text.
func Configure(level, format string) error {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	L.Logger.SetLevel(parsed)

	if format == "json" {
		L.Logger.Formatter = &logrus.JSONFormatter{TimestampFormat: time.RFC3339}
	} else {
		L.Logger.Formatter = &logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		}
	}
	return nil
}
