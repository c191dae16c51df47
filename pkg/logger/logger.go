// Package logger builds the structured loggers used throughout Ignite. Every
// subsystem is handed a *zap.SugaredLogger at construction time rather than
// reaching for a package-level global, so tests and embedders can supply
// their own sink.
package logger

import "go.uber.org/zap"

// New builds a production zap logger scoped to the given service name. If
// the production configuration cannot be built (should not happen with the
// stock config), it falls back to zap.NewNop so that callers never have to
// handle a logger construction error on the happy path.
func New(service string) *zap.SugaredLogger {
	base, err := zap.NewProduction()
	if err != nil {
		base = zap.NewNop()
	}
	return base.Named(service).Sugar()
}

// Nop returns a logger that discards everything, useful for tests that do
// not want production logging overhead or output.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
