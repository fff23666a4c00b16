package prefixcache

import "context"

// Logger receives messages about failed cache operations.
// The Proxy formats messages itself and passes them as a single %s argument.
// Implementations should be safe for concurrent use.
type Logger interface {
	Info(ctx context.Context, format string, args ...interface{})
	Warn(ctx context.Context, format string, args ...interface{})
	Error(ctx context.Context, format string, args ...interface{})
	Debug(ctx context.Context, format string, args ...interface{})
}

// discardLogger drops every message.
type discardLogger struct{}

func (discardLogger) Info(context.Context, string, ...interface{})  {}
func (discardLogger) Warn(context.Context, string, ...interface{})  {}
func (discardLogger) Error(context.Context, string, ...interface{}) {}
func (discardLogger) Debug(context.Context, string, ...interface{}) {}

var defaultLogger Logger = discardLogger{}
