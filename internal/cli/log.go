package cli

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"go.uber.org/zap/zapcore"

	"github.com/khicago/prefixcache"
	"github.com/khicago/prefixcache/zaplog"
)

// newLogger creates a charm logger with timestamp formatting.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
		Prefix:          "prefixcache",
	})
}

// charmLogger routes proxy log lines to a charm logger.
type charmLogger struct {
	l *log.Logger
}

var _ prefixcache.Logger = charmLogger{}

func (c charmLogger) Info(_ context.Context, format string, args ...interface{}) {
	c.l.Infof(format, args...)
}

func (c charmLogger) Warn(_ context.Context, format string, args ...interface{}) {
	c.l.Warnf(format, args...)
}

func (c charmLogger) Error(_ context.Context, format string, args ...interface{}) {
	c.l.Errorf(format, args...)
}

func (c charmLogger) Debug(_ context.Context, format string, args ...interface{}) {
	c.l.Debugf(format, args...)
}

// proxyLogger picks the logger handed to the proxy: JSON lines through zap,
// or the console charm logger.
func proxyLogger(w io.Writer, jsonLog, verbose bool, console *log.Logger) prefixcache.Logger {
	if !jsonLog {
		return charmLogger{l: console}
	}
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	return zaplog.NewJSON(w, level, "prefixcache")
}

type ctxKey int

const loggerKey ctxKey = 0

func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext retrieves the logger from ctx, or log.Default().
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
