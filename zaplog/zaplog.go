// Package zaplog implements prefixcache.Logger on top of go.uber.org/zap.
package zaplog

import (
	"context"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/khicago/prefixcache"
)

type fieldsKey struct{}

// ContextWithFields returns a context whose log lines carry fields.
func ContextWithFields(ctx context.Context, fields ...zap.Field) context.Context {
	if len(fields) == 0 {
		return ctx
	}
	prev, _ := ctx.Value(fieldsKey{}).([]zap.Field)
	merged := make([]zap.Field, 0, len(prev)+len(fields))
	merged = append(append(merged, prev...), fields...)
	return context.WithValue(ctx, fieldsKey{}, merged)
}

// Logger wraps a zap.Logger.
type Logger struct {
	logger *zap.Logger
}

var _ prefixcache.Logger = (*Logger)(nil)

// New wraps l. A nil l yields a no-op logger.
func New(l *zap.Logger) *Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return &Logger{logger: l}
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.RFC3339TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

func build(enc zapcore.Encoder, w io.Writer, level zapcore.Level, name string) *Logger {
	if w == nil {
		w = os.Stdout
	}
	logger := zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), level))
	if name != "" {
		logger = logger.Named(name)
	}
	return New(logger)
}

// NewConsole writes human-readable lines at level and above to w
// (stdout when nil), under the logger name name.
func NewConsole(w io.Writer, level zapcore.Level, name string) *Logger {
	return build(zapcore.NewConsoleEncoder(encoderConfig()), w, level, name)
}

// NewJSON is NewConsole with one JSON object per line.
func NewJSON(w io.Writer, level zapcore.Level, name string) *Logger {
	return build(zapcore.NewJSONEncoder(encoderConfig()), w, level, name)
}

func (l *Logger) with(ctx context.Context) *zap.SugaredLogger {
	fields, _ := ctx.Value(fieldsKey{}).([]zap.Field)
	if len(fields) == 0 {
		return l.logger.Sugar()
	}
	return l.logger.With(fields...).Sugar()
}

func (l *Logger) Info(ctx context.Context, format string, args ...interface{}) {
	l.with(ctx).Infof(format, args...)
}

func (l *Logger) Warn(ctx context.Context, format string, args ...interface{}) {
	l.with(ctx).Warnf(format, args...)
}

func (l *Logger) Error(ctx context.Context, format string, args ...interface{}) {
	l.with(ctx).Errorf(format, args...)
}

func (l *Logger) Debug(ctx context.Context, format string, args ...interface{}) {
	l.with(ctx).Debugf(format, args...)
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	return l.logger.Sync()
}
