// Package log is a small structured-logging facade over go.uber.org/zap,
// in the shape the teacher's main.go/server.go already consume
// (Infof/Warnf/Errorf/Debugf, With, NewHelper, SetLogger/DefaultLogger).
// The teacher's own contrib/log source wasn't present in the retrieved
// pack, so this is written fresh against its call sites, backed by
// zap + gopkg.in/natefinch/lumberjack.v2 for rotation per conf.Logger.
package log

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the minimal structured-logging sink the rest of the
// module depends on.
type Logger interface {
	Log(level zapcore.Level, keyvals ...any)
}

// zapLogger adapts *zap.SugaredLogger to Logger.
type zapLogger struct {
	s *zap.SugaredLogger
}

func (z *zapLogger) Log(level zapcore.Level, keyvals ...any) {
	switch level {
	case zapcore.DebugLevel:
		z.s.Debugw("", keyvals...)
	case zapcore.WarnLevel:
		z.s.Warnw("", keyvals...)
	case zapcore.ErrorLevel:
		z.s.Errorw("", keyvals...)
	default:
		z.s.Infow("", keyvals...)
	}
}

// DefaultLogger is used whenever SetLogger hasn't been called.
var DefaultLogger Logger = NewStdLogger(os.Stderr)

var global Logger = DefaultLogger

// NewStdLogger builds a Logger writing JSON lines to w at info level.
func NewStdLogger(w *os.File) Logger {
	enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	core := zapcore.NewCore(enc, zapcore.AddSync(w), zapcore.InfoLevel)
	return &zapLogger{s: zap.New(core).Sugar()}
}

// NewFileLogger builds a Logger rotating via lumberjack at path, per
// conf.Logger's MaxSize/MaxAge/MaxBackups/Compress fields.
func NewFileLogger(path string, level zapcore.Level, maxSize, maxAge, maxBackups int, compress bool) Logger {
	enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	sink := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSize,
		MaxAge:     maxAge,
		MaxBackups: maxBackups,
		Compress:   compress,
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(sink), level)
	return &zapLogger{s: zap.New(core).Sugar()}
}

// ParseLevel maps a conf.Logger.Level string onto a zapcore.Level.
func ParseLevel(level string) zapcore.Level {
	l, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return l
}

// SetLogger installs logger as the process-wide default.
func SetLogger(logger Logger) { global = logger }

// GetLogger returns the process-wide default.
func GetLogger() Logger { return global }

// With returns a Logger that always logs the given keyvals alongside
// whatever the caller logs, matching the teacher's
// log.With(log.DefaultLogger, "ts", ..., "pid", ...) usage.
func With(logger Logger, keyvals ...any) Logger {
	return &withLogger{base: logger, kv: keyvals}
}

type withLogger struct {
	base Logger
	kv   []any
}

func (w *withLogger) Log(level zapcore.Level, keyvals ...any) {
	all := make([]any, 0, len(w.kv)+len(keyvals))
	for _, v := range w.kv {
		if f, ok := v.(func() any); ok {
			v = f()
		}
		all = append(all, v)
	}
	all = append(all, keyvals...)
	w.base.Log(level, all...)
}

// Timestamp returns a keyval value-producing closure for a "ts" field
// formatted with layout, matching the teacher's log.Timestamp(time.RFC3339).
func Timestamp(layout string) func() any {
	return func() any { return time.Now().Format(layout) }
}

// Helper is a convenience wrapper exposing printf-style methods over a Logger.
type Helper struct {
	logger Logger
}

// NewHelper wraps logger with printf-style convenience methods.
func NewHelper(logger Logger) *Helper {
	return &Helper{logger: logger}
}

func (h *Helper) Debugf(format string, args ...any) { h.logger.Log(zapcore.DebugLevel, "msg", sprintf(format, args...)) }
func (h *Helper) Infof(format string, args ...any)  { h.logger.Log(zapcore.InfoLevel, "msg", sprintf(format, args...)) }
func (h *Helper) Warnf(format string, args ...any)  { h.logger.Log(zapcore.WarnLevel, "msg", sprintf(format, args...)) }
func (h *Helper) Errorf(format string, args ...any) { h.logger.Log(zapcore.ErrorLevel, "msg", sprintf(format, args...)) }

// package-level convenience functions operating on the global logger.
func Debug(args ...any)                 { global.Log(zapcore.DebugLevel, "msg", sprint(args...)) }
func Debugf(format string, args ...any) { global.Log(zapcore.DebugLevel, "msg", sprintf(format, args...)) }
func Infof(format string, args ...any)  { global.Log(zapcore.InfoLevel, "msg", sprintf(format, args...)) }
func Warnf(format string, args ...any)  { global.Log(zapcore.WarnLevel, "msg", sprintf(format, args...)) }
func Errorf(format string, args ...any) { global.Log(zapcore.ErrorLevel, "msg", sprintf(format, args...)) }

func Fatal(args ...any) {
	global.Log(zapcore.ErrorLevel, "msg", sprint(args...))
	os.Exit(1)
}

func Fatalf(format string, args ...any) {
	global.Log(zapcore.ErrorLevel, "msg", sprintf(format, args...))
	os.Exit(1)
}

type loggerCtxKey struct{}

// Context returns a *Helper bound to any logger stashed in ctx by
// WithContext, falling back to the global logger.
func Context(ctx context.Context) *Helper {
	if l, ok := ctx.Value(loggerCtxKey{}).(Logger); ok {
		return NewHelper(l)
	}
	return NewHelper(global)
}

// WithContext stashes logger in ctx for later retrieval via Context.
func WithContext(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}
