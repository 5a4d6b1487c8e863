package logging

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents a logging severity, ordered the same way zap orders them.
type Level int

// The set of supported levels, from least to most severe.
const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

// AsZap converts a Level into the equivalent zapcore.Level.
func (level Level) AsZap() zapcore.Level {
	switch level {
	case DEBUG:
		return zapcore.DebugLevel
	case INFO:
		return zapcore.InfoLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (level Level) String() string {
	switch level {
	case DEBUG:
		return "Debug"
	case INFO:
		return "Info"
	case WARN:
		return "Warn"
	case ERROR:
		return "Error"
	default:
		return "Unknown"
	}
}

// LevelFromString parses a case-insensitive level name into a Level.
func LevelFromString(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return DEBUG, nil
	case "info", "":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("unknown log level %q", s)
	}
}

// AtomicLevel is a thread-safe, mutable Level.
type AtomicLevel struct {
	val atomic.Int32
}

// NewAtomicLevelAt returns an AtomicLevel initialized to the given Level.
func NewAtomicLevelAt(level Level) AtomicLevel {
	var a AtomicLevel
	a.Set(level)
	return a
}

// Set updates the level.
func (a *AtomicLevel) Set(level Level) {
	a.val.Store(int32(level))
}

// Get returns the current level.
func (a *AtomicLevel) Get() Level {
	return Level(a.val.Load())
}

// GlobalLogLevel backs the zap configuration shared by every Logger created through this
// package so that debug mode can be toggled process-wide.
var GlobalLogLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)

// Appender is a sink that a Logger writes formatted entries to.
type Appender interface {
	Write(entry zapcore.Entry, fields []zapcore.Field) error
	Sync() error
}

// Logger is the logging interface used throughout this module. It is intentionally close
// to a zap.SugaredLogger but allows swapping/adding appenders and per-logger levels.
type Logger interface {
	Debug(args ...interface{})
	Debugf(template string, args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	CDebug(ctx context.Context, args ...interface{})
	CDebugf(ctx context.Context, template string, args ...interface{})
	CDebugw(ctx context.Context, msg string, keysAndValues ...interface{})

	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})

	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})

	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	Fatal(args ...interface{})
	Fatalf(template string, args ...interface{})
	Fatalw(msg string, keysAndValues ...interface{})

	SetLevel(level Level)
	GetLevel() Level
	Level() zapcore.Level

	Sublogger(subname string) Logger
	AddAppender(appender Appender)

	AsZap() *zap.SugaredLogger
	Desugar() *zap.Logger
	Named(name string) *zap.SugaredLogger
	With(args ...interface{}) *zap.SugaredLogger
	WithOptions(opts ...zap.Option) *zap.SugaredLogger
	Sync() error
}

// DefaultTimeFormatStr is used by appenders that render timestamps as text.
const DefaultTimeFormatStr = "2006-01-02T15:04:05.000Z0700"

func callerToString(caller *zapcore.EntryCaller) string {
	return caller.TrimmedPath()
}
