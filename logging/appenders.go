package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap/zapcore"
)

type stdoutAppender struct {
	tsFormat string
}

// NewStdoutAppender returns an Appender that writes tab-separated log lines to stdout.
func NewStdoutAppender() Appender {
	return &stdoutAppender{tsFormat: DefaultTimeFormatStr}
}

// NewStdoutTestAppender is the same as NewStdoutAppender but exists to mirror the naming used
// when wiring up loggers obtained via NewObservedTestLogger.
func NewStdoutTestAppender() Appender {
	return NewStdoutAppender()
}

func (a *stdoutAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	parts := []string{
		entry.Time.Format(a.tsFormat),
		strings.ToUpper(entry.Level.String()),
	}
	if entry.LoggerName != "" {
		parts = append(parts, entry.LoggerName)
	}
	if entry.Caller.Defined {
		parts = append(parts, callerToString(&entry.Caller))
	}
	parts = append(parts, entry.Message)

	if len(fields) > 0 {
		enc := zapcore.NewJSONEncoder(zapcore.EncoderConfig{SkipLineEnding: true})
		buf, err := enc.EncodeEntry(zapcore.Entry{}, fields)
		if err != nil {
			fmt.Fprintln(os.Stdout, strings.Join(parts, "\t"))
			return err
		}
		parts = append(parts, buf.String())
		buf.Free()
	}

	_, err := fmt.Fprintln(os.Stdout, strings.Join(parts, "\t"))
	return err
}

func (a *stdoutAppender) Sync() error {
	return nil
}
