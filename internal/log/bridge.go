package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// LineWriter adapts a logger to io.Writer. Each write is logged as one
// record whose "line" attribute holds the written text without its
// trailing newline. The HTTP access log is routed through it so access
// lines share the structured log stream.
type LineWriter struct {
	logger *slog.Logger
	level  slog.Level
	msg    string
}

// NewLineWriter creates a LineWriter that logs msg at level.
func NewLineWriter(logger *slog.Logger, level slog.Level, msg string) *LineWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LineWriter{logger: logger, level: level, msg: msg}
}

var _ io.Writer = (*LineWriter)(nil)

// Write implements io.Writer. It never fails.
func (w *LineWriter) Write(p []byte) (int, error) {
	line := strings.TrimRight(string(p), "\r\n")
	if line != "" {
		w.logger.Log(context.Background(), w.level, w.msg, "line", line)
	}
	return len(p), nil
}

// PanicLogger satisfies the Println-style logger interface HTTP recovery
// middleware expects and logs recovered panics at error level.
type PanicLogger struct {
	logger *slog.Logger
}

// NewPanicLogger creates a PanicLogger.
func NewPanicLogger(logger *slog.Logger) *PanicLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &PanicLogger{logger: logger}
}

// Println logs its arguments as a single error record.
func (l *PanicLogger) Println(args ...any) {
	l.logger.Error("recovered from panic", "panic", strings.TrimSpace(fmt.Sprintln(args...)))
}
