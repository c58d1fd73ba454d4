package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Custom log level for messages that should always be logged
const LevelAlways = slog.Level(12) // Higher than Error (8), ensures it's always logged

var (
	logger  *slog.Logger
	logFile *lumberjack.Logger
)

// Initialize sets up the logger with the provided configuration
func Initialize(config Config) error {
	var handlers []slog.Handler

	level := parseLogLevel(config.Level)

	if config.ConsoleEnabled {
		var out io.Writer = os.Stderr
		if strings.EqualFold(config.ConsoleStream, "stdout") {
			out = os.Stdout
		}
		handlers = append(handlers, newHandler(out, config.ConsoleFormat, level))
	}

	if config.FileEnabled {
		// Rotation is left to lumberjack; it creates the directory on first write
		logFile = &lumberjack.Logger{
			Filename:   config.FilePath,
			MaxSize:    config.FileMaxSizeMB,
			MaxBackups: config.FileMaxBackups,
			MaxAge:     config.FileMaxAgeDays,
			Compress:   config.FileCompress,
		}
		handlers = append(handlers, newHandler(logFile, config.FileFormat, level))
	}

	switch len(handlers) {
	case 0:
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	case 1:
		logger = slog.New(handlers[0])
	default:
		logger = slog.New(newMultiHandler(handlers...))
	}

	return nil
}

// Close flushes and closes the log file, if one is open.
func Close() error {
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

// Logger returns the underlying slog logger, or a discarding one before Initialize.
func Logger() *slog.Logger {
	if logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return logger
}

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevel,
	}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// replaceLevel prints LevelAlways as ALWAYS instead of ERROR+4.
func replaceLevel(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if level, ok := a.Value.Any().(slog.Level); ok && level == LevelAlways {
			a.Value = slog.StringValue("ALWAYS")
		}
	}
	return a
}

// parseLogLevel converts a string log level to slog.Level
func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARNING", "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	if logger != nil {
		logger.Debug(msg, args...)
	}
}

// Debugf logs a formatted debug message
func Debugf(format string, args ...any) {
	Debug(fmt.Sprintf(format, args...))
}

// Info logs an info message
func Info(msg string, args ...any) {
	if logger != nil {
		logger.Info(msg, args...)
	}
}

// Infof logs a formatted info message
func Infof(format string, args ...any) {
	Info(fmt.Sprintf(format, args...))
}

// Warning logs a warning message
func Warning(msg string, args ...any) {
	if logger != nil {
		logger.Warn(msg, args...)
	}
}

// Warningf logs a formatted warning message
func Warningf(format string, args ...any) {
	Warning(fmt.Sprintf(format, args...))
}

// Error logs an error message
func Error(msg string, args ...any) {
	if logger != nil {
		logger.Error(msg, args...)
	}
}

// Errorf logs a formatted error message
func Errorf(format string, args ...any) {
	Error(fmt.Sprintf(format, args...))
}

// Always logs a message that bypasses log level filtering.
// The line server uses it to trace every request it answers.
func Always(msg string, args ...any) {
	if logger != nil {
		logger.Log(context.Background(), LevelAlways, msg, args...)
	}
}

// Alwaysf logs a formatted message that bypasses log level filtering
func Alwaysf(format string, args ...any) {
	Always(fmt.Sprintf(format, args...))
}

// multiHandler is a handler that writes to multiple underlying handlers
type multiHandler struct {
	handlers []slog.Handler
}

func newMultiHandler(handlers ...slog.Handler) *multiHandler {
	return &multiHandler{handlers: handlers}
}

// Enabled reports whether any underlying handler accepts the level
func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle writes the record to every handler that accepts it
func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return newMultiHandler(handlers...)
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return newMultiHandler(handlers...)
}
