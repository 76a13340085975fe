package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// InitLogger builds the application logger from the logging config and
// installs it as the slog default. File output rotates via lumberjack;
// console output may be colored.
func InitLogger(cfg *LoggingConfig) (*slog.Logger, error) {
	writer, console, err := logWriter(cfg)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(writer, opts)
	default:
		if cfg.Color && console {
			handler = NewColoredTextHandler(writer, opts)
		} else {
			handler = slog.NewTextHandler(writer, opts)
		}
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, nil
}

// logWriter picks the log destination. console reports whether the
// writer is a terminal-facing stream, which gates coloring.
func logWriter(cfg *LoggingConfig) (io.Writer, bool, error) {
	if cfg.File == "" {
		return os.Stderr, true, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
		return nil, false, fmt.Errorf("failed to create log directory: %w", err)
	}

	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSize, // megabytes
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge, // days
		Compress:   cfg.Compress,
	}, false, nil
}

// levelColors maps slog levels to ANSI escape sequences
var levelColors = map[slog.Level]string{
	slog.LevelDebug: "\033[90m", // gray
	slog.LevelInfo:  "\033[32m", // green
	slog.LevelWarn:  "\033[33m", // yellow
	slog.LevelError: "\033[31m", // red
}

const colorReset = "\033[0m"

// ColoredTextHandler renders records in slog's text format with the
// level token colored by severity
type ColoredTextHandler struct {
	inner  slog.Handler
	writer io.Writer
	opts   *slog.HandlerOptions
}

// NewColoredTextHandler creates a console handler with level coloring
func NewColoredTextHandler(w io.Writer, opts *slog.HandlerOptions) *ColoredTextHandler {
	return &ColoredTextHandler{
		inner:  slog.NewTextHandler(w, opts),
		writer: w,
		opts:   opts,
	}
}

// Handle implements slog.Handler
func (h *ColoredTextHandler) Handle(ctx context.Context, r slog.Record) error {
	var buf strings.Builder
	if err := slog.NewTextHandler(&buf, h.opts).Handle(ctx, r); err != nil {
		return err
	}

	_, err := io.WriteString(h.writer, colorize(buf.String(), r.Level))
	return err
}

// colorize wraps the leading token of a rendered line (the timestamp
// in slog's text format) in the level's color so severities stand out
// when scanning console output
func colorize(line string, level slog.Level) string {
	color, ok := levelColors[level]
	if !ok {
		return line
	}

	head, rest, found := strings.Cut(line, " ")
	if !found {
		return color + line + colorReset
	}
	return color + head + colorReset + " " + rest
}

// WithAttrs implements slog.Handler
func (h *ColoredTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ColoredTextHandler{
		inner:  h.inner.WithAttrs(attrs),
		writer: h.writer,
		opts:   h.opts,
	}
}

// WithGroup implements slog.Handler
func (h *ColoredTextHandler) WithGroup(name string) slog.Handler {
	return &ColoredTextHandler{
		inner:  h.inner.WithGroup(name),
		writer: h.writer,
		opts:   h.opts,
	}
}

// Enabled implements slog.Handler
func (h *ColoredTextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// parseLogLevel parses a log level string, defaulting to info
func parseLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
