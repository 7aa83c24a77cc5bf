// Package logger configures the process-wide slog logger and carries
// request-scoped attributes through contexts.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ABNmmd/PFE-FSA/pkg/config"
	slogmulti "github.com/samber/slog-multi"
)

type contextKey struct{}

// Setup installs the default logger. When cfg.File is set every record is
// also written as JSON to that file. The returned function closes the file.
func Setup(cfg config.LoggingConfig) (func() error, error) {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	primary := newHandler(os.Stdout, cfg.Format, opts)
	if cfg.File == "" {
		slog.SetDefault(slog.New(primary))
		return func() error { return nil }, nil
	}
	file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		slog.SetDefault(slog.New(primary))
		return func() error { return nil }, fmt.Errorf("opening log file %s: %w", cfg.File, err)
	}
	slog.SetDefault(slog.New(slogmulti.Fanout(primary, slog.NewJSONHandler(file, opts))))
	return file.Close, nil
}

// New builds a logger writing to w without touching the default logger.
func New(w io.Writer, level, format string) *slog.Logger {
	return slog.New(newHandler(w, format, &slog.HandlerOptions{Level: parseLevel(level)}))
}

func newHandler(w io.Writer, format string, opts *slog.HandlerOptions) slog.Handler {
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKey{}, requestID)
}

// RequestID returns the request id stored in ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if requestID := RequestID(ctx); requestID != "" {
		logger = logger.With("request_id", requestID)
	}
	return logger
}

func WithComponent(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
