package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jwebster45206/story-runtime/internal/config"
)

// Setup configures the global slog logger based on environment. When
// cfg.LogFile is set, output is appended to that file instead of stdout and
// the returned closer releases it.
func Setup(cfg *config.Config) (*slog.Logger, io.Closer, error) {
	var out io.Writer = os.Stdout
	var closer io.Closer = nopCloser{}

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = f
		closer = f
	}

	logger := New(out, cfg)

	// Set as default logger
	slog.SetDefault(logger)

	return logger, closer, nil
}

// New builds a logger writing to w: JSON in production, text otherwise
func New(w io.Writer, cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	if cfg.Environment == "production" {
		// JSON format for production
		handler = slog.NewJSONHandler(w, opts)
	} else {
		// Text format for development
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// WithSession adds the play session ID to logger context
func WithSession(logger *slog.Logger, sessionID string) *slog.Logger {
	return logger.With("session_id", sessionID)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
