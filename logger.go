package staticembed

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with staticembed-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// LogLoad logs a model load operation.
func (l *Logger) LogLoad(ctx context.Context, tensorPath, tokenizerPath string, dimension, vocabSize int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "model load failed",
			"tensor_path", tensorPath,
			"tokenizer_path", tokenizerPath,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "model loaded",
			"tensor_path", tensorPath,
			"tokenizer_path", tokenizerPath,
			"dimension", dimension,
			"vocab_size", vocabSize,
		)
	}
}

// LogEncode logs a batch encode operation.
func (l *Logger) LogEncode(ctx context.Context, batch, workers int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "encode failed",
			"batch", batch,
			"workers", workers,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "encode completed",
			"batch", batch,
			"workers", workers,
		)
	}
}
