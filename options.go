package staticembed

import (
	"log/slog"

	"github.com/hupe1980/staticembed/tokenizer"
)

type options struct {
	logger    *Logger
	metrics   MetricsCollector
	tokenizer tokenizer.Encoder
}

// Option configures Load behavior.
type Option func(*options)

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metrics = mc
	}
}

// WithTokenizer injects a custom tokenizer adapter. When set, the
// tokenizerPath argument of Load is ignored and the model takes ownership
// of enc (it is closed by StaticModel.Close).
func WithTokenizer(enc tokenizer.Encoder) Option {
	return func(o *options) {
		o.tokenizer = enc
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metrics: NoopMetricsCollector{},
		logger:  NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
