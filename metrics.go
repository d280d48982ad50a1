package staticembed

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordLoad is called after each model load attempt.
	// duration is the total time taken, err is nil if successful.
	RecordLoad(duration time.Duration, err error)

	// RecordEncode is called after each batch encode.
	// batch is the number of input texts, workers the requested parallelism.
	RecordEncode(batch, workers int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordLoad(time.Duration, error)             {}
func (NoopMetricsCollector) RecordEncode(int, int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	LoadCount        atomic.Int64
	LoadErrors       atomic.Int64
	EncodeCount      atomic.Int64
	EncodeErrors     atomic.Int64
	EncodeTexts      atomic.Int64
	EncodeTotalNanos atomic.Int64
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(duration time.Duration, err error) {
	b.LoadCount.Add(1)
	if err != nil {
		b.LoadErrors.Add(1)
	}
}

// RecordEncode implements MetricsCollector.
func (b *BasicMetricsCollector) RecordEncode(batch, workers int, duration time.Duration, err error) {
	b.EncodeCount.Add(1)
	b.EncodeTexts.Add(int64(batch))
	b.EncodeTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.EncodeErrors.Add(1)
	}
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector counters.
type BasicMetricsStats struct {
	LoadCount      int64
	LoadErrors     int64
	EncodeCount    int64
	EncodeErrors   int64
	EncodeTexts    int64
	EncodeAvgNanos int64
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	stats := BasicMetricsStats{
		LoadCount:    b.LoadCount.Load(),
		LoadErrors:   b.LoadErrors.Load(),
		EncodeCount:  b.EncodeCount.Load(),
		EncodeErrors: b.EncodeErrors.Load(),
		EncodeTexts:  b.EncodeTexts.Load(),
	}
	if stats.EncodeCount > 0 {
		stats.EncodeAvgNanos = b.EncodeTotalNanos.Load() / stats.EncodeCount
	}
	return stats
}
