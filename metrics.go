package stash

import (
	"sync"
	"sync/atomic"
	"time"
)

// Operation names reported to MetricsCollector.
const (
	OpInit        = "init"
	OpOpen        = "open"
	OpBlob        = "blob"
	OpBlobs       = "blobs"
	OpDelete      = "delete"
	OpExists      = "exists"
	OpUpload      = "upload"
	OpHealthcheck = "healthcheck"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    ops *prometheus.HistogramVec
//	}
//
//	func (p *PrometheusCollector) RecordOp(service, op string, d time.Duration, err error) {
//	    p.ops.WithLabelValues(service, op, strconv.FormatBool(err == nil)).Observe(d.Seconds())
//	}
type MetricsCollector interface {
	// RecordOp is called after each service operation.
	// duration is the total time taken, err is nil if successful.
	RecordOp(service, op string, duration time.Duration, err error)

	// RecordBytes is called with the payload size moved by open, blob and upload.
	RecordBytes(service, op string, n int)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordOp(string, string, time.Duration, error) {}
func (NoopMetricsCollector) RecordBytes(string, string, int)               {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	mu  sync.Mutex
	ops map[string]*opCounters
}

type opCounters struct {
	count      atomic.Int64
	errors     atomic.Int64
	totalNanos atomic.Int64
	bytes      atomic.Int64
}

func (b *BasicMetricsCollector) counters(service, op string) *opCounters {
	key := service + "/" + op
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ops == nil {
		b.ops = make(map[string]*opCounters)
	}
	c, ok := b.ops[key]
	if !ok {
		c = &opCounters{}
		b.ops[key] = c
	}
	return c
}

// RecordOp implements MetricsCollector.
func (b *BasicMetricsCollector) RecordOp(service, op string, duration time.Duration, err error) {
	c := b.counters(service, op)
	c.count.Add(1)
	c.totalNanos.Add(duration.Nanoseconds())
	if err != nil {
		c.errors.Add(1)
	}
}

// RecordBytes implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBytes(service, op string, n int) {
	b.counters(service, op).bytes.Add(int64(n))
}

// GetStats returns a snapshot of current metrics keyed by "<service>/<op>".
func (b *BasicMetricsCollector) GetStats() map[string]OpStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	stats := make(map[string]OpStats, len(b.ops))
	for key, c := range b.ops {
		count := c.count.Load()
		s := OpStats{
			Count:  count,
			Errors: c.errors.Load(),
			Bytes:  c.bytes.Load(),
		}
		if count > 0 {
			s.AvgNanos = c.totalNanos.Load() / count
		}
		stats[key] = s
	}
	return stats
}

// OpStats is a snapshot of one operation's counters.
type OpStats struct {
	Count    int64
	Errors   int64
	AvgNanos int64
	Bytes    int64
}
