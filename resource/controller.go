package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MaxConcurrentReads bounds the number of blobs fetched in parallel
	// while listing. If 0, defaults to 8.
	MaxConcurrentReads int64

	// IOLimitBytesPerSec is the maximum payload throughput across all
	// operations sharing the controller. If 0, unlimited.
	IOLimitBytesPerSec int64
}

// DefaultMaxConcurrentReads is used when Config.MaxConcurrentReads is 0.
const DefaultMaxConcurrentReads = 8

// Controller bounds read concurrency and payload throughput.
//
// A nil *Controller is valid and imposes no limits.
type Controller struct {
	cfg Config

	readSem  *semaphore.Weighted
	inFlight atomic.Int64

	ioLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxConcurrentReads <= 0 {
		cfg.MaxConcurrentReads = DefaultMaxConcurrentReads
	}

	c := &Controller{
		cfg:     cfg,
		readSem: semaphore.NewWeighted(cfg.MaxConcurrentReads),
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// MaxConcurrentReads returns the configured read concurrency.
func (c *Controller) MaxConcurrentReads() int {
	if c == nil {
		return DefaultMaxConcurrentReads
	}
	return int(c.cfg.MaxConcurrentReads)
}

// AcquireRead reserves a read slot, blocking until one is free or ctx is canceled.
func (c *Controller) AcquireRead(ctx context.Context) error {
	if c == nil {
		return ctx.Err()
	}
	if err := c.readSem.Acquire(ctx, 1); err != nil {
		return err
	}
	c.inFlight.Add(1)
	return nil
}

// ReleaseRead releases a read slot.
func (c *Controller) ReleaseRead() {
	if c == nil {
		return
	}
	c.inFlight.Add(-1)
	c.readSem.Release(1)
}

// InFlightReads returns the number of reads currently holding a slot.
func (c *Controller) InFlightReads() int64 {
	if c == nil {
		return 0
	}
	return c.inFlight.Load()
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
// Requests larger than one second of budget are split into bursts.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil || bytes <= 0 {
		return nil
	}
	burst := c.ioLimiter.Burst()
	for bytes > 0 {
		n := min(bytes, burst)
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}
