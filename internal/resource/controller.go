package resource

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds background work limits.
type Config struct {
	// MaxBackgroundWorkers is the maximum number of concurrent background
	// jobs (rollup, retention). If 0, defaults to 1.
	MaxBackgroundWorkers int64

	// OpsPerSec caps the rate of background operations (series processed
	// per second). If 0, unlimited.
	OpsPerSec float64
}

// Controller paces background maintenance so sweeps cannot starve the
// write and query paths.
type Controller struct {
	cfg Config

	bgSem     *semaphore.Weighted
	opLimiter *rate.Limiter

	opsDone atomic.Int64
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxBackgroundWorkers <= 0 {
		cfg.MaxBackgroundWorkers = 1
	}

	c := &Controller{
		cfg:   cfg,
		bgSem: semaphore.NewWeighted(cfg.MaxBackgroundWorkers),
	}

	if cfg.OpsPerSec > 0 {
		burst := int(cfg.OpsPerSec)
		if burst < 1 {
			burst = 1
		}

		c.opLimiter = rate.NewLimiter(rate.Limit(cfg.OpsPerSec), burst)
	}

	return c
}

// AcquireBackground reserves a background worker slot.
// Blocks if all slots are busy.
func (c *Controller) AcquireBackground(ctx context.Context) error {
	if c == nil {
		return nil
	}

	return c.bgSem.Acquire(ctx, 1)
}

// ReleaseBackground releases a background worker slot.
func (c *Controller) ReleaseBackground() {
	if c == nil {
		return
	}

	c.bgSem.Release(1)
}

// WaitOp blocks until the op rate limit admits one operation.
func (c *Controller) WaitOp(ctx context.Context) error {
	if c == nil || c.opLimiter == nil {
		if c != nil {
			c.opsDone.Add(1)
		}

		return nil
	}

	if err := c.opLimiter.Wait(ctx); err != nil {
		return err
	}

	c.opsDone.Add(1)

	return nil
}

// TryOp attempts to admit one operation without blocking.
func (c *Controller) TryOp() bool {
	if c == nil || c.opLimiter == nil {
		return true
	}

	return c.opLimiter.AllowN(time.Now(), 1)
}

// OpsDone returns the number of admitted operations.
func (c *Controller) OpsDone() int64 {
	if c == nil {
		return 0
	}

	return c.opsDone.Load()
}
