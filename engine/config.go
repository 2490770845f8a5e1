package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/hupe1980/metrigo/model"
	"github.com/hupe1980/metrigo/storage"
)

// ErrInvalidConfig is returned when the configuration violates an
// invariant (misaligned granularity chain, inverted retention, ...).
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the engine configuration. The zero value is completed with
// defaults by New.
type Config struct {
	// Granularities are the bucket widths, finest first. Each coarser
	// granularity must be an integer multiple of its predecessor.
	Granularities []time.Duration

	// Retention holds one horizon per granularity. A coarser granularity
	// must retain at least as long as a finer one, so coarse data never
	// disappears before the fine data it summarizes.
	Retention []time.Duration

	// SecondaryBitWidth is the width of the secondary tag bitmask (1..64).
	SecondaryBitWidth int

	// GaugeReducer is the default read-time reduction for gauges.
	GaugeReducer model.GaugeReducer

	// DictionaryLimit bounds the number of interned tag strings.
	// 0 means the dictionary default.
	DictionaryLimit int

	// Compression is applied to sealed buckets.
	Compression storage.Compression

	// Clock supplies time. Tests inject a mock.
	Clock clock.Clock

	// SweepInterval is the cadence of the background sweep.
	// 0 disables the background goroutine; Sweep can still be called.
	SweepInterval time.Duration

	// SweepConcurrency bounds parallel per-series rollup work.
	SweepConcurrency int

	// SweepSeriesPerSec rate-limits the series processed per sweep second.
	// 0 means unlimited.
	SweepSeriesPerSec float64

	// QueryConcurrency bounds the per-series fan-out of a query.
	QueryConcurrency int

	// Logger receives sweep diagnostics. Defaults to a discarding logger.
	Logger *slog.Logger
}

// DefaultGranularities is the default three-level chain.
var DefaultGranularities = []time.Duration{10 * time.Second, time.Minute, time.Hour}

// DefaultRetention pairs with DefaultGranularities.
var DefaultRetention = []time.Duration{24 * time.Hour, 7 * 24 * time.Hour, 90 * 24 * time.Hour}

func (c *Config) withDefaults() {
	if len(c.Granularities) == 0 {
		c.Granularities = DefaultGranularities

		if len(c.Retention) == 0 {
			c.Retention = DefaultRetention
		}
	}

	if c.SecondaryBitWidth == 0 {
		c.SecondaryBitWidth = 64
	}

	if c.Clock == nil {
		c.Clock = clock.New()
	}

	if c.SweepConcurrency <= 0 {
		c.SweepConcurrency = 2
	}

	if c.QueryConcurrency <= 0 {
		c.QueryConcurrency = runtime.GOMAXPROCS(0)
	}

	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
}

func (c *Config) validate() error {
	if len(c.Granularities) == 0 {
		return fmt.Errorf("%w: at least one granularity required", ErrInvalidConfig)
	}

	for i, g := range c.Granularities {
		if g <= 0 {
			return fmt.Errorf("%w: granularity %v must be positive", ErrInvalidConfig, g)
		}

		if i == 0 {
			continue
		}

		prev := c.Granularities[i-1]

		if g <= prev {
			return fmt.Errorf("%w: granularities must be strictly increasing, got %v after %v", ErrInvalidConfig, g, prev)
		}

		if g%prev != 0 {
			return fmt.Errorf("%w: granularity %v is not a multiple of %v", ErrInvalidConfig, g, prev)
		}
	}

	if len(c.Retention) != len(c.Granularities) {
		return fmt.Errorf("%w: %d retention horizons for %d granularities", ErrInvalidConfig, len(c.Retention), len(c.Granularities))
	}

	for i, r := range c.Retention {
		if r < c.Granularities[i] {
			return fmt.Errorf("%w: retention %v is shorter than its granularity %v", ErrInvalidConfig, r, c.Granularities[i])
		}

		if i > 0 && r < c.Retention[i-1] {
			return fmt.Errorf("%w: coarser retention %v is shorter than finer retention %v", ErrInvalidConfig, r, c.Retention[i-1])
		}
	}

	if c.SecondaryBitWidth < 1 || c.SecondaryBitWidth > 64 {
		return fmt.Errorf("%w: secondary bit width must be in [1, 64], got %d", ErrInvalidConfig, c.SecondaryBitWidth)
	}

	if !c.GaugeReducer.Valid() {
		return fmt.Errorf("%w: unknown gauge reducer %d", ErrInvalidConfig, uint8(c.GaugeReducer))
	}

	if !c.Compression.Valid() {
		return fmt.Errorf("%w: unknown compression codec %d", ErrInvalidConfig, uint8(c.Compression))
	}

	if c.SweepInterval < 0 {
		return fmt.Errorf("%w: sweep interval must not be negative", ErrInvalidConfig)
	}

	if c.SweepSeriesPerSec < 0 {
		return fmt.Errorf("%w: sweep rate must not be negative", ErrInvalidConfig)
	}

	return nil
}
