package metrigo

import (
	"errors"
	"fmt"

	"github.com/hupe1980/metrigo/engine"
	"github.com/hupe1980/metrigo/series"
	"github.com/hupe1980/metrigo/storage"
	"github.com/hupe1980/metrigo/tags"
)

var (
	// ErrMetricTypeMismatch is returned when a sample or payload does not
	// match the metric type a series was created with.
	ErrMetricTypeMismatch = errors.New("metric type mismatch")

	// ErrTagSpaceExhausted is returned when a sample introduces more
	// distinct secondary tag pairs than the bitmask width can hold.
	// The sample is rejected; prior state is unaffected.
	ErrTagSpaceExhausted = errors.New("tag space exhausted")

	// ErrCodeSpaceExhausted is returned when the tag dictionary is full.
	ErrCodeSpaceExhausted = errors.New("tag code space exhausted")

	// ErrBucketExpired is returned when a sample's timestamp falls into a
	// window that retention has already evicted.
	ErrBucketExpired = errors.New("bucket expired")

	// ErrUnknownGranularity is returned when a query names a granularity
	// outside the configured chain.
	ErrUnknownGranularity = errors.New("unknown granularity")

	// ErrInvalidConfig is returned by New when options violate an
	// invariant (misaligned granularity chain, inverted retention, ...).
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidValue is returned for malformed payloads (wrong kind for
	// the metric type, non-finite gauge, empty query range).
	ErrInvalidValue = errors.New("invalid value")

	// ErrCorruptedBlock is returned when a compacted bucket fails to
	// decode. The engine never silently drops or repairs such a bucket.
	ErrCorruptedBlock = errors.New("corrupted block")

	// ErrClosed is returned by all operations after Close.
	ErrClosed = errors.New("closed")
)

func translateError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, series.ErrMetricTypeMismatch):
		return fmt.Errorf("%w: %w", ErrMetricTypeMismatch, err)
	case errors.Is(err, tags.ErrTagSpaceExhausted):
		return fmt.Errorf("%w: %w", ErrTagSpaceExhausted, err)
	case errors.Is(err, tags.ErrCodeSpaceExhausted):
		return fmt.Errorf("%w: %w", ErrCodeSpaceExhausted, err)
	case errors.Is(err, storage.ErrBucketExpired):
		return fmt.Errorf("%w: %w", ErrBucketExpired, err)
	case errors.Is(err, storage.ErrCorruptedBlock):
		return fmt.Errorf("%w: %w", ErrCorruptedBlock, err)
	case errors.Is(err, engine.ErrUnknownGranularity):
		return fmt.Errorf("%w: %w", ErrUnknownGranularity, err)
	case errors.Is(err, engine.ErrInvalidConfig):
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	case errors.Is(err, engine.ErrInvalidValue):
		return fmt.Errorf("%w: %w", ErrInvalidValue, err)
	case errors.Is(err, engine.ErrClosed):
		return fmt.Errorf("%w: %w", ErrClosed, err)
	default:
		return err
	}
}
