package testutil

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/hupe1980/metrigo/model"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// Float64 returns, as a float64, a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// Sample is one generated observation.
type Sample struct {
	Time  time.Time
	Value model.Value
}

// GenTags generates n distinct tag pairs under the given key.
func GenTags(key string, n int) []model.Tag {
	tags := make([]model.Tag, 0, n)
	for i := range n {
		tags = append(tags, model.T(key, fmt.Sprintf("v%d", i)))
	}

	return tags
}

// GenGaugeSamples generates n gauge samples with timestamps uniformly
// distributed in [start, end) and values in [0, 1).
func GenGaugeSamples(rng *RNG, n int, start, end time.Time) []Sample {
	span := end.UnixNano() - start.UnixNano()
	samples := make([]Sample, 0, n)

	for range n {
		off := int64(rng.Float64() * float64(span))
		samples = append(samples, Sample{
			Time:  time.Unix(0, start.UnixNano()+off),
			Value: model.GaugeValue(rng.Float64()),
		})
	}

	return samples
}

// GenCountSamples generates n count samples with timestamps uniformly
// distributed in [start, end) and increments in [1, maxInc].
func GenCountSamples(rng *RNG, n int, start, end time.Time, maxInc int) []Sample {
	span := end.UnixNano() - start.UnixNano()
	samples := make([]Sample, 0, n)

	for range n {
		off := int64(rng.Float64() * float64(span))
		samples = append(samples, Sample{
			Time:  time.Unix(0, start.UnixNano()+off),
			Value: model.CountValue(uint64(rng.Intn(maxInc) + 1)),
		})
	}

	return samples
}

// BucketStats is a naive per-bucket aggregate used as ground truth.
type BucketStats struct {
	Sum   float64
	Count int
	Total uint64
	Num   uint64
	Den   uint64
}

// BucketSums computes per-bucket aggregates of the samples at the given
// granularity with a straightforward O(n) pass. Keys are aligned bucket
// start times in unix nanoseconds.
func BucketSums(samples []Sample, granularity time.Duration) map[int64]BucketStats {
	iv := granularity.Nanoseconds()
	out := make(map[int64]BucketStats)

	for _, s := range samples {
		ts := s.Time.UnixNano()
		start := ts - ((ts%iv)+iv)%iv

		b := out[start]

		switch s.Value.Kind() {
		case model.Gauge:
			b.Sum += s.Value.Gauge()
			b.Count++
		case model.Count:
			b.Total += s.Value.Count()
		case model.Ratio:
			num, den := s.Value.Ratio()
			b.Num += num
			b.Den += den
		}

		out[start] = b
	}

	return out
}
