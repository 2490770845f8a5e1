package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	var c Config

	c.withDefaults()
	require.NoError(t, c.validate())

	assert.Equal(t, DefaultGranularities, c.Granularities)
	assert.Equal(t, DefaultRetention, c.Retention)
	assert.Equal(t, 64, c.SecondaryBitWidth)
	assert.NotNil(t, c.Clock)
	assert.NotNil(t, c.Logger)
	assert.Positive(t, c.QueryConcurrency)
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Granularities: []time.Duration{10 * time.Second, time.Minute},
			Retention:     []time.Duration{time.Hour, 2 * time.Hour},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no granularities", func(c *Config) { c.Granularities = nil }},
		{"zero granularity", func(c *Config) { c.Granularities[0] = 0 }},
		{"not increasing", func(c *Config) { c.Granularities = []time.Duration{time.Minute, time.Minute} }},
		{"not a multiple", func(c *Config) { c.Granularities = []time.Duration{10 * time.Second, 25 * time.Second} }},
		{"retention count mismatch", func(c *Config) { c.Retention = c.Retention[:1] }},
		{"retention below granularity", func(c *Config) { c.Retention[1] = time.Second }},
		{"coarser retention shorter", func(c *Config) { c.Retention = []time.Duration{3 * time.Hour, 2 * time.Hour} }},
		{"bit width too small", func(c *Config) { c.SecondaryBitWidth = -1 }},
		{"bit width too large", func(c *Config) { c.SecondaryBitWidth = 65 }},
		{"bad reducer", func(c *Config) { c.GaugeReducer = 99 }},
		{"bad compression", func(c *Config) { c.Compression = 99 }},
		{"negative sweep interval", func(c *Config) { c.SweepInterval = -time.Second }},
		{"negative sweep rate", func(c *Config) { c.SweepSeriesPerSec = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			c.withDefaults()
			tt.mutate(&c)

			err := c.validate()
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	c := valid()
	c.withDefaults()
	require.NoError(t, c.validate())
}
