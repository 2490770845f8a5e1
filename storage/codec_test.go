package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/metrigo/model"
	"github.com/hupe1980/metrigo/tags"
)

func gaugeRecords() []Record {
	return []Record{
		{Mask: 0b01, Agg: Aggregate{Sum: 10, Min: 1, Max: 9, Last: 4, LastUnix: 1234, Samples: 3}},
		{Mask: 0b10, Agg: Aggregate{Sum: -2.5, Min: -2.5, Max: -2.5, Last: -2.5, LastUnix: 99, Samples: 1}},
	}
}

func TestBlockCodecRoundTrip(t *testing.T) {
	for _, comp := range []Compression{CompressionNone, CompressionZstd, CompressionLZ4} {
		t.Run(comp.String(), func(t *testing.T) {
			bc, err := NewBlockCodec(comp)
			require.NoError(t, err)

			recs := gaugeRecords()

			block, err := bc.EncodeRecords(model.Gauge, recs)
			require.NoError(t, err)

			got, err := bc.DecodeRecords(model.Gauge, block)
			require.NoError(t, err)
			assert.Equal(t, recs, got)
		})
	}
}

func TestBlockCodecCountAndRatio(t *testing.T) {
	bc, err := NewBlockCodec(CompressionZstd)
	require.NoError(t, err)

	counts := []Record{
		{Mask: 0, Agg: Aggregate{Total: 42}},
		{Mask: 7, Agg: Aggregate{Total: 1 << 60, Degraded: true}},
	}

	block, err := bc.EncodeRecords(model.Count, counts)
	require.NoError(t, err)

	got, err := bc.DecodeRecords(model.Count, block)
	require.NoError(t, err)
	assert.Equal(t, counts, got)

	ratios := []Record{
		{Mask: tags.Mask(1) << 63, Agg: Aggregate{Num: 3, Den: 9}},
	}

	block, err = bc.EncodeRecords(model.Ratio, ratios)
	require.NoError(t, err)

	got, err = bc.DecodeRecords(model.Ratio, block)
	require.NoError(t, err)
	assert.Equal(t, ratios, got)
}

func TestBlockCodecCorrupted(t *testing.T) {
	bc, err := NewBlockCodec(CompressionNone)
	require.NoError(t, err)

	_, err = bc.DecodeRecords(model.Gauge, nil)
	assert.ErrorIs(t, err, ErrCorruptedBlock)

	_, err = bc.DecodeRecords(model.Gauge, []byte{0xff})
	assert.ErrorIs(t, err, ErrCorruptedBlock)

	block, err := bc.EncodeRecords(model.Gauge, gaugeRecords())
	require.NoError(t, err)

	_, err = bc.DecodeRecords(model.Gauge, block[:len(block)/2])
	assert.ErrorIs(t, err, ErrCorruptedBlock)
}
