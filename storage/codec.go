package storage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/metrigo/model"
	"github.com/hupe1980/metrigo/tags"
)

// ErrCorruptedBlock is returned when a sealed block fails to decode.
var ErrCorruptedBlock = errors.New("corrupted storage block")

// Compression selects the codec applied to sealed blocks.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionZstd
	CompressionLZ4
)

// String returns a human-readable name for the compression codec.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// Valid reports whether c is a known codec.
func (c Compression) Valid() bool {
	return c <= CompressionLZ4
}

// BlockCodec packs a sealed bucket's records into a compact byte block.
// The layout is columnar per record: bitmask first, then the fields of the
// owning metric type. Safe for concurrent use.
type BlockCodec struct {
	compression Compression
	zenc        *zstd.Encoder
	zdec        *zstd.Decoder
}

// NewBlockCodec creates a codec for the given compression setting.
func NewBlockCodec(c Compression) (*BlockCodec, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("unknown compression codec %d", uint8(c))
	}

	bc := &BlockCodec{compression: c}

	if c == CompressionZstd {
		var err error

		bc.zenc, err = zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}

		bc.zdec, err = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("create zstd decoder: %w", err)
		}
	}

	return bc, nil
}

// Compression returns the configured codec.
func (bc *BlockCodec) Compression() Compression {
	return bc.compression
}

// EncodeRecords packs records (sorted by mask) into a block.
func (bc *BlockCodec) EncodeRecords(mt model.MetricType, recs []Record) ([]byte, error) {
	payload := make([]byte, 0, 16*len(recs)+8)
	payload = binary.AppendUvarint(payload, uint64(len(recs)))

	for i := range recs {
		r := &recs[i]
		payload = binary.AppendUvarint(payload, uint64(r.Mask))

		switch mt {
		case model.Gauge:
			payload = appendFloat(payload, r.Agg.Sum)
			payload = appendFloat(payload, r.Agg.Min)
			payload = appendFloat(payload, r.Agg.Max)
			payload = appendFloat(payload, r.Agg.Last)
			payload = binary.AppendVarint(payload, r.Agg.LastUnix)
			payload = binary.AppendUvarint(payload, r.Agg.Samples)
		case model.Count:
			payload = binary.AppendUvarint(payload, r.Agg.Total)
			payload = appendBool(payload, r.Agg.Degraded)
		case model.Ratio:
			payload = binary.AppendUvarint(payload, r.Agg.Num)
			payload = binary.AppendUvarint(payload, r.Agg.Den)
			payload = appendBool(payload, r.Agg.Degraded)
		default:
			return nil, fmt.Errorf("unknown metric type %d", uint8(mt))
		}
	}

	switch bc.compression {
	case CompressionZstd:
		out := make([]byte, 1, len(payload)/2+1)
		out[0] = byte(CompressionZstd)

		return bc.zenc.EncodeAll(payload, out), nil
	case CompressionLZ4:
		var buf bytes.Buffer

		buf.WriteByte(byte(CompressionLZ4))

		zw := lz4.NewWriter(&buf)
		if _, err := zw.Write(payload); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}

		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("lz4 flush: %w", err)
		}

		return buf.Bytes(), nil
	default:
		out := make([]byte, 0, len(payload)+1)
		out = append(out, byte(CompressionNone))

		return append(out, payload...), nil
	}
}

// DecodeRecords unpacks a block produced by EncodeRecords.
func (bc *BlockCodec) DecodeRecords(mt model.MetricType, block []byte) ([]Record, error) {
	if len(block) == 0 {
		return nil, fmt.Errorf("%w: empty block", ErrCorruptedBlock)
	}

	var (
		payload []byte
		err     error
	)

	switch Compression(block[0]) {
	case CompressionZstd:
		if bc.zdec == nil {
			return nil, fmt.Errorf("%w: zstd block with non-zstd codec", ErrCorruptedBlock)
		}

		payload, err = bc.zdec.DecodeAll(block[1:], nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrCorruptedBlock, err)
		}
	case CompressionLZ4:
		payload, err = io.ReadAll(lz4.NewReader(bytes.NewReader(block[1:])))
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %v", ErrCorruptedBlock, err)
		}
	case CompressionNone:
		payload = block[1:]
	default:
		return nil, fmt.Errorf("%w: unknown compression %d", ErrCorruptedBlock, block[0])
	}

	rd := blockReader{data: payload}

	n, err := rd.uvarint()
	if err != nil {
		return nil, err
	}

	recs := make([]Record, 0, n)

	for i := uint64(0); i < n; i++ {
		var r Record

		mask, err := rd.uvarint()
		if err != nil {
			return nil, err
		}

		r.Mask = tags.Mask(mask)

		switch mt {
		case model.Gauge:
			if r.Agg.Sum, err = rd.float(); err != nil {
				return nil, err
			}

			if r.Agg.Min, err = rd.float(); err != nil {
				return nil, err
			}

			if r.Agg.Max, err = rd.float(); err != nil {
				return nil, err
			}

			if r.Agg.Last, err = rd.float(); err != nil {
				return nil, err
			}

			if r.Agg.LastUnix, err = rd.varint(); err != nil {
				return nil, err
			}

			if r.Agg.Samples, err = rd.uvarint(); err != nil {
				return nil, err
			}
		case model.Count:
			if r.Agg.Total, err = rd.uvarint(); err != nil {
				return nil, err
			}

			if r.Agg.Degraded, err = rd.bool(); err != nil {
				return nil, err
			}
		case model.Ratio:
			if r.Agg.Num, err = rd.uvarint(); err != nil {
				return nil, err
			}

			if r.Agg.Den, err = rd.uvarint(); err != nil {
				return nil, err
			}

			if r.Agg.Degraded, err = rd.bool(); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("unknown metric type %d", uint8(mt))
		}

		recs = append(recs, r)
	}

	return recs, nil
}

func appendFloat(b []byte, f float64) []byte {
	return binary.LittleEndian.AppendUint64(b, math.Float64bits(f))
}

func appendBool(b []byte, v bool) []byte {
	if v {
		return append(b, 1)
	}

	return append(b, 0)
}

type blockReader struct {
	data []byte
	off  int
}

func (r *blockReader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.data[r.off:])
	if n <= 0 {
		return 0, fmt.Errorf("%w: truncated uvarint", ErrCorruptedBlock)
	}

	r.off += n

	return v, nil
}

func (r *blockReader) varint() (int64, error) {
	v, n := binary.Varint(r.data[r.off:])
	if n <= 0 {
		return 0, fmt.Errorf("%w: truncated varint", ErrCorruptedBlock)
	}

	r.off += n

	return v, nil
}

func (r *blockReader) float() (float64, error) {
	if r.off+8 > len(r.data) {
		return 0, fmt.Errorf("%w: truncated float", ErrCorruptedBlock)
	}

	v := math.Float64frombits(binary.LittleEndian.Uint64(r.data[r.off:]))
	r.off += 8

	return v, nil
}

func (r *blockReader) bool() (bool, error) {
	if r.off >= len(r.data) {
		return false, fmt.Errorf("%w: truncated bool", ErrCorruptedBlock)
	}

	v := r.data[r.off] != 0
	r.off++

	return v, nil
}
