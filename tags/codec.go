package tags

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/metrigo/model"
)

// ErrTagSpaceExhausted is returned when a sample introduces more distinct
// secondary (key, value) pairs than the codec's bit width can hold.
var ErrTagSpaceExhausted = errors.New("secondary tag space exhausted")

// MaxBitWidth is the widest supported secondary bitmask.
const MaxBitWidth = 64

// Mask is an encoded secondary tag set. Each set bit stands for one
// distinct (key, value) pair known to the codec.
type Mask uint64

// pairKey packs two dictionary codes into a single map key.
func pairKey(key, value Code) uint64 {
	return uint64(key)<<32 | uint64(value)
}

// Codec maps distinct secondary (key, value) pairs to bit positions of a
// fixed-width bitmask. Assignments are first-come-first-served and stable
// for the lifetime of the codec.
//
// All methods are safe for concurrent use.
type Codec struct {
	dict  *Dictionary
	width int

	mu    sync.RWMutex
	bits  map[uint64]int // pairKey -> bit position
	pairs []pairCodes    // bit position -> pair
}

type pairCodes struct {
	key   Code
	value Code
}

// NewCodec creates a codec over dict with the given bit width (1..64).
func NewCodec(dict *Dictionary, width int) (*Codec, error) {
	if width < 1 || width > MaxBitWidth {
		return nil, fmt.Errorf("bit width must be in [1, %d], got %d", MaxBitWidth, width)
	}

	return &Codec{
		dict:  dict,
		width: width,
		bits:  make(map[uint64]int),
	}, nil
}

// Encode interns the given pairs and returns their combined mask,
// assigning bits to pairs seen for the first time. The assignment is
// atomic: if the pairs would overflow the bit width, no bit is assigned
// and ErrTagSpaceExhausted is returned.
func (c *Codec) Encode(pairs []model.Tag) (Mask, error) {
	if len(pairs) == 0 {
		return 0, nil
	}

	keys := make([]uint64, len(pairs))

	for i, p := range pairs {
		kc, err := c.dict.Intern(p.Key)
		if err != nil {
			return 0, err
		}

		vc, err := c.dict.Intern(p.Value)
		if err != nil {
			return 0, err
		}

		keys[i] = pairKey(kc, vc)
	}

	c.mu.RLock()
	mask, missing := c.maskLocked(keys)
	c.mu.RUnlock()

	if missing == 0 {
		return mask, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Count unassigned pairs again under the write lock, then assign
	// all-or-nothing so a rejected sample leaves the table untouched.
	mask, missing = c.maskLocked(keys)
	if len(c.pairs)+missing > c.width {
		return 0, fmt.Errorf("%w: %d bits in use, width %d", ErrTagSpaceExhausted, len(c.pairs), c.width)
	}

	for _, k := range keys {
		bit, ok := c.bits[k]
		if !ok {
			bit = len(c.pairs)
			c.bits[k] = bit
			c.pairs = append(c.pairs, pairCodes{key: Code(k >> 32), value: Code(k & 0xffffffff)})
		}

		mask |= 1 << bit
	}

	return mask, nil
}

// maskLocked computes the mask of already-assigned pairs and the number of
// distinct unassigned pairs. Callers must hold c.mu.
func (c *Codec) maskLocked(keys []uint64) (Mask, int) {
	var (
		mask    Mask
		missing int
	)

	seen := make(map[uint64]struct{}, len(keys))

	for _, k := range keys {
		if bit, ok := c.bits[k]; ok {
			mask |= 1 << bit

			continue
		}

		if _, dup := seen[k]; !dup {
			seen[k] = struct{}{}
			missing++
		}
	}

	return mask, missing
}

// Lookup returns the combined mask of the known pairs without assigning
// new bits. The second return is false if any pair is unknown to the
// codec; the mask then still carries the bits of the known pairs, which
// lets MatchAny filters use partial knowledge.
func (c *Codec) Lookup(pairs []model.Tag) (Mask, bool) {
	var (
		mask     Mask
		allKnown = true
	)

	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, p := range pairs {
		kc, ok := c.dict.Lookup(p.Key)
		if !ok {
			allKnown = false

			continue
		}

		vc, ok := c.dict.Lookup(p.Value)
		if !ok {
			allKnown = false

			continue
		}

		bit, ok := c.bits[pairKey(kc, vc)]
		if !ok {
			allKnown = false

			continue
		}

		mask |= 1 << bit
	}

	return mask, allKnown
}

// Decode returns the pairs encoded in mask, ordered by bit position.
func (c *Codec) Decode(mask Mask) []model.Tag {
	if mask == 0 {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]model.Tag, 0, 4)

	for bit := 0; bit < len(c.pairs); bit++ {
		if mask&(1<<bit) == 0 {
			continue
		}

		p := c.pairs[bit]

		key, _ := c.dict.Resolve(p.key)
		value, _ := c.dict.Resolve(p.value)

		out = append(out, model.Tag{Key: key, Value: value})
	}

	return out
}

// Width returns the configured bit width.
func (c *Codec) Width() int {
	return c.width
}

// Used returns the number of bits currently assigned.
func (c *Codec) Used() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.pairs)
}
