package series

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/cespare/xxhash/v2"

	"github.com/hupe1980/metrigo/model"
	"github.com/hupe1980/metrigo/tags"
)

// ErrMetricTypeMismatch is returned when a sample addresses an existing
// series with a different metric type.
var ErrMetricTypeMismatch = errors.New("metric type mismatch")

// ID is a dense, stable identifier for a series. IDs are never reused.
type ID uint32

// Meta describes a registered series.
type Meta struct {
	ID   ID
	Tags []model.Tag // primary tags in canonical order
	Type model.MetricType
}

const numShards = 16

type entry struct {
	meta  Meta
	codes []uint64 // canonical pair codes, sorted
	hash  uint64
}

type shard struct {
	mu    sync.RWMutex
	byKey map[uint64][]*entry // canonical hash -> entries (collision chain)
}

// Catalog resolves canonicalized primary tag sets to series IDs.
// All methods are safe for concurrent use.
type Catalog struct {
	dict   *tags.Dictionary
	shards [numShards]shard

	mu       sync.RWMutex
	byID     map[ID]*entry
	postings map[uint64]*roaring.Bitmap // pair code -> series IDs
	all      *roaring.Bitmap
	nextID   ID
}

// NewCatalog creates an empty catalog over dict.
func NewCatalog(dict *tags.Dictionary) *Catalog {
	c := &Catalog{
		dict:     dict,
		byID:     make(map[ID]*entry),
		postings: make(map[uint64]*roaring.Bitmap),
		all:      roaring.New(),
	}

	for i := range c.shards {
		c.shards[i].byKey = make(map[uint64][]*entry)
	}

	return c
}

// canonicalize interns the pairs and returns their sorted, deduplicated
// pair codes plus the canonical hash.
func (c *Catalog) canonicalize(pairs []model.Tag) ([]uint64, uint64, error) {
	codes := make([]uint64, 0, len(pairs))

	for _, p := range pairs {
		kc, err := c.dict.Intern(p.Key)
		if err != nil {
			return nil, 0, err
		}

		vc, err := c.dict.Intern(p.Value)
		if err != nil {
			return nil, 0, err
		}

		codes = append(codes, uint64(kc)<<32|uint64(vc))
	}

	slices.Sort(codes)
	codes = slices.Compact(codes)

	return codes, hashCodes(codes), nil
}

// canonicalizeExisting is the read-only variant: it never interns, and
// reports false if any pair string is unknown.
func (c *Catalog) canonicalizeExisting(pairs []model.Tag) ([]uint64, uint64, bool) {
	codes := make([]uint64, 0, len(pairs))

	for _, p := range pairs {
		kc, ok := c.dict.Lookup(p.Key)
		if !ok {
			return nil, 0, false
		}

		vc, ok := c.dict.Lookup(p.Value)
		if !ok {
			return nil, 0, false
		}

		codes = append(codes, uint64(kc)<<32|uint64(vc))
	}

	slices.Sort(codes)
	codes = slices.Compact(codes)

	return codes, hashCodes(codes), true
}

func hashCodes(codes []uint64) uint64 {
	var (
		d   xxhash.Digest
		buf [8]byte
	)

	d.Reset()

	for _, c := range codes {
		binary.LittleEndian.PutUint64(buf[:], c)
		_, _ = d.Write(buf[:])
	}

	return d.Sum64()
}

// ResolveOrCreate returns the series ID for the given primary tag set,
// creating the series on first use. The created flag reports whether a new
// series was registered. Concurrent callers with the same tag set always
// converge on a single ID.
func (c *Catalog) ResolveOrCreate(pairs []model.Tag, mt model.MetricType) (ID, bool, error) {
	codes, hash, err := c.canonicalize(pairs)
	if err != nil {
		return 0, false, err
	}

	sh := &c.shards[hash%numShards]

	sh.mu.RLock()
	e := findEntry(sh.byKey[hash], codes)
	sh.mu.RUnlock()

	if e != nil {
		if e.meta.Type != mt {
			return 0, false, typeMismatch(e.meta.Type, mt)
		}

		return e.meta.ID, false, nil
	}

	sh.mu.Lock()

	// Re-check under the write lock: another goroutine may have created it.
	if e := findEntry(sh.byKey[hash], codes); e != nil {
		sh.mu.Unlock()

		if e.meta.Type != mt {
			return 0, false, typeMismatch(e.meta.Type, mt)
		}

		return e.meta.ID, false, nil
	}

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.mu.Unlock()

	e = &entry{
		meta: Meta{
			ID:   id,
			Tags: c.resolveTags(codes),
			Type: mt,
		},
		codes: codes,
		hash:  hash,
	}

	sh.byKey[hash] = append(sh.byKey[hash], e)
	sh.mu.Unlock()

	c.mu.Lock()
	c.byID[id] = e
	c.all.Add(uint32(id))

	for _, code := range codes {
		pl, ok := c.postings[code]
		if !ok {
			pl = roaring.New()
			c.postings[code] = pl
		}

		pl.Add(uint32(id))
	}
	c.mu.Unlock()

	return id, true, nil
}

func typeMismatch(have, got model.MetricType) error {
	return fmt.Errorf("%w: series registered as %s, sample is %s", ErrMetricTypeMismatch, have, got)
}

func (c *Catalog) resolveTags(codes []uint64) []model.Tag {
	out := make([]model.Tag, len(codes))

	for i, code := range codes {
		key, _ := c.dict.Resolve(tags.Code(code >> 32))
		value, _ := c.dict.Resolve(tags.Code(code & 0xffffffff))
		out[i] = model.Tag{Key: key, Value: value}
	}

	return out
}

func findEntry(chain []*entry, codes []uint64) *entry {
	for _, e := range chain {
		if slices.Equal(e.codes, codes) {
			return e
		}
	}

	return nil
}

// Lookup returns the ID for an existing series without creating one.
func (c *Catalog) Lookup(pairs []model.Tag) (ID, bool) {
	codes, hash, ok := c.canonicalizeExisting(pairs)
	if !ok {
		return 0, false
	}

	sh := &c.shards[hash%numShards]

	sh.mu.RLock()
	defer sh.mu.RUnlock()

	if e := findEntry(sh.byKey[hash], codes); e != nil {
		return e.meta.ID, true
	}

	return 0, false
}

// Find returns the IDs of all series whose primary tag set is a superset
// of the given pairs, in ascending ID order. An empty filter matches every
// series.
func (c *Catalog) Find(pairs []model.Tag) []ID {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(pairs) == 0 {
		return toIDs(c.all)
	}

	lists := make([]*roaring.Bitmap, 0, len(pairs))

	for _, p := range pairs {
		kc, ok := c.dict.Lookup(p.Key)
		if !ok {
			return nil
		}

		vc, ok := c.dict.Lookup(p.Value)
		if !ok {
			return nil
		}

		pl, ok := c.postings[uint64(kc)<<32|uint64(vc)]
		if !ok {
			return nil
		}

		lists = append(lists, pl)
	}

	return toIDs(roaring.FastAnd(lists...))
}

func toIDs(bm *roaring.Bitmap) []ID {
	if bm.IsEmpty() {
		return nil
	}

	out := make([]ID, 0, bm.GetCardinality())

	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, ID(it.Next()))
	}

	return out
}

// Meta returns the metadata for a series ID.
func (c *Catalog) Meta(id ID) (Meta, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.byID[id]
	if !ok {
		return Meta{}, false
	}

	return e.meta, true
}

// Delete removes a series from the catalog. Its ID is never reused.
func (c *Catalog) Delete(id ID) bool {
	c.mu.Lock()

	e, ok := c.byID[id]
	if !ok {
		c.mu.Unlock()

		return false
	}

	delete(c.byID, id)
	c.all.Remove(uint32(id))

	for _, code := range e.codes {
		if pl, ok := c.postings[code]; ok {
			pl.Remove(uint32(id))

			if pl.IsEmpty() {
				delete(c.postings, code)
			}
		}
	}
	c.mu.Unlock()

	sh := &c.shards[e.hash%numShards]

	sh.mu.Lock()
	defer sh.mu.Unlock()

	chain := sh.byKey[e.hash]
	for i, cand := range chain {
		if cand == e {
			sh.byKey[e.hash] = slices.Delete(chain, i, i+1)

			break
		}
	}

	if len(sh.byKey[e.hash]) == 0 {
		delete(sh.byKey, e.hash)
	}

	return true
}

// IDs returns all live series IDs in ascending order.
func (c *Catalog) IDs() []ID {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return toIDs(c.all)
}

// Len returns the number of live series.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.byID)
}
