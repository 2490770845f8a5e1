package tags

import (
	"errors"
	"fmt"
	"sync"
)

// ErrCodeSpaceExhausted is returned when the dictionary has no codes left.
var ErrCodeSpaceExhausted = errors.New("tag code space exhausted")

// Code is a dense identifier for an interned tag string.
// Codes are stable for the lifetime of the dictionary and never reused.
type Code uint32

// DefaultDictionaryLimit bounds the number of distinct interned strings.
const DefaultDictionaryLimit = 1 << 20

// Dictionary interns tag strings to dense codes.
// All methods are safe for concurrent use.
type Dictionary struct {
	mu      sync.RWMutex
	codes   map[string]Code
	strings []string
	limit   int
}

// NewDictionary creates a dictionary holding at most limit distinct strings.
// If limit <= 0, DefaultDictionaryLimit is used.
func NewDictionary(limit int) *Dictionary {
	if limit <= 0 {
		limit = DefaultDictionaryLimit
	}

	return &Dictionary{
		codes: make(map[string]Code),
		limit: limit,
	}
}

// Intern returns the code for s, assigning a new one if s is unknown.
// Interning the same string always yields the same code.
func (d *Dictionary) Intern(s string) (Code, error) {
	d.mu.RLock()
	c, ok := d.codes[s]
	d.mu.RUnlock()

	if ok {
		return c, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// Re-check under the write lock: another goroutine may have won.
	if c, ok := d.codes[s]; ok {
		return c, nil
	}

	if len(d.strings) >= d.limit {
		return 0, fmt.Errorf("%w: limit %d reached", ErrCodeSpaceExhausted, d.limit)
	}

	c = Code(len(d.strings))
	d.codes[s] = c
	d.strings = append(d.strings, s)

	return c, nil
}

// Lookup returns the code for s without assigning a new one.
func (d *Dictionary) Lookup(s string) (Code, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := d.codes[s]

	return c, ok
}

// Resolve returns the string for code c.
func (d *Dictionary) Resolve(c Code) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if int(c) >= len(d.strings) {
		return "", false
	}

	return d.strings[c], true
}

// Len returns the number of interned strings.
func (d *Dictionary) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.strings)
}
