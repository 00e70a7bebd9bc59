package probe

import (
	"errors"
	"fmt"
)

const (
	// hashMultiplier is the polynomial constant P used by Hash.
	hashMultiplier = 37
	// growthRatio is the factor capacity is multiplied by on every growth step.
	growthRatio = 2
	// DefaultMaxCapacity bounds growth when no WithMaxCapacity option is given.
	DefaultMaxCapacity = 1 << 30
)

var (
	// ErrInvalidCapacity is returned by New for a non-positive capacity or one
	// larger than the table's maximum.
	ErrInvalidCapacity = errors.New("probe: invalid table capacity")
	// ErrResourceExhausted is returned by Set when an insert would require the
	// table to grow beyond its maximum capacity.
	ErrResourceExhausted = errors.New("probe: table capacity exhausted")
)

// Table is the mapping contract used by the markov model. Deletion and
// iteration are intentionally absent.
type Table interface {
	// Set stores value under key, replacing any previous value.
	Set(key string, value int) error
	// Get returns the value stored under key, or the table default.
	Get(key string) int
	// Len returns the number of keys stored.
	Len() int
}

type slot struct {
	key   string
	value int
	used  bool
}

// LinearTable is a Table using open addressing with linear probing.
// A LinearTable is not safe for concurrent writers.
type LinearTable struct {
	slots       []slot
	size        int
	def         int
	maxCapacity int
}

// Option configures a LinearTable.
type Option func(*LinearTable)

// WithMaxCapacity caps how far the table may grow. Inserts that would need a
// larger table fail with ErrResourceExhausted.
// Default: DefaultMaxCapacity
func WithMaxCapacity(n int) Option {
	return func(t *LinearTable) {
		t.maxCapacity = n
	}
}

// New allocates a table with capacity empty slots that returns def for
// absent keys.
func New(capacity, def int, opts ...Option) (*LinearTable, error) {
	t := &LinearTable{
		def:         def,
		maxCapacity: DefaultMaxCapacity,
	}
	for _, opt := range opts {
		opt(t)
	}
	if capacity < 1 || capacity > t.maxCapacity {
		return nil, fmt.Errorf("%w: %d (maximum %d)", ErrInvalidCapacity, capacity, t.maxCapacity)
	}
	t.slots = make([]slot, capacity)
	return t, nil
}

// Hash returns the home slot of key for the table's current capacity.
func (t *LinearTable) Hash(key string) int {
	return hash(key, len(t.slots))
}

// hash works in uint64 so that 37*h cannot overflow on 32-bit platforms.
func hash(key string, capacity int) int {
	var h uint64
	c := uint64(capacity)
	for _, r := range key {
		h = (hashMultiplier*h + uint64(r)) % c
	}
	return int(h)
}

// Set stores value under key. Placing a new key that brings the table to half
// occupancy grows it before Set returns; if that growth is not possible the
// table is left untouched and ErrResourceExhausted is returned.
func (t *LinearTable) Set(key string, value int) error {
	capacity := len(t.slots)
	idx := hash(key, capacity)
	for range capacity {
		s := &t.slots[idx]
		if !s.used {
			return t.place(s, key, value)
		}
		if s.key == key {
			s.value = value
			return nil
		}
		idx = (idx + 1) % capacity
	}
	// Unreachable while the load factor is kept below one half.
	return fmt.Errorf("%w: no free slot for %q", ErrResourceExhausted, key)
}

// place fills the empty slot s and grows the table if needed, rolling the
// placement back when growth fails.
func (t *LinearTable) place(s *slot, key string, value int) error {
	if tooFull(t.size+1, len(t.slots)) {
		if next := nextCapacity(t.size+1, len(t.slots)); next > t.maxCapacity {
			return fmt.Errorf("%w: need %d slots, limit is %d", ErrResourceExhausted, next, t.maxCapacity)
		}
	}

	*s = slot{key: key, value: value, used: true}
	t.size++
	if !tooFull(t.size, len(t.slots)) {
		return nil
	}
	if err := t.grow(); err != nil {
		*s = slot{}
		t.size--
		return err
	}
	return nil
}

// grow moves every entry into a freshly allocated table through the regular
// insert path, then adopts its slots. t is only modified once all entries
// have been moved.
func (t *LinearTable) grow() error {
	fresh := &LinearTable{
		slots:       make([]slot, nextCapacity(t.size, len(t.slots))),
		def:         t.def,
		maxCapacity: t.maxCapacity,
	}
	for _, s := range t.slots {
		if !s.used {
			continue
		}
		if err := fresh.Set(s.key, s.value); err != nil {
			return fmt.Errorf("rehash of %q failed: %w", s.key, err)
		}
	}
	t.slots = fresh.slots
	t.size = fresh.size
	return nil
}

// Get returns the value for key, or the table default when key is absent.
// Probing wraps around the whole table since slots are never vacated.
func (t *LinearTable) Get(key string) int {
	capacity := len(t.slots)
	start := hash(key, capacity)
	idx := start
	for {
		if s := &t.slots[idx]; s.used && s.key == key {
			return s.value
		}
		idx = (idx + 1) % capacity
		if idx == start {
			return t.def
		}
	}
}

// Len returns the number of occupied slots.
func (t *LinearTable) Len() int {
	return t.size
}

// Cap returns the current number of slots.
func (t *LinearTable) Cap() int {
	return len(t.slots)
}

// Default returns the value reported for absent keys.
func (t *LinearTable) Default() int {
	return t.def
}

// tooFull reports whether size occupied slots out of capacity reaches the
// growth threshold of one half.
func tooFull(size, capacity int) bool {
	return 2*size >= capacity
}

// nextCapacity doubles capacity until size entries sit below the threshold.
// Only a capacity of one needs more than a single doubling.
func nextCapacity(size, capacity int) int {
	next := capacity * growthRatio
	for tooFull(size, next) {
		next *= growthRatio
	}
	return next
}
