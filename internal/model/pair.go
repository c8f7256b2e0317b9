package model

import (
	"sort"
	"strings"
)

// DefaultSentinel is the distance recorded for pairs that were never seen together.
const DefaultSentinel = 10000.0

// Pair is an unordered item pair stored in canonical order (A < B).
type Pair struct {
	A string
	B string
}

// NewPair returns the canonical pair for two items.
func NewPair(a, b string) Pair {
	if b < a {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

// String renders the pair as "A,B", the key format used in exported artifacts.
func (p Pair) String() string {
	return p.A + "," + p.B
}

// Less orders pairs by A, then B.
func (p Pair) Less(o Pair) bool {
	if p.A != o.A {
		return p.A < o.A
	}
	return p.B < o.B
}

// ParsePair parses the "A,B" artifact form back into a canonical pair.
func ParsePair(s string) (Pair, bool) {
	a, b, ok := strings.Cut(s, ",")
	if !ok || a == "" || b == "" || a == b {
		return Pair{}, false
	}
	return NewPair(a, b), true
}

// TimegapTable maps unordered item pairs to their learned distance.
// Only the canonical key is stored, so lookups are symmetric.
type TimegapTable struct {
	entries  map[Pair]float64
	sentinel float64
}

// NewTimegapTable creates an empty table using the given sentinel.
func NewTimegapTable(sentinel float64) *TimegapTable {
	return &TimegapTable{
		entries:  make(map[Pair]float64),
		sentinel: sentinel,
	}
}

// Set records the distance between a and b. Self pairs are ignored.
func (t *TimegapTable) Set(a, b string, distance float64) {
	if a == b {
		return
	}
	t.entries[NewPair(a, b)] = distance
}

// Get returns the distance between a and b and whether the pair is known.
func (t *TimegapTable) Get(a, b string) (float64, bool) {
	if a == b {
		return 0, true
	}
	d, ok := t.entries[NewPair(a, b)]
	return d, ok
}

// Distance returns the distance between a and b, or the sentinel when unknown.
func (t *TimegapTable) Distance(a, b string) float64 {
	if d, ok := t.Get(a, b); ok {
		return d
	}
	return t.sentinel
}

// Sentinel returns the placeholder distance for never co-observed pairs.
func (t *TimegapTable) Sentinel() float64 {
	return t.sentinel
}

// Len returns the number of stored pairs.
func (t *TimegapTable) Len() int {
	return len(t.entries)
}

// Pairs returns all stored pairs sorted by key.
func (t *TimegapTable) Pairs() []Pair {
	pairs := make([]Pair, 0, len(t.entries))
	for p := range t.entries {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Less(pairs[j]) })
	return pairs
}

// Observed returns the number of pairs whose distance differs from the sentinel.
func (t *TimegapTable) Observed() int {
	n := 0
	for _, d := range t.entries {
		if d != t.sentinel {
			n++
		}
	}
	return n
}
