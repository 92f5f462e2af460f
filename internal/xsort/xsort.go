// Package xsort provides deterministic iteration over Go maps.
//
// The triage engine must be byte-deterministic end to end, but Go map
// iteration order is randomized. Every place a map is walked to produce
// persisted output goes through here instead of a bare `for range`.
//
// This generalizes an `enumerate` helper that sorted map keys before
// emitting XML attributes/elements, to any ordered key type and any
// emission target (JSON fields, counters, etc).
package xsort

import (
	"slices"

	"golang.org/x/exp/constraints"
	"golang.org/x/exp/maps"
)

// Keys returns the keys of m in ascending sorted order.
func Keys[M ~map[K]V, K constraints.Ordered, V any](m M) []K {
	keys := maps.Keys(m)
	slices.Sort(keys)
	return keys
}

// Each calls fn once per entry of m, in ascending key order.
func Each[M ~map[K]V, K constraints.Ordered, V any](m M, fn func(k K, v V)) {
	for _, k := range Keys(m) {
		fn(k, m[k])
	}
}

// EachErr is like Each but stops and returns the first error from fn.
func EachErr[M ~map[K]V, K constraints.Ordered, V any](m M, fn func(k K, v V) error) error {
	for _, k := range Keys(m) {
		if err := fn(k, m[k]); err != nil {
			return err
		}
	}
	return nil
}

// CountEntry is a (key, count) pair used for stable top-N listings: ties are
// broken by ascending key so the result never depends on map iteration order.
type CountEntry[K constraints.Ordered] struct {
	Key   K
	Count int
}

// TopN returns up to n entries from counts, sorted by descending Count then
// ascending Key, so the result never depends on map iteration order.
func TopN[M ~map[K]int, K constraints.Ordered](counts M, n int) []CountEntry[K] {
	entries := make([]CountEntry[K], 0, len(counts))
	for _, k := range Keys(counts) {
		entries = append(entries, CountEntry[K]{Key: k, Count: counts[k]})
	}
	slices.SortStableFunc(entries, func(a, b CountEntry[K]) int {
		if a.Count != b.Count {
			if a.Count > b.Count {
				return -1
			}
			return 1
		}
		if a.Key < b.Key {
			return -1
		}
		if a.Key > b.Key {
			return 1
		}
		return 0
	})
	if n >= 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
