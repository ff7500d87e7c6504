// Package weights provides the portfolio weight vector shared by the
// allocator, the risk layer and trade execution.
package weights

import (
	"math"
	"sort"
)

// Epsilon is the tolerance under which a weight sum is treated as zero.
const Epsilon = 1e-12

// Vector maps an asset key (name or code) to a weight.
// All iteration is done in sorted key order so sums are reproducible.
type Vector map[string]float64

// Keys returns the keys of v sorted ascending.
func (v Vector) Keys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Sum returns the sum of all weights.
func (v Vector) Sum() float64 {
	sum := 0.0
	for _, k := range v.Keys() {
		sum += v[k]
	}
	return sum
}

// Clone returns a copy of v. A nil vector clones to an empty one.
func (v Vector) Clone() Vector {
	out := make(Vector, len(v))
	for k, w := range v {
		out[k] = w
	}
	return out
}

// Normalize returns v divided by its sum.
// Returns an unchanged copy when the sum is zero.
func (v Vector) Normalize() Vector {
	out := v.Clone()
	sum := v.Sum()
	if math.Abs(sum) < Epsilon {
		return out
	}
	for k := range out {
		out[k] /= sum
	}
	return out
}

// Positive returns only the strictly positive entries of v.
func (v Vector) Positive() Vector {
	out := make(Vector, len(v))
	for k, w := range v {
		if w > 0 {
			out[k] = w
		}
	}
	return out
}

// Align returns a vector indexed exactly by keys: missing keys get 0,
// keys not listed are dropped.
func (v Vector) Align(keys []string) Vector {
	out := make(Vector, len(keys))
	for _, k := range keys {
		out[k] = v[k]
	}
	return out
}

// Filter returns the entries for which keep returns true.
func (v Vector) Filter(keep func(key string, w float64) bool) Vector {
	out := make(Vector, len(v))
	for k, w := range v {
		if keep(k, w) {
			out[k] = w
		}
	}
	return out
}

// NonZero returns the entries whose absolute weight exceeds Epsilon.
func (v Vector) NonZero() Vector {
	return v.Filter(func(_ string, w float64) bool { return math.Abs(w) > Epsilon })
}

// Union returns the sorted union of the keys of a and b.
func Union(a, b Vector) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		seen[k] = struct{}{}
	}
	for k := range b {
		seen[k] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// L1Distance returns sum(|a[k] - b[k]|) over the union of keys.
// This is the turnover between two allocations.
func L1Distance(a, b Vector) float64 {
	dist := 0.0
	for _, k := range Union(a, b) {
		dist += math.Abs(a[k] - b[k])
	}
	return dist
}
