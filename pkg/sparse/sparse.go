// Package sparse holds the coefficient and counter maps of the linear model.
//
// Both maps are keyed by (field, index) and read as 0 for any key that was
// never written; reading never allocates an entry. They grow as the learner
// meets new keys, so the model has no fixed dimensionality.
package sparse

import (
	"math"
	"sort"

	"github.com/ajitpratap0/ctrflow/pkg/models"
)

// Key identifies one slot of the sparse vector.
type Key struct {
	Field string
	Index int
}

// KeyOf returns the slot a feature contributes to.
func KeyOf(f models.Feature) Key {
	return Key{Field: f.Field, Index: f.Index}
}

// Vector maps slots to real-valued weights. The zero value is not usable;
// call NewVector.
type Vector struct {
	values map[Key]float64
}

// NewVector creates an empty vector.
func NewVector() *Vector {
	return &Vector{values: make(map[Key]float64)}
}

// Get returns the weight of k, 0 when unset.
func (v *Vector) Get(k Key) float64 {
	return v.values[k]
}

// Set stores the weight of k.
func (v *Vector) Set(k Key, w float64) {
	v.values[k] = w
}

// Add adds delta to the weight of k.
func (v *Vector) Add(k Key, delta float64) {
	v.values[k] += delta
}

// Len returns the number of slots ever written.
func (v *Vector) Len() int {
	return len(v.values)
}

// Dot returns the inner product with a feature list.
func (v *Vector) Dot(features []models.Feature) float64 {
	z := 0.0
	for _, f := range features {
		z += v.values[KeyOf(f)] * f.Value
	}
	return z
}

// Keys returns every written slot.
func (v *Vector) Keys() []Key {
	keys := make([]Key, 0, len(v.values))
	for k := range v.values {
		keys = append(keys, k)
	}
	return keys
}

// Entry is one flattened weight.
type Entry struct {
	Field  string  `json:"field"`
	Index  int     `json:"index"`
	Weight float64 `json:"weight"`
}

// Ranked returns every weight ordered by ascending absolute value. Ties are
// broken by field and index so the output is reproducible.
func (v *Vector) Ranked() []Entry {
	out := make([]Entry, 0, len(v.values))
	for k, w := range v.values {
		out = append(out, Entry{Field: k.Field, Index: k.Index, Weight: w})
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := math.Abs(out[i].Weight), math.Abs(out[j].Weight)
		if ai != aj {
			return ai < aj
		}
		if out[i].Field != out[j].Field {
			return out[i].Field < out[j].Field
		}
		return out[i].Index < out[j].Index
	})
	return out
}

// Load replaces the content of the vector with entries.
func (v *Vector) Load(entries []Entry) {
	v.values = make(map[Key]float64, len(entries))
	for _, e := range entries {
		v.values[Key{Field: e.Field, Index: e.Index}] = e.Weight
	}
}

// Counter maps slots to update counts.
type Counter struct {
	counts map[Key]uint64
}

// NewCounter creates an empty counter.
func NewCounter() *Counter {
	return &Counter{counts: make(map[Key]uint64)}
}

// Get returns the count of k, 0 when unset.
func (c *Counter) Get(k Key) uint64 {
	return c.counts[k]
}

// Inc increments the count of k.
func (c *Counter) Inc(k Key) {
	c.counts[k]++
}

// Len returns the number of slots ever incremented.
func (c *Counter) Len() int {
	return len(c.counts)
}
