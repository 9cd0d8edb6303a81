// Package membership provides an approximate set for very large key spaces.
//
// A Set answers MightContain with a one-sided error: a key that was
// inserted is always reported present, while a key that was never inserted
// is reported present with a probability close to the configured false
// positive rate, as long as no more than the configured capacity of
// distinct keys has been inserted. Past that capacity the rate degrades
// gracefully; it never produces false negatives.
package membership

import (
	"math"

	"github.com/ajitpratap0/ctrflow/pkg/errors"
	"github.com/bits-and-blooms/bloom/v3"
)

// Set is a Bloom filter sized for a target capacity and false positive rate.
// It is not safe for concurrent mutation.
type Set struct {
	filter            *bloom.BloomFilter
	capacity          uint
	falsePositiveRate float64
	inserted          uint
}

// New creates a Set that keeps its false positive rate near
// falsePositiveRate for up to capacity distinct keys.
func New(capacity uint, falsePositiveRate float64) (*Set, error) {
	if capacity == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "membership set capacity must be positive")
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		return nil, errors.Newf(errors.ErrorTypeConfig,
			"membership set false positive rate must be in (0, 1), got %g", falsePositiveRate)
	}
	return &Set{
		filter:            bloom.NewWithEstimates(capacity, falsePositiveRate),
		capacity:          capacity,
		falsePositiveRate: falsePositiveRate,
	}, nil
}

// Insert adds key to the set.
func (s *Set) Insert(key []byte) {
	s.filter.Add(key)
	s.inserted++
}

// InsertString adds key to the set.
func (s *Set) InsertString(key string) {
	s.Insert([]byte(key))
}

// MightContain reports whether key may have been inserted. A false result
// is definite.
func (s *Set) MightContain(key []byte) bool {
	return s.filter.Test(key)
}

// MightContainString reports whether key may have been inserted.
func (s *Set) MightContainString(key string) bool {
	return s.MightContain([]byte(key))
}

// Inserted returns the number of Insert calls, duplicates included.
func (s *Set) Inserted() uint {
	return s.inserted
}

// Capacity returns the number of distinct keys the set was sized for.
func (s *Set) Capacity() uint {
	return s.capacity
}

// Saturated reports whether more keys were inserted than the set was sized
// for, in which case the false positive rate exceeds the target.
func (s *Set) Saturated() bool {
	return s.inserted > s.capacity
}

// EstimatedFalsePositiveRate returns the expected false positive rate for
// the current number of insertions.
func (s *Set) EstimatedFalsePositiveRate() float64 {
	m, k, n := float64(s.filter.Cap()), float64(s.filter.K()), float64(s.inserted)
	return math.Pow(1-math.Exp(-k*n/m), k)
}

// BitSize returns the size of the underlying bit array.
func (s *Set) BitSize() uint {
	return s.filter.Cap()
}
