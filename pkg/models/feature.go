package models

import (
	"math"
	"strconv"
)

// Feature is one nonzero dimension of the implicit sparse vector: a
// categorical level (Index assigned by the encoder, Value 1) or a continuous
// slot (Index 0, Value the number itself).
type Feature struct {
	Field string
	Index int
	Value float64
}

// Example is one line of an encoded dataset. Target is the first triplet of
// the line: the label for training data or the sample id for test data.
type Example struct {
	Target   Feature
	Features []Feature
}

// Label returns the training label carried by the example.
func (e Example) Label() float64 {
	return e.Target.Value
}

// ID returns the sample identifier carried by a test example.
func (e Example) ID() string {
	v := e.Target.Value
	if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Without returns the features whose field is not in drop, along with the
// dropped ones in their original order.
func Without(features []Feature, drop ...string) (kept, dropped []Feature) {
	kept = make([]Feature, 0, len(features)+4)
	for _, f := range features {
		match := false
		for _, name := range drop {
			if f.Field == name {
				match = true
				break
			}
		}
		if match {
			dropped = append(dropped, f)
			continue
		}
		kept = append(kept, f)
	}
	return kept, dropped
}

// Features converts an encoded row into features. Fields whose value is
// not numeric cannot contribute to a linear model and are skipped; the
// number skipped is returned.
func (r Row) Features() ([]Feature, int) {
	out := make([]Feature, 0, len(r))
	skipped := 0
	for _, f := range r {
		v, ok := Float(f.Value)
		if !ok {
			skipped++
			continue
		}
		out = append(out, Feature{Field: f.Name, Index: f.Index, Value: v})
	}
	return out, skipped
}
