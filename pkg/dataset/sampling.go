package dataset

import (
	"github.com/ajitpratap0/ctrflow/pkg/errors"
)

// Sampling parameterises one traversal of a Dataset.
//
// Positions are physical, zero-based line numbers. A record at position pos
// is "on the beat" for n when (pos + Offset + Phase + 1) mod n == 0; SkipNth
// drops those records and EveryNth keeps only those, so the two with the
// same n, Offset and Phase split a file into disjoint parts that together
// cover it exactly once.
type Sampling struct {
	// Offset skips the first Offset physical records.
	Offset int
	// Limit caps the number of records yielded across all cycles. Zero or
	// negative means unlimited.
	Limit int
	// SkipNth drops every SkipNth-th record.
	SkipNth int
	// EveryNth keeps only every EveryNth-th record.
	EveryNth int
	// Cycles repeats the traversal, resetting the cursor to the start of the
	// source in between. Zero means one cycle.
	Cycles int
	// Phase shifts the modular selection without skipping any records. Fold
	// i of a k-fold split uses Phase i.
	Phase int
}

// Validate reports inconsistent sampling parameters.
func (s Sampling) Validate() error {
	switch {
	case s.Offset < 0:
		return errors.Newf(errors.ErrorTypeValidation, "offset must not be negative, got %d", s.Offset)
	case s.SkipNth < 0:
		return errors.Newf(errors.ErrorTypeValidation, "skip_nth must not be negative, got %d", s.SkipNth)
	case s.EveryNth < 0:
		return errors.Newf(errors.ErrorTypeValidation, "every_nth must not be negative, got %d", s.EveryNth)
	case s.Cycles < 0:
		return errors.Newf(errors.ErrorTypeValidation, "cycles must not be negative, got %d", s.Cycles)
	case s.Phase < 0:
		return errors.Newf(errors.ErrorTypeValidation, "phase must not be negative, got %d", s.Phase)
	case s.SkipNth > 0 && s.EveryNth > 0:
		return errors.New(errors.ErrorTypeValidation, "skip_nth and every_nth are mutually exclusive")
	}
	return nil
}

// Selects reports whether the record at physical position pos passes the
// SkipNth/EveryNth filter. Offset and Limit are applied by the cursor.
func (s Sampling) Selects(pos int) bool {
	if s.SkipNth > 0 && s.onBeat(pos, s.SkipNth) {
		return false
	}
	if s.EveryNth > 0 && !s.onBeat(pos, s.EveryNth) {
		return false
	}
	return true
}

// Positions are 1-indexed for the modular test.
func (s Sampling) onBeat(pos, n int) bool {
	return (pos+s.Offset+s.Phase+1)%n == 0
}

func (s Sampling) cycles() int {
	if s.Cycles < 1 {
		return 1
	}
	return s.Cycles
}

func (s Sampling) exhausted(yielded int) bool {
	return s.Limit > 0 && yielded >= s.Limit
}

// Train returns the training side of fold i of a k-fold split.
func Train(k, fold int) Sampling {
	return Sampling{SkipNth: k, Phase: fold}
}

// Test returns the held-out side of fold i of a k-fold split.
func Test(k, fold int) Sampling {
	return Sampling{EveryNth: k, Phase: fold}
}
