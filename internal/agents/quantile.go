package agents

import (
	"math"
	"sort"

	"github.com/ajitpratap0/ctrflow/pkg/errors"
	"github.com/ajitpratap0/ctrflow/pkg/models"
)

// KindQuantile discretises a numeric field into percentile buckets.
const KindQuantile = "quantile"

func init() {
	mustRegister(KindQuantile, func(Deps) (Agent, error) {
		return &Quantile{Buckets: 20}, nil
	})
}

// Quantile replaces a numeric field with the index of its percentile
// bucket. With q buckets it keeps q-1 interior breakpoints, taken at the
// percentiles 100*k/(q+2) for k in [2, q].
type Quantile struct {
	Base

	Field   string `json:"field"`
	Buckets int    `json:"buckets"`

	Breakpoints []float64 `json:"breakpoints,omitempty"`

	sample []float64
}

// Kind implements Agent.
func (q *Quantile) Kind() string { return KindQuantile }

// Validate implements Agent.
func (q *Quantile) Validate() error {
	if q.Field == "" {
		return errors.New(errors.ErrorTypeConfig, "quantile: field is required")
	}
	if q.Buckets < 2 {
		return errors.Newf(errors.ErrorTypeConfig, "quantile: buckets must be at least 2, got %d", q.Buckets)
	}
	return nil
}

// Output is the name of the emitted bucket field.
func (q *Quantile) Output() string { return q.Field + "_percentile" }

// Prepare implements Agent.
func (q *Quantile) Prepare() {
	q.sample = make([]float64, 0, 1024)
}

// Observe implements Agent. Missing and non-numeric values are not part of
// the sample.
func (q *Quantile) Observe(row models.Row) {
	v, ok := row.Get(q.Field)
	if !ok {
		return
	}
	if f, ok := models.Float(v); ok {
		q.sample = append(q.sample, f)
	}
}

// Finalize implements Agent.
func (q *Quantile) Finalize() error {
	if len(q.sample) == 0 {
		return errors.Newf(errors.ErrorTypeConfig, "quantile: no numeric values observed for %s", q.Field)
	}
	sort.Float64s(q.sample)

	q.Breakpoints = make([]float64, 0, q.Buckets-1)
	for k := 2; k <= q.Buckets; k++ {
		pct := 100 * float64(k) / float64(q.Buckets+2)
		q.Breakpoints = append(q.Breakpoints, Percentile(q.sample, pct))
	}
	q.sample = nil
	return nil
}

// Transform implements Agent.
func (q *Quantile) Transform(row models.Row) models.Row {
	return row.Append(q.Output(), q.Bucket(row))
}

// Bucket returns the bucket of the row's value: the first breakpoint the
// value is below, or the top bucket. Missing values fall in the middle
// bucket.
func (q *Quantile) Bucket(row models.Row) int64 {
	v, _ := row.Get(q.Field)
	f, ok := models.Float(v)
	if !ok {
		return int64(len(q.Breakpoints) / 2)
	}
	for j, p := range q.Breakpoints {
		if f < p {
			return int64(j)
		}
	}
	return int64(len(q.Breakpoints))
}

// ReplacedFields implements Agent.
func (q *Quantile) ReplacedFields() []string { return []string{q.Field} }

// Percentile returns the pct-th percentile of sorted values using linear
// interpolation between the closest ranks.
func Percentile(sorted []float64, pct float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	rank := pct / 100 * float64(len(sorted)-1)
	lo := math.Floor(rank)
	hi := math.Ceil(rank)
	if lo == hi {
		return sorted[int(lo)]
	}
	return sorted[int(lo)] + (sorted[int(hi)]-sorted[int(lo)])*(rank-lo)
}
