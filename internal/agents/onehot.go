package agents

import (
	"sort"

	"github.com/ajitpratap0/ctrflow/pkg/errors"
	"github.com/ajitpratap0/ctrflow/pkg/json"
	"github.com/ajitpratap0/ctrflow/pkg/metrics"
	"github.com/ajitpratap0/ctrflow/pkg/models"
	"go.uber.org/zap"
)

// KindOneHot assigns categorical levels their one-hot slot.
const KindOneHot = "onehot"

// Policies for categorical values absent from the fitted mapping.
const (
	// UnknownDrop omits the field from the row.
	UnknownDrop = "drop"
	// UnknownReserve maps every unknown value of a field to one extra slot
	// right after its known levels.
	UnknownReserve = "reserve"
)

func init() {
	mustRegister(KindOneHot, func(deps Deps) (Agent, error) {
		return &OneHot{Unknown: UnknownDrop, logger: deps.logger()}, nil
	})
}

// OneHot maps categorical fields to (field, index, 1). Levels get indexes
// in the order they were first observed; a missing value is a level of its
// own. Fields outside the categorical set pass through with index 0.
type OneHot struct {
	Base

	Fields  []string `json:"fields"`
	Unknown string   `json:"unknown"`

	// Levels lists the keys of each field in index order.
	Levels map[string][]string `json:"levels,omitempty"`

	categorical map[string]struct{}
	index       map[string]map[string]int
	logger      *zap.Logger
}

// Kind implements Agent.
func (o *OneHot) Kind() string { return KindOneHot }

// Validate implements Agent.
func (o *OneHot) Validate() error {
	if len(o.Fields) == 0 {
		return errors.New(errors.ErrorTypeConfig, "onehot: fields are required")
	}
	if o.Unknown != UnknownDrop && o.Unknown != UnknownReserve {
		return errors.Newf(errors.ErrorTypeConfig, "onehot: unknown must be %q or %q, got %q",
			UnknownDrop, UnknownReserve, o.Unknown)
	}
	return nil
}

// Prepare implements Agent.
func (o *OneHot) Prepare() {
	o.categorical = make(map[string]struct{}, len(o.Fields))
	o.Levels = make(map[string][]string, len(o.Fields))
	o.index = make(map[string]map[string]int, len(o.Fields))
	for _, f := range o.Fields {
		o.categorical[f] = struct{}{}
		o.index[f] = make(map[string]int)
	}
}

// Observe implements Agent.
func (o *OneHot) Observe(row models.Row) {
	for _, f := range row {
		levels, ok := o.index[f.Name]
		if !ok {
			continue
		}
		key := models.Key(f.Value)
		if _, seen := levels[key]; seen {
			continue
		}
		levels[key] = len(levels)
		o.Levels[f.Name] = append(o.Levels[f.Name], key)
	}
}

// Finalize implements Agent. The distinct counts are logged, smallest
// field first.
func (o *OneHot) Finalize() error {
	fields := append([]string(nil), o.Fields...)
	sort.SliceStable(fields, func(i, j int) bool {
		return len(o.Levels[fields[i]]) < len(o.Levels[fields[j]])
	})
	summary := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		summary = append(summary, zap.Int(f, len(o.Levels[f])))
	}
	o.log().Info("one-hot mapping fitted", summary...)
	return nil
}

// Transform implements Agent. The returned row is newly allocated.
func (o *OneHot) Transform(row models.Row) models.Row {
	out := make(models.Row, 0, len(row))
	for _, f := range row {
		if _, ok := o.categorical[f.Name]; !ok {
			out = append(out, models.Field{Name: f.Name, Value: f.Value})
			continue
		}
		idx, ok := o.Index(f.Name, f.Value)
		if !ok {
			metrics.UnknownCategories.WithLabelValues(f.Name).Inc()
			if o.Unknown != UnknownReserve {
				continue
			}
			idx = len(o.Levels[f.Name])
		}
		out = append(out, models.Field{Name: f.Name, Index: idx, Value: int64(1)})
	}
	return out
}

// Index returns the slot of a categorical value.
func (o *OneHot) Index(field string, value interface{}) (int, bool) {
	idx, ok := o.index[field][models.Key(value)]
	return idx, ok
}

// UnmarshalJSON restores parameters and rebuilds the lookup tables from
// the ordered levels.
func (o *OneHot) UnmarshalJSON(data []byte) error {
	type plain OneHot
	decoded := plain{Unknown: o.Unknown}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	o.Fields = decoded.Fields
	o.Unknown = decoded.Unknown

	levels := decoded.Levels
	o.Prepare()
	for field, keys := range levels {
		if _, ok := o.index[field]; !ok {
			return errors.Newf(errors.ErrorTypeData, "onehot: levels given for non-categorical field %s", field)
		}
		for i, key := range keys {
			o.index[field][key] = i
		}
		o.Levels[field] = keys
	}
	return nil
}

func (o *OneHot) log() *zap.Logger {
	if o.logger == nil {
		return zap.NewNop()
	}
	return o.logger
}
