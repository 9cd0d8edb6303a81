// Package models provides the record shapes that flow between the dataset
// layer, the feature pipeline and the learner.
//
// A raw record is a Row: an ordered list of named values as produced by the
// extraction step. The pipeline rewrites rows and finally encodes them into
// Features, (field, index, value) triplets, which is the only shape the
// learner understands. Labels and sample identifiers travel next to the
// features and are never features themselves.
package models

// Field is a named value inside a Row. Index is zero for every field until
// the one-hot encoder assigns categorical levels their slot.
type Field struct {
	Name  string
	Index int
	Value interface{}
}

// Row is an ordered sequence of named field values. Agents locate fields by
// name; order only matters for reproducible output.
type Row []Field

// Get returns the value of the first field called name.
func (r Row) Get(name string) (interface{}, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Has reports whether the row carries a field called name.
func (r Row) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Append adds a derived field at the end of the row.
func (r Row) Append(name string, value interface{}) Row {
	return append(r, Field{Name: name, Value: value})
}

// Without returns the row with every field named in drop removed. The
// receiver is rewritten in place.
func (r Row) Without(drop map[string]struct{}) Row {
	if len(drop) == 0 {
		return r
	}
	out := r[:0]
	for _, f := range r {
		if _, ok := drop[f.Name]; ok {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Clone returns a copy of the row that can be mutated independently.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// Names returns the field names in row order.
func (r Row) Names() []string {
	names := make([]string, len(r))
	for i, f := range r {
		names[i] = f.Name
	}
	return names
}

// RawRecord is one line of a raw dataset. Head is the first pair of the
// line, the label for training data or the sample id for test data.
type RawRecord struct {
	Head   Field
	Fields Row
}
