package dataset

import (
	"github.com/ajitpratap0/ctrflow/pkg/errors"
	"github.com/ajitpratap0/ctrflow/pkg/json"
	"github.com/ajitpratap0/ctrflow/pkg/models"
)

// RawCodec reads and writes raw records: a JSON array of [name, value]
// pairs whose first pair is the label or sample id. Numbers keep their
// textual form so categorical codes survive untouched.
type RawCodec struct{}

// Decode parses one raw line.
func (RawCodec) Decode(line []byte) (models.RawRecord, error) {
	var pairs [][]interface{}
	if err := json.UnmarshalNumber(line, &pairs); err != nil {
		return models.RawRecord{}, err
	}
	if len(pairs) == 0 {
		return models.RawRecord{}, errors.New(errors.ErrorTypeData, "raw record has no head field")
	}

	row := make(models.Row, 0, len(pairs))
	for i, pair := range pairs {
		if len(pair) != 2 {
			return models.RawRecord{}, errors.Newf(errors.ErrorTypeData, "element %d is not a [name, value] pair", i)
		}
		name, ok := pair[0].(string)
		if !ok {
			return models.RawRecord{}, errors.Newf(errors.ErrorTypeData, "element %d has a non-string name", i)
		}
		row = append(row, models.Field{Name: name, Value: pair[1]})
	}
	return models.RawRecord{Head: row[0], Fields: row[1:]}, nil
}

// Encode renders one raw line without the trailing newline.
func (RawCodec) Encode(r models.RawRecord) ([]byte, error) {
	pairs := make([][2]interface{}, 0, len(r.Fields)+1)
	pairs = append(pairs, [2]interface{}{r.Head.Name, r.Head.Value})
	for _, f := range r.Fields {
		pairs = append(pairs, [2]interface{}{f.Name, f.Value})
	}
	return json.Marshal(pairs)
}

// SparseCodec reads and writes encoded examples: a JSON array of
// [field, index, value] triples whose first triple carries the label or
// sample id.
type SparseCodec struct{}

// Decode parses one sparse line.
func (SparseCodec) Decode(line []byte) (models.Example, error) {
	var triples [][]interface{}
	if err := json.Unmarshal(line, &triples); err != nil {
		return models.Example{}, err
	}
	if len(triples) == 0 {
		return models.Example{}, errors.New(errors.ErrorTypeData, "sparse record has no target")
	}

	features := make([]models.Feature, 0, len(triples))
	for i, t := range triples {
		f, err := parseTriple(t)
		if err != nil {
			return models.Example{}, errors.Wrapf(err, errors.ErrorTypeData, "element %d", i)
		}
		features = append(features, f)
	}
	return models.Example{Target: features[0], Features: features[1:]}, nil
}

// Encode renders one sparse line without the trailing newline.
func (SparseCodec) Encode(ex models.Example) ([]byte, error) {
	triples := make([][3]interface{}, 0, len(ex.Features)+1)
	triples = append(triples, [3]interface{}{ex.Target.Field, ex.Target.Index, ex.Target.Value})
	for _, f := range ex.Features {
		triples = append(triples, [3]interface{}{f.Field, f.Index, f.Value})
	}
	return json.Marshal(triples)
}

func parseTriple(t []interface{}) (models.Feature, error) {
	if len(t) != 3 {
		return models.Feature{}, errors.New(errors.ErrorTypeData, "not a [field, index, value] triple")
	}
	field, ok := t[0].(string)
	if !ok {
		return models.Feature{}, errors.New(errors.ErrorTypeData, "field name is not a string")
	}
	index, ok := models.Int(t[1])
	if !ok {
		return models.Feature{}, errors.New(errors.ErrorTypeData, "index is not an integer")
	}
	value, ok := models.Float(t[2])
	if !ok {
		return models.Feature{}, errors.New(errors.ErrorTypeData, "value is not a number")
	}
	return models.Feature{Field: field, Index: int(index), Value: value}, nil
}

// OpenRaw opens a raw dataset file.
func OpenRaw(path string, opts ...Option) *Dataset[models.RawRecord] {
	return Open[models.RawRecord](path, RawCodec{}, opts...)
}

// OpenSparse opens an encoded dataset file.
func OpenSparse(path string, opts ...Option) *Dataset[models.Example] {
	return Open[models.Example](path, SparseCodec{}, opts...)
}
