package dataset

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"

	"github.com/ajitpratap0/ctrflow/pkg/errors"
	"github.com/ajitpratap0/ctrflow/pkg/json"
	"github.com/ajitpratap0/ctrflow/pkg/models"
)

// Column kinds understood by ImportTSV.
const (
	KindAuto   = "auto"
	KindInt    = "int"
	KindFloat  = "float"
	KindString = "string"
	KindJSON   = "json"
)

// TSVSpec describes a headered, tab-separated export.
type TSVSpec struct {
	// Head is the label or sample id column; it becomes the first pair.
	Head string
	// Types maps column names to a kind. Unlisted columns use KindAuto.
	Types map[string]string
	// Comma overrides the tab separator.
	Comma rune
}

// ImportTSV converts a headered TSV export into raw records written to w.
// Empty cells become null. It returns the number of records written.
func ImportTSV(ctx context.Context, r io.Reader, w *Writer[models.RawRecord], spec TSVSpec) (int, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	if spec.Comma != 0 {
		reader.Comma = spec.Comma
	}
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeData, "failed to read TSV header")
	}
	header = append([]string(nil), header...)

	headAt := -1
	for i, name := range header {
		if name == spec.Head {
			headAt = i
			break
		}
	}
	if headAt < 0 {
		return 0, errors.Newf(errors.ErrorTypeConfig, "head column %q not found in TSV header", spec.Head)
	}

	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		cells, err := reader.Read()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, errors.Wrap(err, errors.ErrorTypeData, "malformed TSV line").WithDetail("line", n+2)
		}

		rec := models.RawRecord{Fields: make(models.Row, 0, len(cells)-1)}
		for i, cell := range cells {
			if i >= len(header) {
				break
			}
			value, err := parseCell(cell, spec.Types[header[i]])
			if err != nil {
				return n, errors.Wrap(err, errors.ErrorTypeData, "malformed TSV cell").
					WithDetail("line", n+2).
					WithDetail("column", header[i])
			}
			field := models.Field{Name: header[i], Value: value}
			if i == headAt {
				rec.Head = field
				continue
			}
			rec.Fields = append(rec.Fields, field)
		}
		if err := w.Append(rec); err != nil {
			return n, err
		}
		n++
	}
}

func parseCell(cell, kind string) (interface{}, error) {
	if cell == "" {
		return nil, nil
	}
	switch kind {
	case KindInt:
		return strconv.ParseInt(cell, 10, 64)
	case KindFloat:
		return strconv.ParseFloat(cell, 64)
	case KindString:
		return cell, nil
	case KindJSON:
		var v interface{}
		if err := json.UnmarshalNumber([]byte(cell), &v); err != nil {
			return nil, err
		}
		return v, nil
	case "", KindAuto:
		if i, err := strconv.ParseInt(cell, 10, 64); err == nil {
			return i, nil
		}
		if f, err := strconv.ParseFloat(cell, 64); err == nil {
			return f, nil
		}
		return cell, nil
	}
	return nil, errors.Newf(errors.ErrorTypeConfig, "unknown column kind %q", kind)
}
