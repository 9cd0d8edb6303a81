package models

import (
	"fmt"
	"math"
	"strconv"

	"github.com/ajitpratap0/ctrflow/pkg/json"
)

// Float converts a numeric field value to float64. Strings are not parsed:
// a text field is never silently treated as a number.
func Float(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// Int converts an integral field value to int64.
func Int(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil || f != math.Trunc(f) {
			return 0, false
		}
		return int64(f), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

// IsNull reports whether the field value is missing.
func IsNull(v interface{}) bool {
	return v == nil
}

// Key returns the canonical text of a categorical value. Numbers that
// decode from "3" and values an agent emits as int64(3) share the key "3",
// and missing values form their own level "null".
func Key(v interface{}) string {
	switch n := v.(type) {
	case nil:
		return "null"
	case string:
		return n
	case json.Number:
		if i, ok := Int(n); ok {
			return strconv.FormatInt(i, 10)
		}
		return n.String()
	case int:
		return strconv.Itoa(n)
	case int64:
		return strconv.FormatInt(n, 10)
	case float64:
		if i, ok := Int(n); ok {
			return strconv.FormatInt(i, 10)
		}
		return strconv.FormatFloat(n, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(n)
	}
	return fmt.Sprint(v)
}
