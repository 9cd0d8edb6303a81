package agents

import (
	"sort"
	"strconv"
	"strings"

	"github.com/ajitpratap0/ctrflow/pkg/errors"
	"github.com/ajitpratap0/ctrflow/pkg/json"
	"github.com/ajitpratap0/ctrflow/pkg/models"
)

// KindAdParams expands an ad parameter blob into one field per key.
const KindAdParams = "ad_params"

func init() {
	mustRegister(KindAdParams, func(Deps) (Agent, error) {
		return &AdParams{Field: "ad_params", Output: "ad_parameter"}, nil
	})
}

// AdParams replaces a key/value blob with one Output field per key present.
// Only key presence matters; values are ignored. Keys are emitted in
// ascending order, numeric keys as integers, so the fields of a row do not
// depend on map iteration order.
type AdParams struct {
	Base

	Field  string `json:"field"`
	Output string `json:"output"`
}

// Kind implements Agent.
func (p *AdParams) Kind() string { return KindAdParams }

// Validate implements Agent.
func (p *AdParams) Validate() error {
	if p.Field == "" || p.Output == "" {
		return errors.New(errors.ErrorTypeConfig, "ad_params: field and output are required")
	}
	return nil
}

// Transform implements Agent.
func (p *AdParams) Transform(row models.Row) models.Row {
	v, ok := row.Get(p.Field)
	if !ok {
		return row
	}
	for _, key := range Keys(v) {
		row = row.Append(p.Output, key)
	}
	return row
}

// ReplacedFields implements Agent.
func (p *AdParams) ReplacedFields() []string { return []string{p.Field} }

// Keys returns the sorted keys of a parameter blob: a decoded JSON object
// or a JSON object encoded as a string. Integer keys come first as int64 in
// numeric order, the others follow as strings. Anything else has no keys.
func Keys(blob interface{}) []interface{} {
	var params map[string]interface{}
	switch b := blob.(type) {
	case map[string]interface{}:
		params = b
	case string:
		if strings.TrimSpace(b) == "" {
			return nil
		}
		if err := json.UnmarshalNumber([]byte(b), &params); err != nil {
			return nil
		}
	default:
		return nil
	}

	numeric := make([]int64, 0, len(params))
	var named []string
	for k := range params {
		if n, err := strconv.ParseInt(k, 10, 64); err == nil {
			numeric = append(numeric, n)
			continue
		}
		named = append(named, k)
	}
	sort.Slice(numeric, func(i, j int) bool { return numeric[i] < numeric[j] })
	sort.Strings(named)

	keys := make([]interface{}, 0, len(params))
	for _, n := range numeric {
		keys = append(keys, n)
	}
	for _, s := range named {
		keys = append(keys, s)
	}
	return keys
}
