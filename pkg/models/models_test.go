package models

import (
	"testing"

	"github.com/ajitpratap0/ctrflow/pkg/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowGetAndWithout(t *testing.T) {
	row := Row{
		{Name: "price", Value: 10.5},
		{Name: "hour", Value: json.Number("13")},
		{Name: "ad_params", Value: nil},
	}

	v, ok := row.Get("hour")
	require.True(t, ok)
	assert.Equal(t, json.Number("13"), v)

	_, ok = row.Get("missing")
	assert.False(t, ok)

	trimmed := row.Clone().Without(map[string]struct{}{"price": {}, "ad_params": {}})
	assert.Equal(t, []string{"hour"}, trimmed.Names())
	assert.Len(t, row, 3, "Clone protects the original")
}

func TestKeyCanonicalisesNumbers(t *testing.T) {
	assert.Equal(t, "3", Key(json.Number("3")))
	assert.Equal(t, "3", Key(int64(3)))
	assert.Equal(t, "3", Key(3))
	assert.Equal(t, "3", Key(3.0))
	assert.Equal(t, "2.5", Key(json.Number("2.5")))
	assert.Equal(t, "null", Key(nil))
	assert.Equal(t, "abc", Key("abc"))
}

func TestFloatAndInt(t *testing.T) {
	f, ok := Float(json.Number("1.25"))
	require.True(t, ok)
	assert.Equal(t, 1.25, f)

	_, ok = Float("1.25")
	assert.False(t, ok, "strings are not numbers")

	i, ok := Int(json.Number("42"))
	require.True(t, ok)
	assert.Equal(t, int64(42), i)

	_, ok = Int(2.5)
	assert.False(t, ok)
}

func TestRowFeaturesSkipsNonNumeric(t *testing.T) {
	row := Row{
		{Name: "hour", Index: 4, Value: 1},
		{Name: "price", Value: json.Number("99.5")},
		{Name: "title", Value: "blue bike"},
	}
	features, skipped := row.Features()
	assert.Equal(t, 1, skipped)
	assert.Equal(t, []Feature{
		{Field: "hour", Index: 4, Value: 1},
		{Field: "price", Index: 0, Value: 99.5},
	}, features)
}

func TestExampleIDAndWithout(t *testing.T) {
	ex := Example{Target: Feature{Field: "id", Value: 12345}}
	assert.Equal(t, "12345", ex.ID())

	kept, dropped := Without([]Feature{
		{Field: "ad_id", Value: 7},
		{Field: "hour", Index: 1, Value: 1},
		{Field: "user_id", Value: 9},
	}, "ad_id", "user_id")
	assert.Equal(t, []Feature{{Field: "hour", Index: 1, Value: 1}}, kept)
	assert.Len(t, dropped, 2)
}
