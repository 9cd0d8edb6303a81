package json

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalNumberKeepsText(t *testing.T) {
	var v []interface{}
	require.NoError(t, UnmarshalNumber([]byte(`["a", 3, 1.50, null]`), &v))

	require.Len(t, v, 4)
	assert.Equal(t, "a", v[0])
	assert.Equal(t, Number("3"), v[1])
	assert.Equal(t, Number("1.50"), v[2])
	assert.Nil(t, v[3])
}

func TestUnmarshalUsesFloats(t *testing.T) {
	var v []interface{}
	require.NoError(t, Unmarshal([]byte(`[3]`), &v))
	assert.Equal(t, float64(3), v[0])
}

func TestEncoderDoesNotEscapeHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode("<a&b>"))
	assert.Equal(t, "\"<a&b>\"\n", buf.String())
}

func TestBufferPool(t *testing.T) {
	buf := GetBuffer()
	buf.WriteString("x")
	PutBuffer(buf)

	again := GetBuffer()
	assert.Zero(t, again.Len())
	PutBuffer(again)
}
