package sparse

import (
	"testing"

	"github.com/ajitpratap0/ctrflow/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestDefaultsToZeroWithoutAllocating(t *testing.T) {
	v := NewVector()
	assert.Zero(t, v.Get(Key{Field: "hour", Index: 3}))
	assert.Zero(t, v.Len())

	c := NewCounter()
	assert.Zero(t, c.Get(Key{Field: "hour", Index: 3}))
	assert.Zero(t, c.Len())
}

func TestDot(t *testing.T) {
	v := NewVector()
	v.Set(Key{"hour", 1}, 0.5)
	v.Add(Key{"price", 0}, -2)
	v.Add(Key{"price", 0}, 1)

	z := v.Dot([]models.Feature{
		{Field: "hour", Index: 1, Value: 1},
		{Field: "price", Index: 0, Value: 3},
		{Field: "unseen", Index: 0, Value: 100},
	})
	assert.InDelta(t, 0.5-3, z, 1e-12)
	assert.Equal(t, 2, v.Len())
}

func TestRankedAscendingByMagnitude(t *testing.T) {
	v := NewVector()
	v.Set(Key{"a", 0}, -3)
	v.Set(Key{"b", 0}, 0.1)
	v.Set(Key{"c", 2}, 2)
	v.Set(Key{"c", 1}, -2)

	assert.Equal(t, []Entry{
		{Field: "b", Index: 0, Weight: 0.1},
		{Field: "c", Index: 1, Weight: -2},
		{Field: "c", Index: 2, Weight: 2},
		{Field: "a", Index: 0, Weight: -3},
	}, v.Ranked())
}

func TestLoadReplaces(t *testing.T) {
	v := NewVector()
	v.Set(Key{"old", 0}, 1)
	v.Load([]Entry{{Field: "new", Index: 4, Weight: 0.25}})

	assert.Zero(t, v.Get(Key{"old", 0}))
	assert.Equal(t, 0.25, v.Get(Key{"new", 4}))
}

func TestCounter(t *testing.T) {
	c := NewCounter()
	k := KeyOf(models.Feature{Field: "hour", Index: 2, Value: 1})
	c.Inc(k)
	c.Inc(k)
	assert.Equal(t, uint64(2), c.Get(k))
}
