package rolling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRing_PushEvictsOldest(t *testing.T) {
	r := NewRing[int](3)

	r.Push(1)
	r.Push(2)
	r.Push(3)
	assert.Equal(t, []int{1, 2, 3}, r.Values())

	r.Push(4)
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []int{2, 3, 4}, r.Values())

	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, 4, last)
}

func TestRing_Tail(t *testing.T) {
	r := NewRing[float64](5)
	for _, v := range []float64{1, 2, 3, 4, 5, 6} {
		r.Push(v)
	}

	assert.Equal(t, []float64{5, 6}, r.Tail(2))
	assert.Equal(t, []float64{2, 3, 4, 5, 6}, r.Tail(10))
}

func TestRing_Reset(t *testing.T) {
	r := NewRing[int](4)
	r.Push(7)
	r.Push(8)
	r.Reset()

	assert.Equal(t, 0, r.Len())
	_, ok := r.Last()
	assert.False(t, ok)
	assert.Equal(t, 4, r.Cap())
}

func TestRing_EmptyAndZeroCapacity(t *testing.T) {
	r := NewRing[int](0)
	assert.Equal(t, 1, r.Cap())
	r.Push(1)
	r.Push(2)
	assert.Equal(t, []int{2}, r.Values())
}
