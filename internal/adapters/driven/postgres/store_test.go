package postgres

import (
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestToFloat64RoundTripsThroughToFloat32(t *testing.T) {
	original := []float32{0.1, -0.5, 1.0}
	widened := toFloat64(original)
	back := toFloat32(pq.Float64Array(widened))

	require := assert.New(t)
	require.Len(back, len(original))
	for i := range original {
		require.InDelta(float64(original[i]), float64(back[i]), 1e-6)
	}
}

func TestToFloat32EmptyReturnsNil(t *testing.T) {
	assert.Nil(t, toFloat32(nil))
	assert.Nil(t, toFloat32(pq.Float64Array{}))
}

func TestToFloat64EmptyReturnsEmptySlice(t *testing.T) {
	out := toFloat64(nil)
	assert.Empty(t, out)
}
