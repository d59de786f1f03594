package windowing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHann_SymmetricEndpoints(t *testing.T) {
	t.Parallel()

	h := NewHann(5, true)
	coeffs := h.GetCoefficients()
	assert.InDelta(t, 0.0, coeffs[0], 1e-12)
	assert.InDelta(t, 1.0, coeffs[2], 1e-12)
	assert.InDelta(t, 0.0, coeffs[4], 1e-12)
	assert.InDelta(t, coeffs[1], coeffs[3], 1e-12)
}

func TestHann_Periodic(t *testing.T) {
	t.Parallel()

	coeffs := NewHann(4, false).GetCoefficients()
	assert.InDelta(t, 0.0, coeffs[0], 1e-12)
	assert.InDelta(t, 1.0, coeffs[2], 1e-12)
	assert.InDelta(t, 0.5, coeffs[3], 1e-12)
}

func TestHann_ApplyTo(t *testing.T) {
	t.Parallel()

	h := NewHann(3, true)
	dst := make([]float64, 3)
	require.NoError(t, h.ApplyTo(dst, []float64{2, 2, 2}))
	assert.InDeltaSlice(t, []float64{0, 2, 0}, dst, 1e-12)

	assert.Error(t, h.ApplyTo(dst, []float64{1, 2}))
	assert.Nil(t, h.Apply([]float64{1}))
}
