package stats

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sineFrame(n int, freq, sampleRate float64) []float64 {
	frame := make([]float64, n)
	for i := range frame {
		frame[i] = math.Sin(2 * math.Pi * freq * float64(i) / sampleRate)
	}
	return frame
}

func TestAutoCorrelation_DirectMatchesFFT(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(1, 2))
	frame := make([]float64, 2048)
	for i := range frame {
		frame[i] = rng.NormFloat64()*0.1 + math.Sin(float64(i)*0.05)
	}

	direct, err := NewAutoCorrelation(TimeDomain).ComputeRange(frame, 110, 735)
	require.NoError(t, err)
	viaFFT, err := NewAutoCorrelation(FrequencyDomain).ComputeRange(frame, 110, 735)
	require.NoError(t, err)

	require.Len(t, viaFFT.Correlations, len(direct.Correlations))
	assert.InDeltaSlice(t, direct.Correlations, viaFFT.Correlations, 1e-9)
	assert.Equal(t, direct.BestLag, viaFFT.BestLag)
}

func TestAutoCorrelation_FindsPeriod(t *testing.T) {
	t.Parallel()

	const sampleRate = 44100.0
	frame := sineFrame(2048, 200, sampleRate)

	for _, method := range []CorrelationMethod{TimeDomain, FrequencyDomain} {
		t.Run(method.String(), func(t *testing.T) {
			res, err := NewAutoCorrelation(method).ComputeRange(frame, 110, 735)
			require.NoError(t, err)
			// 44100/200 = 220.5 samples per cycle
			assert.InDelta(t, 220.5, float64(res.BestLag), 1)
			assert.Greater(t, res.BestCorrelation, 0.8)
			assert.LessOrEqual(t, res.BestCorrelation, 1.0)
		})
	}
}

func TestAutoCorrelation_Edges(t *testing.T) {
	t.Parallel()

	ac := NewAutoCorrelation(TimeDomain)

	_, err := ac.ComputeRange(make([]float64, 10), 0, 5)
	assert.Error(t, err)

	_, err = ac.ComputeRange(make([]float64, 10), 20, 30)
	assert.Error(t, err)

	res, err := ac.ComputeRange(make([]float64, 64), 2, 100)
	require.NoError(t, err)
	assert.Equal(t, 63, res.MaxLag)
	assert.Equal(t, 0.0, res.BestCorrelation)
}

func TestParseCorrelationMethod(t *testing.T) {
	t.Parallel()

	m, err := ParseCorrelationMethod("direct")
	require.NoError(t, err)
	assert.Equal(t, TimeDomain, m)

	m, err = ParseCorrelationMethod("")
	require.NoError(t, err)
	assert.Equal(t, FrequencyDomain, m)

	_, err = ParseCorrelationMethod("yin")
	assert.Error(t, err)
}

func TestEuclideanDistance_Symmetric(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(7, 7))
	for range 50 {
		a := make([]float64, 16)
		b := make([]float64, 16)
		for i := range a {
			a[i] = rng.NormFloat64() * 3
			b[i] = rng.NormFloat64() * 3
		}
		assert.Equal(t, EuclideanDistanceFunc(a, b), EuclideanDistanceFunc(b, a))
		assert.Equal(t, 0.0, EuclideanDistanceFunc(a, a))
	}

	assert.InDelta(t, 5.0, EuclideanDistanceFunc([]float64{0, 0}, []float64{3, 4}), 1e-12)
}

func TestNearestNeighbors(t *testing.T) {
	t.Parallel()

	data := [][]float64{{5}, {1}, {3}, {1}}
	query := []float64{0}

	got := NearestNeighbors(query, data, 3, nil)
	require.Len(t, got, 3)
	// equal distances keep input order
	assert.Equal(t, []int{1, 3, 2}, []int{got[0].Index, got[1].Index, got[2].Index})
	assert.InDelta(t, 5.0/3.0, MeanDistance(got), 1e-12)

	assert.Len(t, NearestNeighbors(query, data, 1000, nil), 4)
	assert.Len(t, NearestNeighbors(query, data, 0, nil), 1)
	assert.Nil(t, NearestNeighbors(query, nil, 3, nil))
	assert.Equal(t, 0.0, MeanDistance(nil))
}
