package classifier

import (
	"encoding/json"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-screen/dataset"
	"github.com/RyanBlaney/sonido-screen/features"
)

// shifted returns base+scale*d for every feature, with base_j = j+1 and
// d_j = 0.1*(j+1).
func shifted(scale float64) features.Vector {
	var v features.Vector
	for j := range features.Count {
		base := float64(j + 1)
		v[j] = base + scale*0.1*base
	}
	return v
}

// fourSampleCorpus holds two Affected samples above the per-feature mean and
// two Healthy samples mirrored below it.
func fourSampleCorpus(t *testing.T) *dataset.Dataset {
	t.Helper()

	ds, err := dataset.New([]dataset.Sample{
		{Features: shifted(1.0), Label: features.Affected},
		{Features: shifted(1.2), Label: features.Affected},
		{Features: shifted(-1.0), Label: features.Healthy},
		{Features: shifted(-1.2), Label: features.Healthy},
	}, 1e-6)
	require.NoError(t, err)
	return ds
}

func TestPredict_TieGoesToAffected(t *testing.T) {
	t.Parallel()

	knn := NewKNN(fourSampleCorpus(t), DefaultOptions())

	p, err := knn.Predict(shifted(0), 2)
	require.NoError(t, err)

	assert.Equal(t, 2, p.EffectiveK)
	assert.Equal(t, 0.5, p.RawProbability)
	assert.Equal(t, 0.5, p.Probability)
	assert.Equal(t, features.Affected, p.Label)
	assert.False(t, p.ScaleMismatch)
	assert.InDelta(t, 3.136, p.MeanDistance, 1e-3)

	labels := []features.Label{p.Neighbors[0].Label, p.Neighbors[1].Label}
	assert.ElementsMatch(t, []features.Label{features.Affected, features.Healthy}, labels)
}

func TestPredict_MajorityAndOrdering(t *testing.T) {
	t.Parallel()

	knn := NewKNN(fourSampleCorpus(t), DefaultOptions())

	p, err := knn.Predict(shifted(1.0), 3)
	require.NoError(t, err)

	assert.Equal(t, 3, p.EffectiveK)
	assert.InDelta(t, 2.0/3.0, p.Probability, 1e-12)
	assert.Equal(t, features.Affected, p.Label)

	require.Len(t, p.Neighbors, 3)
	assert.Equal(t, 0, p.Neighbors[0].Index)
	assert.InDelta(t, 0, p.Neighbors[0].Distance, 1e-9)
	assert.Equal(t, 1, p.Neighbors[1].Index)
	assert.Equal(t, 2, p.Neighbors[2].Index)
	for i := 1; i < len(p.Neighbors); i++ {
		assert.LessOrEqual(t, p.Neighbors[i-1].Distance, p.Neighbors[i].Distance)
	}

	p, err = knn.Predict(shifted(-1.1), 3)
	require.NoError(t, err)
	assert.Equal(t, features.Healthy, p.Label)
	assert.InDelta(t, 1.0/3.0, p.Probability, 1e-12)
}

func TestPredict_ScaleMismatchDamping(t *testing.T) {
	t.Parallel()

	ds := fourSampleCorpus(t)
	far := shifted(20)

	damped, err := NewKNN(ds, DefaultOptions()).Predict(far, 3)
	require.NoError(t, err)

	assert.Greater(t, damped.MeanDistance, 10.0)
	assert.True(t, damped.ScaleMismatch)
	assert.InDelta(t, 2.0/3.0, damped.RawProbability, 1e-12)
	assert.InDelta(t, damped.RawProbability*0.3, damped.Probability, 1e-12)
	assert.LessOrEqual(t, damped.Probability, damped.RawProbability)
	assert.Equal(t, features.Healthy, damped.Label)

	undamped, err := NewKNN(ds, Options{DecisionThreshold: 0.5, Adjuster: NoAdjustment{}}).Predict(far, 3)
	require.NoError(t, err)
	assert.False(t, undamped.ScaleMismatch)
	assert.Equal(t, undamped.RawProbability, undamped.Probability)
	assert.Equal(t, features.Affected, undamped.Label)
}

func TestScaleMismatchDamping_Adjust(t *testing.T) {
	t.Parallel()

	d := DefaultScaleMismatchDamping()

	p, applied := d.Adjust(0.8, 10)
	assert.False(t, applied, "threshold is exclusive")
	assert.Equal(t, 0.8, p)

	p, applied = d.Adjust(0.8, 10.0001)
	assert.True(t, applied)
	assert.InDelta(t, 0.24, p, 1e-12)

	for _, raw := range []float64{0, 0.25, 0.5, 1} {
		adj, _ := d.Adjust(raw, 50)
		assert.LessOrEqual(t, adj, raw)
	}
}

func TestPredict_EffectiveKClamped(t *testing.T) {
	t.Parallel()

	knn := NewKNN(fourSampleCorpus(t), DefaultOptions())

	for _, tc := range []struct{ k, want int }{{1000, 4}, {0, 1}, {-3, 1}, {4, 4}} {
		p, err := knn.Predict(shifted(0.5), tc.k)
		require.NoError(t, err)
		assert.Equal(t, tc.want, p.EffectiveK, "k=%d", tc.k)
		assert.Len(t, p.Neighbors, tc.want)
	}
}

func TestPredict_LargeCorpus(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(7, 11))
	samples := make([]dataset.Sample, 188)
	for i := range samples {
		var v features.Vector
		for j := range v {
			v[j] = rng.NormFloat64()
		}
		label := features.Healthy
		if v[0] > 0 {
			label = features.Affected
		}
		samples[i] = dataset.Sample{Features: v, Label: label}
	}
	ds, err := dataset.New(samples, 1e-6)
	require.NoError(t, err)

	knn := NewKNN(ds, DefaultOptions())
	p, err := knn.Predict(samples[0].Features, 1000)
	require.NoError(t, err)
	assert.Equal(t, 188, p.EffectiveK)

	acc := knn.LeaveOneOutAccuracy(5)
	require.NotNil(t, acc)
	assert.GreaterOrEqual(t, *acc, 0.0)
	assert.LessOrEqual(t, *acc, 1.0)
}

func TestLeaveOneOutAccuracy(t *testing.T) {
	t.Parallel()

	knn := NewKNN(fourSampleCorpus(t), DefaultOptions())

	acc := knn.LeaveOneOutAccuracy(1)
	require.NotNil(t, acc)
	assert.Equal(t, 1.0, *acc)

	// the held-out sample is never its own neighbour
	p := knn.predictNormalized(knn.Dataset().Normalized[0], 1, 0)
	assert.Equal(t, 1, p.Neighbors[0].Index)
	p = knn.predictNormalized(knn.Dataset().Normalized[3], 4, 3)
	assert.Equal(t, 3, p.EffectiveK)
	for _, n := range p.Neighbors {
		assert.NotEqual(t, 3, n.Index)
	}
	assert.Equal(t, 2, p.Neighbors[0].Index)

	single, err := dataset.New([]dataset.Sample{{Features: shifted(0), Label: features.Healthy}}, 1e-6)
	require.NoError(t, err)
	assert.Nil(t, NewKNN(single, DefaultOptions()).LeaveOneOutAccuracy(5))
}

func TestModelNotReady(t *testing.T) {
	t.Parallel()

	_, err := NewKNN(nil, DefaultOptions()).Predict(shifted(0), 5)
	assert.ErrorIs(t, err, ErrModelNotReady)

	var knn *KNN
	_, err = knn.Predict(shifted(0), 5)
	assert.ErrorIs(t, err, ErrModelNotReady)

	_, err = NewKNN(nil, DefaultOptions()).Metadata(5)
	assert.ErrorIs(t, err, ErrModelNotReady)
	assert.Nil(t, NewKNN(nil, DefaultOptions()).LeaveOneOutAccuracy(5))
}

func TestMetadata(t *testing.T) {
	t.Parallel()

	meta, err := NewKNN(fourSampleCorpus(t), DefaultOptions()).Metadata(1)
	require.NoError(t, err)

	assert.Equal(t, 1, meta.K)
	assert.Equal(t, 4, meta.SampleCount)
	assert.Equal(t, 2, meta.AffectedCount)
	assert.Equal(t, 2, meta.HealthyCount)
	assert.Equal(t, features.Names(), meta.FeatureNames)
	require.NotNil(t, meta.Accuracy)
	assert.Equal(t, 1.0, *meta.Accuracy)

	data, err := json.Marshal(meta)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"accuracy":1`)
}

func TestPrediction_JSON(t *testing.T) {
	t.Parallel()

	p, err := NewKNN(fourSampleCorpus(t), DefaultOptions()).Predict(shifted(1), 1)
	require.NoError(t, err)

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"label":"affected"`)
	assert.Contains(t, string(data), `"effective_k":1`)
}
