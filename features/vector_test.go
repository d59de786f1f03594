package features

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNames_FixedOrder(t *testing.T) {
	t.Parallel()

	got := Names()
	require.Len(t, got, 16)
	assert.Equal(t, "meanPeriodPulses", got[0])
	assert.Equal(t, "ddpJitter", got[DDPJitter])
	assert.Equal(t, "ddaShimmer", got[DDAShimmer])
	assert.Equal(t, "meanHarmToNoiseHarmonicity", got[15])

	got[0] = "mutated"
	assert.Equal(t, "meanPeriodPulses", MeanPeriod.Name())
}

func TestLookup(t *testing.T) {
	t.Parallel()

	f, ok := Lookup("  APQ11Shimmer ")
	require.True(t, ok)
	assert.Equal(t, APQ11Shimmer, f)

	_, ok = Lookup("class")
	assert.False(t, ok)
}

func TestVector_ValueSemantics(t *testing.T) {
	t.Parallel()

	var v Vector
	v[LocalJitter] = 1.5
	copied := v
	copied[LocalJitter] = 9

	assert.Equal(t, 1.5, v.Get(LocalJitter))
	s := v.Slice()
	s[0] = 42
	assert.Equal(t, 0.0, v[0])
}

func TestVector_JSON(t *testing.T) {
	t.Parallel()

	var v Vector
	v[HarmonicsToNoiseRatio] = 12.5
	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"meanHarmToNoiseHarmonicity":12.5`)

	var back Vector
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, v, back)

	arr := make([]float64, Count)
	arr[1] = 3
	data, _ = json.Marshal(arr)
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, 3.0, back[StdDevPeriod])

	assert.Error(t, json.Unmarshal([]byte(`{"bogus":1}`), &back))
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &back))
}

func TestVector_IsFinite(t *testing.T) {
	t.Parallel()

	var v Vector
	assert.True(t, v.IsFinite())
	v[3] = math.NaN()
	assert.False(t, v.IsFinite())
}

func TestLabel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Affected, LabelFromScore(0.5, 0.5))
	assert.Equal(t, Healthy, LabelFromScore(0.49, 0.5))

	data, err := json.Marshal(map[string]Label{"l": Affected})
	require.NoError(t, err)
	assert.JSONEq(t, `{"l":"affected"}`, string(data))

	var l Label
	require.NoError(t, l.UnmarshalText([]byte("Healthy")))
	assert.Equal(t, Healthy, l)
	assert.Error(t, l.UnmarshalText([]byte("maybe")))
}
