// Package features defines the fixed, ordered acoustic feature vector shared
// by feature extraction, the reference dataset and the classifier.
package features

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Feature indexes into a Vector. The order matches the reference corpus
// columns and must never change.
type Feature int

const (
	MeanPeriod Feature = iota
	StdDevPeriod
	LocalJitter
	AbsoluteJitter
	RAPJitter
	PPQ5Jitter
	DDPJitter
	LocalShimmer
	LocalShimmerDB
	APQ3Shimmer
	APQ5Shimmer
	APQ11Shimmer
	DDAShimmer
	MeanAutocorrHarmonicity
	NoiseToHarmonicsRatio
	HarmonicsToNoiseRatio

	// Count is the vector dimension
	Count int = iota
)

var names = [Count]string{
	"meanPeriodPulses",
	"stdDevPeriodPulses",
	"locPctJitter",
	"locAbsJitter",
	"rapJitter",
	"ppq5Jitter",
	"ddpJitter",
	"locShimmer",
	"locDbShimmer",
	"apq3Shimmer",
	"apq5Shimmer",
	"apq11Shimmer",
	"ddaShimmer",
	"meanAutoCorrHarmonicity",
	"meanNoiseToHarmHarmonicity",
	"meanHarmToNoiseHarmonicity",
}

// Name returns the corpus column name of the feature
func (f Feature) Name() string {
	if f < 0 || int(f) >= Count {
		return fmt.Sprintf("feature(%d)", int(f))
	}
	return names[f]
}

func (f Feature) String() string {
	return f.Name()
}

// Names returns the ordered column names of all features.
func Names() []string {
	out := make([]string, Count)
	copy(out, names[:])
	return out
}

// Lookup finds a feature by its column name, ignoring case and surrounding space.
func Lookup(name string) (Feature, bool) {
	name = strings.TrimSpace(name)
	for i, n := range names {
		if strings.EqualFold(n, name) {
			return Feature(i), true
		}
	}
	return 0, false
}

// Vector is the fixed-order feature vector. It is a value type: copies never
// share storage.
type Vector [Count]float64

// Get returns the value of feature f
func (v Vector) Get(f Feature) float64 {
	return v[f]
}

// Slice returns the values as a newly allocated slice
func (v Vector) Slice() []float64 {
	out := make([]float64, Count)
	copy(out, v[:])
	return out
}

// FromSlice builds a Vector from exactly Count values
func FromSlice(values []float64) (Vector, error) {
	var v Vector
	if len(values) != Count {
		return v, fmt.Errorf("features: got %d values, want %d", len(values), Count)
	}
	copy(v[:], values)
	return v, nil
}

// IsFinite reports whether every value is a finite number
func (v Vector) IsFinite() bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// Map returns the vector keyed by column name
func (v Vector) Map() map[string]float64 {
	out := make(map[string]float64, Count)
	for i, x := range v {
		out[names[i]] = x
	}
	return out
}

// MarshalJSON encodes the vector as an object keyed by column name
func (v Vector) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Map())
}

// UnmarshalJSON accepts either an object keyed by column name or an array
// of Count numbers. Unknown keys are rejected.
func (v *Vector) UnmarshalJSON(data []byte) error {
	var values []float64
	if err := json.Unmarshal(data, &values); err == nil {
		out, err := FromSlice(values)
		if err != nil {
			return err
		}
		*v = out
		return nil
	}

	var byName map[string]float64
	if err := json.Unmarshal(data, &byName); err != nil {
		return fmt.Errorf("features: decode vector: %w", err)
	}
	var out Vector
	for name, x := range byName {
		f, ok := Lookup(name)
		if !ok {
			return fmt.Errorf("features: unknown feature %q", name)
		}
		out[f] = x
	}
	*v = out
	return nil
}
