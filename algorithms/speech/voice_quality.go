package speech

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-screen/algorithms/common"
	"github.com/RyanBlaney/sonido-screen/algorithms/tonal"
	"github.com/RyanBlaney/sonido-screen/features"
	"github.com/RyanBlaney/sonido-screen/logging"
)

const (
	// shimmerLogEpsilon keeps the dB ratio finite when an amplitude is zero
	shimmerLogEpsilon = 1e-8
	// harmonicityFloor bounds the harmonic and noise terms of NHR/HNR
	harmonicityFloor = 1e-6
)

// Perturbation quotient window sizes
const (
	rapWindow   = 3
	ppq5Window  = 5
	apq3Window  = 3
	apq5Window  = 5
	apq11Window = 11
)

// VoiceQualityAnalyzer derives the perturbation and harmonicity feature
// vector from the accepted frames of a pitch track. It is stateless and safe
// for concurrent use.
type VoiceQualityAnalyzer struct {
	logger logging.Logger
}

// VoiceQualityResult groups the computed vector with the track statistics
// it was derived from.
type VoiceQualityResult struct {
	Features        features.Vector `json:"features"`
	NumPeriods      int             `json:"num_periods"`      // Accepted frames used
	MeanF0          float64         `json:"mean_f0"`          // Mean fundamental frequency (Hz)
	MeanAmplitude   float64         `json:"mean_amplitude"`   // Mean frame RMS
	MeanCorrelation float64         `json:"mean_correlation"` // Mean best-lag correlation
}

// NewVoiceQualityAnalyzer creates a new voice quality analyzer
func NewVoiceQualityAnalyzer() *VoiceQualityAnalyzer {
	return &VoiceQualityAnalyzer{
		logger: logging.WithFields(logging.Fields{
			"component": "voice_quality_analyzer",
		}),
	}
}

// Analyze computes the feature vector from a pitch track. The track must hold
// at least one accepted frame with parallel period, amplitude and
// correlation sequences.
func (vqa *VoiceQualityAnalyzer) Analyze(track *tonal.PitchTrack) (*VoiceQualityResult, error) {
	if track == nil || track.Len() == 0 {
		return nil, fmt.Errorf("voice quality: empty pitch track")
	}
	n := track.Len()
	if len(track.Pitches) != n || len(track.Amplitudes) != n || len(track.Correlations) != n {
		return nil, fmt.Errorf("voice quality: pitch track sequences differ in length (%d periods, %d pitches, %d amplitudes, %d correlations)",
			n, len(track.Pitches), len(track.Amplitudes), len(track.Correlations))
	}

	vector := Compute(track.Periods, track.Amplitudes, track.Correlations)
	result := &VoiceQualityResult{
		Features:        vector,
		NumPeriods:      n,
		MeanF0:          common.Mean(track.Pitches),
		MeanAmplitude:   common.Mean(track.Amplitudes),
		MeanCorrelation: vector[features.MeanAutocorrHarmonicity],
	}

	vqa.logger.Debug("Computed voice quality features", logging.Fields{
		"periods":       n,
		"mean_f0":       result.MeanF0,
		"local_jitter":  vector[features.LocalJitter],
		"local_shimmer": vector[features.LocalShimmer],
		"hnr":           vector[features.HarmonicsToNoiseRatio],
	})

	return result, nil
}

// Compute derives the ordered feature vector from per-frame periods,
// amplitudes and correlations. It is a pure function of its inputs.
func Compute(periods, amplitudes, correlations []float64) features.Vector {
	var v features.Vector

	meanPeriod := common.Mean(periods)
	v[features.MeanPeriod] = meanPeriod
	v[features.StdDevPeriod] = common.StandardDeviation(periods)

	absJitter := common.MeanAbsoluteDifference(periods)
	v[features.AbsoluteJitter] = absJitter
	v[features.LocalJitter] = percentOf(absJitter, meanPeriod)
	v[features.RAPJitter] = perturbationQuotient(periods, rapWindow, meanPeriod)
	v[features.PPQ5Jitter] = perturbationQuotient(periods, ppq5Window, meanPeriod)
	v[features.DDPJitter] = 3 * v[features.RAPJitter]

	meanAmplitude := common.Mean(amplitudes)
	v[features.LocalShimmer] = percentOf(common.MeanAbsoluteDifference(amplitudes), meanAmplitude)
	v[features.LocalShimmerDB] = shimmerDB(amplitudes)
	v[features.APQ3Shimmer] = perturbationQuotient(amplitudes, apq3Window, meanAmplitude)
	v[features.APQ5Shimmer] = perturbationQuotient(amplitudes, apq5Window, meanAmplitude)
	v[features.APQ11Shimmer] = perturbationQuotient(amplitudes, apq11Window, meanAmplitude)
	v[features.DDAShimmer] = 3 * v[features.APQ3Shimmer]

	meanCorrelation := common.Mean(correlations)
	nhr := noiseToHarmonics(meanCorrelation)
	v[features.MeanAutocorrHarmonicity] = meanCorrelation
	v[features.NoiseToHarmonicsRatio] = nhr
	v[features.HarmonicsToNoiseRatio] = 1 / math.Max(nhr, harmonicityFloor)

	return v
}

// percentOf returns value/reference*100, or 0 for a zero reference
func percentOf(value, reference float64) float64 {
	if reference == 0 {
		return 0.0
	}
	return value / reference * 100
}

// perturbationQuotient averages |x[i] - mean(window around i)| over every
// centered window and expresses it relative to reference, in percent.
func perturbationQuotient(data []float64, windowSize int, reference float64) float64 {
	if len(data) < windowSize {
		return 0.0
	}
	return percentOf(common.MeanCenteredDeviation(data, windowSize), reference)
}

// shimmerDB is the mean absolute successive amplitude ratio in decibels
func shimmerDB(amplitudes []float64) float64 {
	if len(amplitudes) < 2 {
		return 0.0
	}

	sum := 0.0
	for i := range len(amplitudes) - 1 {
		ratio := (amplitudes[i+1] + shimmerLogEpsilon) / (amplitudes[i] + shimmerLogEpsilon)
		sum += math.Abs(20 * math.Log10(ratio))
	}
	return sum / float64(len(amplitudes)-1)
}

// noiseToHarmonics treats the mean correlation as the harmonic fraction of
// the frame energy and the remainder as noise.
func noiseToHarmonics(meanCorrelation float64) float64 {
	harmonic := common.Clamp(meanCorrelation, harmonicityFloor, 1.0)
	noise := math.Max(1-harmonic, harmonicityFloor)
	return noise / harmonic
}
