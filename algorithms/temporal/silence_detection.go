package temporal

import (
	"math"

	"github.com/RyanBlaney/sonido-screen/algorithms/common"
)

// SilenceDetection locates silent regions by amplitude and frame energy
type SilenceDetection struct{}

// NewSilenceDetection creates a new silence detector
func NewSilenceDetection() *SilenceDetection {
	return &SilenceDetection{}
}

// ActiveBounds scans inward from both ends and returns the half-open range
// [start, end) that begins and ends on a sample whose absolute amplitude is
// at or above threshold. ok is false when no sample reaches the threshold.
func (sd *SilenceDetection) ActiveBounds(signal []float64, threshold float64) (start, end int, ok bool) {
	start = 0
	for start < len(signal) && math.Abs(signal[start]) < threshold {
		start++
	}

	end = len(signal)
	for end > start && math.Abs(signal[end-1]) < threshold {
		end--
	}

	if start >= end {
		return 0, len(signal), false
	}
	return start, end, true
}

// TrimEdges drops leading and trailing samples below threshold. The result
// is a copy; when the whole signal is below threshold a copy of the input is
// returned unchanged.
func (sd *SilenceDetection) TrimEdges(signal []float64, threshold float64) []float64 {
	start, end, ok := sd.ActiveBounds(signal, threshold)
	if !ok {
		start, end = 0, len(signal)
	}

	out := make([]float64, end-start)
	copy(out, signal[start:end])
	return out
}

// ComputeSilenceRatio returns the fraction of 25ms frames (50% overlap)
// whose RMS is below energyThreshold.
func (sd *SilenceDetection) ComputeSilenceRatio(signal []float64, sampleRate int, energyThreshold float64) float64 {
	frameSize := int(0.025 * float64(sampleRate))
	if frameSize < 1 || len(signal) < frameSize {
		return 0.0
	}
	hopSize := max(frameSize/2, 1)

	frames := 0
	silentFrames := 0
	for start := 0; start+frameSize <= len(signal); start += hopSize {
		frames++
		if common.RMS(signal[start:start+frameSize]) < energyThreshold {
			silentFrames++
		}
	}

	return float64(silentFrames) / float64(frames)
}
