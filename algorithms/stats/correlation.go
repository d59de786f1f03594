package stats

import (
	"fmt"
	"math"

	"github.com/mjibson/go-dsp/fft"

	"github.com/RyanBlaney/sonido-screen/algorithms/common"
)

// CorrelationMethod represents different computational approaches
type CorrelationMethod int

const (
	// Direct time-domain calculation, one dot product per lag
	TimeDomain CorrelationMethod = iota

	// FFT-based frequency domain (Wiener-Khinchin), zero padded so the
	// circular correlation equals the linear one over the requested lags
	FrequencyDomain
)

// ParseCorrelationMethod maps "direct"/"time" and "fft"/"frequency" to a method.
func ParseCorrelationMethod(name string) (CorrelationMethod, error) {
	switch name {
	case "direct", "time", "time_domain":
		return TimeDomain, nil
	case "", "fft", "frequency", "frequency_domain":
		return FrequencyDomain, nil
	default:
		return TimeDomain, fmt.Errorf("unknown correlation method %q", name)
	}
}

func (m CorrelationMethod) String() string {
	switch m {
	case TimeDomain:
		return "direct"
	case FrequencyDomain:
		return "fft"
	default:
		return "unknown"
	}
}

// MarshalText encodes the method name
func (m CorrelationMethod) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a method name accepted by ParseCorrelationMethod
func (m *CorrelationMethod) UnmarshalText(text []byte) error {
	parsed, err := ParseCorrelationMethod(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// LagCorrelation holds an energy-normalized autocorrelation restricted to a
// lag range.
type LagCorrelation struct {
	MinLag       int       `json:"min_lag"`
	MaxLag       int       `json:"max_lag"`
	Correlations []float64 `json:"correlations"` // Correlations[i] is lag MinLag+i
	Energy       float64   `json:"energy"`       // Lag-zero autocorrelation

	BestLag         int     `json:"best_lag"`
	BestCorrelation float64 `json:"best_correlation"`
}

// AutoCorrelation computes energy-normalized autocorrelation of a frame
//
// References:
// - Rabiner, L.R. (1977). "On the use of autocorrelation analysis for pitch detection"
// - Boersma, P. (1993). "Accurate short-term analysis of the fundamental
//   frequency and the harmonics-to-noise ratio of a sampled sound"
//
// For lag τ the normalized value is r(τ)/r(0) where
// r(τ) = Σ x[i]·x[i+τ] over the overlap of the frame with itself.
type AutoCorrelation struct {
	method CorrelationMethod
}

// NewAutoCorrelation creates a new auto-correlation calculator
func NewAutoCorrelation(method CorrelationMethod) *AutoCorrelation {
	return &AutoCorrelation{method: method}
}

// Method returns the configured computation method
func (ac *AutoCorrelation) Method() CorrelationMethod {
	return ac.method
}

// ComputeRange returns the normalized autocorrelation of frame for every lag
// in [minLag, maxLag]. maxLag is clipped to len(frame)-1. The best lag is
// the first one holding the maximum correlation.
func (ac *AutoCorrelation) ComputeRange(frame []float64, minLag, maxLag int) (*LagCorrelation, error) {
	if minLag < 1 {
		return nil, fmt.Errorf("min lag must be positive, got %d", minLag)
	}
	if maxLag > len(frame)-1 {
		maxLag = len(frame) - 1
	}
	if maxLag < minLag {
		return nil, fmt.Errorf("empty lag range [%d, %d] for frame of %d samples", minLag, maxLag, len(frame))
	}

	energy := common.Energy(frame)
	result := &LagCorrelation{
		MinLag:          minLag,
		MaxLag:          maxLag,
		Correlations:    make([]float64, maxLag-minLag+1),
		Energy:          energy,
		BestLag:         minLag,
		BestCorrelation: math.Inf(-1),
	}
	if energy == 0 {
		result.BestCorrelation = 0
		return result, nil
	}

	var raw []float64
	switch ac.method {
	case FrequencyDomain:
		raw = autocorrelationFFT(frame, maxLag)
	default:
		raw = autocorrelationDirect(frame, minLag, maxLag)
	}

	for lag := minLag; lag <= maxLag; lag++ {
		corr := raw[lag] / energy
		result.Correlations[lag-minLag] = corr
		if corr > result.BestCorrelation {
			result.BestCorrelation = corr
			result.BestLag = lag
		}
	}

	return result, nil
}

// autocorrelationDirect returns raw r(τ) indexed by lag; entries below
// minLag are left at zero.
func autocorrelationDirect(frame []float64, minLag, maxLag int) []float64 {
	raw := make([]float64, maxLag+1)
	n := len(frame)
	for lag := minLag; lag <= maxLag; lag++ {
		sum := 0.0
		for i := 0; i < n-lag; i++ {
			sum += frame[i] * frame[i+lag]
		}
		raw[lag] = sum
	}
	return raw
}

// autocorrelationFFT returns raw r(τ) for τ in [0, maxLag] through the power
// spectrum. Padding to at least len(frame)+maxLag keeps the wrap-around
// terms out of the requested lags.
func autocorrelationFFT(frame []float64, maxLag int) []float64 {
	size := common.NextPowerOfTwo(len(frame) + maxLag + 1)
	padded := make([]float64, size)
	copy(padded, frame)

	spectrum := fft.FFTReal(padded)
	for i, c := range spectrum {
		re, im := real(c), imag(c)
		spectrum[i] = complex(re*re+im*im, 0)
	}
	inverse := fft.IFFT(spectrum)

	raw := make([]float64, maxLag+1)
	for lag := range raw {
		raw[lag] = real(inverse[lag])
	}
	return raw
}
