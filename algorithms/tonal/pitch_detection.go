package tonal

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-screen/algorithms/common"
	"github.com/RyanBlaney/sonido-screen/algorithms/filters"
	"github.com/RyanBlaney/sonido-screen/algorithms/stats"
	"github.com/RyanBlaney/sonido-screen/algorithms/windowing"
	"github.com/RyanBlaney/sonido-screen/logging"
)

// PitchPeriodParams contains parameters for frame-wise pitch period analysis
type PitchPeriodParams struct {
	FrameSize int `json:"frame_size" yaml:"frame_size"`
	HopSize   int `json:"hop_size" yaml:"hop_size"`

	// Lag search range, expressed as frequencies (Hz)
	MinSearchFreq float64 `json:"min_search_freq" yaml:"min_search_freq"`
	MaxSearchFreq float64 `json:"max_search_freq" yaml:"max_search_freq"`

	// Accepted pitch range (Hz); the best lag must map inside it
	MinValidFreq float64 `json:"min_valid_freq" yaml:"min_valid_freq"`
	MaxValidFreq float64 `json:"max_valid_freq" yaml:"max_valid_freq"`

	EnergyThreshold      float64 `json:"energy_threshold" yaml:"energy_threshold"`           // Frames at or below are unvoiced
	CorrelationThreshold float64 `json:"correlation_threshold" yaml:"correlation_threshold"` // Minimum normalized peak
	MinVoicedFrames      int     `json:"min_voiced_frames" yaml:"min_voiced_frames"`         // Below this the analysis fails

	Method stats.CorrelationMethod `json:"method" yaml:"method"`
}

// DefaultPitchPeriodParams returns the analysis parameters used for
// sustained-vowel screening recordings.
func DefaultPitchPeriodParams() PitchPeriodParams {
	return PitchPeriodParams{
		FrameSize:            2048,
		HopSize:              512,
		MinSearchFreq:        60.0,
		MaxSearchFreq:        400.0,
		MinValidFreq:         50.0,
		MaxValidFreq:         500.0,
		EnergyThreshold:      1e-9,
		CorrelationThreshold: 0.3,
		MinVoicedFrames:      5,
		Method:               stats.FrequencyDomain,
	}
}

// PitchTrack holds the per-frame measurements of every accepted (voiced)
// frame, in temporal order. The four sequences are parallel.
type PitchTrack struct {
	Pitches      []float64 `json:"pitches"`      // Fundamental frequency (Hz)
	Periods      []float64 `json:"periods"`      // 1/f0 (seconds)
	Amplitudes   []float64 `json:"amplitudes"`   // RMS of the conditioned frame
	Correlations []float64 `json:"correlations"` // Normalized autocorrelation peak

	SampleRate     int `json:"sample_rate"`
	FramesAnalyzed int `json:"frames_analyzed"`
	FramesAccepted int `json:"frames_accepted"`
}

// Len returns the number of accepted frames
func (pt *PitchTrack) Len() int {
	return len(pt.Periods)
}

// PitchPeriodAnalyzer estimates a fundamental period per frame with
// energy-normalized autocorrelation and discards unvoiced frames.
//
// Each frame is Hann windowed, mean-removed and checked for energy. The lag
// with the highest normalized autocorrelation inside the search range is the
// period candidate; it is kept only when the peak is strong enough and the
// implied frequency lies in the accepted range.
type PitchPeriodAnalyzer struct {
	params   PitchPeriodParams
	window   *windowing.Hann
	autocorr *stats.AutoCorrelation
	logger   logging.Logger
}

// NewPitchPeriodAnalyzer creates an analyzer for the given parameters
func NewPitchPeriodAnalyzer(params PitchPeriodParams) *PitchPeriodAnalyzer {
	return &PitchPeriodAnalyzer{
		params:   params,
		window:   windowing.NewHann(params.FrameSize, true),
		autocorr: stats.NewAutoCorrelation(params.Method),
		logger: logging.WithFields(logging.Fields{
			"component": "pitch_period_analyzer",
		}),
	}
}

// Params returns the analyzer parameters
func (a *PitchPeriodAnalyzer) Params() PitchPeriodParams {
	return a.params
}

// lagRange converts the search frequencies to integer lags at sampleRate
func (a *PitchPeriodAnalyzer) lagRange(sampleRate int) (int, int, error) {
	if sampleRate <= 0 {
		return 0, 0, fmt.Errorf("%w: %d", ErrInvalidSampleRate, sampleRate)
	}

	minLag := int(float64(sampleRate) / a.params.MaxSearchFreq)
	maxLag := int(float64(sampleRate) / a.params.MinSearchFreq)
	if minLag < 1 || minLag > a.params.FrameSize-1 {
		return 0, 0, fmt.Errorf("%w: %d Hz cannot resolve %.0f-%.0f Hz in %d-sample frames",
			ErrInvalidSampleRate, sampleRate, a.params.MinSearchFreq, a.params.MaxSearchFreq, a.params.FrameSize)
	}

	return minLag, maxLag, nil
}

// Analyze slides over signal frame by frame and returns the voiced frames.
// It fails with *InsufficientVoicedError when fewer than MinVoicedFrames
// frames are accepted.
func (a *PitchPeriodAnalyzer) Analyze(signal []float64, sampleRate int) (*PitchTrack, error) {
	minLag, maxLag, err := a.lagRange(sampleRate)
	if err != nil {
		return nil, err
	}

	frameSize := a.params.FrameSize
	hopSize := a.params.HopSize
	track := &PitchTrack{SampleRate: sampleRate}
	buf := make([]float64, frameSize)

	for start := 0; start+frameSize <= len(signal); start += hopSize {
		track.FramesAnalyzed++

		if err := a.window.ApplyTo(buf, signal[start:start+frameSize]); err != nil {
			return nil, err
		}
		filters.RemoveMean(buf)

		est, ok, err := a.analyzeFrame(buf, sampleRate, minLag, maxLag)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		track.Pitches = append(track.Pitches, est.frequency)
		track.Periods = append(track.Periods, 1.0/est.frequency)
		track.Amplitudes = append(track.Amplitudes, est.rms)
		track.Correlations = append(track.Correlations, est.correlation)
	}
	track.FramesAccepted = len(track.Periods)

	a.logger.Debug("Pitch period analysis complete", logging.Fields{
		"sample_rate":     sampleRate,
		"frames_analyzed": track.FramesAnalyzed,
		"frames_accepted": track.FramesAccepted,
		"method":          a.autocorr.Method().String(),
	})

	if track.FramesAccepted < a.params.MinVoicedFrames {
		return nil, &InsufficientVoicedError{
			Accepted: track.FramesAccepted,
			Required: a.params.MinVoicedFrames,
			Frames:   track.FramesAnalyzed,
		}
	}

	return track, nil
}

type frameEstimate struct {
	frequency   float64
	rms         float64
	correlation float64
}

// analyzeFrame estimates the pitch of one conditioned frame. ok is false for
// unvoiced or unreliable frames.
func (a *PitchPeriodAnalyzer) analyzeFrame(frame []float64, sampleRate, minLag, maxLag int) (frameEstimate, bool, error) {
	if common.Energy(frame) <= a.params.EnergyThreshold {
		return frameEstimate{}, false, nil
	}

	lc, err := a.autocorr.ComputeRange(frame, minLag, maxLag)
	if err != nil {
		return frameEstimate{}, false, err
	}
	if lc.BestCorrelation < a.params.CorrelationThreshold {
		return frameEstimate{}, false, nil
	}

	frequency := float64(sampleRate) / float64(lc.BestLag)
	if frequency < a.params.MinValidFreq || frequency > a.params.MaxValidFreq {
		return frameEstimate{}, false, nil
	}

	return frameEstimate{
		frequency:   frequency,
		rms:         math.Sqrt(lc.Energy / float64(len(frame))),
		correlation: lc.BestCorrelation,
	}, true, nil
}
