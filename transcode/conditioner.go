package transcode

import (
	"time"

	"github.com/RyanBlaney/sonido-screen/algorithms/temporal"
	"github.com/RyanBlaney/sonido-screen/logging"
)

// ConditionerConfig holds signal conditioning thresholds
type ConditionerConfig struct {
	SilenceThreshold float64       `json:"silence_threshold" yaml:"silence_threshold"` // Full-scale amplitude
	MaxDuration      time.Duration `json:"max_duration" yaml:"max_duration"`           // 0 disables the cap
}

// DefaultConditionerConfig returns the conditioning used for screening
// recordings.
func DefaultConditionerConfig() ConditionerConfig {
	return ConditionerConfig{
		SilenceThreshold: 0.01,
		MaxDuration:      15 * time.Second,
	}
}

// Conditioner reduces a decoded waveform to the trimmed, length-capped mono
// signal the pitch analysis expects. It never fails and never grows the
// signal.
type Conditioner struct {
	config  ConditionerConfig
	silence *temporal.SilenceDetection
	logger  logging.Logger
}

// NewConditioner creates a conditioner
func NewConditioner(config ConditionerConfig) *Conditioner {
	return &Conditioner{
		config:  config,
		silence: temporal.NewSilenceDetection(),
		logger: logging.WithFields(logging.Fields{
			"component": "signal_conditioner",
		}),
	}
}

// Condition mixes down, trims silent edges and caps the duration. The input
// is never modified and the result never aliases it.
func (c *Conditioner) Condition(w *Waveform) *Waveform {
	mono := Mixdown(w.Channels)
	trimmed := c.TrimSilence(mono)
	capped := CapDuration(trimmed, w.SampleRate, c.config.MaxDuration)

	c.logger.Debug("Conditioned waveform", logging.Fields{
		"channels":       len(w.Channels),
		"input_samples":  len(mono),
		"trimmed":        len(mono) - len(trimmed),
		"output_samples": len(capped),
		"silence_ratio":  c.silence.ComputeSilenceRatio(capped, w.SampleRate, c.config.SilenceThreshold),
	})

	return NewMonoWaveform(capped, w.SampleRate)
}

// TrimSilence drops leading and trailing samples below the silence
// threshold. An all-silent signal is returned unchanged (as a copy).
func (c *Conditioner) TrimSilence(samples []float64) []float64 {
	return c.silence.TrimEdges(samples, c.config.SilenceThreshold)
}

// Mixdown averages channels sample by sample into a new mono slice. A single
// channel is copied. Channels of unequal length are cut to the shortest.
func Mixdown(channels [][]float64) []float64 {
	if len(channels) == 0 {
		return []float64{}
	}

	n := len(channels[0])
	for _, ch := range channels[1:] {
		n = min(n, len(ch))
	}

	out := make([]float64, n)
	if len(channels) == 1 {
		copy(out, channels[0][:n])
		return out
	}

	scale := 1.0 / float64(len(channels))
	for i := range n {
		sum := 0.0
		for _, ch := range channels {
			sum += ch[i]
		}
		out[i] = sum * scale
	}
	return out
}

// CapDuration truncates samples to at most maxDuration at sampleRate. The
// returned slice shares storage with samples.
func CapDuration(samples []float64, sampleRate int, maxDuration time.Duration) []float64 {
	if maxDuration <= 0 || sampleRate <= 0 {
		return samples
	}

	maxSamples := int(maxDuration.Seconds() * float64(sampleRate))
	if len(samples) <= maxSamples {
		return samples
	}
	return samples[:maxSamples]
}
