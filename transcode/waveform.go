package transcode

import (
	"fmt"
	"time"
)

// Waveform is decoded PCM audio, one float slice per channel with samples
// in [-1, 1] full scale.
type Waveform struct {
	SampleRate int         `json:"sample_rate"`
	Channels   [][]float64 `json:"-"`
}

// NewMonoWaveform wraps a single channel. The samples are not copied.
func NewMonoWaveform(samples []float64, sampleRate int) *Waveform {
	return &Waveform{
		SampleRate: sampleRate,
		Channels:   [][]float64{samples},
	}
}

// NumChannels returns the channel count
func (w *Waveform) NumChannels() int {
	return len(w.Channels)
}

// NumSamples returns the per-channel sample count (the shortest channel)
func (w *Waveform) NumSamples() int {
	if len(w.Channels) == 0 {
		return 0
	}
	n := len(w.Channels[0])
	for _, ch := range w.Channels[1:] {
		n = min(n, len(ch))
	}
	return n
}

// Duration returns the playing time at SampleRate
func (w *Waveform) Duration() time.Duration {
	if w.SampleRate <= 0 {
		return 0
	}
	return time.Duration(w.NumSamples()) * time.Second / time.Duration(w.SampleRate)
}

// Validate checks the waveform can be analyzed
func (w *Waveform) Validate() error {
	if w == nil {
		return fmt.Errorf("%w: nil waveform", ErrInvalidAudio)
	}
	if w.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrInvalidAudio, w.SampleRate)
	}
	if len(w.Channels) == 0 {
		return fmt.Errorf("%w: no channels", ErrInvalidAudio)
	}
	return nil
}

// deinterleave splits frame-interleaved samples into channels. A trailing
// partial frame is dropped.
func deinterleave(samples []float64, channels int) [][]float64 {
	if channels < 1 {
		channels = 1
	}
	frames := len(samples) / channels
	out := make([][]float64, channels)
	for c := range channels {
		out[c] = make([]float64, frames)
	}
	for i := range frames {
		for c := range channels {
			out[c][i] = samples[i*channels+c]
		}
	}
	return out
}
