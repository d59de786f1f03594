package tonal

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientVoicedSignal means too few frames carried a reliable
	// pitch: the recording is too short, too quiet or too noisy.
	ErrInsufficientVoicedSignal = errors.New("insufficient voiced signal")

	// ErrInvalidSampleRate means the sample rate cannot cover the pitch search range.
	ErrInvalidSampleRate = errors.New("invalid sample rate")
)

// InsufficientVoicedError reports how many frames were accepted out of how
// many were analyzed. It unwraps to ErrInsufficientVoicedSignal.
type InsufficientVoicedError struct {
	Accepted int
	Required int
	Frames   int
}

func (e *InsufficientVoicedError) Error() string {
	return fmt.Sprintf("%s: %d of %d frames voiced, need at least %d",
		ErrInsufficientVoicedSignal, e.Accepted, e.Frames, e.Required)
}

func (e *InsufficientVoicedError) Unwrap() error {
	return ErrInsufficientVoicedSignal
}
