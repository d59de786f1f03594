package transcode

import "errors"

var (
	ErrUnsupportedFormat = errors.New("transcode: unsupported audio format")
	ErrInvalidAudio      = errors.New("transcode: invalid audio data")
	ErrEmptyAudio        = errors.New("transcode: no audio samples decoded")
	ErrInputTooLarge     = errors.New("transcode: audio input exceeds size limit")
)
