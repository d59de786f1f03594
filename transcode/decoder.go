package transcode

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"

	"github.com/RyanBlaney/sonido-screen/logging"
)

// Format names an audio container
type Format string

const (
	FormatUnknown Format = ""
	FormatWAV     Format = "wav"
	FormatMP3     Format = "mp3"
	FormatOgg     Format = "ogg"
	FormatAIFF    Format = "aiff"
)

// ParseFormat maps a format name or file extension (with or without the
// dot) to a Format. Unrecognized names give FormatUnknown.
func ParseFormat(name string) Format {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), ".") {
	case "wav", "wave":
		return FormatWAV
	case "mp3", "mpeg":
		return FormatMP3
	case "ogg", "oga", "vorbis":
		return FormatOgg
	case "aif", "aiff", "aifc":
		return FormatAIFF
	default:
		return FormatUnknown
	}
}

// FormatFromPath detects the format from a file extension
func FormatFromPath(path string) Format {
	return ParseFormat(filepath.Ext(path))
}

// DetectFormat sniffs the container from its leading bytes
func DetectFormat(header []byte) Format {
	switch {
	case len(header) >= 12 && string(header[0:4]) == "RIFF" && string(header[8:12]) == "WAVE":
		return FormatWAV
	case len(header) >= 12 && string(header[0:4]) == "FORM" &&
		(string(header[8:12]) == "AIFF" || string(header[8:12]) == "AIFC"):
		return FormatAIFF
	case len(header) >= 4 && string(header[0:4]) == "OggS":
		return FormatOgg
	case len(header) >= 3 && string(header[0:3]) == "ID3":
		return FormatMP3
	case len(header) >= 2 && header[0] == 0xFF && header[1]&0xE0 == 0xE0:
		return FormatMP3
	default:
		return FormatUnknown
	}
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	EnableFFmpeg     bool          `json:"enable_ffmpeg" yaml:"enable_ffmpeg"`           // Fall back to ffmpeg for other formats
	FFmpegPath       string        `json:"ffmpeg_path" yaml:"ffmpeg_path"`               // Path to ffmpeg binary
	FFmpegSampleRate int           `json:"ffmpeg_sample_rate" yaml:"ffmpeg_sample_rate"` // Output rate of the fallback
	Timeout          time.Duration `json:"timeout" yaml:"timeout"`                       // Timeout for ffmpeg operations
	MaxInputBytes    int64         `json:"max_input_bytes" yaml:"max_input_bytes"`       // 0 means unlimited
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		EnableFFmpeg:     true,
		FFmpegPath:       "ffmpeg", // Assume in PATH
		FFmpegSampleRate: 44100,
		Timeout:          30 * time.Second,
		MaxInputBytes:    64 << 20,
	}
}

// Decoder turns encoded audio into a Waveform. WAV, AIFF, MP3 and Ogg
// Vorbis are decoded in process; anything else goes through ffmpeg when
// enabled.
type Decoder struct {
	config *DecoderConfig
	logger logging.Logger
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{
		config: config,
		logger: logging.WithFields(logging.Fields{
			"component": "audio_decoder",
		}),
	}
}

// DecodeFile decodes an audio file, using its extension as the format hint
func (d *Decoder) DecodeFile(ctx context.Context, filename string) (*Waveform, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	return d.Decode(ctx, f, FormatFromPath(filename))
}

// Decode reads r fully and decodes it. An unknown format is sniffed from the
// data.
func (d *Decoder) Decode(ctx context.Context, r io.Reader, format Format) (*Waveform, error) {
	logger := d.logger.WithContext(ctx).WithFields(logging.Fields{
		"function": "Decode",
		"format":   string(format),
	})

	data, err := d.readInput(r)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrEmptyAudio)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if sniffed := DetectFormat(data); sniffed != FormatUnknown {
		if format != FormatUnknown && format != sniffed {
			logger.Warn("Format hint does not match content", logging.Fields{
				"detected": string(sniffed),
			})
		}
		format = sniffed
	}

	logger.Debug("Decoding audio", logging.Fields{
		"data_size": len(data),
		"detected":  string(format),
	})

	var w *Waveform
	switch format {
	case FormatWAV:
		w, err = decodeWAV(bytes.NewReader(data))
	case FormatAIFF:
		w, err = decodeAIFF(bytes.NewReader(data))
	case FormatMP3:
		w, err = decodeMP3(bytes.NewReader(data))
	case FormatOgg:
		w, err = decodeOgg(bytes.NewReader(data))
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(format))
	}

	// Containers the in-process decoders reject (compressed WAV, exotic
	// codecs) get one more chance through ffmpeg.
	if err != nil && d.config.EnableFFmpeg && !errors.Is(err, ErrEmptyAudio) {
		logger.Debug("Falling back to ffmpeg", logging.Fields{
			"reason": err.Error(),
		})
		w, err = d.decodeWithFFmpeg(ctx, data, logger)
	}
	if err != nil {
		return nil, err
	}

	if w.NumSamples() == 0 {
		return nil, ErrEmptyAudio
	}

	logger.Debug("Audio decoded", logging.Fields{
		"sample_rate": w.SampleRate,
		"channels":    w.NumChannels(),
		"duration":    w.Duration().Seconds(),
	})

	return w, nil
}

func (d *Decoder) readInput(r io.Reader) ([]byte, error) {
	if d.config.MaxInputBytes <= 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read audio: %w", err)
		}
		return data, nil
	}

	data, err := io.ReadAll(io.LimitReader(r, d.config.MaxInputBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if int64(len(data)) > d.config.MaxInputBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrInputTooLarge, d.config.MaxInputBytes)
	}
	return data, nil
}

// fullScale returns the magnitude that maps a signed integer sample of the
// given bit depth to 1.0.
func fullScale(bitDepth int) float64 {
	switch bitDepth {
	case 8:
		return 128.0
	case 16:
		return 32768.0
	case 24:
		return 8388608.0
	case 32:
		return 2147483648.0
	default:
		return 32768.0 // Default to 16-bit
	}
}

func decodeWAV(rs io.ReadSeeker) (*Waveform, error) {
	dec := wav.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a PCM WAV file", ErrInvalidAudio)
	}
	if dec.WavAudioFormat != 1 {
		return nil, fmt.Errorf("%w: WAV audio format %d", ErrUnsupportedFormat, dec.WavAudioFormat)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAudio, err)
	}
	if buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, fmt.Errorf("%w: missing WAV format", ErrInvalidAudio)
	}

	bitDepth := int(dec.BitDepth)
	scale := fullScale(bitDepth)
	samples := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		if bitDepth == 8 {
			// 8-bit WAV is unsigned
			v -= 128
		}
		samples[i] = float64(v) / scale
	}

	return &Waveform{
		SampleRate: buf.Format.SampleRate,
		Channels:   deinterleave(samples, buf.Format.NumChannels),
	}, nil
}

func decodeAIFF(rs io.ReadSeeker) (*Waveform, error) {
	dec := aiff.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not an AIFF file", ErrInvalidAudio)
	}
	dec.ReadInfo()

	format := dec.Format()
	if format == nil || format.NumChannels < 1 {
		return nil, fmt.Errorf("%w: unsupported AIFF layout", ErrInvalidAudio)
	}

	scale := fullScale(int(dec.BitDepth))
	chunk := &goaudio.IntBuffer{
		Data:   make([]int, 4096*format.NumChannels),
		Format: format,
	}

	var samples []float64
	for {
		n, err := dec.PCMBuffer(chunk)
		for _, v := range chunk.Data[:n] {
			samples = append(samples, float64(v)/scale)
		}
		if n == 0 || errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidAudio, err)
		}
	}

	return &Waveform{
		SampleRate: format.SampleRate,
		Channels:   deinterleave(samples, format.NumChannels),
	}, nil
}

func decodeMP3(r io.Reader) (*Waveform, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAudio, err)
	}

	// go-mp3 always produces 16-bit little-endian interleaved stereo
	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAudio, err)
	}

	samples := make([]float64, len(pcm)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(pcm[2*i : 2*i+2]))
		samples[i] = float64(v) / 32768.0
	}

	return &Waveform{
		SampleRate: dec.SampleRate(),
		Channels:   deinterleave(samples, 2),
	}, nil
}

func decodeOgg(r io.Reader) (*Waveform, error) {
	data, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAudio, err)
	}
	if format == nil || format.Channels < 1 {
		return nil, fmt.Errorf("%w: missing Vorbis format", ErrInvalidAudio)
	}

	samples := make([]float64, len(data))
	for i, v := range data {
		samples[i] = float64(v)
	}

	return &Waveform{
		SampleRate: format.SampleRate,
		Channels:   deinterleave(samples, format.Channels),
	}, nil
}

// buildFFmpegArgs asks ffmpeg for mono float64 PCM on stdout
func (d *Decoder) buildFFmpegArgs() []string {
	return []string{
		"-v", "error", // Suppress verbose output
		"-i", "pipe:0",
		"-map", "0:a:0?",
		"-vn",         // No video
		"-f", "f64le", // Output raw float64 little-endian
		"-ac", "1",
		"-ar", strconv.Itoa(d.config.FFmpegSampleRate),
		"pipe:1",
	}
}

func (d *Decoder) decodeWithFFmpeg(ctx context.Context, data []byte, logger logging.Logger) (*Waveform, error) {
	if d.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}

	args := d.buildFFmpegArgs()
	cmd := exec.CommandContext(ctx, d.config.FFmpegPath, args...)
	cmd.Stdin = bytes.NewReader(data)

	logger.Debug("Running FFmpeg command", logging.Fields{
		"command": fmt.Sprintf("%s %s", d.config.FFmpegPath, strings.Join(args, " ")),
	})

	startTime := time.Now()
	output, err := cmd.Output()
	if err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			logger.Error(err, "FFmpeg decode failed", logging.Fields{
				"stderr": string(exitError.Stderr),
			})
			return nil, fmt.Errorf("ffmpeg decode failed: %w, stderr: %s", err, string(exitError.Stderr))
		}
		return nil, fmt.Errorf("ffmpeg decode failed: %w", err)
	}

	logger.Debug("FFmpeg decode completed", logging.Fields{
		"output_bytes": len(output),
		"decode_time":  time.Since(startTime).Seconds(),
	})

	samples := bytesToFloat64(output)
	if len(samples) == 0 {
		return nil, ErrEmptyAudio
	}
	return NewMonoWaveform(samples, d.config.FFmpegSampleRate), nil
}

// bytesToFloat64 reinterprets little-endian float64 PCM. Trailing bytes
// that do not fill a sample are ignored.
func bytesToFloat64(data []byte) []float64 {
	samples := make([]float64, len(data)/8)
	for i := range samples {
		bits := binary.LittleEndian.Uint64(data[i*8 : i*8+8])
		samples[i] = math.Float64frombits(bits)
	}
	return samples
}

// CheckFFmpeg verifies the configured ffmpeg binary can be executed
func (d *Decoder) CheckFFmpeg(ctx context.Context) error {
	if !d.config.EnableFFmpeg {
		return fmt.Errorf("ffmpeg fallback disabled")
	}
	cmd := exec.CommandContext(ctx, d.config.FFmpegPath, "-version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg not available at %s: %w", d.config.FFmpegPath, err)
	}
	return nil
}

// SupportedFormats lists the formats decoded in process
func (d *Decoder) SupportedFormats() []Format {
	return []Format{FormatWAV, FormatAIFF, FormatMP3, FormatOgg}
}
