// Package config holds the screening engine configuration. Every section
// has a Default constructor; LoadFile overlays a YAML file on the defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/sonido-screen/algorithms/tonal"
	"github.com/RyanBlaney/sonido-screen/classifier"
	"github.com/RyanBlaney/sonido-screen/dataset"
	"github.com/RyanBlaney/sonido-screen/logging"
	"github.com/RyanBlaney/sonido-screen/storage"
	"github.com/RyanBlaney/sonido-screen/transcode"
)

// Config is the full engine configuration
type Config struct {
	Signal     transcode.ConditionerConfig `json:"signal" yaml:"signal"`
	Pitch      tonal.PitchPeriodParams     `json:"pitch" yaml:"pitch"`
	Classifier ClassifierConfig            `json:"classifier" yaml:"classifier"`
	Dataset    DatasetConfig               `json:"dataset" yaml:"dataset"`
	Decoder    transcode.DecoderConfig     `json:"decoder" yaml:"decoder"`
	Logging    LoggingConfig               `json:"logging" yaml:"logging"`
}

// ClassifierConfig configures the KNN model
type ClassifierConfig struct {
	K                 int                 `json:"k" yaml:"k"`                                   // Used when a caller passes k <= 0
	DecisionThreshold float64             `json:"decision_threshold" yaml:"decision_threshold"` // Adjusted probability for Affected
	ScaleMismatch     ScaleMismatchConfig `json:"scale_mismatch" yaml:"scale_mismatch"`
}

// ScaleMismatchConfig configures probability damping for far-off queries
type ScaleMismatchConfig struct {
	Enabled   bool    `json:"enabled" yaml:"enabled"`
	Threshold float64 `json:"threshold" yaml:"threshold"` // Mean neighbour distance
	Factor    float64 `json:"factor" yaml:"factor"`       // Probability multiplier
}

// DatasetConfig locates and parses the reference corpus
type DatasetConfig struct {
	Location    string               `json:"location" yaml:"location"`         // File path, http(s):// or s3:// URL
	Parse       dataset.ParseOptions `json:"parse" yaml:"parse"`               // CSV conventions
	LoadTimeout time.Duration        `json:"load_timeout" yaml:"load_timeout"` // Bounds one load; 0 disables
	S3          storage.S3Options    `json:"s3" yaml:"s3"`
}

// LoggingConfig selects the log backend
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // text, json or plain
}

// DefaultConfig returns the configuration used for screening recordings
func DefaultConfig() *Config {
	return &Config{
		Signal:     transcode.DefaultConditionerConfig(),
		Pitch:      tonal.DefaultPitchPeriodParams(),
		Classifier: DefaultClassifierConfig(),
		Dataset:    DefaultDatasetConfig(),
		Decoder:    *transcode.DefaultDecoderConfig(),
		Logging:    DefaultLoggingConfig(),
	}
}

// DefaultClassifierConfig returns k=5 with scale-mismatch damping enabled
func DefaultClassifierConfig() ClassifierConfig {
	damping := classifier.DefaultScaleMismatchDamping()
	return ClassifierConfig{
		K:                 5,
		DecisionThreshold: 0.5,
		ScaleMismatch: ScaleMismatchConfig{
			Enabled:   true,
			Threshold: damping.Threshold,
			Factor:    damping.Factor,
		},
	}
}

// DefaultDatasetConfig returns the default corpus location and parsing
func DefaultDatasetConfig() DatasetConfig {
	return DatasetConfig{
		Location:    "data/pd_speech_features.csv",
		Parse:       dataset.DefaultParseOptions(),
		LoadTimeout: 2 * time.Minute,
	}
}

// DefaultLoggingConfig returns info-level text logging
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:  "info",
		Format: "text",
	}
}

// Options converts the section into classifier options
func (c ClassifierConfig) Options() classifier.Options {
	opts := classifier.Options{
		DecisionThreshold: c.DecisionThreshold,
		Adjuster:          classifier.NoAdjustment{},
	}
	if c.ScaleMismatch.Enabled {
		opts.Adjuster = classifier.ScaleMismatchDamping{
			Threshold: c.ScaleMismatch.Threshold,
			Factor:    c.ScaleMismatch.Factor,
		}
	}
	return opts
}

// LoadFile reads a YAML file over the defaults and validates the result
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Load(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Load decodes YAML from r over the defaults and validates the result.
// Unknown keys are rejected.
func Load(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the engine cannot run with
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Signal.SilenceThreshold >= 0 && c.Signal.SilenceThreshold < 1,
		"signal.silence_threshold must be in [0, 1), got %g", c.Signal.SilenceThreshold)
	check(c.Signal.MaxDuration >= 0, "signal.max_duration must not be negative")

	p := c.Pitch
	check(p.FrameSize > 1, "pitch.frame_size must be > 1, got %d", p.FrameSize)
	check(p.HopSize > 0, "pitch.hop_size must be > 0, got %d", p.HopSize)
	check(p.MinSearchFreq > 0 && p.MinSearchFreq < p.MaxSearchFreq,
		"pitch search range %g-%g Hz is invalid", p.MinSearchFreq, p.MaxSearchFreq)
	check(p.MinValidFreq >= 0 && p.MinValidFreq < p.MaxValidFreq,
		"pitch valid range %g-%g Hz is invalid", p.MinValidFreq, p.MaxValidFreq)
	check(p.EnergyThreshold >= 0, "pitch.energy_threshold must not be negative")
	check(p.CorrelationThreshold >= 0 && p.CorrelationThreshold <= 1,
		"pitch.correlation_threshold must be in [0, 1], got %g", p.CorrelationThreshold)
	check(p.MinVoicedFrames >= 1, "pitch.min_voiced_frames must be >= 1, got %d", p.MinVoicedFrames)

	cl := c.Classifier
	check(cl.K >= 1, "classifier.k must be >= 1, got %d", cl.K)
	check(cl.DecisionThreshold > 0 && cl.DecisionThreshold <= 1,
		"classifier.decision_threshold must be in (0, 1], got %g", cl.DecisionThreshold)
	if cl.ScaleMismatch.Enabled {
		check(cl.ScaleMismatch.Threshold > 0, "classifier.scale_mismatch.threshold must be > 0")
		check(cl.ScaleMismatch.Factor >= 0 && cl.ScaleMismatch.Factor <= 1,
			"classifier.scale_mismatch.factor must be in [0, 1], got %g", cl.ScaleMismatch.Factor)
	}

	check(c.Dataset.Location != "", "dataset.location is required")
	check(c.Dataset.Parse.LabelColumn != "", "dataset.parse.label_column is required")
	check(c.Dataset.Parse.StdDevFloor > 0, "dataset.parse.std_dev_floor must be > 0")
	check(c.Dataset.LoadTimeout >= 0, "dataset.load_timeout must not be negative")

	check(!c.Decoder.EnableFFmpeg || c.Decoder.FFmpegPath != "", "decoder.ffmpeg_path is required when ffmpeg is enabled")
	check(!c.Decoder.EnableFFmpeg || c.Decoder.FFmpegSampleRate > 0, "decoder.ffmpeg_sample_rate must be > 0")
	check(c.Decoder.MaxInputBytes >= 0, "decoder.max_input_bytes must not be negative")

	_, err := logging.ParseLevel(c.Logging.Level)
	check(err == nil, "logging.level %q is invalid", c.Logging.Level)
	switch c.Logging.Format {
	case "text", "json", "plain":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q is invalid", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
