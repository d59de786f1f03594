// Package screening wires decoding, feature extraction and the KNN model
// into a single voice screening engine.
package screening

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/RyanBlaney/sonido-screen/algorithms/speech"
	"github.com/RyanBlaney/sonido-screen/algorithms/tonal"
	"github.com/RyanBlaney/sonido-screen/classifier"
	"github.com/RyanBlaney/sonido-screen/features"
	"github.com/RyanBlaney/sonido-screen/logging"
	"github.com/RyanBlaney/sonido-screen/screening/config"
	"github.com/RyanBlaney/sonido-screen/storage"
	"github.com/RyanBlaney/sonido-screen/transcode"
)

// ErrInvalidFeatures is returned for vectors holding NaN or Inf
var ErrInvalidFeatures = errors.New("screening: feature vector is not finite")

// Extraction is a feature vector with the recording statistics it came from
type Extraction struct {
	Features       features.Vector `json:"features"`
	SampleRate     int             `json:"sample_rate"`
	Duration       float64         `json:"duration"` // Conditioned signal, seconds
	FramesAnalyzed int             `json:"frames_analyzed"`
	VoicedFrames   int             `json:"voiced_frames"`
	MeanF0         float64         `json:"mean_f0"`
}

// Report is the result of screening one recording
type Report struct {
	ID         uuid.UUID                 `json:"id"`
	Source     string                    `json:"source,omitempty"`
	Extraction *Extraction               `json:"extraction"`
	Prediction *classifier.Prediction    `json:"prediction"`
	Model      *classifier.ModelMetadata `json:"model"`
	CreatedAt  time.Time                 `json:"created_at"`
}

// Engine runs the screening pipeline. It is safe for concurrent use; the
// only shared state is the model cache.
type Engine struct {
	config      *config.Config
	decoder     *transcode.Decoder
	conditioner *transcode.Conditioner
	pitch       *tonal.PitchPeriodAnalyzer
	voice       *speech.VoiceQualityAnalyzer
	cache       *ModelCache
	logger      logging.Logger
}

// NewEngine creates an engine around an existing model cache. A nil cfg uses
// config.DefaultConfig(). A nil cache gives an extraction-only engine whose
// model operations fail with classifier.ErrModelNotReady.
func NewEngine(cfg *config.Config, cache *ModelCache) *Engine {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	decoderConfig := cfg.Decoder

	return &Engine{
		config:      cfg,
		decoder:     transcode.NewDecoder(&decoderConfig),
		conditioner: transcode.NewConditioner(cfg.Signal),
		pitch:       tonal.NewPitchPeriodAnalyzer(cfg.Pitch),
		voice:       speech.NewVoiceQualityAnalyzer(),
		cache:       cache,
		logger: logging.WithFields(logging.Fields{
			"component": "screening_engine",
		}),
	}
}

// NewEngineFromConfig resolves cfg.Dataset.Location into a storage source and
// builds the engine with a fresh model cache. S3 clients are created from
// the default AWS credential chain only when the location is an s3:// URL.
func NewEngineFromConfig(ctx context.Context, cfg *config.Config) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	src, path, err := storage.SplitLocation(cfg.Dataset.Location, func(bucket string) (storage.Source, error) {
		client, err := storage.NewS3Client(ctx, cfg.Dataset.S3)
		if err != nil {
			return nil, err
		}
		return storage.NewS3(client, bucket, ""), nil
	})
	if err != nil {
		return nil, fmt.Errorf("screening: dataset location: %w", err)
	}

	cache := NewModelCache(
		DatasetLoader(src, path, cfg.Dataset.Parse),
		cfg.Classifier.Options(),
		cfg.Dataset.LoadTimeout,
	)
	return NewEngine(cfg, cache), nil
}

// Config returns the engine configuration
func (e *Engine) Config() *config.Config {
	return e.config
}

// resolveK maps k <= 0 to the configured default
func (e *Engine) resolveK(k int) int {
	if k <= 0 {
		return e.config.Classifier.K
	}
	return k
}

// ExtractFeatures conditions w and computes its feature vector. It fails
// with tonal.ErrInsufficientVoicedSignal when too few frames are voiced.
func (e *Engine) ExtractFeatures(w *transcode.Waveform) (features.Vector, error) {
	ex, err := e.Extract(w)
	if err != nil {
		return features.Vector{}, err
	}
	return ex.Features, nil
}

// Extract is ExtractFeatures with the recording statistics
func (e *Engine) Extract(w *transcode.Waveform) (*Extraction, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	conditioned := e.conditioner.Condition(w)
	track, err := e.pitch.Analyze(conditioned.Channels[0], conditioned.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("screening: pitch analysis: %w", err)
	}

	vq, err := e.voice.Analyze(track)
	if err != nil {
		return nil, fmt.Errorf("screening: voice quality: %w", err)
	}

	return &Extraction{
		Features:       vq.Features,
		SampleRate:     conditioned.SampleRate,
		Duration:       conditioned.Duration().Seconds(),
		FramesAnalyzed: track.FramesAnalyzed,
		VoicedFrames:   track.FramesAccepted,
		MeanF0:         vq.MeanF0,
	}, nil
}

// EnsureModel loads and evaluates the model for k if needed
func (e *Engine) EnsureModel(ctx context.Context, k int) (*classifier.ModelMetadata, error) {
	if e.cache == nil {
		return nil, classifier.ErrModelNotReady
	}
	_, meta, err := e.cache.Ensure(ctx, e.resolveK(k))
	if err != nil {
		return nil, err
	}
	return meta, nil
}

// Predict classifies v, loading the model on first use
func (e *Engine) Predict(ctx context.Context, v features.Vector, k int) (*classifier.Prediction, error) {
	p, _, err := e.predict(ctx, v, k)
	return p, err
}

func (e *Engine) predict(ctx context.Context, v features.Vector, k int) (*classifier.Prediction, *classifier.ModelMetadata, error) {
	if !v.IsFinite() {
		return nil, nil, ErrInvalidFeatures
	}
	if e.cache == nil {
		return nil, nil, classifier.ErrModelNotReady
	}

	k = e.resolveK(k)
	model, meta, err := e.cache.Ensure(ctx, k)
	if err != nil {
		return nil, nil, err
	}

	p, err := model.Predict(v, k)
	if err != nil {
		return nil, nil, err
	}
	return p, meta, nil
}

// Screen decodes r, extracts features and classifies them with k <= 0
// meaning the configured default.
func (e *Engine) Screen(ctx context.Context, r io.Reader, format transcode.Format, k int) (*Report, error) {
	w, err := e.decoder.Decode(ctx, r, format)
	if err != nil {
		return nil, fmt.Errorf("screening: decode: %w", err)
	}
	return e.ScreenWaveform(ctx, w, k)
}

// ScreenFile screens an audio file
func (e *Engine) ScreenFile(ctx context.Context, path string, k int) (*Report, error) {
	w, err := e.decoder.DecodeFile(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("screening: decode %s: %w", path, err)
	}

	report, err := e.ScreenWaveform(ctx, w, k)
	if err != nil {
		return nil, err
	}
	report.Source = path
	return report, nil
}

// ScreenWaveform extracts features from w and classifies them
func (e *Engine) ScreenWaveform(ctx context.Context, w *transcode.Waveform, k int) (*Report, error) {
	ex, err := e.Extract(w)
	if err != nil {
		return nil, err
	}

	p, meta, err := e.predict(ctx, ex.Features, k)
	if err != nil {
		return nil, err
	}

	report := &Report{
		ID:         uuid.New(),
		Extraction: ex,
		Prediction: p,
		Model:      meta,
		CreatedAt:  time.Now().UTC(),
	}

	e.logger.WithContext(ctx).Info("Screening complete", logging.Fields{
		"report_id":      report.ID.String(),
		"label":          p.Label.String(),
		"probability":    p.Probability,
		"scale_mismatch": p.ScaleMismatch,
		"voiced_frames":  ex.VoicedFrames,
	})

	return report, nil
}

// DecodeFile decodes an audio file with the engine's decoder settings
func (e *Engine) DecodeFile(ctx context.Context, path string) (*transcode.Waveform, error) {
	return e.decoder.DecodeFile(ctx, path)
}

// Reset drops the cached model
func (e *Engine) Reset() {
	if e.cache == nil {
		return
	}
	e.cache.Reset()
}
