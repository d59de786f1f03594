package screening

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-screen/algorithms/tonal"
	"github.com/RyanBlaney/sonido-screen/classifier"
	"github.com/RyanBlaney/sonido-screen/dataset"
	"github.com/RyanBlaney/sonido-screen/features"
	"github.com/RyanBlaney/sonido-screen/screening/config"
	"github.com/RyanBlaney/sonido-screen/transcode"
)

func newTestEngine(src *countingSource) (*Engine, *ModelCache) {
	cfg := config.DefaultConfig()
	cfg.Decoder.EnableFFmpeg = false
	cache := newTestCache(src)
	return NewEngine(cfg, cache), cache
}

func tone(freq float64, sampleRate int, seconds float64) []float64 {
	n := int(seconds * float64(sampleRate))
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

func TestEngine_AffectedRowQuery(t *testing.T) {
	t.Parallel()

	engine, _ := newTestEngine(&countingSource{body: corpusCSV("")})

	p, err := engine.Predict(context.Background(), shifted(1.0), 3)
	require.NoError(t, err)
	assert.Equal(t, features.Affected, p.Label)
	assert.Greater(t, p.Probability, 0.5)
}

func TestEngine_MidpointTieIsAffected(t *testing.T) {
	t.Parallel()

	engine, _ := newTestEngine(&countingSource{body: corpusCSV("")})

	p, err := engine.Predict(context.Background(), shifted(0), 2)
	require.NoError(t, err)
	assert.Equal(t, features.Affected, p.Label)
	assert.Equal(t, 0.5, p.Probability)
}

func TestEngine_SilentWaveformIsInsufficient(t *testing.T) {
	t.Parallel()

	engine, _ := newTestEngine(&countingSource{body: corpusCSV("")})

	silent := transcode.NewMonoWaveform(make([]float64, 44100), 44100)
	_, err := engine.ExtractFeatures(silent)
	require.ErrorIs(t, err, tonal.ErrInsufficientVoicedSignal)

	var ive *tonal.InsufficientVoicedError
	require.True(t, errors.As(err, &ive))
	assert.Zero(t, ive.Accepted)
}

func TestEngine_MissingColumnLeavesCacheEmpty(t *testing.T) {
	t.Parallel()

	engine, cache := newTestEngine(&countingSource{body: corpusCSV("apq5Shimmer")})

	_, err := engine.EnsureModel(context.Background(), 5)
	require.ErrorIs(t, err, dataset.ErrMissingFeatureColumn)

	var mce *dataset.MissingColumnError
	require.True(t, errors.As(err, &mce))
	assert.Equal(t, "apq5Shimmer", mce.Column)

	_, err = cache.Model()
	assert.ErrorIs(t, err, classifier.ErrModelNotReady)
	_, ok := cache.Metadata(5)
	assert.False(t, ok)
}

func TestEngine_DefaultK(t *testing.T) {
	t.Parallel()

	engine, _ := newTestEngine(&countingSource{body: corpusCSV("")})
	ctx := context.Background()

	meta, err := engine.EnsureModel(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, meta.K)
	assert.Equal(t, 4, meta.SampleCount)

	p, err := engine.Predict(ctx, shifted(0.3), -1)
	require.NoError(t, err)
	assert.Equal(t, 4, p.EffectiveK)
}

func TestEngine_PredictRejectsNonFinite(t *testing.T) {
	t.Parallel()

	src := &countingSource{body: corpusCSV("")}
	engine, _ := newTestEngine(src)

	v := shifted(0)
	v[features.LocalJitter] = math.NaN()
	_, err := engine.Predict(context.Background(), v, 3)
	assert.ErrorIs(t, err, ErrInvalidFeatures)
	assert.Zero(t, src.opens.Load())
}

func TestEngine_ExtractFeaturesFromTone(t *testing.T) {
	t.Parallel()

	engine, _ := newTestEngine(&countingSource{body: corpusCSV("")})

	samples := tone(180, 44100, 1.5)
	stereo := &transcode.Waveform{SampleRate: 44100, Channels: [][]float64{samples, samples}}

	ex, err := engine.Extract(stereo)
	require.NoError(t, err)
	assert.InDelta(t, 180, ex.MeanF0, 2)
	assert.Greater(t, ex.VoicedFrames, 5)
	assert.InDelta(t, 1.0/180, ex.Features[features.MeanPeriod], 1e-4)
	assert.True(t, ex.Features.IsFinite())

	_, err = engine.ExtractFeatures(&transcode.Waveform{SampleRate: 0, Channels: [][]float64{samples}})
	assert.ErrorIs(t, err, transcode.ErrInvalidAudio)
}

func TestEngine_ScreenFile(t *testing.T) {
	t.Parallel()

	const sampleRate = 22050
	path := filepath.Join(t.TempDir(), "vowel.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	samples := tone(150, sampleRate, 2)
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s * 32767)
	}
	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	require.NoError(t, enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	src := &countingSource{body: corpusCSV("")}
	engine, _ := newTestEngine(src)

	report, err := engine.ScreenFile(context.Background(), path, 3)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, report.ID)
	assert.Equal(t, path, report.Source)
	assert.WithinDuration(t, time.Now(), report.CreatedAt, time.Minute)
	assert.InDelta(t, 150, report.Extraction.MeanF0, 2)
	require.NotNil(t, report.Prediction)
	assert.Equal(t, 3, report.Prediction.EffectiveK)
	require.NotNil(t, report.Model)
	assert.Equal(t, 3, report.Model.K)
	assert.Equal(t, int32(1), src.opens.Load())

	again, err := engine.ScreenFile(context.Background(), path, 3)
	require.NoError(t, err)
	assert.NotEqual(t, report.ID, again.ID)
	assert.Equal(t, int32(1), src.opens.Load())

	engine.Reset()
	_, err = engine.ScreenFile(context.Background(), path, 3)
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.opens.Load())
}

func TestNewEngineFromConfig_LocalDataset(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "corpus.csv"), []byte(corpusCSV("")), 0o644))

	cfg := config.DefaultConfig()
	cfg.Dataset.Location = filepath.ToSlash(filepath.Join(dir, "corpus.csv"))

	engine, err := NewEngineFromConfig(context.Background(), cfg)
	require.NoError(t, err)

	meta, err := engine.EnsureModel(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 4, meta.SampleCount)

	bad := config.DefaultConfig()
	bad.Classifier.K = 0
	_, err = NewEngineFromConfig(context.Background(), bad)
	assert.Error(t, err)
}

func TestEngine_ExtractionOnly(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	engine := NewEngine(cfg, nil)

	ex, err := engine.Extract(transcode.NewMonoWaveform(tone(200, 16000, 1), 16000))
	require.NoError(t, err)
	assert.InDelta(t, 200, ex.MeanF0, 3)

	_, err = engine.Predict(context.Background(), ex.Features, 3)
	assert.ErrorIs(t, err, classifier.ErrModelNotReady)
	_, err = engine.EnsureModel(context.Background(), 3)
	assert.ErrorIs(t, err, classifier.ErrModelNotReady)
	engine.Reset()
}
