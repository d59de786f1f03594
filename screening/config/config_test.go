package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-screen/algorithms/stats"
	"github.com/RyanBlaney/sonido-screen/classifier"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 0.01, cfg.Signal.SilenceThreshold)
	assert.Equal(t, 15*time.Second, cfg.Signal.MaxDuration)
	assert.Equal(t, 2048, cfg.Pitch.FrameSize)
	assert.Equal(t, 512, cfg.Pitch.HopSize)
	assert.Equal(t, 5, cfg.Classifier.K)
	assert.Equal(t, "class", cfg.Dataset.Parse.LabelColumn)
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(strings.NewReader(`
signal:
  max_duration: 10s
pitch:
  method: direct
classifier:
  k: 7
  scale_mismatch:
    enabled: false
dataset:
  location: s3://corpora/pd.csv
  load_timeout: 30s
  s3:
    region: eu-west-1
logging:
  level: debug
  format: json
`))
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.Signal.MaxDuration)
	assert.Equal(t, 0.01, cfg.Signal.SilenceThreshold)
	assert.Equal(t, stats.TimeDomain, cfg.Pitch.Method)
	assert.Equal(t, 512, cfg.Pitch.HopSize)
	assert.Equal(t, 7, cfg.Classifier.K)
	assert.Equal(t, "s3://corpora/pd.csv", cfg.Dataset.Location)
	assert.Equal(t, 30*time.Second, cfg.Dataset.LoadTimeout)
	assert.Equal(t, "eu-west-1", cfg.Dataset.S3.Region)
	assert.Equal(t, "debug", cfg.Logging.Level)

	opts := cfg.Classifier.Options()
	assert.Equal(t, classifier.NoAdjustment{}, opts.Adjuster)
}

func TestLoad_EmptyInputGivesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown key", "classifier:\n  kk: 3\n", "kk"},
		{"bad k", "classifier:\n  k: 0\n", "classifier.k"},
		{"bad factor", "classifier:\n  scale_mismatch:\n    factor: 2\n", "factor"},
		{"bad method", "pitch:\n  method: wavelet\n", "wavelet"},
		{"bad level", "logging:\n  level: loud\n", "logging.level"},
		{"bad format", "logging:\n  format: xml\n", "logging.format"},
		{"inverted range", "pitch:\n  min_search_freq: 500\n", "search range"},
		{"empty location", "dataset:\n  location: \"\"\n", "dataset.location"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(strings.NewReader(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "screen.yaml")
	require.NoError(t, os.WriteFile(path, []byte("classifier:\n  k: 3\n"), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Classifier.K)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestClassifierConfig_Options(t *testing.T) {
	t.Parallel()

	opts := DefaultClassifierConfig().Options()
	assert.Equal(t, 0.5, opts.DecisionThreshold)
	assert.Equal(t, classifier.DefaultScaleMismatchDamping(), opts.Adjuster)
}
