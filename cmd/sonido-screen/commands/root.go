// Package commands implements the sonido-screen command line tool.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/RyanBlaney/sonido-screen/logging"
	"github.com/RyanBlaney/sonido-screen/screening"
	"github.com/RyanBlaney/sonido-screen/screening/config"
)

// EnvPrefix prefixes environment overrides, e.g. SONIDO_SCREEN_DATASET
const EnvPrefix = "SONIDO_SCREEN"

// app carries the state shared by one command tree
type app struct {
	v      *viper.Viper
	stderr io.Writer
	cfg    *config.Config
}

// NewRootCommand builds the command tree. Each call is independent so
// tests can run several in parallel.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New(), stderr: os.Stderr}

	root := &cobra.Command{
		Use:   "sonido-screen",
		Short: "Screen voice recordings for dysphonia markers",
		Long: `sonido-screen extracts jitter, shimmer and harmonicity measures from a
sustained vowel recording and classifies them against a labelled corpus
with a k-nearest-neighbour model.

Configuration is read from the YAML file given by --config, then
overridden by SONIDO_SCREEN_* environment variables and flags.

Examples:
  # Extract the feature vector of a recording
  sonido-screen extract vowel.wav

  # Screen a recording against a corpus stored in S3
  sonido-screen predict vowel.wav --dataset s3://corpora/pd_speech_features.csv

  # Report leave-one-out accuracy for k=7
  sonido-screen evaluate --k 7`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.stderr = cmd.ErrOrStderr()
			return a.setup()
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "YAML configuration file")
	flags.String("dataset", "", "reference corpus: file path, http(s):// or s3:// URL")
	flags.Int("k", 0, "number of neighbours (default from config)")
	flags.String("log-level", "", "debug, info, warn or error")
	flags.String("log-format", "", "text, json or plain")
	flags.StringP("output", "o", "", "write JSON output to file instead of stdout")

	a.v.SetEnvPrefix(EnvPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	// Binding can only fail for a nil flag set
	_ = a.v.BindPFlags(flags)

	root.AddCommand(
		newExtractCommand(a),
		newPredictCommand(a),
		newEvaluateCommand(a),
		newFormatsCommand(a),
	)
	return root
}

// Execute runs the command tree with ctx
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// setup loads the configuration and installs the global logger
func (a *app) setup() error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Logging, a.stderr)
	if err != nil {
		return err
	}
	logging.SetGlobalLogger(logger)

	a.cfg = cfg
	return nil
}

func (a *app) loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path := a.v.GetString("config"); path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if a.v.IsSet("dataset") {
		cfg.Dataset.Location = a.v.GetString("dataset")
	}
	if a.v.IsSet("k") {
		if k := a.v.GetInt("k"); k > 0 {
			cfg.Classifier.K = k
		}
	}
	if a.v.IsSet("log-level") {
		cfg.Logging.Level = a.v.GetString("log-level")
	}
	if a.v.IsSet("log-format") {
		cfg.Logging.Format = a.v.GetString("log-format")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the backend named by cfg.Format. Logs always go to w so
// stdout stays clean for JSON output.
func newLogger(cfg config.LoggingConfig, w io.Writer) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	switch cfg.Format {
	case "plain":
		l := logging.NewWriterLogger(w)
		l.SetLevel(level)
		return l, nil
	case "text", "json":
		return logging.NewLogrusLoggerWithFormat(w, cfg.Format, level), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
}

// engine builds a screening engine from the loaded configuration
func (a *app) engine(ctx context.Context) (*screening.Engine, error) {
	return screening.NewEngineFromConfig(ctx, a.cfg)
}

// k returns the neighbour count requested for this run
func (a *app) k() int {
	return a.cfg.Classifier.K
}
