// Package dataset loads the labeled reference corpus and the z-score
// statistics every comparison in the classifier is made with.
package dataset

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/RyanBlaney/sonido-screen/algorithms/common"
	"github.com/RyanBlaney/sonido-screen/features"
	"github.com/RyanBlaney/sonido-screen/logging"
	"github.com/RyanBlaney/sonido-screen/storage"
)

// Sample is one labeled reference recording
type Sample struct {
	Features features.Vector `json:"features"`
	Label    features.Label  `json:"label"`
	Row      int             `json:"row,omitempty"` // Source line, 0 if built in memory
}

// Dataset is an immutable labeled corpus with its normalization statistics.
// Normalized[i] is Samples[i] z-scored with Stats.
type Dataset struct {
	Samples    []Sample
	Stats      *common.Standardizer
	Normalized [][]float64
	Report     *ParseReport
	Source     string
	LoadedAt   time.Time
}

// New fits normalization statistics on samples and z-scores them. The
// samples slice is copied.
func New(samples []Sample, stdDevFloor float64) (*Dataset, error) {
	if len(samples) == 0 {
		return nil, ErrEmptyDataset
	}

	owned := make([]Sample, len(samples))
	copy(owned, samples)

	rows := make([][]float64, len(owned))
	for i, s := range owned {
		rows[i] = s.Features.Slice()
	}

	stats, err := common.FitStandardizer(rows, stdDevFloor)
	if err != nil {
		return nil, fmt.Errorf("dataset: fit statistics: %w", err)
	}

	normalized := make([][]float64, len(rows))
	for i, row := range rows {
		normalized[i] = stats.Transform(row)
	}

	return &Dataset{
		Samples:    owned,
		Stats:      stats,
		Normalized: normalized,
		Report:     &ParseReport{RowsRead: len(owned), DefaultedCells: map[string]int{}},
		LoadedAt:   time.Now(),
	}, nil
}

// Read parses a CSV corpus from r and builds the dataset
func Read(r io.Reader, opts ParseOptions) (*Dataset, error) {
	samples, report, err := Parse(r, opts)
	if err != nil {
		return nil, err
	}

	ds, err := New(samples, opts.StdDevFloor)
	if err != nil {
		return nil, err
	}
	ds.Report = report
	return ds, nil
}

// Load fetches path from src and parses it. Fetch and read failures wrap
// ErrDatasetUnavailable; content problems keep their own sentinel.
func Load(ctx context.Context, src storage.Source, path string, opts ParseOptions) (*Dataset, error) {
	logger := logging.WithContext(ctx).WithFields(logging.Fields{
		"component": "dataset_store",
		"path":      path,
	})

	rc, err := src.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrDatasetUnavailable, path, err)
	}
	defer rc.Close()

	ds, err := Read(&contextReader{ctx: ctx, r: rc}, opts)
	if err != nil {
		logger.Error(err, "Failed to load reference dataset")
		return nil, err
	}
	ds.Source = path

	affected, healthy := ds.Counts()
	fields := logging.Fields{
		"samples":  ds.Len(),
		"affected": affected,
		"healthy":  healthy,
	}
	if n := ds.Report.Defaulted(); n > 0 || ds.Report.DefaultedLabels > 0 {
		fields["defaulted_cells"] = n
		fields["defaulted_labels"] = ds.Report.DefaultedLabels
		logger.Warn("Reference dataset has non-numeric cells read as 0", fields)
	} else {
		logger.Info("Loaded reference dataset", fields)
	}

	return ds, nil
}

// Len returns the sample count
func (d *Dataset) Len() int {
	return len(d.Samples)
}

// Counts returns the number of Affected and Healthy samples
func (d *Dataset) Counts() (affected, healthy int) {
	for _, s := range d.Samples {
		if s.Label == features.Affected {
			affected++
		} else {
			healthy++
		}
	}
	return affected, healthy
}

// Labels returns the sample labels in corpus order
func (d *Dataset) Labels() []features.Label {
	out := make([]features.Label, len(d.Samples))
	for i, s := range d.Samples {
		out[i] = s.Label
	}
	return out
}

// Normalize z-scores v with the corpus statistics
func (d *Dataset) Normalize(v features.Vector) []float64 {
	return d.Stats.Transform(v[:])
}

// contextReader stops a slow read once ctx is done
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
