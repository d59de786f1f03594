// Package classifier implements the k-nearest-neighbour screening model over
// a normalized reference dataset.
package classifier

import (
	"time"

	"github.com/RyanBlaney/sonido-screen/algorithms/stats"
	"github.com/RyanBlaney/sonido-screen/dataset"
	"github.com/RyanBlaney/sonido-screen/features"
	"github.com/RyanBlaney/sonido-screen/logging"
)

// Neighbor is one selected reference sample
type Neighbor struct {
	Index    int            `json:"index"` // Position in the dataset
	Label    features.Label `json:"label"`
	Distance float64        `json:"distance"`
}

// Prediction is the outcome of classifying one feature vector
type Prediction struct {
	Label          features.Label `json:"label"`
	Probability    float64        `json:"probability"`     // Affected class, after adjustment
	RawProbability float64        `json:"raw_probability"` // Affected votes / EffectiveK
	Neighbors      []Neighbor     `json:"neighbors"`       // Nearest first
	EffectiveK     int            `json:"effective_k"`
	MeanDistance   float64        `json:"mean_distance"`
	ScaleMismatch  bool           `json:"scale_mismatch"` // Adjuster changed the probability
}

// ModelMetadata describes a loaded model for a given k
type ModelMetadata struct {
	K             int                  `json:"k"`
	Accuracy      *float64             `json:"accuracy"` // Leave-one-out; nil below two samples
	SampleCount   int                  `json:"sample_count"`
	AffectedCount int                  `json:"affected_count"`
	HealthyCount  int                  `json:"healthy_count"`
	FeatureNames  []string             `json:"feature_names"`
	LoadedAt      time.Time            `json:"loaded_at"`
	ParseReport   *dataset.ParseReport `json:"parse_report,omitempty"`
}

// Options configures the classifier
type Options struct {
	DecisionThreshold float64            // Adjusted probability at or above is Affected
	Adjuster          ConfidenceAdjuster // nil means NoAdjustment
}

// DefaultOptions returns the screening defaults
func DefaultOptions() Options {
	return Options{
		DecisionThreshold: 0.5,
		Adjuster:          DefaultScaleMismatchDamping(),
	}
}

// KNN classifies feature vectors by majority vote of the nearest reference
// samples in z-score space. It is read-only and safe for concurrent use.
type KNN struct {
	ds     *dataset.Dataset
	opts   Options
	logger logging.Logger
}

// NewKNN creates a classifier over ds. A nil ds gives a classifier that
// reports ErrModelNotReady.
func NewKNN(ds *dataset.Dataset, opts Options) *KNN {
	if opts.Adjuster == nil {
		opts.Adjuster = NoAdjustment{}
	}
	return &KNN{
		ds:   ds,
		opts: opts,
		logger: logging.WithFields(logging.Fields{
			"component": "knn_classifier",
		}),
	}
}

// Dataset returns the reference dataset
func (m *KNN) Dataset() *dataset.Dataset {
	return m.ds
}

func (m *KNN) ready() bool {
	return m != nil && m.ds != nil && m.ds.Len() > 0
}

// EffectiveK clamps k to [1, n]
func EffectiveK(k, n int) int {
	return max(1, min(k, n))
}

// Predict normalizes v with the dataset statistics and votes among the k
// nearest reference samples. Ties go to Affected.
func (m *KNN) Predict(v features.Vector, k int) (*Prediction, error) {
	if !m.ready() {
		return nil, ErrModelNotReady
	}

	p := m.predictNormalized(m.ds.Normalize(v), k, -1)

	m.logger.Debug("Classified feature vector", logging.Fields{
		"k":              p.EffectiveK,
		"label":          p.Label.String(),
		"probability":    p.Probability,
		"mean_distance":  p.MeanDistance,
		"scale_mismatch": p.ScaleMismatch,
	})

	return p, nil
}

// predictNormalized classifies an already normalized query. exclude, when
// not negative, drops that sample from the candidates.
func (m *KNN) predictNormalized(query []float64, k, exclude int) *Prediction {
	data := m.ds.Normalized
	index := func(i int) int { return i }
	if exclude >= 0 {
		data = make([][]float64, 0, len(m.ds.Normalized)-1)
		data = append(data, m.ds.Normalized[:exclude]...)
		data = append(data, m.ds.Normalized[exclude+1:]...)
		index = func(i int) int {
			if i >= exclude {
				return i + 1
			}
			return i
		}
	}

	nearest := stats.NearestNeighbors(query, data, EffectiveK(k, len(data)), stats.EuclideanDistanceFunc)

	p := &Prediction{
		EffectiveK:   len(nearest),
		Neighbors:    make([]Neighbor, len(nearest)),
		MeanDistance: stats.MeanDistance(nearest),
	}

	votes := 0
	for i, n := range nearest {
		idx := index(n.Index)
		label := m.ds.Samples[idx].Label
		if label == features.Affected {
			votes++
		}
		p.Neighbors[i] = Neighbor{Index: idx, Label: label, Distance: n.Distance}
	}

	p.RawProbability = float64(votes) / float64(p.EffectiveK)
	p.Probability, p.ScaleMismatch = m.opts.Adjuster.Adjust(p.RawProbability, p.MeanDistance)
	p.Label = features.LabelFromScore(p.Probability, m.opts.DecisionThreshold)

	return p
}

// LeaveOneOutAccuracy classifies every sample against the others with the
// full-corpus statistics and returns the fraction labelled correctly. It
// returns nil when there are fewer than two samples.
func (m *KNN) LeaveOneOutAccuracy(k int) *float64 {
	if !m.ready() || m.ds.Len() < 2 {
		return nil
	}

	correct := 0
	for i, s := range m.ds.Samples {
		p := m.predictNormalized(m.ds.Normalized[i], k, i)
		if p.Label == s.Label {
			correct++
		}
	}

	accuracy := float64(correct) / float64(m.ds.Len())
	return &accuracy
}

// Metadata evaluates the model for k and describes it
func (m *KNN) Metadata(k int) (*ModelMetadata, error) {
	if !m.ready() {
		return nil, ErrModelNotReady
	}

	affected, healthy := m.ds.Counts()
	meta := &ModelMetadata{
		K:             k,
		Accuracy:      m.LeaveOneOutAccuracy(k),
		SampleCount:   m.ds.Len(),
		AffectedCount: affected,
		HealthyCount:  healthy,
		FeatureNames:  features.Names(),
		LoadedAt:      m.ds.LoadedAt,
		ParseReport:   m.ds.Report,
	}

	fields := logging.Fields{"k": k, "samples": meta.SampleCount}
	if meta.Accuracy != nil {
		fields["loo_accuracy"] = *meta.Accuracy
	}
	m.logger.Info("Evaluated model", fields)

	return meta, nil
}
