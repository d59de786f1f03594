package classifier

// ConfidenceAdjuster rescales the raw affected-class probability given the
// mean distance of the selected neighbours. applied reports whether the
// probability was changed.
type ConfidenceAdjuster interface {
	Adjust(probability, meanDistance float64) (adjusted float64, applied bool)
}

// ScaleMismatchDamping multiplies the probability by Factor when the mean
// neighbour distance exceeds Threshold. Distances that large in z-score
// space usually mean the query was recorded under conditions the reference
// corpus does not cover.
type ScaleMismatchDamping struct {
	Threshold float64 `json:"threshold" yaml:"threshold"` // Mean distance, normalized units
	Factor    float64 `json:"factor" yaml:"factor"`       // Multiplier in [0, 1]
}

// DefaultScaleMismatchDamping returns the screening defaults
func DefaultScaleMismatchDamping() ScaleMismatchDamping {
	return ScaleMismatchDamping{
		Threshold: 10.0,
		Factor:    0.3,
	}
}

// Adjust implements ConfidenceAdjuster
func (d ScaleMismatchDamping) Adjust(probability, meanDistance float64) (float64, bool) {
	if meanDistance > d.Threshold {
		return probability * d.Factor, true
	}
	return probability, false
}

// NoAdjustment leaves the probability untouched
type NoAdjustment struct{}

// Adjust implements ConfidenceAdjuster
func (NoAdjustment) Adjust(probability, _ float64) (float64, bool) {
	return probability, false
}
