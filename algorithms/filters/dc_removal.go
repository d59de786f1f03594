package filters

import (
	"gonum.org/v1/gonum/floats"
)

// RemoveMean subtracts the arithmetic mean from frame in place and returns
// the removed offset. For short analysis frames this is the exact DC
// component, unlike a recursive DC blocker which needs time to settle.
func RemoveMean(frame []float64) float64 {
	if len(frame) == 0 {
		return 0.0
	}

	mean := floats.Sum(frame) / float64(len(frame))
	floats.AddConst(-mean, frame)
	return mean
}

// DCRemoved returns a mean-removed copy of frame.
func DCRemoved(frame []float64) []float64 {
	out := make([]float64, len(frame))
	copy(out, frame)
	RemoveMean(out)
	return out
}
