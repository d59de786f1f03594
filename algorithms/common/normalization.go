package common

import (
	"fmt"
)

// DefaultStdDevFloor keeps z-scoring safe for constant columns.
const DefaultStdDevFloor = 1e-6

// Standardizer holds per-column z-score statistics fitted on a set of rows.
// It is immutable after FitStandardizer returns; every vector compared in the
// same space must go through the same instance.
type Standardizer struct {
	means   []float64
	stdDevs []float64
}

// FitStandardizer computes per-column mean and sample standard deviation of
// rows. Standard deviations below floor are raised to floor.
func FitStandardizer(rows [][]float64, floor float64) (*Standardizer, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("standardizer: no rows")
	}
	if floor <= 0 {
		floor = DefaultStdDevFloor
	}

	dim := len(rows[0])
	column := make([]float64, len(rows))
	s := &Standardizer{
		means:   make([]float64, dim),
		stdDevs: make([]float64, dim),
	}

	for j := range dim {
		for i, row := range rows {
			if len(row) != dim {
				return nil, fmt.Errorf("standardizer: row %d has %d columns, want %d", i, len(row), dim)
			}
			column[i] = row[j]
		}
		s.means[j] = Mean(column)
		s.stdDevs[j] = max(StandardDeviation(column), floor)
	}

	return s, nil
}

// Dim returns the number of columns the standardizer was fitted on
func (s *Standardizer) Dim() int {
	return len(s.means)
}

// Means returns a copy of the column means
func (s *Standardizer) Means() []float64 {
	out := make([]float64, len(s.means))
	copy(out, s.means)
	return out
}

// StdDevs returns a copy of the floored column standard deviations
func (s *Standardizer) StdDevs() []float64 {
	out := make([]float64, len(s.stdDevs))
	copy(out, s.stdDevs)
	return out
}

// Transform returns a new z-scored copy of v. v must have Dim() values.
func (s *Standardizer) Transform(v []float64) []float64 {
	out := make([]float64, len(s.means))
	for j := range out {
		out[j] = (v[j] - s.means[j]) / s.stdDevs[j]
	}
	return out
}
