package features

import (
	"fmt"
	"strings"
)

// Label is the binary clinical class of a sample or prediction
type Label int

const (
	Healthy Label = iota
	Affected
)

func (l Label) String() string {
	switch l {
	case Affected:
		return "affected"
	case Healthy:
		return "healthy"
	default:
		return fmt.Sprintf("label(%d)", int(l))
	}
}

// LabelFromScore thresholds a numeric class value: score >= threshold is Affected.
func LabelFromScore(score, threshold float64) Label {
	if score >= threshold {
		return Affected
	}
	return Healthy
}

// MarshalText encodes the label name
func (l Label) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText decodes "affected" or "healthy"
func (l *Label) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "affected":
		*l = Affected
	case "healthy":
		*l = Healthy
	default:
		return fmt.Errorf("features: unknown label %q", text)
	}
	return nil
}
