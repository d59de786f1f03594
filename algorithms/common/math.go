package common

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Basic statistical functions used across algorithms using gonum for robustness

// Mean calculates the arithmetic mean of a slice using gonum
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// Variance calculates the sample variance (n-1 denominator) of a slice using gonum
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return 0.0
	}
	return stat.Variance(data, nil)
}

// StandardDeviation calculates the sample standard deviation.
// Fewer than two values have no spread and return 0.
func StandardDeviation(data []float64) float64 {
	if len(data) < 2 {
		return 0.0
	}
	return math.Sqrt(Variance(data))
}

// RMS calculates root mean square
func RMS(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return math.Sqrt(floats.Dot(data, data) / float64(len(data)))
}

// Energy returns the sum of squared samples.
func Energy(data []float64) float64 {
	return floats.Dot(data, data)
}

// MeanAbsoluteDifference returns the mean of |data[i+1]-data[i]| over all
// successive pairs, or 0 for fewer than two values.
func MeanAbsoluteDifference(data []float64) float64 {
	if len(data) < 2 {
		return 0.0
	}

	sum := 0.0
	for i := 1; i < len(data); i++ {
		sum += math.Abs(data[i] - data[i-1])
	}
	return sum / float64(len(data)-1)
}

// MeanCenteredDeviation slides a centered window of windowSize values over
// data and averages |center - mean(window)| across every position where the
// whole window fits. Returns 0 when data is shorter than the window.
func MeanCenteredDeviation(data []float64, windowSize int) float64 {
	if windowSize < 1 || len(data) < windowSize {
		return 0.0
	}

	half := windowSize / 2
	sum := 0.0
	count := 0
	for i := half; i < len(data)-half; i++ {
		window := data[i-half : i-half+windowSize]
		sum += math.Abs(data[i] - floats.Sum(window)/float64(windowSize))
		count++
	}

	if count == 0 {
		return 0.0
	}
	return sum / float64(count)
}

// Clamp limits value to [min, max]
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// ClampInt limits value to [min, max]
func ClampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// NextPowerOfTwo returns the smallest power of two >= n
func NextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
