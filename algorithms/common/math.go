package common

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Basic numeric helpers shared by the analysis stages, gonum-backed where it helps

// Mean calculates the arithmetic mean of a slice using gonum
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// Max returns the largest value, 0 for empty input
func Max(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return floats.Max(data)
}

// Percentile calculates the p-th percentile (p between 0 and 1)
func Percentile(data []float64, p float64) float64 {
	if len(data) == 0 || p < 0 || p > 1 {
		return 0.0
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

// Median is the 0.5 percentile
func Median(data []float64) float64 {
	return Percentile(data, 0.5)
}

// MovingAverage returns the centered moving average with the given half width,
// computed with prefix sums so the cost does not depend on the width
func MovingAverage(data []float64, halfWidth int) []float64 {
	n := len(data)
	result := make([]float64, n)
	if n == 0 {
		return result
	}
	halfWidth = max(halfWidth, 0)

	prefix := make([]float64, n+1)
	for i, v := range data {
		prefix[i+1] = prefix[i] + v
	}

	for i := range n {
		lo := max(i-halfWidth, 0)
		hi := min(i+halfWidth+1, n)
		result[i] = (prefix[hi] - prefix[lo]) / float64(hi-lo)
	}

	return result
}

// Clamp restricts value to [lo, hi]; NaN maps to lo
func Clamp(value, lo, hi float64) float64 {
	if math.IsNaN(value) || value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

// SanitizeMagnitude maps NaN, negative and infinite magnitudes to zero
func SanitizeMagnitude(value float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return 0
	}
	return value
}

// IsPowerOfTwo reports whether n is a positive power of two
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
