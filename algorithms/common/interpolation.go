package common

import (
	"math"
)

// LinearAt interpolates data at a fractional index between the two
// bracketing samples; indices outside the data clamp to the first/last sample
func LinearAt(data []float64, index float64) float64 {
	if len(data) == 0 {
		return 0.0
	}

	if index <= 0 || math.IsNaN(index) {
		return data[0]
	}
	if index >= float64(len(data)-1) {
		return data[len(data)-1]
	}

	i := int(index)
	frac := index - float64(i)

	return data[i] + frac*(data[i+1]-data[i])
}

// FractionalIndex splits a fractional position into the lower bracketing
// index and the interpolation weight of the upper neighbor
func FractionalIndex(position float64) (int, float64) {
	i := math.Floor(position)
	return int(i), position - i
}
