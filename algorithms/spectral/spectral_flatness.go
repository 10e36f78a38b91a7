package spectral

import (
	"math"
)

// SpectralFlatness computes spectral flatness (Wiener entropy)
// Broadband, percussive frames read close to 1, tonal frames close to 0
type SpectralFlatness struct {
	minThreshold float64 // Minimum value to avoid log(0)
}

// NewSpectralFlatness creates a new spectral flatness calculator
func NewSpectralFlatness() *SpectralFlatness {
	return &SpectralFlatness{
		minThreshold: 1e-10,
	}
}

// Compute calculates spectral flatness for a single magnitude spectrum
// Returns ratio of geometric mean to arithmetic mean (0-1 range)
func (sf *SpectralFlatness) Compute(magnitudeSpectrum []float64) float64 {
	if len(magnitudeSpectrum) == 0 {
		return 0.0
	}

	// Geometric mean in the log domain; bins at the floor count as the floor
	// so a mostly silent frame does not read as flat
	logSum := 0.0
	arithmeticMean := 0.0
	for _, magnitude := range magnitudeSpectrum {
		logSum += math.Log(math.Max(magnitude, sf.minThreshold))
		arithmeticMean += magnitude
	}
	arithmeticMean /= float64(len(magnitudeSpectrum))

	if arithmeticMean <= sf.minThreshold {
		return 0.0
	}

	geometricMean := math.Exp(logSum / float64(len(magnitudeSpectrum)))
	return math.Min(geometricMean/arithmeticMean, 1.0)
}

// ComputeBandLimited calculates spectral flatness for bins [startBin, endBin]
func (sf *SpectralFlatness) ComputeBandLimited(magnitudeSpectrum []float64, startBin, endBin int) float64 {
	if startBin < 0 || endBin >= len(magnitudeSpectrum) || startBin >= endBin {
		return 0.0
	}

	return sf.Compute(magnitudeSpectrum[startBin : endBin+1])
}
