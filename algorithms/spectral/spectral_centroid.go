package spectral

// SpectralCentroid computes the spectral centroid (center of mass) of a
// magnitude spectrum, in Hz
type SpectralCentroid struct {
	binWidth float64
	freqBins []float64 // Pre-calculated bin frequencies
}

// NewSpectralCentroid creates a centroid calculator for bins binWidth Hz apart
func NewSpectralCentroid(binWidth float64) *SpectralCentroid {
	return &SpectralCentroid{binWidth: binWidth}
}

// Compute calculates the centroid of spectrum; silence yields 0
func (sc *SpectralCentroid) Compute(spectrum []float64) float64 {
	if len(sc.freqBins) < len(spectrum) {
		sc.freqBins = make([]float64, len(spectrum))
		for i := range sc.freqBins {
			sc.freqBins[i] = float64(i) * sc.binWidth
		}
	}

	numerator := 0.0
	denominator := 0.0
	for i, mag := range spectrum {
		numerator += sc.freqBins[i] * mag
		denominator += mag
	}

	if denominator <= 0 {
		return 0
	}

	return numerator / denominator
}
