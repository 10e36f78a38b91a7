package filters

import (
	"math"
)

// DCBlocker is a one-pole high-pass filter removing the DC offset of a
// sample stream:
//
//	y[n] = x[n] - x[n-1] + R*y[n-1]
//
// References:
//   - Julius O. Smith III, "Introduction to Digital Filters with Audio Applications"
//     https://ccrma.stanford.edu/~jos/filters/DC_Blocker.html
type DCBlocker struct {
	pole float64 // R, 0 < R < 1

	// State variables
	x1 float64 // Previous input sample x[n-1]
	y1 float64 // Previous output sample y[n-1]
}

// NewDCBlocker creates a blocker with its -3dB point near cutoff Hz.
// Uses the approximation R = 1 - 2*pi*fc/fs, valid for fc << fs/2
func NewDCBlocker(sampleRate int, cutoff float64) *DCBlocker {
	pole := 0.995 // ~8 Hz at 44.1 kHz
	if sampleRate > 0 && cutoff > 0 {
		pole = min(max(1.0-2.0*math.Pi*cutoff/float64(sampleRate), 0.001), 0.999)
	}
	return &DCBlocker{pole: pole}
}

// Process filters src into dst; dst may alias src
func (dc *DCBlocker) Process(dst, src []float64) {
	n := min(len(dst), len(src))
	for i := range n {
		x := src[i]
		y := x - dc.x1 + dc.pole*dc.y1
		dc.x1 = x
		dc.y1 = y
		dst[i] = y
	}
}

// Reset clears the filter state; call it between discontinuous segments
func (dc *DCBlocker) Reset() {
	dc.x1 = 0
	dc.y1 = 0
}

// Pole returns R
func (dc *DCBlocker) Pole() float64 {
	return dc.pole
}

// Cutoff returns the approximate -3dB frequency at sampleRate
func (dc *DCBlocker) Cutoff(sampleRate int) float64 {
	return (1.0 - dc.pole) * float64(sampleRate) / (2.0 * math.Pi)
}

// Gain returns the magnitude response at frequency:
// |H(e^jw)| = |1 - e^-jw| / |1 - R*e^-jw|
func (dc *DCBlocker) Gain(frequency float64, sampleRate int) float64 {
	w := 2.0 * math.Pi * frequency / float64(sampleRate)
	num := math.Hypot(1-math.Cos(w), math.Sin(w))
	den := math.Hypot(1-dc.pole*math.Cos(w), dc.pole*math.Sin(w))
	return num / den
}
