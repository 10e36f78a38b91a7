package harmonic

import (
	"math"
	"sort"
)

// MaxPeaks is the fixed capacity of a PeakList
const MaxPeaks = 16

// Peak is one spectral local maximum
type Peak struct {
	Bin       int     // FFT bin index, 0 for an empty slot
	Amplitude float64 // Magnitude at Bin
}

// PeakList holds the loudest peaks of a frame in descending amplitude order
// Slots past Count() hold the zero Peak
type PeakList [MaxPeaks]Peak

// Count returns the number of non-sentinel entries
func (pl *PeakList) Count() int {
	for i, p := range pl {
		if p.Bin == 0 {
			return i
		}
	}
	return MaxPeaks
}

// Bins returns the bins of the non-sentinel entries
func (pl *PeakList) Bins() []int {
	bins := make([]int, 0, MaxPeaks)
	for _, p := range pl {
		if p.Bin == 0 {
			break
		}
		bins = append(bins, p.Bin)
	}
	return bins
}

// PeakExtractor finds the loudest local maxima of a magnitude spectrum
// It keeps a scratch slice between calls and is not safe for concurrent use
type PeakExtractor struct {
	candidates []Peak
}

// NewPeakExtractor creates a new peak extractor
func NewPeakExtractor() *PeakExtractor {
	return &PeakExtractor{
		candidates: make([]Peak, 0, 256),
	}
}

// Extract returns up to MaxPeaks local maxima of mag within [bottomBin, topBin]
// whose amplitude exceeds threshold. A bin is a peak when it rises above its
// left neighbour and the first bin after its plateau falls below it; a flat
// plateau contributes only its lowest bin. Ties in amplitude keep ascending
// bin order
func (pe *PeakExtractor) Extract(mag []float64, bottomBin, topBin int, threshold float64) PeakList {
	var out PeakList

	lo := max(bottomBin, 1)
	hi := min(topBin, len(mag)-2)
	if lo > hi {
		return out
	}

	pe.candidates = pe.candidates[:0]

	for i := lo; i <= hi; i++ {
		v := mag[i]
		if math.IsNaN(v) || v <= threshold || v <= mag[i-1] {
			continue
		}

		// Walk the plateau; the neighbour after it decides
		j := i + 1
		for j < len(mag)-1 && mag[j] == v {
			j++
		}
		if mag[j] < v {
			pe.candidates = append(pe.candidates, Peak{Bin: i, Amplitude: v})
		}
	}

	sort.SliceStable(pe.candidates, func(a, b int) bool {
		return pe.candidates[a].Amplitude > pe.candidates[b].Amplitude
	})

	copy(out[:], pe.candidates)
	return out
}

// RefineFrequency refines a peak location using parabolic interpolation over
// its two neighbours and returns the frequency in Hz
func RefineFrequency(mag []float64, bin int, binWidth float64) float64 {
	if bin <= 0 || bin >= len(mag)-1 {
		return float64(bin) * binWidth
	}

	y1 := mag[bin-1]
	y2 := mag[bin]
	y3 := mag[bin+1]

	denom := 2.0 * (2.0*y2 - y1 - y3)
	if math.Abs(denom) < 1e-10 {
		return float64(bin) * binWidth
	}

	offset := (y3 - y1) / denom
	return (float64(bin) + offset) * binWidth
}
