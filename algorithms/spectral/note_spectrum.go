package spectral

import (
	"errors"
	"fmt"
	"math"

	"github.com/RyanBlaney/notespectrum/algorithms/common"
	"github.com/RyanBlaney/notespectrum/algorithms/scale"
)

// ErrResampleRange is returned when the requested note range reaches past the
// last magnitude bin
var ErrResampleRange = errors.New("note spectrum range exceeds the magnitude spectrum")

// NoteSpectrum resamples a linear-frequency magnitude spectrum onto a
// note-aligned logarithmic axis: pointsPerNote points per semitone starting
// at the lower border of C1
type NoteSpectrum struct {
	octaves       int
	pointsPerNote int
	binCount      int

	positions []float64 // fractional bin position of every output point
	lower     []int     // lower bracketing bin
	weight    []float64 // interpolation weight of lower+1
}

// NewNoteSpectrum precomputes the fractional bin index of every output point
func NewNoteSpectrum(tables *scale.Tables, octaves, pointsPerNote int) (*NoteSpectrum, error) {
	if octaves < 1 || octaves > scale.MaxOctaves {
		return nil, fmt.Errorf("octave count must be in [1, %d], got %d", scale.MaxOctaves, octaves)
	}
	if pointsPerNote < 1 {
		return nil, fmt.Errorf("points per note must be positive, got %d", pointsPerNote)
	}

	n := octaves * scale.NotesPerOctave * pointsPerNote
	ns := &NoteSpectrum{
		octaves:       octaves,
		pointsPerNote: pointsPerNote,
		binCount:      tables.BinCount(),
		positions:     make([]float64, n),
		lower:         make([]int, n),
		weight:        make([]float64, n),
	}

	pointsPerOctave := float64(scale.NotesPerOctave * pointsPerNote)
	for p := range n {
		pos := scale.BaseFrequency * math.Pow(2, float64(p)/pointsPerOctave) / tables.BinWidth()
		ns.positions[p] = pos
		ns.lower[p], ns.weight[p] = common.FractionalIndex(pos)
	}

	if last := ns.lower[n-1] + 1; last >= ns.binCount {
		return nil, fmt.Errorf("%w: needs bin %d of %d", ErrResampleRange, last, ns.binCount)
	}

	return ns, nil
}

// Len returns the number of output points
func (ns *NoteSpectrum) Len() int {
	return len(ns.positions)
}

// PointsPerNote returns the resolution of the output axis
func (ns *NoteSpectrum) PointsPerNote() int {
	return ns.pointsPerNote
}

// Positions returns a copy of the fractional bin index of each output point
func (ns *NoteSpectrum) Positions() []float64 {
	return append([]float64(nil), ns.positions...)
}

// Resample writes the interpolated spectrum into dst (up to Len points)
// Each point blends the two bins bracketing its fractional position; results
// are clamped to [0, 1] so malformed input never leaks NaN or negatives
func (ns *NoteSpectrum) Resample(dst, src []float64) {
	n := min(len(dst), len(ns.positions))
	for p := range n {
		i := ns.lower[p]
		var v float64
		if i+1 < len(src) {
			v = src[i] + ns.weight[p]*(src[i+1]-src[i])
		} else {
			v = common.LinearAt(src, ns.positions[p])
		}
		dst[p] = common.Clamp(v, 0, 1)
	}
}

// Compute allocates and returns the note spectrum of src
func (ns *NoteSpectrum) Compute(src []float64) []float64 {
	out := make([]float64, len(ns.positions))
	ns.Resample(out, src)
	return out
}
