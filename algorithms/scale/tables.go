// Package scale derives the frequency, bin and note boundary tables that the
// rest of the analysis core shares. Tables are built once and never mutated.
package scale

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/RyanBlaney/notespectrum/algorithms/common"
)

const (
	// ReferencePitch is A4 in Hz
	ReferencePitch = 440.0

	NotesPerOctave = 12

	// MaxOctaves is the number of octaves covered by the tables (C1..B8)
	MaxOctaves = 8

	// EstimatorOctaves is the range used for note estimation (C1..B6)
	EstimatorOctaves = 6

	MaxNotes       = MaxOctaves * NotesPerOctave
	EstimatorNotes = EstimatorOctaves * NotesPerOctave
)

var (
	// SemitoneRatio is the equal-tempered frequency ratio between adjacent notes
	SemitoneRatio = math.Pow(2, 1.0/NotesPerOctave)

	// LowestNote is C1, 45 semitones below A4
	LowestNote = ReferencePitch * math.Pow(2, -45.0/NotesPerOctave)

	// BaseFrequency is the left border of octave 0, half a semitone below C1
	BaseFrequency = LowestNote * math.Pow(2, -1.0/(2*NotesPerOctave))
)

var (
	ErrInvalidSampleRate      = errors.New("sample rate must be positive")
	ErrInvalidFFTLength       = errors.New("fft length must be a power of two >= 2")
	ErrInsufficientResolution = errors.New("fft resolution cannot represent every octave")
)

var noteNames = [NotesPerOctave]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Octave describes one octave band in frequency and bin space
type Octave struct {
	LeftFreq  float64 // half a semitone below C
	RightFreq float64 // half a semitone above B
	BottomBin int     // first bin with frequency >= LeftFreq
	TopBin    int     // last bin with frequency < RightFreq
	BinCount  int
}

// Tables holds every lookup table derived from the musical constants and the
// transform geometry
type Tables struct {
	sampleRate int
	fftLength  int
	binCount   int
	binWidth   float64

	octaves      [MaxOctaves]Octave
	noteBorders  []float64 // MaxNotes borders + upper sentinel
	noteBorders6 []float64 // EstimatorNotes borders + upper sentinel

	xPositions []float64 // per bin position inside its octave, -1 outside
	x3         []float64
	x6         []float64
	x8         []float64
	x3of6      []float64
}

// NewTables builds the tables for a transform of fftLength samples at sampleRate
func NewTables(sampleRate, fftLength int) (*Tables, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSampleRate, sampleRate)
	}
	if fftLength < 2 || !common.IsPowerOfTwo(fftLength) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidFFTLength, fftLength)
	}

	binCount := fftLength / 2
	t := &Tables{
		sampleRate: sampleRate,
		fftLength:  fftLength,
		binCount:   binCount,
		binWidth:   float64(sampleRate) / 2 / float64(binCount),
	}

	nyquist := float64(sampleRate) / 2
	top := BaseFrequency * math.Pow(2, MaxOctaves)
	if top >= nyquist {
		return nil, fmt.Errorf("%w: top octave ends at %.1f Hz, nyquist is %.1f Hz",
			ErrInsufficientResolution, top, nyquist)
	}

	if err := t.buildOctaves(); err != nil {
		return nil, err
	}

	t.noteBorders = buildNoteBorders(MaxNotes)
	t.noteBorders6 = buildNoteBorders(EstimatorNotes)
	t.buildXPositions()

	return t, nil
}

// buildOctaves scans the bins once in increasing order, capturing the first
// bin at or above each left border and the last bin below each right border
func (t *Tables) buildOctaves() error {
	left := BaseFrequency
	for o := range MaxOctaves {
		t.octaves[o] = Octave{
			LeftFreq:  left,
			RightFreq: left * 2,
			BottomBin: -1,
			TopBin:    -1,
		}
		left *= 2
	}

	o := 0
	for bin := 0; bin < t.binCount && o < MaxOctaves; bin++ {
		freq := t.BinFrequency(bin)
		for o < MaxOctaves && freq >= t.octaves[o].RightFreq {
			o++
		}
		if o == MaxOctaves {
			break
		}
		if freq < t.octaves[o].LeftFreq {
			continue
		}
		if t.octaves[o].BottomBin < 0 {
			t.octaves[o].BottomBin = bin
		}
		t.octaves[o].TopBin = bin
	}

	for o := range t.octaves {
		oct := &t.octaves[o]
		if oct.BottomBin < 0 || oct.TopBin < oct.BottomBin {
			return fmt.Errorf("%w: octave %d (%.1f-%.1f Hz) has no bins at %.2f Hz per bin",
				ErrInsufficientResolution, o, oct.LeftFreq, oct.RightFreq, t.binWidth)
		}
		oct.BinCount = oct.TopBin - oct.BottomBin + 1
	}

	return nil
}

func buildNoteBorders(notes int) []float64 {
	borders := make([]float64, notes+1)
	borders[0] = BaseFrequency
	for n := 1; n <= notes; n++ {
		borders[n] = borders[n-1] * SemitoneRatio
	}
	return borders
}

func (t *Tables) buildXPositions() {
	t.xPositions = make([]float64, t.binCount)
	t.x3 = make([]float64, t.binCount)
	t.x6 = make([]float64, t.binCount)
	t.x8 = make([]float64, t.binCount)
	t.x3of6 = make([]float64, t.binCount)

	for bin := range t.binCount {
		t.xPositions[bin] = -1
		t.x3[bin] = -1
		t.x6[bin] = -1
		t.x8[bin] = -1
		t.x3of6[bin] = -1
	}

	for o, oct := range t.octaves {
		for bin := oct.BottomBin; bin <= oct.TopBin; bin++ {
			x := math.Log2(t.BinFrequency(bin) / oct.LeftFreq)
			t.xPositions[bin] = x

			pos := float64(o) + x
			if o < 3 {
				t.x3[bin] = pos / 3
			}
			if o < 6 {
				t.x6[bin] = pos / 6
			}
			t.x8[bin] = pos / 8
			if o >= 3 && o < 6 {
				t.x3of6[bin] = (pos - 3) / 3
			}
		}
	}
}

// SampleRate returns the sample rate the tables were built for
func (t *Tables) SampleRate() int { return t.sampleRate }

// FFTLength returns the transform length the tables were built for
func (t *Tables) FFTLength() int { return t.fftLength }

// BinCount returns the number of magnitude bins per frame (fftLength/2)
func (t *Tables) BinCount() int { return t.binCount }

// BinWidth returns the frequency spacing of adjacent bins in Hz
func (t *Tables) BinWidth() float64 { return t.binWidth }

// BinFrequency returns the frequency of bin in Hz
func (t *Tables) BinFrequency(bin int) float64 {
	return float64(bin) * t.binWidth
}

// Octaves returns a copy of the octave table
func (t *Tables) Octaves() [MaxOctaves]Octave { return t.octaves }

// Octave returns one row of the octave table
func (t *Tables) Octave(o int) Octave { return t.octaves[o] }

// SubBandLength is the number of bins from 0 up to the top of the given
// number of octaves
func (t *Tables) SubBandLength(octaves int) int {
	octaves = max(1, min(octaves, MaxOctaves))
	return t.octaves[octaves-1].TopBin + 1
}

// NoteBorders returns the 96 note left borders plus the upper sentinel
func (t *Tables) NoteBorders() []float64 {
	return append([]float64(nil), t.noteBorders...)
}

// NoteBorders6 returns the 72 note left borders of the estimator range plus
// the upper sentinel
func (t *Tables) NoteBorders6() []float64 {
	return append([]float64(nil), t.noteBorders6...)
}

// XPositions returns each bin's position inside its octave on a log axis
func (t *Tables) XPositions() []float64 { return append([]float64(nil), t.xPositions...) }

// XProjection3 maps bins of the lowest three octaves onto [0,1)
func (t *Tables) XProjection3() []float64 { return append([]float64(nil), t.x3...) }

// XProjection6 maps bins of the lowest six octaves onto [0,1)
func (t *Tables) XProjection6() []float64 { return append([]float64(nil), t.x6...) }

// XProjection8 maps bins of all eight octaves onto [0,1)
func (t *Tables) XProjection8() []float64 { return append([]float64(nil), t.x8...) }

// XProjection3of6 maps bins of octaves 3..5 (the top half of the six-octave
// range) onto [0,1)
func (t *Tables) XProjection3of6() []float64 { return append([]float64(nil), t.x3of6...) }

// NoteName returns the scientific pitch name of note n ("C1", "F#3"), or ""
// outside the table
func NoteName(n int) string {
	if n < 0 || n >= MaxNotes {
		return ""
	}
	return noteNames[n%NotesPerOctave] + strconv.Itoa(n/NotesPerOctave+1)
}

// NoteFrequency returns the equal-tempered center frequency of note n
func NoteFrequency(n int) float64 {
	return LowestNote * math.Pow(SemitoneRatio, float64(n))
}

// NoteForFrequency returns the note whose border interval contains freq, or -1
func (t *Tables) NoteForFrequency(freq float64) int {
	if freq < t.noteBorders[0] || freq >= t.noteBorders[MaxNotes] {
		return -1
	}
	// First border strictly above freq, minus one
	return sort.SearchFloat64s(t.noteBorders, math.Nextafter(freq, math.Inf(1))) - 1
}
