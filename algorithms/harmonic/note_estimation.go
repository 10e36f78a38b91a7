package harmonic

import (
	"sort"

	"github.com/RyanBlaney/notespectrum/algorithms/scale"
)

const (
	// MaxNotesOut is the fixed capacity of a NoteList
	MaxNotesOut = 8

	// NoNote marks an empty NoteList slot
	NoNote = 99

	// SieveHarmonics is the number of harmonics tested per peak
	SieveHarmonics = 6

	// MinHarmonicVotes is the score a fundamental needs to be accepted
	MinHarmonicVotes = 3
)

// NoteList holds the notes judged to be sounding, ascending, NoNote padded
type NoteList [MaxNotesOut]int

// EmptyNoteList returns a list with every slot set to NoNote
func EmptyNoteList() NoteList {
	var nl NoteList
	for i := range nl {
		nl[i] = NoNote
	}
	return nl
}

// Notes returns the non-sentinel entries
func (nl *NoteList) Notes() []int {
	notes := make([]int, 0, MaxNotesOut)
	for _, n := range nl {
		if n == NoNote {
			break
		}
		notes = append(notes, n)
	}
	return notes
}

// Contains reports whether note is in the list
func (nl *NoteList) Contains(note int) bool {
	for _, n := range nl {
		if n == note {
			return true
		}
	}
	return false
}

// NoteEstimator infers sounding fundamentals from a peak list with a harmonic
// sieve: every peak votes for the notes it could be harmonic 1..6 of
type NoteEstimator struct {
	tables  *scale.Tables
	borders []float64 // EstimatorNotes borders + sentinel

	score       [scale.EstimatorNotes]int
	fundamental [scale.EstimatorNotes]bool
}

// NewNoteEstimator creates an estimator over the six-octave note range
func NewNoteEstimator(tables *scale.Tables) *NoteEstimator {
	return &NoteEstimator{
		tables:  tables,
		borders: tables.NoteBorders6(),
	}
}

// Estimate returns the accepted notes for peaks. A note is accepted when a
// peak sits inside it as a fundamental and at least MinHarmonicVotes of the
// (harmonic, peak) pairs land inside its borders
func (ne *NoteEstimator) Estimate(peaks PeakList) NoteList {
	ne.score = [scale.EstimatorNotes]int{}
	ne.fundamental = [scale.EstimatorNotes]bool{}

	for h := 1; h <= SieveHarmonics; h++ {
		for _, p := range peaks {
			if p.Bin == 0 {
				continue
			}
			f := ne.tables.BinFrequency(p.Bin) / float64(h)
			n := ne.noteStrictlyContaining(f)
			if n < 0 {
				continue
			}
			ne.score[n]++
			if h == 1 {
				ne.fundamental[n] = true
			}
		}
	}

	out := EmptyNoteList()
	k := 0
	for n := 0; n < scale.EstimatorNotes && k < MaxNotesOut; n++ {
		if ne.fundamental[n] && ne.score[n] >= MinHarmonicVotes {
			out[k] = n
			k++
		}
	}

	return out
}

// noteStrictlyContaining returns the note whose open border interval holds f,
// or -1 (including when f sits exactly on a border)
func (ne *NoteEstimator) noteStrictlyContaining(f float64) int {
	last := len(ne.borders) - 1
	if f <= ne.borders[0] || f >= ne.borders[last] {
		return -1
	}

	lo := sort.SearchFloat64s(ne.borders, f)
	if ne.borders[lo] == f {
		return -1
	}
	return lo - 1
}
