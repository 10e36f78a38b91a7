package pipeline

import (
	"fmt"
	"time"

	"github.com/RyanBlaney/notespectrum/algorithms/common"
	"github.com/RyanBlaney/notespectrum/algorithms/harmonic"
)

// Frame is everything published for one tick. A published Frame is never
// modified; consumers may keep it as long as they like
type Frame struct {
	Tick         uint64
	Time         time.Time
	Spectrum     []float64 // processed magnitude spectrum, truncated to the sub-band
	NoteSpectrum []float64 // note-aligned resampled spectrum in [0, 1]
	Peaks        harmonic.PeakList
	Notes        harmonic.NoteList
	Params       ParamsSnapshot // parameters the frame was computed with
}

// History retains the most recent frames of every published signal
type History struct {
	spectrum     *common.BlockRing[float64]
	noteSpectrum *common.BlockRing[float64]
	peaks        *common.BlockRing[harmonic.PeakList]
	notes        *common.BlockRing[harmonic.NoteList]
}

func newHistory(spectrumDepth, listDepth, subBandLen, noteSpectrumLen int) (*History, error) {
	spectrum, err := common.NewBlockRing[float64](spectrumDepth, subBandLen)
	if err != nil {
		return nil, fmt.Errorf("spectrum history: %w", err)
	}
	noteSpectrum, err := common.NewBlockRing[float64](spectrumDepth, noteSpectrumLen)
	if err != nil {
		return nil, fmt.Errorf("note spectrum history: %w", err)
	}
	peaks, err := common.NewBlockRing[harmonic.PeakList](listDepth, 1)
	if err != nil {
		return nil, fmt.Errorf("peak history: %w", err)
	}
	notes, err := common.NewBlockRing[harmonic.NoteList](listDepth, 1)
	if err != nil {
		return nil, fmt.Errorf("note history: %w", err)
	}

	return &History{
		spectrum:     spectrum,
		noteSpectrum: noteSpectrum,
		peaks:        peaks,
		notes:        notes,
	}, nil
}

// push records f; the sub-band spectrum only when writeSpectrum is set
func (h *History) push(f *Frame, writeSpectrum bool) error {
	if writeSpectrum {
		if err := h.spectrum.Push(f.Spectrum); err != nil {
			return err
		}
	}
	if err := h.noteSpectrum.Push(f.NoteSpectrum); err != nil {
		return err
	}
	if err := h.peaks.Push([]harmonic.PeakList{f.Peaks}); err != nil {
		return err
	}
	return h.notes.Push([]harmonic.NoteList{f.Notes})
}

// Spectra returns the retained sub-band spectra, oldest first
func (h *History) Spectra() [][]float64 { return h.spectrum.Snapshot() }

// NoteSpectra returns the retained note spectra, oldest first
func (h *History) NoteSpectra() [][]float64 { return h.noteSpectrum.Snapshot() }

// Peaks returns the retained peak lists, oldest first
func (h *History) Peaks() []harmonic.PeakList { return flatten(h.peaks.Snapshot()) }

// Notes returns the retained note lists, oldest first
func (h *History) Notes() []harmonic.NoteList { return flatten(h.notes.Snapshot()) }

// SpectrumWrites returns how many sub-band spectra were ever written
func (h *History) SpectrumWrites() uint64 { return h.spectrum.Version() }

// Writes returns how many frames were ever recorded
func (h *History) Writes() uint64 { return h.notes.Version() }

func flatten[T any](blocks [][]T) []T {
	out := make([]T, len(blocks))
	for i, b := range blocks {
		out[i] = b[0]
	}
	return out
}
