package spectral

import (
	"fmt"
	"math/cmplx"

	"github.com/RyanBlaney/notespectrum/algorithms/common"
	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// FFT provides Fast Fourier Transform functionality
type FFT struct{}

// NewFFT creates a new FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// Compute computes Fast Fourier Transform using mjibson/go-dsp
// Takes []float64 input and returns []complex128 output
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}

	return fft.FFTReal(x)
}

// MagnitudeAnalyzer turns a block of PCM samples into a linear magnitude
// spectrum of size/2 bins. A full-scale sine centered on a bin reads ~1.0
type MagnitudeAnalyzer struct {
	fft    *FFT
	size   int
	window []float64
	scale  float64
	frame  []float64
}

// NewMagnitudeAnalyzer creates an analyzer for blocks of size samples
func NewMagnitudeAnalyzer(size int) (*MagnitudeAnalyzer, error) {
	if size < 2 || !common.IsPowerOfTwo(size) {
		return nil, fmt.Errorf("analysis size must be a power of two >= 2, got %d", size)
	}

	w := window.Hann(size)
	sum := 0.0
	for _, c := range w {
		sum += c
	}

	return &MagnitudeAnalyzer{
		fft:    NewFFT(),
		size:   size,
		window: w,
		scale:  2.0 / sum,
		frame:  make([]float64, size),
	}, nil
}

// Size returns the number of samples per analysis block
func (m *MagnitudeAnalyzer) Size() int {
	return m.size
}

// BinCount returns the number of magnitude bins produced
func (m *MagnitudeAnalyzer) BinCount() int {
	return m.size / 2
}

// Analyze windows samples and writes their magnitude spectrum into dst
// Not safe for concurrent use: the windowed frame is reused between calls
func (m *MagnitudeAnalyzer) Analyze(dst, samples []float64) error {
	if len(samples) != m.size {
		return fmt.Errorf("sample block (%d) doesn't match analysis size (%d)", len(samples), m.size)
	}
	if len(dst) < m.BinCount() {
		return fmt.Errorf("magnitude buffer (%d) shorter than bin count (%d)", len(dst), m.BinCount())
	}

	for i, s := range samples {
		m.frame[i] = s * m.window[i]
	}

	spectrum := m.fft.Compute(m.frame)
	for k := range m.BinCount() {
		dst[k] = cmplx.Abs(spectrum[k]) * m.scale
	}

	return nil
}
