package source

import (
	"fmt"
	"math"
	"time"

	"github.com/gopxl/beep"

	"github.com/RyanBlaney/notespectrum/algorithms/scale"
	"github.com/RyanBlaney/notespectrum/config"
	"github.com/RyanBlaney/notespectrum/logging"
)

// SynthHarmonics is the number of partials per synthesized note, fundamental
// included
const SynthHarmonics = 6

// Synth plays a chord of harmonic tones
type Synth struct {
	*streamSource
	notes []int
}

// NewSynth creates an endless tone source sounding the given notes (indices
// into the 96-note table, 0 = C1)
func NewSynth(cfg *config.AnalysisConfig, notes ...int) (*Synth, error) {
	return NewTimedSynth(cfg, 0, notes...)
}

// NewTimedSynth is NewSynth with the stream ending after d; d <= 0 never ends
func NewTimedSynth(cfg *config.AnalysisConfig, d time.Duration, notes ...int) (*Synth, error) {
	if len(notes) == 0 {
		return nil, fmt.Errorf("synth needs at least one note")
	}
	for _, n := range notes {
		if n < 0 || n >= scale.MaxNotes {
			return nil, fmt.Errorf("note %d outside 0..%d", n, scale.MaxNotes-1)
		}
	}

	rate := beep.SampleRate(cfg.SampleRate)
	build := func() beep.Streamer {
		var s beep.Streamer = newChord(notes, rate)
		if d > 0 {
			s = beep.Take(rate.N(d), s)
		}
		return s
	}
	rewind := func() (beep.Streamer, error) { return build(), nil }

	names := make([]string, len(notes))
	for i, n := range notes {
		names[i] = scale.NoteName(n)
	}
	logger := logging.WithFields(logging.Fields{
		"component": "source",
		"kind":      "synth",
		"notes":     names,
	})

	base, err := newStreamSource(cfg, build(), rewind, logger)
	if err != nil {
		return nil, err
	}
	return &Synth{streamSource: base, notes: append([]int(nil), notes...)}, nil
}

// Notes returns the synthesized note indices
func (s *Synth) Notes() []int {
	return append([]int(nil), s.notes...)
}

type partial struct {
	step float64 // phase increment per sample
	amp  float64
}

// chord is a phase-accumulating additive oscillator; partial h of each note
// has amplitude 1/h, scaled so the sum never exceeds full scale
type chord struct {
	partials []partial
	phase    []float64
}

func newChord(notes []int, rate beep.SampleRate) *chord {
	norm := 0.0
	for h := 1; h <= SynthHarmonics; h++ {
		norm += 1 / float64(h)
	}
	norm *= float64(len(notes))

	nyquist := float64(rate) / 2
	c := &chord{}
	for _, n := range notes {
		f := scale.NoteFrequency(n)
		for h := 1; h <= SynthHarmonics; h++ {
			fh := f * float64(h)
			if fh >= nyquist {
				break
			}
			c.partials = append(c.partials, partial{
				step: 2 * math.Pi * fh / float64(rate),
				amp:  1 / (float64(h) * norm),
			})
		}
	}
	c.phase = make([]float64, len(c.partials))
	return c
}

func (c *chord) Stream(samples [][2]float64) (int, bool) {
	for i := range samples {
		v := 0.0
		for j, p := range c.partials {
			v += p.amp * math.Sin(c.phase[j])
			c.phase[j] += p.step
			if c.phase[j] >= 2*math.Pi {
				c.phase[j] -= 2 * math.Pi
			}
		}
		samples[i][0] = v
		samples[i][1] = v
	}
	return len(samples), true
}

func (c *chord) Err() error { return nil }
