// Package source provides the audio side of an analysis session: live
// capture, file playback and synthesized tones, each delivering one linear
// magnitude spectrum per analysis tick
package source

import (
	"errors"
	"fmt"

	"github.com/RyanBlaney/notespectrum/config"
)

// State is the transport state of a Source
type State int

const (
	Stopped State = iota
	Playing
	Paused
	Ended
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Ended:
		return "ended"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	ErrNotPlaying = errors.New("source is not playing")
	ErrEnded      = errors.New("source reached the end of its stream")
)

// Source is an audio collaborator of the pipeline
// Spectrum never blocks: it copies the newest magnitude frame (fftLength/2
// bins) into dst and reports false when none is available
type Source interface {
	Start() error
	Pause() error
	Stop() error
	State() State
	Spectrum(dst []float64) bool
}

// hopSize is the number of samples that elapse between two analysis ticks
func hopSize(cfg *config.AnalysisConfig) int {
	return max(int(float64(cfg.SampleRate)/cfg.TickRate), 1)
}
