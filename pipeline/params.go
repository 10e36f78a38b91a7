package pipeline

import (
	"math"
	"sync/atomic"

	"github.com/RyanBlaney/notespectrum/algorithms/common"
	"github.com/RyanBlaney/notespectrum/config"
)

// AtomicFloat provides atomic float64 operations using bit conversion
// Zero value is ready to use (represents 0.0)
type AtomicFloat struct {
	bits atomic.Uint64
}

// Set stores a float64 value atomically
func (f *AtomicFloat) Set(val float64) {
	f.bits.Store(math.Float64bits(val))
}

// Get loads the float64 value atomically
func (f *AtomicFloat) Get() float64 {
	return math.Float64frombits(f.bits.Load())
}

// Params holds the user-adjustable parameters. Each one is an independent
// atomic scalar: a UI goroutine may write while the driver reads, and a reader
// sees either the old or the new value of each field
type Params struct {
	gain       AtomicFloat
	slope      AtomicFloat
	onlyPeaks  atomic.Bool
	decimation atomic.Int64
	option     atomic.Int32
}

// ParamsSnapshot is the per-tick copy of Params read by the pipeline
type ParamsSnapshot struct {
	Gain       float64
	Slope      float64
	OnlyPeaks  bool
	Decimation int
	Option     int
}

// NewParams creates parameters from their configured initial values
func NewParams(cfg config.ParamsConfig) *Params {
	p := &Params{}
	p.SetGain(cfg.Gain)
	p.SetSlope(cfg.Slope)
	p.SetOnlyPeaks(cfg.OnlyPeaks)
	p.SetDecimation(cfg.Decimation)
	p.SetOption(cfg.Option)
	return p
}

// SetGain stores gain clamped to [0, MaxGain] and returns the stored value
func (p *Params) SetGain(v float64) float64 {
	v = common.Clamp(v, 0, config.MaxGain)
	p.gain.Set(v)
	return v
}

// Gain returns the current gain
func (p *Params) Gain() float64 { return p.gain.Get() }

// SetSlope stores the treble slope clamped to [0, MaxSlope] and returns it
func (p *Params) SetSlope(v float64) float64 {
	v = common.Clamp(v, 0, config.MaxSlope)
	p.slope.Set(v)
	return v
}

// Slope returns the current treble slope
func (p *Params) Slope() float64 { return p.slope.Get() }

// SetOnlyPeaks toggles routing frames through the enhancer
func (p *Params) SetOnlyPeaks(on bool) { p.onlyPeaks.Store(on) }

// OnlyPeaks reports whether the enhancer is active
func (p *Params) OnlyPeaks() bool { return p.onlyPeaks.Load() }

// SetDecimation stores the sub-band history decimation (negative becomes 0)
func (p *Params) SetDecimation(n int) int {
	n = max(n, 0)
	p.decimation.Store(int64(n))
	return n
}

// Decimation returns the current sub-band history decimation
func (p *Params) Decimation() int { return int(p.decimation.Load()) }

// SetOption stores the renderer option index
func (p *Params) SetOption(n int) { p.option.Store(int32(n)) }

// Option returns the renderer option index
func (p *Params) Option() int { return int(p.option.Load()) }

// Snapshot reads every parameter once
func (p *Params) Snapshot() ParamsSnapshot {
	return ParamsSnapshot{
		Gain:       p.Gain(),
		Slope:      p.Slope(),
		OnlyPeaks:  p.OnlyPeaks(),
		Decimation: p.Decimation(),
		Option:     p.Option(),
	}
}
