// Package pipeline drives the per-tick analysis: it pulls a magnitude spectrum
// from the audio source, applies the user parameters, extracts peaks and notes,
// resamples onto the note axis and publishes the result
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/RyanBlaney/notespectrum/algorithms/harmonic"
	"github.com/RyanBlaney/notespectrum/algorithms/scale"
	"github.com/RyanBlaney/notespectrum/algorithms/spectral"
	"github.com/RyanBlaney/notespectrum/config"
	"github.com/RyanBlaney/notespectrum/enhance"
	"github.com/RyanBlaney/notespectrum/logging"
)

// SpectrumSource delivers one linear magnitude spectrum per tick
// Spectrum copies the newest frame into dst and returns false when no frame
// is available; it must not block
type SpectrumSource interface {
	Spectrum(dst []float64) bool
}

// Enhancer replaces a spectrum with its noise-suppressed version
type Enhancer interface {
	Enhance(dst, src []float64)
}

// Stats counts pipeline activity
type Stats struct {
	Ticks          uint64 // frames published
	Gaps           uint64 // ticks without a source frame
	SpectrumWrites uint64 // sub-band spectra recorded after decimation
	Skipped        uint64 // period boundaries dropped by the scheduler
	Overruns       uint64 // ticks that ran past the next boundary
}

// Option configures a Pipeline
type Option func(*options)

type options struct {
	cfg      *config.AnalysisConfig
	logger   logging.Logger
	enhancer Enhancer
	clock    Clock
}

// WithConfig replaces the default analysis configuration
func WithConfig(cfg *config.AnalysisConfig) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithLogger sets the logger used by the pipeline
func WithLogger(logger logging.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithEnhancer replaces the default spectral enhancer
func WithEnhancer(e Enhancer) Option {
	return func(o *options) { o.enhancer = e }
}

// WithClock replaces the wall clock used for scheduling and frame timestamps
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// Pipeline owns the tables, analysis stages and history of one session
// Tick and Run must be called from a single goroutine; every other method is
// safe for concurrent use
type Pipeline struct {
	id     uuid.UUID
	cfg    *config.AnalysisConfig
	logger logging.Logger
	clock  Clock

	src      SpectrumSource
	enhancer Enhancer

	tables    *scale.Tables
	resampler *spectral.NoteSpectrum
	peaks     *harmonic.PeakExtractor
	estimator *harmonic.NoteEstimator
	params    *Params
	history   *History
	scheduler *Scheduler

	peakBottom int
	peakTop    int
	subBandLen int

	// Driver-owned scratch and state
	raw        []float64
	gained     []float64
	enhanced   []float64
	decimation int
	gapRun     uint64
	latest     atomic.Pointer[Frame]
	ticks      atomic.Uint64
	gaps       atomic.Uint64
}

// New builds a pipeline reading from src. Configuration problems are reported
// here, before anything is scheduled
func New(src SpectrumSource, opts ...Option) (*Pipeline, error) {
	if src == nil {
		return nil, errors.New("pipeline requires a spectrum source")
	}

	o := options{clock: systemClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.cfg == nil {
		o.cfg = config.DefaultAnalysisConfig()
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}

	cfg := o.cfg
	tables, err := scale.NewTables(cfg.SampleRate, cfg.FFTLength)
	if err != nil {
		return nil, fmt.Errorf("failed to build scale tables: %w", err)
	}

	resampler, err := spectral.NewNoteSpectrum(tables, cfg.NoteOctaves, cfg.PointsPerNote)
	if err != nil {
		return nil, fmt.Errorf("failed to build note spectrum: %w", err)
	}

	subBandLen := tables.SubBandLength(cfg.SubBandOctaves)
	history, err := newHistory(cfg.SpectrumHistory, cfg.ListHistory, subBandLen, resampler.Len())
	if err != nil {
		return nil, err
	}

	peakBottom := cfg.PeakBottomBin
	if peakBottom == 0 {
		peakBottom = tables.Octave(0).BottomBin
	}
	// Harmonics 2..6 of the top estimator notes lie above octave 5
	peakTop := cfg.PeakTopBin
	if peakTop == 0 {
		peakTop = tables.Octave(scale.MaxOctaves - 1).TopBin
	}
	if peakBottom > peakTop || peakBottom >= tables.BinCount() {
		return nil, fmt.Errorf("%w: peak band %d-%d invalid for %d bins",
			config.ErrInvalidConfig, peakBottom, peakTop, tables.BinCount())
	}

	id := uuid.New()
	logger := o.logger
	if logger == nil {
		logger = logging.WithFields(logging.Fields{"component": "pipeline"})
	}
	logger = logger.WithFields(logging.Fields{"session": id.String()})

	enhancer := o.enhancer
	if enhancer == nil {
		enhancer = enhance.New(cfg.Enhancer)
	}

	binCount := tables.BinCount()
	p := &Pipeline{
		id:         id,
		cfg:        cfg,
		logger:     logger,
		clock:      o.clock,
		src:        src,
		enhancer:   enhancer,
		tables:     tables,
		resampler:  resampler,
		peaks:      harmonic.NewPeakExtractor(),
		estimator:  harmonic.NewNoteEstimator(tables),
		params:     NewParams(cfg.Params),
		history:    history,
		scheduler:  NewScheduler(cfg.TickRate, o.clock),
		peakBottom: peakBottom,
		peakTop:    peakTop,
		subBandLen: subBandLen,
		raw:        make([]float64, binCount),
		gained:     make([]float64, binCount),
		enhanced:   make([]float64, binCount),
	}

	logger.Debug("Pipeline created", logging.Fields{
		"sample_rate":    cfg.SampleRate,
		"fft_length":     cfg.FFTLength,
		"bins":           binCount,
		"sub_band_bins":  subBandLen,
		"note_points":    resampler.Len(),
		"peak_band":      fmt.Sprintf("%d-%d", peakBottom, peakTop),
		"tick_rate":      cfg.TickRate,
		"spectrum_depth": cfg.SpectrumHistory,
		"list_depth":     cfg.ListHistory,
	})

	return p, nil
}

// Tick processes one frame. It returns false when the source had no frame;
// such a gap leaves the history, the decimation phase and the published frame
// untouched
func (p *Pipeline) Tick() bool {
	if !p.src.Spectrum(p.raw) {
		p.gaps.Add(1)
		if p.gapRun == 0 {
			p.logger.Debug("Frame delivery gap", logging.Fields{"tick": p.ticks.Load()})
		}
		p.gapRun++
		return false
	}
	if p.gapRun > 0 {
		p.logger.Debug("Frame delivery resumed", logging.Fields{"gap_ticks": p.gapRun})
		p.gapRun = 0
	}

	params := p.params.Snapshot()

	ApplyGain(p.gained, p.raw, params.Gain, params.Slope)
	spectrum := p.gained
	if params.OnlyPeaks {
		p.enhancer.Enhance(p.enhanced, p.gained)
		spectrum = p.enhanced
	}

	peaks := p.peaks.Extract(spectrum, p.peakBottom, p.peakTop, p.cfg.PeakThreshold)
	notes := p.estimator.Estimate(peaks)

	frame := &Frame{
		Tick:         p.ticks.Load() + 1,
		Time:         p.clock.Now(),
		Spectrum:     append([]float64(nil), spectrum[:p.subBandLen]...),
		NoteSpectrum: p.resampler.Compute(spectrum),
		Peaks:        peaks,
		Notes:        notes,
		Params:       params,
	}

	if err := p.history.push(frame, p.decimate(params.Decimation)); err != nil {
		// Block sizes are fixed at construction, so this is a programming error
		p.logger.Error(err, "Failed to record frame history", logging.Fields{"tick": frame.Tick})
	}

	p.latest.Store(frame)
	p.ticks.Add(1)
	return true
}

// decimate advances the decimation phase and reports whether this tick writes
// the sub-band spectrum history: one tick of every d+1, starting with the first
func (p *Pipeline) decimate(d int) bool {
	if p.decimation > d {
		p.decimation = 0
	}
	write := p.decimation == 0
	p.decimation = (p.decimation + 1) % (d + 1)
	return write
}

// Run ticks at the configured rate until ctx is cancelled
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("Pipeline started", logging.Fields{
		"tick_rate": p.cfg.TickRate,
		"period":    p.scheduler.Period().String(),
	})

	err := p.scheduler.Run(ctx, func(time.Time) { p.Tick() })

	stats := p.Stats()
	p.logger.Info("Pipeline stopped", logging.Fields{
		"ticks":    stats.Ticks,
		"gaps":     stats.Gaps,
		"skipped":  stats.Skipped,
		"overruns": stats.Overruns,
	})

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// Latest returns the most recently published frame, nil before the first one
func (p *Pipeline) Latest() *Frame { return p.latest.Load() }

// History returns the frame history rings
func (p *Pipeline) History() *History { return p.history }

// Params returns the user-adjustable parameters
func (p *Pipeline) Params() *Params { return p.params }

// Tables returns the shared, immutable scale tables
func (p *Pipeline) Tables() *scale.Tables { return p.tables }

// NoteSpectrum returns the resampler, for consumers that need its positions
func (p *Pipeline) NoteSpectrum() *spectral.NoteSpectrum { return p.resampler }

// Config returns the configuration the pipeline was built with
func (p *Pipeline) Config() *config.AnalysisConfig { return p.cfg }

// ID returns the session id
func (p *Pipeline) ID() uuid.UUID { return p.id }

// PeakBand returns the bin range searched for peaks
func (p *Pipeline) PeakBand() (bottom, top int) { return p.peakBottom, p.peakTop }

// Stats returns a snapshot of the activity counters
func (p *Pipeline) Stats() Stats {
	return Stats{
		Ticks:          p.ticks.Load(),
		Gaps:           p.gaps.Load(),
		SpectrumWrites: p.history.SpectrumWrites(),
		Skipped:        p.scheduler.Skipped(),
		Overruns:       p.scheduler.Overruns(),
	}
}
