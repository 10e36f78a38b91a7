package source

import (
	"sync"

	"github.com/gopxl/beep"

	"github.com/RyanBlaney/notespectrum/algorithms/common"
	"github.com/RyanBlaney/notespectrum/algorithms/spectral"
	"github.com/RyanBlaney/notespectrum/config"
	"github.com/RyanBlaney/notespectrum/logging"
)

// streamSource drives a beep.Streamer from the analysis tick: every Spectrum
// call pulls one hop of audio, appends it to a sample ring and analyzes the
// newest fftLength samples
type streamSource struct {
	mu     sync.Mutex
	logger logging.Logger

	ctrl   *beep.Ctrl
	rewind func() (beep.Streamer, error) // nil when the stream can't restart
	state  State

	hop      int
	ring     *common.SampleRing
	analyzer *spectral.MagnitudeAnalyzer
	buf      [][2]float64
	mono     []float64
	block    []float64
}

func newStreamSource(cfg *config.AnalysisConfig, s beep.Streamer, rewind func() (beep.Streamer, error), logger logging.Logger) (*streamSource, error) {
	analyzer, err := spectral.NewMagnitudeAnalyzer(cfg.FFTLength)
	if err != nil {
		return nil, err
	}

	hop := hopSize(cfg)
	return &streamSource{
		logger:   logger,
		ctrl:     &beep.Ctrl{Streamer: s},
		rewind:   rewind,
		hop:      hop,
		ring:     common.NewSampleRing(cfg.FFTLength),
		analyzer: analyzer,
		buf:      make([][2]float64, hop),
		mono:     make([]float64, hop),
		block:    make([]float64, cfg.FFTLength),
	}, nil
}

// Start begins or resumes playback
func (s *streamSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Ended:
		return ErrEnded
	case Playing:
		return nil
	}

	s.ctrl.Paused = false
	s.state = Playing
	s.logger.Debug("Playback started")
	return nil
}

// Pause freezes playback; Start resumes from the same position
func (s *streamSource) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Playing {
		return ErrNotPlaying
	}

	s.ctrl.Paused = true
	s.state = Paused
	s.logger.Debug("Playback paused")
	return nil
}

// Stop halts playback, forgets buffered audio and rewinds when possible
func (s *streamSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Stopped {
		return nil
	}

	if s.rewind != nil {
		streamer, err := s.rewind()
		if err != nil {
			s.logger.Error(err, "Failed to rewind stream")
			return err
		}
		s.ctrl.Streamer = streamer
	}

	s.ring.Clear()
	s.ctrl.Paused = false
	s.state = Stopped
	s.logger.Debug("Playback stopped")
	return nil
}

// State returns the transport state
func (s *streamSource) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Spectrum advances playback by one hop and analyzes the newest block
func (s *streamSource) Spectrum(dst []float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Playing || s.ctrl.Paused {
		return false
	}

	filled := 0
	drained := false
	for filled < s.hop {
		n, ok := s.ctrl.Stream(s.buf[filled:s.hop])
		filled += n
		if !ok {
			drained = true
			break
		}
		if n == 0 {
			break
		}
	}

	for i := range filled {
		s.mono[i] = (s.buf[i][0] + s.buf[i][1]) / 2
	}
	s.ring.Write(s.mono[:filled])

	if drained {
		if err := s.ctrl.Err(); err != nil {
			s.logger.Error(err, "Audio stream failed")
		}
		s.state = Ended
		s.logger.Info("End of stream reached")
		return false
	}

	if !s.ring.Latest(s.block) {
		return false
	}
	if err := s.analyzer.Analyze(dst, s.block); err != nil {
		s.logger.Warn("Spectrum analysis failed", logging.Fields{"error": err.Error()})
		return false
	}
	return true
}
