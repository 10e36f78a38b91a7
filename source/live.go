package source

import (
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/RyanBlaney/notespectrum/algorithms/common"
	"github.com/RyanBlaney/notespectrum/algorithms/filters"
	"github.com/RyanBlaney/notespectrum/algorithms/spectral"
	"github.com/RyanBlaney/notespectrum/config"
	"github.com/RyanBlaney/notespectrum/logging"
)

// Microphone DC offset is removed below this frequency, well under C1
const liveDCCutoff = 10.0

// Live captures the default input device through PortAudio
type Live struct {
	mu     sync.Mutex
	logger logging.Logger
	stream *portaudio.Stream
	state  State

	sampleRate      int
	framesPerBuffer int
	ring            *common.SampleRing
	analyzer        *spectral.MagnitudeAnalyzer
	block           []float64
	lastTotal       uint64

	// owned by the audio callback
	scratch []float64
	dc      *filters.DCBlocker
}

// NewLive creates a capture source; the device is opened by Start
func NewLive(cfg *config.AnalysisConfig) (*Live, error) {
	analyzer, err := spectral.NewMagnitudeAnalyzer(cfg.FFTLength)
	if err != nil {
		return nil, err
	}

	hop := hopSize(cfg)
	return &Live{
		logger:          logging.WithFields(logging.Fields{"component": "source", "kind": "live"}),
		sampleRate:      cfg.SampleRate,
		framesPerBuffer: hop,
		ring:            common.NewSampleRing(cfg.FFTLength),
		analyzer:        analyzer,
		block:           make([]float64, cfg.FFTLength),
		scratch:         make([]float64, hop),
		dc:              filters.NewDCBlocker(cfg.SampleRate, liveDCCutoff),
	}, nil
}

// Start opens the default input stream, or resumes a paused one
func (l *Live) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case Playing:
		return nil
	case Paused:
		if err := l.stream.Start(); err != nil {
			return err
		}
		l.state = Playing
		l.logger.Debug("Capture resumed")
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		l.logger.Error(err, "Failed to initialize PortAudio")
		return err
	}

	stream, err := portaudio.OpenDefaultStream(
		1, // input channels
		0, // output channels
		float64(l.sampleRate),
		l.framesPerBuffer,
		l.process,
	)
	if err != nil {
		portaudio.Terminate()
		l.logger.Error(err, "Failed to open input stream")
		return err
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		l.logger.Error(err, "Failed to start input stream")
		return err
	}

	l.stream = stream
	l.state = Playing
	l.logger.Info("Capture started", logging.Fields{
		"sample_rate":       l.sampleRate,
		"frames_per_buffer": l.framesPerBuffer,
	})
	return nil
}

// Pause stops the device without releasing it
func (l *Live) Pause() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != Playing {
		return ErrNotPlaying
	}
	if err := l.stream.Stop(); err != nil {
		return err
	}
	l.state = Paused
	l.logger.Debug("Capture paused")
	return nil
}

// Stop releases the device and forgets captured audio
func (l *Live) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == Stopped {
		return nil
	}

	if l.state == Playing {
		if err := l.stream.Stop(); err != nil {
			return err
		}
	}
	if err := l.stream.Close(); err != nil {
		return err
	}
	if err := portaudio.Terminate(); err != nil {
		return err
	}

	l.stream = nil
	l.dc.Reset()
	l.ring.Clear()
	l.lastTotal = 0
	l.state = Stopped
	l.logger.Info("Capture stopped")
	return nil
}

// State returns the transport state
func (l *Live) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Spectrum analyzes the newest captured block; false until the device has
// delivered a full block, or when nothing arrived since the previous call
func (l *Live) Spectrum(dst []float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != Playing {
		return false
	}

	total := l.ring.Total()
	if total == l.lastTotal || !l.ring.Latest(l.block) {
		return false
	}
	if err := l.analyzer.Analyze(dst, l.block); err != nil {
		l.logger.Warn("Spectrum analysis failed", logging.Fields{"error": err.Error()})
		return false
	}

	l.lastTotal = total
	return true
}

// process is the PortAudio callback
func (l *Live) process(in []float32) {
	if len(l.scratch) < len(in) {
		l.scratch = make([]float64, len(in))
	}
	block := l.scratch[:len(in)]
	for i, sample := range in {
		block[i] = float64(sample)
	}
	l.dc.Process(block, block)
	l.ring.Write(block)
}
