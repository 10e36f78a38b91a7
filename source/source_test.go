package source

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"

	"github.com/RyanBlaney/notespectrum/config"
	"github.com/RyanBlaney/notespectrum/logging"
	"github.com/RyanBlaney/notespectrum/pipeline"
	"github.com/RyanBlaney/notespectrum/transcode"
)

func init() {
	logging.SetGlobalLogger(&logging.NoOpLogger{})
}

func smallConfig() *config.AnalysisConfig {
	cfg := config.DefaultAnalysisConfig()
	cfg.FFTLength = 4096
	return cfg
}

func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		Stopped:  "stopped",
		Playing:  "playing",
		Paused:   "paused",
		Ended:    "ended",
		State(9): "State(9)",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("String() = %q, want %q", s.String(), want)
		}
	}
}

func TestSynthRejectsNotes(t *testing.T) {
	cfg := config.DefaultAnalysisConfig()
	for _, notes := range [][]int{nil, {-1}, {12, 96}} {
		if _, err := NewSynth(cfg, notes...); err == nil {
			t.Errorf("NewSynth(%v) should fail", notes)
		}
	}
}

func TestSynthWaitsForFullBlock(t *testing.T) {
	cfg := config.DefaultAnalysisConfig() // hop 735, block 16384
	s, err := NewSynth(cfg, 33)
	if err != nil {
		t.Fatal(err)
	}

	dst := make([]float64, cfg.FFTLength/2)
	if s.Spectrum(dst) {
		t.Fatal("Spectrum delivered before Start")
	}
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}

	calls := 1
	for !s.Spectrum(dst) {
		calls++
		if calls > 100 {
			t.Fatal("no spectrum after 100 calls")
		}
	}
	if calls != 23 {
		t.Errorf("first spectrum on call %d, want 23", calls)
	}

	// A3 = 220 Hz sits between bins 81 and 82
	if peak := argmax(dst); peak != 82 {
		t.Errorf("strongest bin = %d, want 82", peak)
	}
	if v := dst[82]; v < 0.3 || v > 0.45 {
		t.Errorf("fundamental magnitude = %v, want ~0.39", v)
	}
}

func TestSynthTransport(t *testing.T) {
	cfg := smallConfig()
	s, err := NewSynth(cfg, 40)
	if err != nil {
		t.Fatal(err)
	}
	dst := make([]float64, cfg.FFTLength/2)

	if err := s.Pause(); !errors.Is(err, ErrNotPlaying) {
		t.Errorf("Pause() while stopped = %v, want ErrNotPlaying", err)
	}

	s.Start()
	for range 6 {
		s.Spectrum(dst)
	}
	if !s.Spectrum(dst) {
		t.Fatal("no spectrum after a full block")
	}

	if err := s.Pause(); err != nil {
		t.Fatal(err)
	}
	if s.State() != Paused || s.Spectrum(dst) {
		t.Error("paused source must not deliver")
	}

	s.Start()
	if s.State() != Playing || !s.Spectrum(dst) {
		t.Error("resumed source should deliver immediately")
	}

	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	s.Start()
	if s.Spectrum(dst) {
		t.Error("Stop should discard buffered audio")
	}
}

func TestTimedSynthEnds(t *testing.T) {
	cfg := smallConfig()
	s, err := NewTimedSynth(cfg, 100*time.Millisecond, 40) // 4410 samples, six hops
	if err != nil {
		t.Fatal(err)
	}
	dst := make([]float64, cfg.FFTLength/2)

	s.Start()
	for i := 1; i <= 6; i++ {
		got := s.Spectrum(dst)
		if want := i >= 6; got != want {
			t.Errorf("call %d delivered = %v, want %v", i, got, want)
		}
	}
	if s.Spectrum(dst) {
		t.Error("drained stream delivered a spectrum")
	}
	if s.State() != Ended {
		t.Fatalf("State() = %v, want ended", s.State())
	}
	if err := s.Start(); !errors.Is(err, ErrEnded) {
		t.Errorf("Start() after end = %v, want ErrEnded", err)
	}

	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start() after Stop = %v", err)
	}
	for range 5 {
		s.Spectrum(dst)
	}
	if !s.Spectrum(dst) {
		t.Error("rewound synth should play again")
	}
}

func TestSynthDrivesPipeline(t *testing.T) {
	s, err := NewSynth(config.DefaultAnalysisConfig(), 24) // C3
	if err != nil {
		t.Fatal(err)
	}
	p, err := pipeline.New(s, pipeline.WithLogger(&logging.NoOpLogger{}))
	if err != nil {
		t.Fatal(err)
	}
	s.Start()

	for range 23 {
		p.Tick()
	}

	stats := p.Stats()
	if stats.Ticks != 1 || stats.Gaps != 22 {
		t.Errorf("ticks = %d, gaps = %d, want 1 and 22", stats.Ticks, stats.Gaps)
	}

	frame := p.Latest()
	if frame == nil {
		t.Fatal("no frame published")
	}
	if !frame.Notes.Contains(24) {
		t.Errorf("notes %v don't include C3", frame.Notes.Notes())
	}
}

func writeWAV(t *testing.T, rate beep.SampleRate, d time.Duration, note int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	format := beep.Format{SampleRate: rate, NumChannels: 2, Precision: 2}
	if err := wav.Encode(f, beep.Take(rate.N(d), newChord([]int{note}, rate)), format); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFilePlayback(t *testing.T) {
	tests := []struct {
		name string
		rate beep.SampleRate
	}{
		{"native rate", 44100},
		{"resampled", 22050},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := smallConfig()
			path := writeWAV(t, tt.rate, 500*time.Millisecond, 33)

			f, err := OpenFile(path, cfg)
			if err != nil {
				t.Fatal(err)
			}
			defer f.Close()

			if d := f.Duration(); d < 490*time.Millisecond || d > 510*time.Millisecond {
				t.Errorf("Duration() = %v, want ~500ms", d)
			}

			dst := make([]float64, cfg.FFTLength/2)
			f.Start()
			delivered := 0
			for range 100 {
				if f.Spectrum(dst) {
					delivered++
					if delivered == 1 {
						// 220 Hz at 10.77 Hz per bin
						if peak := argmax(dst); peak != 20 {
							t.Errorf("strongest bin = %d, want 20", peak)
						}
					}
				}
				if f.State() == Ended {
					break
				}
			}

			if f.State() != Ended {
				t.Fatalf("State() = %v, want ended", f.State())
			}
			if delivered < 20 {
				t.Errorf("delivered %d spectra, want at least 20", delivered)
			}
		})
	}
}

func TestOpenFileMissing(t *testing.T) {
	if _, err := OpenFile(filepath.Join(t.TempDir(), "missing.wav"), smallConfig()); err == nil {
		t.Error("missing file should fail")
	}
}

func TestFFmpegFallbackChecksTools(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.flac")
	if err := os.WriteFile(path, []byte("fLaC"), 0o644); err != nil {
		t.Fatal(err)
	}

	decoderConfig := transcode.DefaultDecoderConfig()
	decoderConfig.FFmpegPath = filepath.Join(t.TempDir(), "ffmpeg")
	if _, _, err := decodeWithFFmpeg(path, decoderConfig); !errors.Is(err, transcode.ErrUnavailable) {
		t.Errorf("decode without ffmpeg = %v, want ErrUnavailable", err)
	}
}

func TestPCMStreamer(t *testing.T) {
	p := newPCMStreamer([]float64{0.1, 0.2, 0.3})

	buf := make([][2]float64, 2)
	if n, ok := p.Stream(buf); n != 2 || !ok || buf[1] != [2]float64{0.2, 0.2} {
		t.Errorf("Stream = %d, %v, %v", n, ok, buf)
	}
	if n, ok := p.Stream(buf); n != 1 || !ok {
		t.Errorf("tail Stream = %d, %v", n, ok)
	}
	if _, ok := p.Stream(buf); ok {
		t.Error("drained streamer reported ok")
	}

	if err := p.Seek(4); err == nil {
		t.Error("seek past the end should fail")
	}
	if err := p.Seek(0); err != nil || p.Position() != 0 || p.Len() != 3 {
		t.Errorf("Seek(0) = %v, position %d", err, p.Position())
	}
}

func TestLiveDeliversNewAudioOnly(t *testing.T) {
	cfg := smallConfig()
	l, err := NewLive(cfg)
	if err != nil {
		t.Fatal(err)
	}
	dst := make([]float64, cfg.FFTLength/2)

	if l.Spectrum(dst) {
		t.Error("stopped capture delivered a spectrum")
	}
	if err := l.Pause(); !errors.Is(err, ErrNotPlaying) {
		t.Errorf("Pause() while stopped = %v, want ErrNotPlaying", err)
	}

	// Drive the callback directly, without a device
	l.state = Playing
	in := make([]float32, cfg.FFTLength)
	for i := range in {
		// Offset input; the capture path removes the DC component
		in[i] = float32(0.5 + math.Sin(2*math.Pi*100*float64(i)/float64(cfg.FFTLength)))
	}
	l.process(in)

	if !l.Spectrum(dst) {
		t.Fatal("full block should deliver")
	}
	if peak := argmax(dst); peak != 100 {
		t.Errorf("strongest bin = %d, want 100", peak)
	}
	if dst[0] > 0.5 {
		t.Errorf("DC bin = %v, offset should be mostly removed", dst[0])
	}
	if l.Spectrum(dst) {
		t.Error("no new audio since the last call")
	}

	l.process(in[:64])
	if !l.Spectrum(dst) {
		t.Error("new audio should deliver")
	}
}
