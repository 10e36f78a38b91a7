package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/wav"

	"github.com/RyanBlaney/notespectrum/config"
	"github.com/RyanBlaney/notespectrum/logging"
	"github.com/RyanBlaney/notespectrum/transcode"
)

// resampleQuality is the beep resampler quality used when the file rate
// differs from the analysis rate
const resampleQuality = 4

// File plays an audio file through the analysis at tick pace
type File struct {
	*streamSource
	path   string
	audio  beep.StreamSeekCloser
	format beep.Format
}

// OpenFile decodes path for playback. WAV and MP3 are decoded natively; any
// other format goes through ffmpeg
func OpenFile(path string, cfg *config.AnalysisConfig) (*File, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "source",
		"kind":      "file",
		"file":      filepath.Base(path),
	})

	audio, format, err := decodeFile(path, cfg)
	if err != nil {
		logger.Error(err, "Failed to open audio file")
		return nil, err
	}

	target := beep.SampleRate(cfg.SampleRate)
	rewind := func() (beep.Streamer, error) {
		if err := audio.Seek(0); err != nil {
			return nil, fmt.Errorf("failed to rewind %s: %w", path, err)
		}
		if format.SampleRate == target {
			return audio, nil
		}
		return beep.Resample(resampleQuality, format.SampleRate, target, audio), nil
	}
	s, err := rewind()
	if err != nil {
		audio.Close()
		return nil, err
	}

	base, err := newStreamSource(cfg, s, rewind, logger)
	if err != nil {
		audio.Close()
		return nil, err
	}

	logger.Info("Audio file opened", logging.Fields{
		"sample_rate": int(format.SampleRate),
		"channels":    format.NumChannels,
		"duration":    format.SampleRate.D(audio.Len()).String(),
		"resampled":   format.SampleRate != target,
	})

	return &File{streamSource: base, path: path, audio: audio, format: format}, nil
}

func decodeFile(path string, cfg *config.AnalysisConfig) (beep.StreamSeekCloser, beep.Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		f, err := os.Open(path)
		if err != nil {
			return nil, beep.Format{}, err
		}
		s, format, err := wav.Decode(f)
		if err != nil {
			f.Close()
			return nil, beep.Format{}, fmt.Errorf("failed to decode wav: %w", err)
		}
		return s, format, nil
	case ".mp3":
		f, err := os.Open(path)
		if err != nil {
			return nil, beep.Format{}, err
		}
		s, format, err := mp3.Decode(f)
		if err != nil {
			f.Close()
			return nil, beep.Format{}, fmt.Errorf("failed to decode mp3: %w", err)
		}
		return s, format, nil
	}

	decoderConfig := transcode.DefaultDecoderConfig()
	decoderConfig.TargetSampleRate = cfg.SampleRate
	return decodeWithFFmpeg(path, decoderConfig)
}

// decodeWithFFmpeg checks the ffmpeg tools before decoding path to mono PCM
func decodeWithFFmpeg(path string, decoderConfig *transcode.DecoderConfig) (beep.StreamSeekCloser, beep.Format, error) {
	decoder := transcode.NewDecoder(decoderConfig)
	if err := decoder.ValidateConfig(); err != nil {
		return nil, beep.Format{}, fmt.Errorf("cannot decode %s files: %w", filepath.Ext(path), err)
	}

	data, err := decoder.DecodeFile(context.Background(), path)
	if err != nil {
		return nil, beep.Format{}, err
	}

	format := beep.Format{SampleRate: beep.SampleRate(data.SampleRate), NumChannels: 1, Precision: 4}
	return newPCMStreamer(data.PCM), format, nil
}

// Path returns the file being played
func (f *File) Path() string { return f.path }

// Format returns the format of the decoded file
func (f *File) Format() beep.Format { return f.format }

// Duration returns the length of the file
func (f *File) Duration() time.Duration {
	return f.format.SampleRate.D(f.audio.Len())
}

// Position returns the playback position
func (f *File) Position() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.format.SampleRate.D(f.audio.Position())
}

// Close stops playback and releases the file
func (f *File) Close() error {
	f.mu.Lock()
	f.state = Ended
	f.mu.Unlock()
	return f.audio.Close()
}

// pcmStreamer plays decoded mono PCM
type pcmStreamer struct {
	samples []float64
	pos     int
}

func newPCMStreamer(samples []float64) *pcmStreamer {
	return &pcmStreamer{samples: samples}
}

func (p *pcmStreamer) Stream(samples [][2]float64) (int, bool) {
	if p.pos >= len(p.samples) {
		return 0, false
	}
	n := copy2(samples, p.samples[p.pos:])
	p.pos += n
	return n, true
}

func (p *pcmStreamer) Err() error    { return nil }
func (p *pcmStreamer) Len() int      { return len(p.samples) }
func (p *pcmStreamer) Position() int { return p.pos }
func (p *pcmStreamer) Close() error  { return nil }

func (p *pcmStreamer) Seek(pos int) error {
	if pos < 0 || pos > len(p.samples) {
		return fmt.Errorf("seek position %d outside 0..%d", pos, len(p.samples))
	}
	p.pos = pos
	return nil
}

// copy2 duplicates mono samples into both stereo channels
func copy2(dst [][2]float64, src []float64) int {
	n := min(len(dst), len(src))
	for i := range n {
		dst[i][0] = src[i]
		dst[i][1] = src[i]
	}
	return n
}
