package transcode

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/RyanBlaney/notespectrum/logging"
)

// AudioData is decoded mono PCM
type AudioData struct {
	PCM        []float64      `json:"-"`
	SampleRate int            `json:"sample_rate"`
	Duration   time.Duration  `json:"duration"`
	Source     *AudioMetadata `json:"source,omitempty"`
}

// AudioMetadata holds detected audio properties from ffprobe
type AudioMetadata struct {
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	Codec      string  `json:"codec"`
	Duration   float64 `json:"duration"`
	Bitrate    int     `json:"bitrate"`
	Format     string  `json:"format"`
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	TargetSampleRate int           `json:"target_sample_rate"`
	MaxDuration      time.Duration `json:"max_duration"`
	ResampleQuality  string        `json:"resample_quality"` // "fast", "medium", "high"
	FFmpegPath       string        `json:"ffmpeg_path"`      // Path to ffmpeg binary
	FFprobePath      string        `json:"ffprobe_path"`     // Path to ffprobe binary
	Timeout          time.Duration `json:"timeout"`          // Timeout for ffmpeg operations

	// Loudness normalization keeps quiet recordings above the peak threshold
	EnableNormalization bool    `json:"enable_normalization"`
	TargetLUFS          float64 `json:"target_lufs"`
	TargetPeak          float64 `json:"target_peak"`
	LoudnessRange       float64 `json:"loudness_range"`
}

var (
	// ErrNoAudio is returned when a file holds no decodable audio stream
	ErrNoAudio = errors.New("no audio stream")

	// ErrUnavailable is returned when ffmpeg or ffprobe cannot be executed
	ErrUnavailable = errors.New("ffmpeg tools unavailable")
)

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		TargetSampleRate:    44100,
		ResampleQuality:     "medium",
		FFmpegPath:          "ffmpeg",
		FFprobePath:         "ffprobe",
		Timeout:             60 * time.Second,
		EnableNormalization: false,
		TargetLUFS:          -16.0, // Streaming standard
		TargetPeak:          -1.0,
		LoudnessRange:       8.0,
	}
}

// Decoder decodes any ffmpeg-readable file into mono PCM
type Decoder struct {
	config *DecoderConfig
	logger logging.Logger
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{
		config: config,
		logger: logging.WithFields(logging.Fields{"component": "audio_decoder"}),
	}
}

// DecodeFile decodes filename to mono float64 PCM at the target sample rate
func (d *Decoder) DecodeFile(ctx context.Context, filename string) (*AudioData, error) {
	logger := d.logger.WithFields(logging.Fields{
		"function": "DecodeFile",
		"filename": filename,
	})

	logger.Debug("Starting audio file decode")

	if d.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}

	metadata, err := d.ProbeFile(ctx, filename)
	if err != nil {
		logger.Error(err, "Failed to probe audio file")
		return nil, err
	}

	logger.Debug("Audio metadata detected", logging.Fields{
		"input_sample_rate": metadata.SampleRate,
		"input_channels":    metadata.Channels,
		"input_codec":       metadata.Codec,
		"input_duration":    metadata.Duration,
	})

	args := append([]string{"-i", filename}, d.buildFFmpegArgs(metadata)...)
	args = append(args, "pipe:1")

	logger.Debug("Running ffmpeg command", logging.Fields{
		"args": strings.Join(args, " "),
	})

	startTime := time.Now()
	output, err := exec.CommandContext(ctx, d.config.FFmpegPath, args...).Output()
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			logger.Error(err, "Ffmpeg decode failed", logging.Fields{
				"stderr": string(exitError.Stderr),
			})
		}
		return nil, fmt.Errorf("ffmpeg decode failed: %w", err)
	}

	samples := bytesToFloat64(output)
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: %s decoded to zero samples", ErrNoAudio, filename)
	}

	logger.Debug("Ffmpeg decode completed", logging.Fields{
		"samples":     len(samples),
		"decode_time": time.Since(startTime).Seconds(),
	})

	return &AudioData{
		PCM:        samples,
		SampleRate: d.config.TargetSampleRate,
		Duration:   time.Duration(float64(len(samples)) / float64(d.config.TargetSampleRate) * float64(time.Second)),
		Source:     metadata,
	}, nil
}

// ProbeFile uses ffprobe to get audio information from a file
func (d *Decoder) ProbeFile(ctx context.Context, filename string) (*AudioMetadata, error) {
	args := []string{
		"-v", "quiet", // Suppress verbose output
		"-print_format", "json", // JSON output
		"-show_streams",          // Show stream info
		"-select_streams", "a:0", // First audio stream only
		filename,
	}

	output, err := exec.CommandContext(ctx, d.config.FFprobePath, args...).Output()
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			return nil, fmt.Errorf("ffprobe failed: %w, stderr: %s", err, string(exitError.Stderr))
		}
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseFFprobeOutput(output)
}

// parseFFprobeOutput parses ffprobe JSON to extract audio metadata
func parseFFprobeOutput(jsonData []byte) (*AudioMetadata, error) {
	var probe struct {
		Streams []struct {
			CodecType     string `json:"codec_type"`
			CodecName     string `json:"codec_name"`
			SampleRate    string `json:"sample_rate"`
			Channels      int    `json:"channels"`
			Duration      string `json:"duration"`
			BitRate       string `json:"bit_rate"`
			CodecLongName string `json:"codec_long_name"`
		} `json:"streams"`
	}

	if err := json.Unmarshal(jsonData, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	if len(probe.Streams) == 0 {
		return nil, ErrNoAudio
	}

	stream := probe.Streams[0]
	if stream.CodecType != "audio" {
		return nil, fmt.Errorf("%w: stream is %s", ErrNoAudio, stream.CodecType)
	}

	sampleRate, err := strconv.Atoi(stream.SampleRate)
	if err != nil {
		sampleRate = 44100 // Fallback to common sample rate
	}

	duration, err := strconv.ParseFloat(stream.Duration, 64)
	if err != nil {
		duration = 0
	}

	bitrate, err := strconv.Atoi(stream.BitRate)
	if err != nil {
		bitrate = 0
	}

	if stream.Channels <= 0 || stream.Channels > 8 {
		return nil, fmt.Errorf("invalid channel count: %d", stream.Channels)
	}

	return &AudioMetadata{
		SampleRate: sampleRate,
		Channels:   stream.Channels,
		Codec:      stream.CodecName,
		Duration:   duration,
		Bitrate:    bitrate,
		Format:     stream.CodecLongName,
	}, nil
}

// buildFFmpegArgs builds the output arguments: mono f64le at the target rate
func (d *Decoder) buildFFmpegArgs(metadata *AudioMetadata) []string {
	args := []string{
		"-vn",
		"-f", "f64le",
		"-ac", "1",
		"-ar", strconv.Itoa(d.config.TargetSampleRate),
	}

	var filters []string
	if metadata.SampleRate != d.config.TargetSampleRate {
		switch d.config.ResampleQuality {
		case "fast":
			filters = append(filters, "aresample=resampler=soxr:precision=16")
		case "medium":
			filters = append(filters, "aresample=resampler=soxr:precision=20")
		case "high":
			filters = append(filters, "aresample=resampler=soxr:precision=28")
		}
	}
	if d.config.EnableNormalization {
		filters = append(filters, fmt.Sprintf("loudnorm=I=%.1f:TP=%.1f:LRA=%.1f",
			d.config.TargetLUFS, d.config.TargetPeak, d.config.LoudnessRange))
	}
	if len(filters) > 0 {
		args = append(args, "-af", strings.Join(filters, ","))
	}

	if d.config.MaxDuration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.2f", d.config.MaxDuration.Seconds()))
	}

	// Suppress ffmpeg output
	return append(args, "-v", "error")
}

// bytesToFloat64 converts raw little-endian float64 bytes, dropping a partial
// trailing sample
func bytesToFloat64(data []byte) []float64 {
	sampleCount := len(data) / 8
	if sampleCount == 0 {
		return nil
	}

	samples := make([]float64, sampleCount)
	for i := range sampleCount {
		bits := binary.LittleEndian.Uint64(data[i*8 : i*8+8])
		samples[i] = math.Float64frombits(bits)
	}

	return samples
}

// ValidateConfig validates the decoder configuration and that the binaries run
func (d *Decoder) ValidateConfig() error {
	if d.config.TargetSampleRate <= 0 {
		return fmt.Errorf("target sample rate must be positive: %d", d.config.TargetSampleRate)
	}

	if err := d.CheckAvailability(); err != nil {
		return err
	}

	return nil
}

// CheckAvailability checks that ffmpeg and ffprobe can be executed
func (d *Decoder) CheckAvailability() error {
	if err := exec.Command(d.config.FFmpegPath, "-version").Run(); err != nil {
		return fmt.Errorf("%w: ffmpeg not found at %s: %w", ErrUnavailable, d.config.FFmpegPath, err)
	}

	if err := exec.Command(d.config.FFprobePath, "-version").Run(); err != nil {
		return fmt.Errorf("%w: ffprobe not found at %s: %w", ErrUnavailable, d.config.FFprobePath, err)
	}

	return nil
}
