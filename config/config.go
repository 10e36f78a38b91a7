package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/RyanBlaney/notespectrum/algorithms/common"
)

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid analysis config")

// Bounds of the user-adjustable parameters
const (
	MaxGain  = 8.0
	MaxSlope = 0.4
)

// AnalysisConfig configures the analysis pipeline and its audio source
type AnalysisConfig struct {
	// Transform geometry
	SampleRate int     `json:"sample_rate"`
	FFTLength  int     `json:"fft_length"`
	TickRate   float64 `json:"tick_rate"` // Hz

	// Published signal shapes
	NoteOctaves    int `json:"note_octaves"`     // note-spectrum range
	PointsPerNote  int `json:"points_per_note"`  // note-spectrum resolution
	SubBandOctaves int `json:"sub_band_octaves"` // truncation of the published raw spectrum

	// History depths
	SpectrumHistory int `json:"spectrum_history"`
	ListHistory     int `json:"list_history"`

	// Peak extraction; zero bins select the estimator's six-octave range
	PeakThreshold float64 `json:"peak_threshold"`
	PeakBottomBin int     `json:"peak_bottom_bin,omitempty"`
	PeakTopBin    int     `json:"peak_top_bin,omitempty"`

	Params   ParamsConfig   `json:"params"`
	Enhancer EnhancerConfig `json:"enhancer"`
}

// ParamsConfig holds the initial values of the user-adjustable parameters
type ParamsConfig struct {
	Gain       float64 `json:"gain"`       // 0.0-8.0
	Slope      float64 `json:"slope"`      // 0.0-0.4 per bin
	OnlyPeaks  bool    `json:"only_peaks"` // route frames through the enhancer
	Decimation int     `json:"decimation"` // sub-band history writes 1 of every n+1 ticks
	Option     int     `json:"option"`     // renderer option index, opaque to the core
}

// EnhancerConfig configures noise floor estimation and percussion suppression
type EnhancerConfig struct {
	FloorHalfWidth     int     `json:"floor_half_width"`    // moving-average half width in bins
	FloorScale         float64 `json:"floor_scale"`         // multiplier applied to the estimated floor
	MedianWeight       float64 `json:"median_weight"`       // 0-1 blend of the global median into the floor
	SuppressPercussion bool    `json:"suppress_percussion"` // attenuate broadband frames
	PercussionBand     [2]int  `json:"percussion_band"`     // bins used to measure flatness
}

// DefaultAnalysisConfig returns the 44.1 kHz / 16384 point configuration
func DefaultAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{
		SampleRate:      44100,
		FFTLength:       16384,
		TickRate:        60,
		NoteOctaves:     8,
		PointsPerNote:   12,
		SubBandOctaves:  8,
		SpectrumHistory: 48,
		ListHistory:     100,
		PeakThreshold:   0.005,
		Params: ParamsConfig{
			Gain:  1.0,
			Slope: 0.0,
		},
		Enhancer: DefaultEnhancerConfig(),
	}
}

// DefaultEnhancerConfig returns the enhancer settings used by DefaultAnalysisConfig
func DefaultEnhancerConfig() EnhancerConfig {
	return EnhancerConfig{
		FloorHalfWidth:     24,
		FloorScale:         1.5,
		MedianWeight:       0.25,
		SuppressPercussion: false,
		PercussionBand:     [2]int{12, 3021},
	}
}

// Validate checks every field and reports the first problem found
func (c *AnalysisConfig) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("%w: sample_rate must be positive, got %d", ErrInvalidConfig, c.SampleRate)
	case c.FFTLength < 2 || !common.IsPowerOfTwo(c.FFTLength):
		return fmt.Errorf("%w: fft_length must be a power of two >= 2, got %d", ErrInvalidConfig, c.FFTLength)
	case c.TickRate <= 0 || c.TickRate > 1000:
		return fmt.Errorf("%w: tick_rate must be in (0, 1000] Hz, got %v", ErrInvalidConfig, c.TickRate)
	case c.NoteOctaves < 1 || c.NoteOctaves > 8:
		return fmt.Errorf("%w: note_octaves must be in [1, 8], got %d", ErrInvalidConfig, c.NoteOctaves)
	case c.PointsPerNote < 1:
		return fmt.Errorf("%w: points_per_note must be positive, got %d", ErrInvalidConfig, c.PointsPerNote)
	case c.SubBandOctaves < 1 || c.SubBandOctaves > 8:
		return fmt.Errorf("%w: sub_band_octaves must be in [1, 8], got %d", ErrInvalidConfig, c.SubBandOctaves)
	case c.SpectrumHistory < 1 || c.ListHistory < 1:
		return fmt.Errorf("%w: history depths must be positive", ErrInvalidConfig)
	case c.PeakThreshold < 0:
		return fmt.Errorf("%w: peak_threshold must be >= 0, got %v", ErrInvalidConfig, c.PeakThreshold)
	case c.PeakBottomBin < 0 || c.PeakTopBin < 0:
		return fmt.Errorf("%w: peak bins must be >= 0", ErrInvalidConfig)
	case c.PeakTopBin != 0 && c.PeakBottomBin > c.PeakTopBin:
		return fmt.Errorf("%w: peak_bottom_bin %d above peak_top_bin %d", ErrInvalidConfig, c.PeakBottomBin, c.PeakTopBin)
	case c.PeakBottomBin >= c.FFTLength/2 || c.PeakTopBin >= c.FFTLength/2:
		return fmt.Errorf("%w: peak band %d-%d outside %d bins", ErrInvalidConfig, c.PeakBottomBin, c.PeakTopBin, c.FFTLength/2)
	}

	if err := c.Params.Validate(); err != nil {
		return err
	}
	return c.Enhancer.Validate(c.FFTLength / 2)
}

// Validate checks parameter bounds
func (p ParamsConfig) Validate() error {
	switch {
	case p.Gain < 0 || p.Gain > MaxGain:
		return fmt.Errorf("%w: gain must be in [0, %v], got %v", ErrInvalidConfig, MaxGain, p.Gain)
	case p.Slope < 0 || p.Slope > MaxSlope:
		return fmt.Errorf("%w: slope must be in [0, %v], got %v", ErrInvalidConfig, MaxSlope, p.Slope)
	case p.Decimation < 0:
		return fmt.Errorf("%w: decimation must be >= 0, got %d", ErrInvalidConfig, p.Decimation)
	}
	return nil
}

// Validate checks the enhancer against a spectrum of binCount bins
func (e EnhancerConfig) Validate(binCount int) error {
	switch {
	case e.FloorHalfWidth < 1:
		return fmt.Errorf("%w: floor_half_width must be positive, got %d", ErrInvalidConfig, e.FloorHalfWidth)
	case e.FloorScale < 0:
		return fmt.Errorf("%w: floor_scale must be >= 0, got %v", ErrInvalidConfig, e.FloorScale)
	case e.MedianWeight < 0 || e.MedianWeight > 1:
		return fmt.Errorf("%w: median_weight must be in [0, 1], got %v", ErrInvalidConfig, e.MedianWeight)
	case e.SuppressPercussion && (e.PercussionBand[0] < 0 || e.PercussionBand[0] >= e.PercussionBand[1] || e.PercussionBand[1] >= binCount):
		return fmt.Errorf("%w: percussion_band %v invalid for %d bins", ErrInvalidConfig, e.PercussionBand, binCount)
	}
	return nil
}

// Load reads a JSON file over the defaults and validates the result
func Load(path string) (*AnalysisConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := DefaultAnalysisConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
