// Package enhance removes the smooth noise floor from magnitude spectra so that
// only the peaks standing above it survive
package enhance

import (
	"github.com/RyanBlaney/notespectrum/algorithms/common"
	"github.com/RyanBlaney/notespectrum/algorithms/spectral"
	"github.com/RyanBlaney/notespectrum/config"
)

// SpectralEnhancer subtracts an estimated noise floor from a spectrum and can
// attenuate broadband (percussive) frames
type SpectralEnhancer struct {
	cfg      config.EnhancerConfig
	flatness *spectral.SpectralFlatness
}

// New creates an enhancer; the configuration is assumed validated
func New(cfg config.EnhancerConfig) *SpectralEnhancer {
	return &SpectralEnhancer{
		cfg:      cfg,
		flatness: spectral.NewSpectralFlatness(),
	}
}

// NoiseFloor estimates the floor under src: a centered moving average blended
// with the global median, scaled by FloorScale
func (e *SpectralEnhancer) NoiseFloor(src []float64) []float64 {
	floor := common.MovingAverage(src, e.cfg.FloorHalfWidth)
	if len(floor) == 0 {
		return floor
	}

	median := common.Median(src)
	w := e.cfg.MedianWeight
	for i, v := range floor {
		floor[i] = e.cfg.FloorScale * ((1-w)*v + w*median)
	}
	return floor
}

// Enhance writes max(0, src - floor) into dst, optionally scaled down by the
// spectral flatness of the configured band. dst may alias src
func (e *SpectralEnhancer) Enhance(dst, src []float64) {
	n := min(len(dst), len(src))
	if n == 0 {
		return
	}

	attenuation := 1.0
	if e.cfg.SuppressPercussion {
		band := e.cfg.PercussionBand
		attenuation = 1 - e.flatness.ComputeBandLimited(src, band[0], min(band[1], len(src)-1))
	}

	floor := e.NoiseFloor(src[:n])
	for i := range n {
		dst[i] = common.SanitizeMagnitude(src[i]-floor[i]) * attenuation
	}
}
