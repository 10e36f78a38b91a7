package pipeline

import (
	"github.com/RyanBlaney/notespectrum/algorithms/common"
)

// ApplyGain writes (gain + slope*bin) * src[bin] into dst. Invalid input
// magnitudes (NaN, Inf, negative) are treated as silence. dst may alias src
func ApplyGain(dst, src []float64, gain, slope float64) {
	n := min(len(dst), len(src))
	for bin := range n {
		// The conversion rounds the product so no platform fuses it into the add
		dst[bin] = (gain + float64(slope*float64(bin))) * common.SanitizeMagnitude(src[bin])
	}
}
