package haptic

import (
	"math"

	u "sharkee.net/gohaptics/util"
)

// Mapper applies perceptual correction to a linear intensity reading.
// Perceived vibration strength follows a power law, so a gamma around
// 2.0..2.5 makes the low end of the range feel proportional instead
// of jumpy. Gamma is validated into [0.5, 6.0] by the config layer.
type Mapper struct {
	gamma    float64
	useGamma bool
	invert   bool
}

// NewMapper creates a Mapper. With invert set the raw reading is
// flipped (1 - v) before correction, for proximity-style senders
// where closer means stronger.
func NewMapper(gamma float64, useGamma, invert bool) *Mapper {
	return &Mapper{
		gamma:    gamma,
		useGamma: useGamma,
		invert:   invert,
	}
}

// Correct maps a raw reading to the corrected intensity in [0,1].
// Total over all float64 inputs: out-of-range values are clamped and
// NaN short-circuits to 0 even under inversion, so a malformed
// reading can never drive the actuator.
func (m *Mapper) Correct(raw float64) float64 {
	if raw != raw {
		return 0
	}
	v := u.Clamp01(raw)
	if m.invert {
		v = 1 - v
	}
	if m.useGamma {
		v = math.Pow(v, m.gamma)
	}
	return v
}
