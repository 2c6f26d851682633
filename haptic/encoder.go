package haptic

import (
	"math"

	u "sharkee.net/gohaptics/util"
)

// EncodeZone turns a zone and a normalized intensity into a discrete
// effect command. scale attenuates the gain (1 is neutral, the night
// cap passes a smaller factor); the result may fall below the zone's
// MinGain under attenuation, which is intended.
//
// The effect index is round(n * (len(Effects)-1)); the gain is
// round(n * (MaxGain-MinGain)) + MinGain. When the index lands on the
// last entry and the zone defines a rich Sequence, that sequence is
// played instead of the single effect. Identical inputs always yield
// identical commands.
func EncodeZone(z *Zone, n float64, scale float64) DriveCommand {
	n = u.Clamp01(n)

	idx := 0
	if len(z.Effects) > 1 {
		idx = int(math.Round(n * float64(len(z.Effects)-1)))
		idx = u.Clamp(idx, 0, len(z.Effects)-1)
	}

	span := float64(z.MaxGain) - float64(z.MinGain)
	gain := int(math.Round(n*span)) + int(z.MinGain)
	gain = u.Clamp(gain, int(z.MinGain), int(z.MaxGain))
	gain = attenuate(gain, scale, int(z.MaxGain))

	if idx == len(z.Effects)-1 && len(z.Sequence) > 0 {
		return SequenceCommand(z.Sequence, uint8(gain))
	}

	// A single effect followed by the terminator slot.
	steps := []WaveformStep{{Effect: z.Effects[idx]}, {}}
	return SequenceCommand(steps, uint8(gain))
}

// EncodeAmplitude maps the corrected (not re-normalized) intensity
// linearly onto the full 8-bit continuous-drive range.
func EncodeAmplitude(corrected float64, scale float64) DriveCommand {
	level := int(math.Round(u.Clamp01(corrected) * 255))
	level = attenuate(level, scale, 255)
	return AmplitudeCommand(uint8(level))
}

func attenuate(v int, scale float64, max int) int {
	if scale < 1 {
		v = int(math.Round(float64(v) * u.Clamp01(scale)))
	}
	return u.Clamp(v, 0, max)
}
