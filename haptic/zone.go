package haptic

import (
	u "sharkee.net/gohaptics/util"
)

// Zone is one contiguous band of the normalized intensity range with
// its own texture table and gain window.
type Zone struct {
	Name       string
	UpperBound float64        // inclusive upper edge of the band
	Effects    []EffectID     // ordered low to high texture intensity
	MinGain    uint8          // device units
	MaxGain    uint8          // device units
	Sequence   []WaveformStep // optional rich sequence for the top of the band
}

// ZoneTable selects zones by normalized intensity. Zones are ordered
// by ascending UpperBound and partition [0,1] contiguously; the table
// assumes configuration has already been validated.
type ZoneTable struct {
	zones         []Zone
	tieBreakUpper bool
}

// NewZoneTable creates a ZoneTable. With tieBreakUpper set, a value
// exactly on a boundary belongs to the zone above it; the default
// resolves ties to the lower zone so that boundary noise never
// escalates into the stronger texture.
func NewZoneTable(zones []Zone, tieBreakUpper bool) *ZoneTable {
	return &ZoneTable{
		zones:         zones,
		tieBreakUpper: tieBreakUpper,
	}
}

// Select returns the zone owning the normalized intensity n, or nil
// for an empty table.
func (t *ZoneTable) Select(n float64) *Zone {
	n = u.Clamp01(n)
	for i := range t.zones {
		z := &t.zones[i]
		if i == len(t.zones)-1 {
			// The last zone owns everything up to and including 1.
			return z
		}
		if t.tieBreakUpper {
			if n < z.UpperBound {
				return z
			}
		} else if n <= z.UpperBound {
			return z
		}
	}
	return nil
}

// Zones returns the underlying zone slice.
func (t *ZoneTable) Zones() []Zone {
	return t.zones
}
