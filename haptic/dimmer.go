package haptic

import (
	"sync"
	"time"

	"github.com/nathan-osman/go-sunrise"
)

// NightDimmer attenuates output between local sunset and sunrise, for
// wearers who keep haptics on while sleeping. The day/night flag is
// recomputed at most once per minute so the hot path never runs the
// ephemeris math.
type NightDimmer struct {
	mu        sync.Mutex
	latitude  float64
	longitude float64
	scale     float64
	night     bool
	nextCheck time.Time
	now       func() time.Time
}

// NewNightDimmer creates a dimmer that scales output by scale during
// the night at the given location.
func NewNightDimmer(latitude, longitude, scale float64) *NightDimmer {
	return &NightDimmer{
		latitude:  latitude,
		longitude: longitude,
		scale:     scale,
		now:       time.Now,
	}
}

// Scale returns the current output attenuation: 1 during the day, the
// configured night scale between sunset and sunrise.
func (d *NightDimmer) Scale() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if now.After(d.nextCheck) {
		rise, set := sunrise.SunriseSunset(d.latitude, d.longitude,
			now.Year(), now.Month(), now.Day())
		d.night = now.Before(rise) || now.After(set)
		d.nextCheck = now.Add(time.Minute)
	}
	if d.night {
		return d.scale
	}
	return 1
}
