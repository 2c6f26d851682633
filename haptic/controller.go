package haptic

import (
	"log/slog"
	"sync"
	"time"

	u "sharkee.net/gohaptics/util"
)

// Profile selects how corrected intensity is rendered.
type Profile int

const (
	// ProfileLibrary always plays discrete ROM effects.
	ProfileLibrary Profile = iota
	// ProfileRealtime always streams continuous amplitude.
	ProfileRealtime
	// ProfileBlended plays effects below the realtime crossover and
	// streams amplitude above it.
	ProfileBlended
)

func (p Profile) String() string {
	switch p {
	case ProfileLibrary:
		return "library"
	case ProfileRealtime:
		return "realtime"
	case ProfileBlended:
		return "blended"
	default:
		return "library"
	}
}

// ParseProfile maps the config string to a Profile.
func ParseProfile(s string) (Profile, bool) {
	switch s {
	case "library":
		return ProfileLibrary, true
	case "realtime":
		return ProfileRealtime, true
	case "blended":
		return ProfileBlended, true
	default:
		return ProfileLibrary, false
	}
}

// Settings bundles the engine knobs. All values arrive validated from
// the config layer; the controller does not re-check them per tick.
type Settings struct {
	Mapper            *Mapper
	Zones             *ZoneTable
	Profile           Profile
	RealtimeThreshold float64 // blended crossover on the normalized range
	Threshold         float64 // minimum activation on the corrected value
	Tick              time.Duration
	Timeout           time.Duration  // staleness window for continuous drive
	Scale             func() float64 // output attenuation hook, may be nil
}

// Controller owns the actuator. A single goroutine consumes intensity
// updates from a single-slot latest-value-wins cell, runs the mapping
// pipeline and retires continuous drive that went stale. Library
// playback is self-terminating and not watched.
type Controller struct {
	settings Settings
	sm       *StateMachine
	updates  *u.Latest[*u.Update]
	stopchan chan struct{}
	stopOnce sync.Once
}

// NewController creates a Controller driving act. Call Run in a
// goroutine to start it.
func NewController(s Settings, act Actuator) *Controller {
	return &Controller{
		settings: s,
		sm:       NewStateMachine(act),
		updates:  u.NewLatest[*u.Update](),
		stopchan: make(chan struct{}),
	}
}

// Submit hands a new intensity reading to the controller. It never
// blocks; an older unconsumed reading is discarded, not queued.
func (c *Controller) Submit(upd *u.Update) {
	c.updates.Set(upd)
}

// Run is the scheduler loop: a tick fires on every interval and on
// every arriving update, so staleness is always measured at tick
// processing time. Run blocks until Stop is called and issues a final
// unconditional stop on the way out.
func (c *Controller) Run(wg *sync.WaitGroup) {
	defer wg.Done()
	ticker := time.NewTicker(c.settings.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopchan:
			if err := c.sm.Apply(StopCommand(), time.Now()); err != nil {
				slog.Error("Final actuator stop failed", "error", err)
			}
			return
		case <-c.updates.Channel():
			c.Tick(time.Now())
		case now := <-ticker.C:
			c.Tick(now)
		}
	}
}

// Stop terminates the run loop. Safe to call more than once.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() { close(c.stopchan) })
}

// Tick runs one scheduler step: consume a pending intensity reading
// if any, then check continuous drive for staleness. Exposed so tests
// can drive the loop with a synthetic clock.
func (c *Controller) Tick(now time.Time) {
	if upd, ok := c.updates.Take(); ok {
		c.dispatch(upd, now)
	}

	st := c.sm.Snapshot()
	if st.Running && st.Mode == Realtime && now.Sub(st.LastUpdate) > c.settings.Timeout {
		slog.Info("Continuous drive went stale, forcing standby",
			"age", now.Sub(st.LastUpdate), "timeout", c.settings.Timeout)
		if err := c.sm.Apply(StopCommand(), now); err != nil {
			slog.Error("Watchdog stop failed", "error", err)
		}
	}
}

// State returns a snapshot of the actuator control state.
func (c *Controller) State() State {
	return c.sm.Snapshot()
}

func (c *Controller) dispatch(upd *u.Update, now time.Time) {
	v := c.settings.Mapper.Correct(upd.Value)

	scale := 1.0
	if c.settings.Scale != nil {
		scale = u.Clamp01(c.settings.Scale())
	}

	var cmd DriveCommand
	if v <= c.settings.Threshold {
		// The activation threshold itself still counts as silence.
		cmd = StopCommand()
	} else {
		n := u.Clamp01((v - c.settings.Threshold) / (1 - c.settings.Threshold))
		switch c.settings.Profile {
		case ProfileRealtime:
			cmd = EncodeAmplitude(v, scale)
		case ProfileBlended:
			if n >= c.settings.RealtimeThreshold {
				cmd = EncodeAmplitude(v, scale)
			} else {
				cmd = c.encodeLibrary(n, scale)
			}
		default:
			cmd = c.encodeLibrary(n, scale)
		}
	}

	slog.Debug("Dispatching drive command",
		"source", upd.Source, "raw", upd.Value, "corrected", v, "command", cmd.String())

	if err := c.sm.Apply(cmd, now); err != nil {
		slog.Error("Actuator write failed", "command", cmd.String(), "error", err)
	}
}

func (c *Controller) encodeLibrary(n, scale float64) DriveCommand {
	z := c.settings.Zones.Select(n)
	if z == nil {
		return StopCommand()
	}
	return EncodeZone(z, n, scale)
}
