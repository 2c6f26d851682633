package platform

import (
	"sync"
	"time"

	"sharkee.net/gohaptics/haptic"
)

// simEffectDuration is the assumed length of one discrete effect when
// estimating how long a simulated playback runs.
const simEffectDuration = 100 * time.Millisecond

// simActuator stands in for a driver chip in the simulation. It only
// records what it is told; notify is called after every change so the
// TUI can redraw.
type simActuator struct {
	mu        sync.Mutex
	mode      haptic.Mode
	gain      uint8
	amplitude uint8
	steps     []haptic.WaveformStep
	playing   bool
	playTimer *time.Timer
	notify    func()
}

// simState is a copy of the recorded actuator state.
type simState struct {
	mode      haptic.Mode
	gain      uint8
	amplitude uint8
	steps     []haptic.WaveformStep
	playing   bool
}

func newSimActuator(notify func()) *simActuator {
	return &simActuator{notify: notify}
}

func (a *simActuator) SetMode(m haptic.Mode) error {
	a.mu.Lock()
	a.mode = m
	a.mu.Unlock()
	a.notify()
	return nil
}

func (a *simActuator) SetGain(gain uint8) error {
	a.mu.Lock()
	a.gain = gain
	a.mu.Unlock()
	a.notify()
	return nil
}

func (a *simActuator) LoadWaveform(steps []haptic.WaveformStep) error {
	cp := make([]haptic.WaveformStep, len(steps))
	copy(cp, steps)
	a.mu.Lock()
	a.steps = cp
	a.mu.Unlock()
	a.notify()
	return nil
}

// Trigger marks playback as running and clears the mark again once the
// estimated playback time has passed, like a real sequencer finishing
// on its own.
func (a *simActuator) Trigger() error {
	a.mu.Lock()
	a.playing = true
	if a.playTimer != nil {
		a.playTimer.Stop()
	}
	a.playTimer = time.AfterFunc(playbackDuration(a.steps), a.playbackDone)
	a.mu.Unlock()
	a.notify()
	return nil
}

func (a *simActuator) playbackDone() {
	a.mu.Lock()
	a.playing = false
	a.mu.Unlock()
	a.notify()
}

func (a *simActuator) SetAmplitude(level uint8) error {
	a.mu.Lock()
	a.amplitude = level
	a.mu.Unlock()
	a.notify()
	return nil
}

func (a *simActuator) Stop() error {
	a.mu.Lock()
	a.playing = false
	if a.playTimer != nil {
		a.playTimer.Stop()
		a.playTimer = nil
	}
	a.mu.Unlock()
	a.notify()
	return nil
}

func (a *simActuator) state() simState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return simState{
		mode:      a.mode,
		gain:      a.gain,
		amplitude: a.amplitude,
		steps:     a.steps,
		playing:   a.playing,
	}
}

func playbackDuration(steps []haptic.WaveformStep) time.Duration {
	var d time.Duration
	for _, st := range steps {
		if st == (haptic.WaveformStep{}) {
			break
		}
		if st.Pause {
			d += time.Duration(st.Effect) * 10 * time.Millisecond
		} else {
			d += simEffectDuration
		}
	}
	return d
}

var _ haptic.Actuator = &simActuator{}
