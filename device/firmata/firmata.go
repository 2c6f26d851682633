// Package firmata drives a bare ERM motor through an Arduino running
// the Firmata protocol, for builds without a dedicated haptic driver
// chip. The motor only understands PWM duty, so discrete effects are
// emulated as timed on/off envelopes while continuous amplitude maps
// straight onto the duty cycle.
package firmata

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kraman/go-firmata"

	"sharkee.net/gohaptics/haptic"
)

// effectDuration is how long a single emulated effect buzzes. The ROM
// effects this stands in for mostly run under 100ms; a flat envelope
// keeps the emulation simple.
const effectDuration = 100 * time.Millisecond

// pwmWriter is the one Firmata call the adapter needs; the real client
// satisfies it, tests substitute a recorder.
type pwmWriter interface {
	AnalogWrite(pin uint, value byte) error
}

// envelope is one playback of a loaded waveform. Closing cancel aborts
// it, done is closed once its goroutine has exited.
type envelope struct {
	cancel chan struct{}
	done   chan struct{}
}

// Dev drives an ERM motor on a single PWM pin of a Firmata board.
type Dev struct {
	mu     sync.Mutex
	client pwmWriter
	pin    uint
	gain   uint8
	steps  []haptic.WaveformStep
	env    *envelope
}

// New connects to the board, configures the motor pin for PWM and
// leaves it silent.
func New(port string, baud int, pin uint8) (*Dev, error) {
	client, err := firmata.NewClient(port, baud)
	if err != nil {
		return nil, fmt.Errorf("connecting to firmata board on %s: %w", port, err)
	}
	if err := client.SetPinMode(pin, firmata.PWM); err != nil {
		return nil, fmt.Errorf("configuring pin %d for PWM: %w", pin, err)
	}
	d := &Dev{client: client, pin: uint(pin)}
	if err := d.write(0); err != nil {
		return nil, err
	}
	slog.Info("Firmata motor adapter ready", "port", port, "pin", pin)
	return d, nil
}

// SetMode is mostly a no-op for a plain motor: there are no mode
// registers, only duty. Entering standby still silences the pin.
func (d *Dev) SetMode(m haptic.Mode) error {
	if m == haptic.Standby {
		return d.Stop()
	}
	return nil
}

// SetGain stores the duty the next envelope plays at.
func (d *Dev) SetGain(gain uint8) error {
	d.mu.Lock()
	d.gain = gain
	d.mu.Unlock()
	return nil
}

// LoadWaveform stores the steps the next Trigger plays.
func (d *Dev) LoadWaveform(steps []haptic.WaveformStep) error {
	cp := make([]haptic.WaveformStep, len(steps))
	copy(cp, steps)
	d.mu.Lock()
	d.steps = cp
	d.mu.Unlock()
	return nil
}

// Trigger plays the loaded steps as a timed on/off envelope in a
// background goroutine. A still-running envelope is aborted first, so
// re-triggering restarts playback just like the sequencer chip does.
func (d *Dev) Trigger() error {
	env := &envelope{cancel: make(chan struct{}), done: make(chan struct{})}
	d.mu.Lock()
	steps := d.steps
	duty := d.gain
	old := d.env
	d.env = env
	d.mu.Unlock()

	stopEnvelope(old)
	go d.playEnvelope(steps, duty, env)
	return nil
}

func (d *Dev) playEnvelope(steps []haptic.WaveformStep, duty uint8, env *envelope) {
	defer close(env.done)
	for _, st := range steps {
		if st == (haptic.WaveformStep{}) {
			// Sequence terminator.
			break
		}
		level := duty
		dur := effectDuration
		if st.Pause {
			level = 0
			dur = time.Duration(st.Effect) * 10 * time.Millisecond
		}
		if err := d.write(level); err != nil {
			slog.Error("Envelope write failed", "error", err)
			return
		}
		select {
		case <-env.cancel:
			// Whoever aborted the envelope owns the pin now and
			// writes the level they want once we have exited.
			return
		case <-time.After(dur):
		}
	}
	if err := d.write(0); err != nil {
		slog.Error("Envelope write failed", "error", err)
	}
}

// SetAmplitude streams a continuous duty level.
func (d *Dev) SetAmplitude(level uint8) error {
	d.abortEnvelope()
	return d.write(level)
}

// Stop aborts any running envelope and silences the motor.
func (d *Dev) Stop() error {
	d.abortEnvelope()
	return d.write(0)
}

func (d *Dev) abortEnvelope() {
	d.mu.Lock()
	old := d.env
	d.env = nil
	d.mu.Unlock()
	stopEnvelope(old)
}

// stopEnvelope aborts e and waits for its goroutine to exit. Callers
// must have removed e from the Dev first so nobody aborts it twice.
func stopEnvelope(e *envelope) {
	if e == nil {
		return
	}
	close(e.cancel)
	<-e.done
}

func (d *Dev) write(level uint8) error {
	return d.client.AnalogWrite(d.pin, byte(level))
}

var _ haptic.Actuator = &Dev{}
