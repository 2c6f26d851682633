// Package haptic implements the intensity-to-waveform mapping engine:
// perceptual correction, activation thresholding, zone-based texture
// selection, waveform encoding, the actuator mode state machine, and
// the staleness watchdog for continuous drive.
package haptic

import "fmt"

// EffectID identifies a waveform in the actuator's ROM effect library
// (1..123 on the DRV2605 family).
type EffectID uint8

// MaxEffectID is the highest ROM library effect the driver chips know.
const MaxEffectID EffectID = 123

// WaveformStep is one sequencer slot: an effect to play, or a pause of
// Effect x 10ms when Pause is set. The zero value terminates a
// sequence, mirroring the chip's own encoding.
type WaveformStep struct {
	Effect EffectID `yaml:"Effect" json:"Effect"`
	Pause  bool     `yaml:"Pause,omitempty" json:"Pause,omitempty"`
}

// Mode is the actuator drive mode.
type Mode int

const (
	// Standby is the initial and terminal-safe state, actuator off.
	Standby Mode = iota
	// LibraryPlayback plays discrete ROM effect sequences.
	LibraryPlayback
	// Realtime streams a continuous amplitude level.
	Realtime
)

func (m Mode) String() string {
	switch m {
	case Standby:
		return "standby"
	case LibraryPlayback:
		return "library"
	case Realtime:
		return "realtime"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// CommandKind discriminates the DriveCommand variants.
type CommandKind int

const (
	CmdStop CommandKind = iota
	CmdPlaySequence
	CmdSetAmplitude
)

// DriveCommand is the engine's output unit. It is constructed per
// intensity update, handed to the actuator adapter and not retained.
type DriveCommand struct {
	Kind  CommandKind
	Steps []WaveformStep // CmdPlaySequence only
	Gain  uint8          // CmdPlaySequence only, device units
	Level uint8          // CmdSetAmplitude only, 0..255
}

// StopCommand silences the actuator unconditionally.
func StopCommand() DriveCommand {
	return DriveCommand{Kind: CmdStop}
}

// SequenceCommand plays a discrete effect sequence at the given gain.
func SequenceCommand(steps []WaveformStep, gain uint8) DriveCommand {
	return DriveCommand{Kind: CmdPlaySequence, Steps: steps, Gain: gain}
}

// AmplitudeCommand streams a continuous drive level.
func AmplitudeCommand(level uint8) DriveCommand {
	return DriveCommand{Kind: CmdSetAmplitude, Level: level}
}

func (c DriveCommand) String() string {
	switch c.Kind {
	case CmdStop:
		return "stop"
	case CmdPlaySequence:
		return fmt.Sprintf("play(steps=%d gain=%d)", len(c.Steps), c.Gain)
	case CmdSetAmplitude:
		return fmt.Sprintf("amplitude(%d)", c.Level)
	default:
		return fmt.Sprintf("command(%d)", int(c.Kind))
	}
}

// Actuator is the capability surface the engine drives. Adapters
// translate these calls into their own layer: register writes on the
// DRV2605, Firmata messages for a PWM motor, or the TUI simulator.
// All writes are expected to be fast and non-blocking; errors are
// surfaced, never retried with stale intensity data.
type Actuator interface {
	SetMode(m Mode) error
	SetGain(gain uint8) error
	LoadWaveform(steps []WaveformStep) error
	Trigger() error
	SetAmplitude(level uint8) error
	Stop() error
}
