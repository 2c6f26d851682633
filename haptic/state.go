package haptic

import (
	"fmt"
	"sync"
	"time"
)

// State is a read-only snapshot of the actuator control state, taken
// for the watchdog, the status API and the TUI.
type State struct {
	Mode        Mode
	Running     bool
	LastUpdate  time.Time
	LastCommand string
}

// StateMachine owns the actuator drive mode. Every mode change and
// actuator write flows through Apply, which enforces the ordering the
// chips need: the amplitude is zeroed on every edge into and out of
// continuous drive, and a pending sequence is stopped before the mode
// register changes. Skipping these brackets is how actuators end up
// stuck buzzing with a stale gain/mode combination.
type StateMachine struct {
	mu          sync.Mutex
	act         Actuator
	mode        Mode
	running     bool
	lastUpdate  time.Time
	lastCommand DriveCommand
}

// NewStateMachine creates a StateMachine starting in Standby.
func NewStateMachine(act Actuator) *StateMachine {
	return &StateMachine{
		act:  act,
		mode: Standby,
	}
}

// Apply executes cmd, inserting the transitions it requires. A failed
// hardware write aborts the remaining writes and is returned; the
// internal mode only advances on successful writes, so the next
// command re-issues a consistent transition with fresh data instead
// of retrying a stale one.
func (sm *StateMachine) Apply(cmd DriveCommand, now time.Time) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	switch cmd.Kind {
	case CmdStop:
		return sm.applyStop(cmd, now)
	case CmdPlaySequence:
		return sm.applySequence(cmd, now)
	case CmdSetAmplitude:
		return sm.applyAmplitude(cmd, now)
	default:
		return fmt.Errorf("unknown drive command kind %d", int(cmd.Kind))
	}
}

// applyStop silences the actuator and settles in Standby. Calling it
// while already in Standby writes nothing, so a watchdog firing on
// every tick cannot flood the bus with zero-amplitude writes.
func (sm *StateMachine) applyStop(cmd DriveCommand, now time.Time) error {
	if sm.mode == Standby {
		return nil
	}
	if sm.mode == Realtime {
		// Exit bracket: amplitude to zero before the mode changes.
		if err := sm.act.SetAmplitude(0); err != nil {
			return err
		}
	}
	if err := sm.act.Stop(); err != nil {
		return err
	}
	if err := sm.act.SetMode(Standby); err != nil {
		return err
	}
	sm.mode = Standby
	sm.running = false
	sm.lastUpdate = now
	sm.lastCommand = cmd
	return nil
}

func (sm *StateMachine) applySequence(cmd DriveCommand, now time.Time) error {
	if sm.mode == Realtime {
		// Exit bracket, see applyStop.
		if err := sm.act.SetAmplitude(0); err != nil {
			return err
		}
	}
	if sm.mode != LibraryPlayback {
		if err := sm.act.SetMode(LibraryPlayback); err != nil {
			return err
		}
		sm.mode = LibraryPlayback
	}
	if err := sm.act.SetGain(cmd.Gain); err != nil {
		return err
	}
	if err := sm.act.LoadWaveform(cmd.Steps); err != nil {
		return err
	}
	// Triggering while a sequence is still playing restarts playback,
	// which is the wanted pre-emption behavior.
	if err := sm.act.Trigger(); err != nil {
		return err
	}
	sm.running = true
	sm.lastUpdate = now
	sm.lastCommand = cmd
	return nil
}

func (sm *StateMachine) applyAmplitude(cmd DriveCommand, now time.Time) error {
	if sm.mode != Realtime {
		if sm.mode == LibraryPlayback && sm.running {
			// A pending sequence must not keep playing underneath
			// continuous drive.
			if err := sm.act.Stop(); err != nil {
				return err
			}
		}
		// Entry bracket: the chip wants zero amplitude around the
		// mode register write.
		if err := sm.act.SetAmplitude(0); err != nil {
			return err
		}
		if err := sm.act.SetMode(Realtime); err != nil {
			return err
		}
		sm.mode = Realtime
	}
	if err := sm.act.SetAmplitude(cmd.Level); err != nil {
		return err
	}
	sm.running = true
	sm.lastUpdate = now
	sm.lastCommand = cmd
	return nil
}

// Snapshot returns the current control state.
func (sm *StateMachine) Snapshot() State {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return State{
		Mode:        sm.mode,
		Running:     sm.running,
		LastUpdate:  sm.lastUpdate,
		LastCommand: sm.lastCommand.String(),
	}
}
