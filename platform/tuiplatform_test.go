package platform

import (
	"testing"
	"time"

	"sharkee.net/gohaptics/haptic"
)

func TestGauge(t *testing.T) {
	if g := gauge(0, 10); g != "░░░░░░░░░░" {
		t.Errorf("Expected empty gauge, got %q", g)
	}
	if g := gauge(255, 10); g != "██████████" {
		t.Errorf("Expected full gauge, got %q", g)
	}
	if g := gauge(128, 10); g != "█████░░░░░" {
		t.Errorf("Expected half gauge, got %q", g)
	}
}

func TestStepsString(t *testing.T) {
	if s := stepsString(nil); s != "-" {
		t.Errorf("Expected empty waveform to render as -, got %q", s)
	}
	steps := []haptic.WaveformStep{{Effect: 1}, {Effect: 10, Pause: true}, {Effect: 14}}
	if s := stepsString(steps); s != "1 ~10 14" {
		t.Errorf("Expected waveform to render pauses with a tilde, got %q", s)
	}
	steps = []haptic.WaveformStep{{Effect: 3}, {}, {Effect: 9}}
	if s := stepsString(steps); s != "3" {
		t.Errorf("Expected rendering to end at the terminator, got %q", s)
	}
}

func TestPlaybackDuration(t *testing.T) {
	steps := []haptic.WaveformStep{{Effect: 1}, {Effect: 10, Pause: true}, {Effect: 14}}
	if d := playbackDuration(steps); d != 300*time.Millisecond {
		t.Errorf("Expected playback to take 300ms, got %v", d)
	}
	steps = []haptic.WaveformStep{{Effect: 1}, {}, {Effect: 9}}
	if d := playbackDuration(steps); d != simEffectDuration {
		t.Errorf("Expected playback to end at the terminator, got %v", d)
	}
}

func TestSimActuatorRecordsWrites(t *testing.T) {
	notified := 0
	a := newSimActuator(func() { notified++ })

	if err := a.SetMode(haptic.LibraryPlayback); err != nil {
		t.Fatalf("SetMode failed: %v", err)
	}
	if err := a.SetGain(140); err != nil {
		t.Fatalf("SetGain failed: %v", err)
	}
	steps := []haptic.WaveformStep{{Effect: 47}}
	if err := a.LoadWaveform(steps); err != nil {
		t.Fatalf("LoadWaveform failed: %v", err)
	}
	if err := a.Trigger(); err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}

	st := a.state()
	if st.mode != haptic.LibraryPlayback || st.gain != 140 || !st.playing {
		t.Errorf("Expected playing library state, got %+v", st)
	}
	if len(st.steps) != 1 || st.steps[0].Effect != 47 {
		t.Errorf("Expected recorded waveform, got %+v", st.steps)
	}
	if notified == 0 {
		t.Error("Expected the TUI to be notified about writes")
	}
}

func TestSimActuatorPlaybackEnds(t *testing.T) {
	a := newSimActuator(func() {})
	a.LoadWaveform([]haptic.WaveformStep{{Effect: 1}})
	a.Trigger()

	deadline := time.Now().Add(2 * time.Second)
	for a.state().playing {
		if time.Now().After(deadline) {
			t.Fatal("Expected playback to end on its own")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSimActuatorStopCancelsPlayback(t *testing.T) {
	a := newSimActuator(func() {})
	a.LoadWaveform([]haptic.WaveformStep{{Effect: 1}, {Effect: 2}, {Effect: 3}})
	a.Trigger()
	a.Stop()
	if a.state().playing {
		t.Error("Expected Stop to end playback")
	}
}
