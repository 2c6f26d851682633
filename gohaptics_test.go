package main

import (
	"encoding/json"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	c "sharkee.net/gohaptics/config"
	"sharkee.net/gohaptics/haptic"
	u "sharkee.net/gohaptics/util"
)

type MockPlatform struct {
	events   chan *u.Update
	act      *mockActuator
	mu       sync.Mutex
	updates  []*u.Update
	states   []haptic.State
	stopChan chan struct{}
}

func NewMockPlatform() *MockPlatform {
	return &MockPlatform{
		events:   make(chan *u.Update, 1),
		act:      &mockActuator{},
		stopChan: make(chan struct{}),
	}
}

func (m *MockPlatform) Start() error {
	return nil
}

func (m *MockPlatform) Stop() {
	close(m.stopChan)
}

func (m *MockPlatform) Actuator() haptic.Actuator {
	return m.act
}

func (m *MockPlatform) Events() <-chan *u.Update {
	return m.events
}

func (m *MockPlatform) ShowUpdate(upd *u.Update) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, upd)
}

func (m *MockPlatform) ShowState(st haptic.State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = append(m.states, st)
}

func (m *MockPlatform) Ready() <-chan bool {
	readyChan := make(chan bool)
	close(readyChan)
	return readyChan
}

func (m *MockPlatform) GetShownUpdates() []*u.Update {
	m.mu.Lock()
	defer m.mu.Unlock()
	ret := make([]*u.Update, len(m.updates))
	copy(ret, m.updates)
	return ret
}

func (m *MockPlatform) GetShownStates() []haptic.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	ret := make([]haptic.State, len(m.states))
	copy(ret, m.states)
	return ret
}

type mockActuator struct {
	mu       sync.Mutex
	modes    []haptic.Mode
	gains    []uint8
	loads    int
	triggers int
	levels   []uint8
	stops    int
}

func (m *mockActuator) SetMode(mode haptic.Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modes = append(m.modes, mode)
	return nil
}

func (m *mockActuator) SetGain(gain uint8) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gains = append(m.gains, gain)
	return nil
}

func (m *mockActuator) LoadWaveform(steps []haptic.WaveformStep) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	return nil
}

func (m *mockActuator) Trigger() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggers++
	return nil
}

func (m *mockActuator) SetAmplitude(level uint8) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels = append(m.levels, level)
	return nil
}

func (m *mockActuator) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	return nil
}

func (m *mockActuator) getTriggers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.triggers
}

func (m *mockActuator) getLevels() []uint8 {
	m.mu.Lock()
	defer m.mu.Unlock()
	ret := make([]uint8, len(m.levels))
	copy(ret, m.levels)
	return ret
}

func newTestApp() (*App, *MockPlatform) {
	ossignal := make(chan os.Signal, 1)
	app := NewApp(ossignal)
	app.conf = c.DefaultConfig()
	app.stopsignal = make(chan struct{})

	mockPlatform := NewMockPlatform()
	app.platform = mockPlatform
	app.ctl = haptic.NewController(app.engineSettings(), mockPlatform.act)
	return app, mockPlatform
}

func TestStateManager(t *testing.T) {
	app, mockPlatform := newTestApp()

	app.ctlWg.Add(1)
	go app.ctl.Run(&app.ctlWg)
	app.shutdownWg.Add(1)
	go app.stateManager()
	t.Cleanup(func() {
		close(app.stopsignal)
		app.shutdownWg.Wait()
		app.ctl.Stop()
		app.ctlWg.Wait()
	})

	// A mid-range reading arrives on the platform path. With the stock
	// blended profile it must come out as a library playback.
	mockPlatform.events <- u.NewUpdate("tui", 0.5, time.Now())

	deadline := time.Now().Add(2 * time.Second)
	for mockPlatform.act.getTriggers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Expected the actuator to be triggered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	shown := mockPlatform.GetShownUpdates()
	if len(shown) != 1 || shown[0].Value != 0.5 {
		t.Fatalf("Expected the display to show the reading, got %+v", shown)
	}

	st := app.ctl.State()
	if st.Mode != haptic.LibraryPlayback || !st.Running {
		t.Errorf("Expected a running library playback, got %+v", st)
	}

	// A strong reading crosses the blended crossover into continuous
	// drive, with the amplitude zeroed around the mode change.
	mockPlatform.events <- u.NewUpdate("tui", 0.95, time.Now())
	deadline = time.Now().Add(2 * time.Second)
	for len(mockPlatform.act.getLevels()) < 2 {
		if time.Now().After(deadline) {
			t.Fatal("Expected continuous drive to start")
		}
		time.Sleep(5 * time.Millisecond)
	}
	levels := mockPlatform.act.getLevels()
	if levels[0] != 0 {
		t.Errorf("Expected a zero amplitude write before the mode change, got %v", levels)
	}
	if levels[1] == 0 {
		t.Errorf("Expected a non-zero drive level, got %v", levels)
	}

	// With no further readings the continuous drive must go stale and
	// be retired to standby on its own.
	deadline = time.Now().Add(2 * time.Second)
	for app.ctl.State().Mode != haptic.Standby {
		if time.Now().After(deadline) {
			t.Fatal("Expected the stale continuous drive to be retired")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSubmitTracksLatestReading(t *testing.T) {
	app, mockPlatform := newTestApp()

	upd := u.NewUpdate("osc", 0.7, time.Now())
	app.Submit(upd)

	app.updateMu.Lock()
	last := app.lastUpdate
	app.updateMu.Unlock()
	if last != upd {
		t.Errorf("Expected the newest reading to be tracked, got %+v", last)
	}
	if shown := mockPlatform.GetShownUpdates(); len(shown) != 1 {
		t.Errorf("Expected one displayed reading, got %d", len(shown))
	}
}

func TestRefreshDisplay(t *testing.T) {
	app, mockPlatform := newTestApp()

	app.shutdownWg.Add(1)
	go app.refreshDisplay()
	t.Cleanup(func() {
		close(app.stopsignal)
		app.shutdownWg.Wait()
	})

	deadline := time.Now().Add(2 * time.Second)
	for len(mockPlatform.GetShownStates()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Expected the engine state to be pushed to the display")
		}
		time.Sleep(10 * time.Millisecond)
	}

	states := mockPlatform.GetShownStates()
	if states[0].Mode != haptic.Standby {
		t.Errorf("Expected the idle engine to report standby, got %v", states[0].Mode)
	}
}

func TestStatusHandler(t *testing.T) {
	app, _ := newTestApp()
	app.Submit(u.NewUpdate("osc", 0.7, time.Now()))

	req := httptest.NewRequest("GET", "/api/status", nil)
	rec := httptest.NewRecorder()
	app.statusHandler(rec, req)

	if rec.Code != 200 {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	var resp statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Expected a JSON body: %v", err)
	}
	if resp.Device != "Chest" {
		t.Errorf("Expected device Chest, got %q", resp.Device)
	}
	if resp.Mode != "standby" {
		t.Errorf("Expected standby before any drive, got %q", resp.Mode)
	}
	if resp.LastSource != "osc" || resp.LastIntensity != 0.7 {
		t.Errorf("Expected the newest reading in the status, got %+v", resp)
	}
	if resp.Instance == "" {
		t.Error("Expected the instance id to be reported")
	}
	if resp.Uptime == "" {
		t.Error("Expected the uptime to be reported")
	}
}
