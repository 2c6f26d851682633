package rpi

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeButton drives the watcher with a scripted pin level instead of
// real GPIO.
type fakeButton struct {
	down atomic.Bool
}

func (f *fakeButton) watcher() *TriggerButton {
	return &TriggerButton{read: f.down.Load}
}

func TestTriggerButtonFiresOncePerPress(t *testing.T) {
	fake := &fakeButton{}
	btn := fake.watcher()

	var fires atomic.Int32
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go btn.Watch(2*time.Millisecond, func() { fires.Add(1) }, stop, &wg)

	// Held down across many poll intervals: still a single press.
	fake.down.Store(true)
	assert.Eventually(t, func() bool { return fires.Load() == 1 },
		time.Second, time.Millisecond, "a press should fire the callback once")
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), fires.Load(), "holding the button must not re-fire")

	// Release and press again: a second fire.
	fake.down.Store(false)
	time.Sleep(20 * time.Millisecond)
	fake.down.Store(true)
	assert.Eventually(t, func() bool { return fires.Load() == 2 },
		time.Second, time.Millisecond, "a new press after release should fire again")

	close(stop)
	wg.Wait()
}

func TestTriggerButtonStop(t *testing.T) {
	fake := &fakeButton{}
	btn := fake.watcher()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go btn.Watch(time.Millisecond, func() {}, stop, &wg)

	close(stop)
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("the watcher did not exit after stop")
	}
}
