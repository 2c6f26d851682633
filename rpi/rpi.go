// Package rpi wraps the plain GPIO lines a wearable node uses on a
// Raspberry Pi: the DRV2605 enable line and the physical test button.
// The I²C traffic to the driver chip itself goes through periph.io;
// this package only covers the two bare pins next to it.
package rpi

import (
	"log/slog"
	"sync"
	"time"

	"github.com/stianeikeland/go-rpio/v4"
)

// Open maps the GPIO memory range. Call once before any pin is used.
func Open() error {
	return rpio.Open()
}

// Close unmaps the GPIO memory range.
func Close() error {
	return rpio.Close()
}

// enableSettle is how long the DRV2605 needs after EN goes high before
// it accepts I²C transactions. The datasheet says 250µs; one
// millisecond keeps a margin without delaying startup noticeably.
const enableSettle = time.Millisecond

// EnablePin drives the EN line of the haptic driver chip. The chip is
// held powered down until the daemon starts and released again on
// shutdown, so a crashed or stopped daemon cannot leave it active.
type EnablePin struct {
	pin rpio.Pin
}

// NewEnablePin configures the given GPIO as an output for the EN line.
func NewEnablePin(gpio int) *EnablePin {
	pin := rpio.Pin(gpio)
	pin.Output()
	return &EnablePin{pin: pin}
}

// PowerUp raises EN and waits for the chip to become addressable.
func (e *EnablePin) PowerUp() {
	e.pin.High()
	time.Sleep(enableSettle)
}

// PowerDown drops EN, cutting the chip off.
func (e *EnablePin) PowerDown() {
	e.pin.Low()
}

// TriggerButton watches a push button wired between a GPIO and ground.
// Each press fires a callback, which the hardware platform uses to
// inject the same test pulse the desktop router sends, so a unit can
// be checked on the body without any PC attached.
type TriggerButton struct {
	pin     rpio.Pin
	read    func() bool // true while the button is held down
	pressed bool
}

// NewTriggerButton configures the given GPIO as a pulled-up input.
func NewTriggerButton(gpio int) *TriggerButton {
	pin := rpio.Pin(gpio)
	pin.Input()
	pin.PullUp()
	b := &TriggerButton{pin: pin}
	b.read = func() bool { return b.pin.Read() == rpio.Low }
	return b
}

// Watch polls the button until stop closes and calls fire once per
// press. Polling is plenty for a human finger; the interval doubles as
// the debounce window, so contact bounce within it is absorbed.
func (b *TriggerButton) Watch(interval time.Duration, fire func(), stop <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			slog.Info("Ending trigger button watcher go-routine...")
			return
		case <-ticker.C:
			down := b.read()
			if down && !b.pressed {
				slog.Debug("Trigger button pressed")
				fire()
			}
			b.pressed = down
		}
	}
}
