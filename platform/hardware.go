package platform

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"sharkee.net/gohaptics/config"
	"sharkee.net/gohaptics/device/drv2605"
	"sharkee.net/gohaptics/device/firmata"
	"sharkee.net/gohaptics/haptic"
	"sharkee.net/gohaptics/rpi"
	"sharkee.net/gohaptics/util"
)

const (
	// buttonPollInterval doubles as the debounce window of the test
	// button.
	buttonPollInterval = 50 * time.Millisecond
	// testPulseIntensity is the reading injected per button press,
	// strong enough to reach the middle zone of the stock table.
	testPulseIntensity = 0.5
)

// HardwarePlatform drives a real actuator: the DRV2605 on the I2C bus
// or a bare motor behind a Firmata board, plus the optional enable
// line and test button on plain GPIOs.
type HardwarePlatform struct {
	basePlatform
	act        haptic.Actuator
	bus        i2c.BusCloser
	enable     *rpi.EnablePin
	button     *rpi.TriggerButton
	buttonStop chan struct{}
	buttonWg   sync.WaitGroup
	gpioOpen   bool
}

func NewHardwarePlatform(conf *config.Config) *HardwarePlatform {
	inst := &HardwarePlatform{
		buttonStop: make(chan struct{}),
	}
	inst.basePlatform = newBasePlatform(conf)
	return inst
}

func (s *HardwarePlatform) Actuator() haptic.Actuator {
	return s.act
}

func (s *HardwarePlatform) Start() error {
	hw := s.conf.Hardware

	needGPIO := hw.TriggerGPIO >= 0
	if hw.Adapter == "drv2605" && hw.DRV2605.EnableGPIO >= 0 {
		needGPIO = true
	}
	if needGPIO {
		slog.Info("Initialise GPIO...")
		if err := rpi.Open(); err != nil {
			return fmt.Errorf("failed to open gpio: %w", err)
		}
		s.gpioOpen = true
	}

	switch hw.Adapter {
	case "drv2605":
		if hw.DRV2605.EnableGPIO >= 0 {
			// The chip only answers on the bus with EN high.
			s.enable = rpi.NewEnablePin(hw.DRV2605.EnableGPIO)
			s.enable.PowerUp()
		}
		slog.Info("Initialise I2C...")
		if _, err := host.Init(); err != nil {
			return fmt.Errorf("failed to init periph: %w", err)
		}
		bus, err := i2creg.Open(hw.DRV2605.Bus)
		if err != nil {
			return fmt.Errorf("failed to open i2c bus: %w", err)
		}
		s.bus = bus
		dev, err := drv2605.New(bus, &drv2605.Opts{
			Addr:    hw.DRV2605.Address,
			LRA:     hw.DRV2605.LRA,
			Library: hw.DRV2605.Library,
		})
		if err != nil {
			return fmt.Errorf("failed to open haptic driver: %w", err)
		}
		s.act = dev
	case "firmata":
		dev, err := firmata.New(hw.Firmata.Port, hw.Firmata.Baud, hw.Firmata.Pin)
		if err != nil {
			return fmt.Errorf("failed to open firmata adapter: %w", err)
		}
		s.act = dev
	default:
		return fmt.Errorf("unknown actuator adapter: %s", hw.Adapter)
	}

	if hw.TriggerGPIO >= 0 {
		s.button = rpi.NewTriggerButton(hw.TriggerGPIO)
		s.buttonWg.Add(1)
		go s.button.Watch(buttonPollInterval, s.fireTestPulse, s.buttonStop, &s.buttonWg)
	}

	close(s.readyChan) // For real hardware, we are ready immediately.
	return nil
}

func (s *HardwarePlatform) Stop() {
	s.setInShutdown()

	if s.button != nil {
		close(s.buttonStop)
		s.buttonWg.Wait()
		s.button = nil
	}

	// The engine has already parked the actuator in standby; now the
	// buses below it can go away.
	if s.bus != nil {
		if err := s.bus.Close(); err != nil {
			slog.Error("Error closing i2c bus", "error", err)
		}
		s.bus = nil
	}
	if s.enable != nil {
		s.enable.PowerDown()
		s.enable = nil
	}
	if s.gpioOpen {
		if err := rpi.Close(); err != nil {
			slog.Error("Error closing gpio", "error", err)
		}
		s.gpioOpen = false
	}
}

func (s *HardwarePlatform) ShowUpdate(upd *util.Update) {
	slog.Debug("Intensity reading", "source", upd.Source, "value", upd.Value)
}

func (s *HardwarePlatform) ShowState(st haptic.State) {
	// Headless; the status API serves this instead.
}

func (s *HardwarePlatform) fireTestPulse() {
	slog.Info("Test button pressed", "intensity", testPulseIntensity)
	s.inject(util.NewUpdate("button", testPulseIntensity, time.Now()))
}
