package platform

import (
	"log/slog"
	"sync"

	c "sharkee.net/gohaptics/config"
	"sharkee.net/gohaptics/haptic"
	u "sharkee.net/gohaptics/util"
)

// Platform abstracts the real actuator hardware from the TUI
// simulation. It owns the actuator handle and generates local
// intensity events (simulation keys, the hardware test button).
type Platform interface {
	// Start brings up the platform (opens I2C/GPIO, or starts the TUI).
	Start() error

	// Stop cleans up all platform resources.
	Stop()

	// Actuator returns the drive target the engine controls.
	Actuator() haptic.Actuator

	// Events returns the channel locally generated intensity readings
	// arrive on.
	Events() <-chan *u.Update

	// ShowUpdate surfaces an arriving intensity reading, whatever its
	// source.
	ShowUpdate(upd *u.Update)

	// ShowState surfaces the current actuator control state.
	ShowState(st haptic.State)

	// Ready is closed once the platform accepts log output and events.
	Ready() <-chan bool
}

// basePlatform carries the pieces both platform kinds share.
type basePlatform struct {
	conf           *c.Config
	events         chan *u.Update
	readyChan      chan bool
	shutdownMutex  sync.RWMutex
	isShuttingDown bool
}

func newBasePlatform(conf *c.Config) basePlatform {
	return basePlatform{
		conf: conf,
		// One slot: intensity readings conflate, they never queue.
		events:    make(chan *u.Update, 1),
		readyChan: make(chan bool),
	}
}

func (s *basePlatform) Events() <-chan *u.Update {
	return s.events
}

func (s *basePlatform) Ready() <-chan bool {
	return s.readyChan
}

func (s *basePlatform) setInShutdown() {
	s.shutdownMutex.Lock()
	s.isShuttingDown = true
	s.shutdownMutex.Unlock()
}

func (s *basePlatform) shuttingDown() bool {
	s.shutdownMutex.RLock()
	defer s.shutdownMutex.RUnlock()
	return s.isShuttingDown
}

// inject hands a locally generated reading to whoever consumes Events.
// It never blocks: with the consumer gone or behind, the stale reading
// is dropped in favor of the next one.
func (s *basePlatform) inject(upd *u.Update) {
	if s.shuttingDown() {
		return
	}
	select {
	case s.events <- upd:
	default:
		select {
		case <-s.events:
		default:
		}
		select {
		case s.events <- upd:
		default:
			slog.Debug("Dropping local intensity reading", "source", upd.Source)
		}
	}
}
