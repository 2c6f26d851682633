package platform

import (
	"testing"
	"time"

	"sharkee.net/gohaptics/config"
	"sharkee.net/gohaptics/util"
)

func TestInjectKeepsLatestReading(t *testing.T) {
	base := newBasePlatform(config.DefaultConfig())

	// No consumer: three readings in a row must neither block nor
	// queue, only the newest survives.
	base.inject(util.NewUpdate("tui", 0.1, time.Now()))
	base.inject(util.NewUpdate("tui", 0.2, time.Now()))
	base.inject(util.NewUpdate("tui", 0.3, time.Now()))

	select {
	case upd := <-base.Events():
		if upd.Value != 0.3 {
			t.Errorf("Expected the newest reading 0.3, got %v", upd.Value)
		}
	default:
		t.Fatal("Expected a pending reading")
	}

	select {
	case upd := <-base.Events():
		t.Errorf("Expected no further readings, got %v", upd.Value)
	default:
	}
}

func TestInjectAfterShutdownIsDropped(t *testing.T) {
	base := newBasePlatform(config.DefaultConfig())
	base.setInShutdown()
	base.inject(util.NewUpdate("tui", 0.5, time.Now()))

	select {
	case upd := <-base.Events():
		t.Errorf("Expected no reading after shutdown, got %v", upd.Value)
	default:
	}
}
