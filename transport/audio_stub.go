// +build !cgo

package transport

import (
	"log/slog"

	c "sharkee.net/gohaptics/config"
)

// AudioSource is a stub implementation for environments where CGO is disabled.
type AudioSource struct{}

// NewAudioSource returns a stub source that logs a warning.
func NewAudioSource(sink Sink, cfg c.AudioConfig) *AudioSource {
	slog.Warn("AudioSource: audio support is disabled in this build (requires CGO).")
	return &AudioSource{}
}

func (p *AudioSource) Start() error { return nil }

func (p *AudioSource) Stop() {}
