// +build cgo

package transport

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	c "sharkee.net/gohaptics/config"
)

var (
	paMutex       sync.Mutex
	paInitialized bool
)

// AudioSource pulses the wearable from ambient sound, so music is
// felt without any VR session running. The RMS level of the input
// device is mapped from the configured dB window to [0,1].
type AudioSource struct {
	sink             Sink
	device           string
	sampleRate       float64
	framesPerBuffer  int
	updateFreq       time.Duration
	minDB            float64
	maxDB            float64
	stopchan         chan struct{}
	stopOnce         sync.Once
	silenceStartTime time.Time
	silenceStart     bool
	slowedDown       bool
}

// NewAudioSource creates a new AudioSource.
func NewAudioSource(sink Sink, cfg c.AudioConfig) *AudioSource {
	return &AudioSource{
		sink:            sink,
		device:          strings.ToLower(cfg.Device),
		sampleRate:      cfg.SampleRate,
		framesPerBuffer: cfg.FramesPerBuffer,
		updateFreq:      cfg.UpdateFreq,
		minDB:           cfg.MinDB,
		maxDB:           cfg.MaxDB,
		stopchan:        make(chan struct{}),
	}
}

func (p *AudioSource) Start() error {
	go p.runner()
	return nil
}

func (p *AudioSource) Stop() {
	p.stopOnce.Do(func() { close(p.stopchan) })
	paMutex.Lock()
	defer paMutex.Unlock()
	if paInitialized {
		if err := portaudio.Terminate(); err != nil {
			slog.Error("AudioSource: failed to terminate portaudio", "error", err)
		} else {
			slog.Info("AudioSource: PortAudio terminated.")
			paInitialized = false
		}
	}
}

// runner is the main processing loop for the source.
func (p *AudioSource) runner() {
	paMutex.Lock()
	if !paInitialized {
		if err := portaudio.Initialize(); err != nil {
			slog.Error("AudioSource: failed to initialize portaudio", "error", err)
			paMutex.Unlock()
			return
		}
		slog.Info("AudioSource: PortAudio initialized.")
	}
	paInitialized = true
	paMutex.Unlock()

	inDevice, err := p.findDevice()
	if err != nil {
		slog.Error("AudioSource: no device", "error", err)
		return
	}

	slog.Info("AudioSource", "device", inDevice.Name, "sampleRate", p.sampleRate, "framesPerBuffer", p.framesPerBuffer)

	buffer := make([]float32, p.framesPerBuffer*inDevice.MaxInputChannels)
	streamParams := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   inDevice,
			Channels: inDevice.MaxInputChannels,
			Latency:  inDevice.DefaultLowInputLatency,
		},
		SampleRate:      p.sampleRate,
		FramesPerBuffer: p.framesPerBuffer,
	}

	stream, err := portaudio.OpenStream(streamParams, buffer)
	if err != nil {
		slog.Error("AudioSource: failed to open stream", "error", err)
		return
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		slog.Error("AudioSource: failed to start stream", "error", err)
		return
	}
	defer stream.Stop()

	ticker := time.NewTicker(p.updateFreq)
	defer ticker.Stop()

	// Silence the actuator when the source goes away
	defer feed(p.sink, "audio", 0)

	p.slowedDown = false
	p.silenceStart = false
	for {
		select {
		case <-p.stopchan:
			return
		case <-ticker.C:
			if err = stream.Read(); err != nil {
				// This can happen, e.g., portaudio.InputOverflowed. We can log it but continue.
			}
			rms := calculateRMS(buffer)
			p.checkSilence(rms, ticker)
			feed(p.sink, "audio", p.dbToLevel(rmsToDB(rms)))
		}
	}
}

// checkSilence slows the poll loop down after a stretch of silence so
// an idle device does not burn battery reading an empty stream.
func (p *AudioSource) checkSilence(rms float64, ticker *time.Ticker) {
	if rms > 0 {
		if p.slowedDown {
			slog.Info("AudioSource: audio input detected, back to full poll speed...")
			p.silenceStart = false
			p.slowedDown = false
			ticker.Reset(p.updateFreq)
		} else if p.silenceStart {
			p.silenceStart = false
		}
		return
	}
	if !p.silenceStart {
		p.silenceStart = true
		p.silenceStartTime = time.Now()
	} else if !p.slowedDown && time.Since(p.silenceStartTime) > 10*time.Second {
		slog.Info("AudioSource: no audio input detected for 10 seconds, slowing down poll loop...")
		ticker.Reset(5 * time.Second)
		p.slowedDown = true
	}
}

// dbToLevel normalizes a dB reading into [0,1] across the configured
// window.
func (p *AudioSource) dbToLevel(db float64) float64 {
	db = min(db, p.maxDB)
	db = max(db, p.minDB)
	return (db - p.minDB) / (p.maxDB - p.minDB)
}

func (p *AudioSource) findDevice() (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("could not list audio devices: %w", err)
	}

	for _, device := range devices {
		if device.MaxInputChannels > 0 && strings.Contains(strings.ToLower(device.Name), p.device) {
			return device, nil
		}
	}

	return nil, fmt.Errorf("no suitable audio input device found")
}

// calculateRMS calculates the Root Mean Square of a slice of audio samples.
func calculateRMS(samples []float32) float64 {
	var sumSquare float64
	for _, sample := range samples {
		sumSquare += float64(sample * sample)
	}
	meanSquare := sumSquare / float64(len(samples))
	return math.Sqrt(meanSquare)
}

// rmsToDB converts an RMS value (0.0-1.0) to a decibel scale.
func rmsToDB(rms float64) float64 {
	rms = max(0.0001, rms) // Avoid log(0)
	return 20 * math.Log10(rms)
}
