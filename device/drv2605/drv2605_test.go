package drv2605

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"periph.io/x/conn/v3/i2c/i2ctest"

	"sharkee.net/gohaptics/haptic"
)

// probeOps are the transactions New performs against a healthy chip:
// identity check, reset, feedback and library selection, RTP data
// format, standby.
func probeOps(lra bool, library uint8) []i2ctest.IO {
	fbAfter := byte(0x36)
	if lra {
		fbAfter = 0xB6
	}
	return []i2ctest.IO{
		{Addr: I2CAddr, W: []byte{regStatus}, R: []byte{0xC0}},
		{Addr: I2CAddr, W: []byte{regMode, modeDevReset}},
		{Addr: I2CAddr, W: []byte{regFeedback}, R: []byte{0x36}},
		{Addr: I2CAddr, W: []byte{regFeedback, fbAfter}},
		{Addr: I2CAddr, W: []byte{regLibrarySel, library}},
		{Addr: I2CAddr, W: []byte{regControl3}, R: []byte{0xA0}},
		{Addr: I2CAddr, W: []byte{regControl3, 0xA8}},
		{Addr: I2CAddr, W: []byte{regMode, modeStandby}},
	}
}

func TestNewConfiguresChip(t *testing.T) {
	bus := &i2ctest.Playback{Ops: probeOps(true, 6), DontPanic: true}
	dev, err := New(bus, &Opts{LRA: true, Library: 6})
	assert.NoError(t, err)
	assert.NotNil(t, dev)
	assert.NoError(t, bus.Close(), "all configuration writes should have happened")
}

func TestNewRejectsUnknownDevice(t *testing.T) {
	bus := &i2ctest.Playback{
		Ops:       []i2ctest.IO{{Addr: I2CAddr, W: []byte{regStatus}, R: []byte{0x00}}},
		DontPanic: true,
	}
	_, err := New(bus, &Opts{})
	assert.ErrorIs(t, err, ErrUnknownDevice)
}

func TestSequencePlayback(t *testing.T) {
	ops := append(probeOps(false, 1),
		i2ctest.IO{Addr: I2CAddr, W: []byte{regMode, modeInternalTrigger}},
		i2ctest.IO{Addr: I2CAddr, W: []byte{regODClamp, 140}},
		i2ctest.IO{Addr: I2CAddr, W: []byte{regWaveSeq1, 47}},
		i2ctest.IO{Addr: I2CAddr, W: []byte{regWaveSeq1 + 1, 0x8A}},
		i2ctest.IO{Addr: I2CAddr, W: []byte{regWaveSeq1 + 2, 14}},
		i2ctest.IO{Addr: I2CAddr, W: []byte{regWaveSeq1 + 3, 0}},
		i2ctest.IO{Addr: I2CAddr, W: []byte{regWaveSeq1 + 4, 0}},
		i2ctest.IO{Addr: I2CAddr, W: []byte{regWaveSeq1 + 5, 0}},
		i2ctest.IO{Addr: I2CAddr, W: []byte{regWaveSeq1 + 6, 0}},
		i2ctest.IO{Addr: I2CAddr, W: []byte{regWaveSeq1 + 7, 0}},
		i2ctest.IO{Addr: I2CAddr, W: []byte{regGo, goBit}},
	)
	bus := &i2ctest.Playback{Ops: ops, DontPanic: true}
	dev, err := New(bus, &Opts{Library: 1})
	assert.NoError(t, err)

	assert.NoError(t, dev.SetMode(haptic.LibraryPlayback))
	assert.NoError(t, dev.SetGain(140))
	steps := []haptic.WaveformStep{{Effect: 47}, {Effect: 10, Pause: true}, {Effect: 14}}
	assert.NoError(t, dev.LoadWaveform(steps), "a pause step should carry the wait flag")
	assert.NoError(t, dev.Trigger())
	assert.NoError(t, bus.Close())
}

func TestRealtimePath(t *testing.T) {
	ops := append(probeOps(false, 1),
		i2ctest.IO{Addr: I2CAddr, W: []byte{regMode, modeRTP}},
		i2ctest.IO{Addr: I2CAddr, W: []byte{regRTPInput, 200}},
		i2ctest.IO{Addr: I2CAddr, W: []byte{regRTPInput, 0}},
		i2ctest.IO{Addr: I2CAddr, W: []byte{regRTPInput, 0}},
		i2ctest.IO{Addr: I2CAddr, W: []byte{regGo, 0}},
		i2ctest.IO{Addr: I2CAddr, W: []byte{regMode, modeStandby}},
	)
	bus := &i2ctest.Playback{Ops: ops, DontPanic: true}
	dev, err := New(bus, &Opts{Library: 1})
	assert.NoError(t, err)

	assert.NoError(t, dev.SetMode(haptic.Realtime))
	assert.NoError(t, dev.SetAmplitude(200))
	assert.NoError(t, dev.SetAmplitude(0))
	assert.NoError(t, dev.Stop())
	assert.NoError(t, dev.SetMode(haptic.Standby))
	assert.NoError(t, bus.Close())
}

func TestLoadWaveformRejectsLongSequence(t *testing.T) {
	bus := &i2ctest.Playback{Ops: probeOps(false, 1), DontPanic: true}
	dev, err := New(bus, &Opts{Library: 1})
	assert.NoError(t, err)

	steps := make([]haptic.WaveformStep, 9)
	assert.ErrorIs(t, dev.LoadWaveform(steps), ErrSequenceTooLong)
	assert.NoError(t, bus.Close(), "no register writes should happen for an oversized sequence")
}
