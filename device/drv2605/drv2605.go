// Package drv2605 drives the TI DRV2605 family of haptic controllers
// over I²C. The chip offers the two drive paths the engine wants: the
// ROM waveform sequencer for discrete effects and RTP (real time
// playback) for continuous amplitude.
package drv2605

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"

	"sharkee.net/gohaptics/haptic"
)

// I2CAddr is the fixed I²C address of the DRV2605 family.
const I2CAddr uint16 = 0x5A

var (
	// ErrConnectionFailed is returned when the driver cannot reach the chip.
	ErrConnectionFailed = errors.New("failed to connect to DRV2605")

	// ErrUnknownDevice is returned when the status register reports a
	// device ID outside the DRV2604/2605 family.
	ErrUnknownDevice = errors.New("unrecognized device id")

	// ErrSequenceTooLong is returned for waveforms beyond the 8 sequencer slots.
	ErrSequenceTooLong = errors.New("waveform exceeds sequencer capacity")
)

// Opts holds the construction options.
type Opts struct {
	// Addr is the I²C address. Leave zero for the default.
	Addr uint16
	// LRA selects linear resonant actuator feedback instead of ERM.
	LRA bool
	// Library is the ROM effect library to select, 1..6. Leave zero to
	// pick the conventional library for the motor type.
	Library uint8
}

// Dev is a handle to a DRV2605 haptic controller.
type Dev struct {
	c conn.Conn
}

// New opens the controller, verifies its identity and leaves it
// parked in standby with the motor type and ROM library configured.
func New(b i2c.Bus, opts *Opts) (*Dev, error) {
	addr := opts.Addr
	if addr == 0 {
		addr = I2CAddr
	}
	d := &Dev{c: &i2c.Dev{Bus: b, Addr: addr}}

	status, err := d.readReg(regStatus)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	switch status >> 5 {
	case devIDDRV2605, devIDDRV2604, devIDDRV2605L, devIDDRV2604L:
	default:
		return nil, fmt.Errorf("%w: %#x", ErrUnknownDevice, status>>5)
	}

	// Reset to the datasheet defaults before configuring. The chip
	// needs a moment before it accepts the next transaction.
	if err := d.writeReg(regMode, modeDevReset); err != nil {
		return nil, err
	}
	time.Sleep(10 * time.Millisecond)

	fb, err := d.readReg(regFeedback)
	if err != nil {
		return nil, err
	}
	if opts.LRA {
		fb |= feedbackLRA
	} else {
		fb &^= feedbackLRA
	}
	if err := d.writeReg(regFeedback, fb); err != nil {
		return nil, err
	}

	library := opts.Library
	if library == 0 {
		if opts.LRA {
			library = 6
		} else {
			library = 1
		}
	}
	if err := d.writeReg(regLibrarySel, library&0x07); err != nil {
		return nil, err
	}

	// Unsigned RTP data, so level 0 is silence and 255 full scale.
	c3, err := d.readReg(regControl3)
	if err != nil {
		return nil, err
	}
	if err := d.writeReg(regControl3, c3|control3RTPUnsigned); err != nil {
		return nil, err
	}

	if err := d.SetMode(haptic.Standby); err != nil {
		return nil, err
	}
	return d, nil
}

// String implements conn.Resource.
func (d *Dev) String() string {
	return "DRV2605"
}

// Halt silences the chip and parks it in standby.
//
// Halt implements conn.Resource.
func (d *Dev) Halt() error {
	if err := d.Stop(); err != nil {
		return err
	}
	return d.SetMode(haptic.Standby)
}

// SetMode moves the chip between standby, the internal trigger mode
// used for sequencer playback, and RTP.
func (d *Dev) SetMode(m haptic.Mode) error {
	switch m {
	case haptic.Standby:
		return d.writeReg(regMode, modeStandby)
	case haptic.LibraryPlayback:
		return d.writeReg(regMode, modeInternalTrigger)
	case haptic.Realtime:
		return d.writeReg(regMode, modeRTP)
	default:
		return fmt.Errorf("unsupported drive mode %v", m)
	}
}

// SetGain programs the overdrive clamp, the chip's output ceiling for
// sequencer playback.
func (d *Dev) SetGain(gain uint8) error {
	return d.writeReg(regODClamp, gain)
}

// LoadWaveform fills the sequencer slots. Unused slots are zeroed so
// a shorter sequence terminates where it ends. A pause step encodes
// its delay in the slot value with the wait flag set.
func (d *Dev) LoadWaveform(steps []haptic.WaveformStep) error {
	if len(steps) > seqSlots {
		return ErrSequenceTooLong
	}
	for i := 0; i < seqSlots; i++ {
		var v uint8
		if i < len(steps) {
			st := steps[i]
			if st.Pause {
				v = uint8(st.Effect)&0x7F | seqWaitFlag
			} else {
				v = uint8(st.Effect)
			}
		}
		if err := d.writeReg(regWaveSeq1+uint8(i), v); err != nil {
			return err
		}
	}
	return nil
}

// Trigger fires the loaded sequence.
func (d *Dev) Trigger() error {
	return d.writeReg(regGo, goBit)
}

// SetAmplitude streams a continuous RTP level.
func (d *Dev) SetAmplitude(level uint8) error {
	return d.writeReg(regRTPInput, level)
}

// Stop zeroes the RTP input and clears the GO bit, which halts a
// running sequence. Both writes are idempotent.
func (d *Dev) Stop() error {
	if err := d.writeReg(regRTPInput, 0); err != nil {
		return err
	}
	return d.writeReg(regGo, 0)
}

func (d *Dev) readReg(reg uint8) (uint8, error) {
	var buf [1]byte
	if err := d.c.Tx([]byte{reg}, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (d *Dev) writeReg(reg, val uint8) error {
	return d.c.Tx([]byte{reg, val}, nil)
}

// Register addresses, from the DRV2605L datasheet.
const (
	regStatus     uint8 = 0x00
	regMode       uint8 = 0x01
	regRTPInput   uint8 = 0x02
	regLibrarySel uint8 = 0x03
	regWaveSeq1   uint8 = 0x04
	regGo         uint8 = 0x0C
	regODClamp    uint8 = 0x17
	regFeedback   uint8 = 0x1A
	regControl3   uint8 = 0x1D
)

// regMode values and bits.
const (
	modeInternalTrigger uint8 = 0x00
	modeRTP             uint8 = 0x05
	modeStandby         uint8 = 0x40
	modeDevReset        uint8 = 0x80
)

// Device IDs reported in regStatus bits 7:5.
const (
	devIDDRV2605  = 3
	devIDDRV2604  = 4
	devIDDRV2605L = 6
	devIDDRV2604L = 7
)

const (
	goBit               uint8 = 0x01
	feedbackLRA         uint8 = 0x80
	control3RTPUnsigned uint8 = 0x08
	seqWaitFlag         uint8 = 0x80
	seqSlots                  = 8
)

var _ conn.Resource = &Dev{}
var _ haptic.Actuator = &Dev{}
