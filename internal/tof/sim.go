// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package tof

import (
	"fmt"
	"sync"

	"github.com/relabs-tech/tof_computer/internal/caldata"
)

// SimDevice is a register-level model of the sensor's calibration
// behaviour. It backs the test suite and the mock telemetry producer, so
// the whole calibration flow can run without hardware on the bus.
//
// The model covers exactly what calibration observes: the busy flag
// raised by a device test, the patch-RAM rate buffer (readable only
// under power force, like the real part), and the averaged ranging
// result block left behind by the MM presets.
type SimDevice struct {
	mu   sync.Mutex
	regs map[uint16]uint8

	// Per-SPAD signal rates of the reference array for each aperture
	// class, and dark/return rates, all in Mcps.
	refRates    map[caldata.RefLocation][]float64
	darkRates   []float64
	returnRates []float64

	// Ranging preset results.
	MM1RangeMM       uint16
	MM2RangeMM       uint16
	EffectiveSpads   float64
	PeakRateMcps     float64
	ReturnRangeValid uint8

	// BusyPolls is how many status polls report busy before a test
	// completes. StuckBusy simulates a hung device: the completion flag
	// never asserts.
	BusyPolls int
	StuckBusy bool

	activeTest     TestMode
	lastSSCMode    TestMode
	pendingPolls   int
	powerForceHist []uint8

	readErrs  map[uint16]error
	writeErrs map[uint16]error
}

// NewSimDevice returns a simulator with benign defaults: 3.0 Mcps per
// non-apertured reference SPAD (5 SPADs land inside the default band),
// attenuated classes scaled down accordingly, and MM presets measuring
// exactly the default 140 mm calibration distance.
func NewSimDevice() *SimDevice {
	d := &SimDevice{
		regs: map[uint16]uint8{},
		refRates: map[caldata.RefLocation][]float64{
			caldata.RefLocationNonApertured: uniformRates(caldata.RefArraySpadCount, 3.0),
			caldata.RefLocationAperture5x:   uniformRates(caldata.RefArraySpadCount, 0.6),
			caldata.RefLocationAperture10x:  uniformRates(caldata.RefArraySpadCount, 0.3),
		},
		darkRates:      uniformRates(caldata.RefArraySpadCount, 0.02),
		returnRates:    uniformRates(caldata.ReturnArraySpadCount, 1.5),
		MM1RangeMM:     140,
		MM2RangeMM:     140,
		EffectiveSpads: 12.0,
		PeakRateMcps:   15.0,
		BusyPolls:      2,
		readErrs:       map[uint16]error{},
		writeErrs:      map[uint16]error{},
	}
	d.setReg16(IDENTIFICATION_MODEL_ID, modelIDVL53L1X)
	return d
}

func uniformRates(n int, mcps float64) []float64 {
	r := make([]float64, n)
	for i := range r {
		r[i] = mcps
	}
	return r
}

// SetRefRates replaces the per-SPAD signal rates of one aperture class.
func (d *SimDevice) SetRefRates(loc caldata.RefLocation, rates []float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refRates[loc] = rates
}

// SetRefRateUniform sets every reference SPAD of one class to the same rate.
func (d *SimDevice) SetRefRateUniform(loc caldata.RefLocation, mcps float64) {
	d.SetRefRates(loc, uniformRates(caldata.RefArraySpadCount, mcps))
}

// SetDarkRates replaces the VCSEL-off dark counts of the reference array.
func (d *SimDevice) SetDarkRates(rates []float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.darkRates = rates
}

// SetReadError makes reads of reg fail with err (nil clears it).
func (d *SimDevice) SetReadError(reg uint16, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.readErrs, reg)
		return
	}
	d.readErrs[reg] = err
}

// SetWriteError makes writes of reg fail with err (nil clears it).
func (d *SimDevice) SetWriteError(reg uint16, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.writeErrs, reg)
		return
	}
	d.writeErrs[reg] = err
}

// Reg returns the current value of a plain register.
func (d *SimDevice) Reg(reg uint16) uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regs[reg]
}

// Reg16 returns the current value of a 16-bit register pair.
func (d *SimDevice) Reg16(reg uint16) uint16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return uint16(d.regs[reg])<<8 | uint16(d.regs[reg+1])
}

// PowerForceHistory returns every value written to the power-force
// register, in order.
func (d *SimDevice) PowerForceHistory() []uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]uint8, len(d.powerForceHist))
	copy(out, d.powerForceHist)
	return out
}

func (d *SimDevice) setReg16(reg uint16, v uint16) {
	d.regs[reg] = uint8(v >> 8)
	d.regs[reg+1] = uint8(v)
}

func (d *SimDevice) ReadReg(reg uint16) (uint8, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.readErrs[reg]; err != nil {
		return 0, err
	}
	if reg == FIRMWARE_SYSTEM_STATUS {
		return d.firmwareStatusLocked(), nil
	}
	return d.regs[reg], nil
}

func (d *SimDevice) firmwareStatusLocked() uint8 {
	if d.activeTest == TestModeNone {
		return 0x01
	}
	if d.StuckBusy {
		return 0x00
	}
	if d.pendingPolls > 0 {
		d.pendingPolls--
		return 0x00
	}
	// Test done; remember the SSC mode for the rate buffer decode.
	if d.activeTest == TestModeLCRVcselOff || d.activeTest == TestModeLCRVcselOn {
		d.lastSSCMode = d.activeTest
	}
	return 0x01
}

func (d *SimDevice) WriteReg(reg uint16, value uint8) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.writeErrs[reg]; err != nil {
		return err
	}
	if reg == POWER_MANAGEMENT_GO1_POWER_FORCE {
		d.powerForceHist = append(d.powerForceHist, value)
	}
	if reg == TEST_MODE_CTRL {
		d.activeTest = TestMode(value)
		if d.activeTest != TestModeNone {
			d.pendingPolls = d.BusyPolls
		}
	}
	d.regs[reg] = value
	return nil
}

func (d *SimDevice) ReadReg16(reg uint16) (uint16, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.readErrs[reg]; err != nil {
		return 0, err
	}
	return uint16(d.regs[reg])<<8 | uint16(d.regs[reg+1]), nil
}

func (d *SimDevice) WriteReg16(reg uint16, value uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.writeErrs[reg]; err != nil {
		return err
	}
	d.setReg16(reg, value)
	return nil
}

func (d *SimDevice) ReadBlock(reg uint16, buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.readErrs[reg]; err != nil {
		return err
	}
	switch reg {
	case PATCH_RAM_SPAD_RATE_DATA:
		return d.fillRateBufferLocked(buf)
	case RESULT_RANGE_STATUS:
		return d.fillRangeResultLocked(buf)
	default:
		for i := range buf {
			buf[i] = d.regs[reg+uint16(i)]
		}
		return nil
	}
}

func (d *SimDevice) fillRateBufferLocked(buf []byte) error {
	if d.regs[POWER_MANAGEMENT_GO1_POWER_FORCE] == 0 {
		return fmt.Errorf("sim: patch RAM read without power force")
	}

	var rates []float64
	dark := d.lastSSCMode == TestModeLCRVcselOff
	if ArraySelect(d.regs[RANGING_CORE_SPAD_ARRAY_SEL]) == ArrayRef {
		if dark {
			rates = d.darkRates
		} else {
			rates = d.refRates[caldata.RefLocation(d.regs[REF_SPAD_MAN_REF_LOCATION])]
		}
	} else {
		rates = d.returnRates
	}

	for i := 0; 2*i+1 < len(buf); i++ {
		var word uint16
		if i < len(rates) {
			if dark {
				word = uint16(int16(rates[i] * darkRateScale))
			} else {
				word = uint16(rates[i] * signalRateScale)
			}
		}
		buf[2*i] = byte(word >> 8)
		buf[2*i+1] = byte(word)
	}
	return nil
}

func (d *SimDevice) fillRangeResultLocked(buf []byte) error {
	if len(buf) < 17 {
		return fmt.Errorf("sim: short range result read (%d bytes)", len(buf))
	}
	for i := range buf {
		buf[i] = 0
	}
	rangeMM := d.MM1RangeMM
	if d.regs[SYSTEM_SEQUENCE_CONFIG] == seqConfigMM2 {
		rangeMM = d.MM2RangeMM
	}
	buf[0] = d.ReturnRangeValid
	eff := uint16(d.EffectiveSpads * 256.0)
	buf[3] = byte(eff >> 8)
	buf[4] = byte(eff)
	buf[13] = byte(rangeMM >> 8)
	buf[14] = byte(rangeMM)
	peak := uint16(d.PeakRateMcps * signalRateScale)
	buf[15] = byte(peak >> 8)
	buf[16] = byte(peak)
	return nil
}
