// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package tof

import (
	"fmt"
	"time"

	"github.com/relabs-tech/tof_computer/internal/caldata"
)

// OffsetCalParams tunes the MM1/MM2 offset calibration presets. Defaults
// are the current FMT settings; the range timeout is deliberately shared
// by both presets so the sigma-delta settling matches real ranging.
type OffsetCalParams struct {
	PhasecalTimeoutUs uint32
	RangeTimeoutUs    uint32
	PreNumSamples     uint8
	MM1NumSamples     uint8
	MM2NumSamples     uint8
	DSSTargetRateMcps float64
	MinEffectiveSpads float64
	MaxPreRangeMcps   float64
}

// DefaultOffsetCalParams returns the FMT defaults: 32 pre / 100 MM1 / 64
// MM2 samples, 1000 µs phase-cal and 13000 µs range timeouts, 20.0 Mcps
// DSS target, warnings below 5.0 effective SPADs or above 40.0 Mcps
// pre-range rate. The calibration target is expected at the configured
// distance with ~5% reflectance.
func DefaultOffsetCalParams() OffsetCalParams {
	return OffsetCalParams{
		PhasecalTimeoutUs: 1000,
		RangeTimeoutUs:    13000,
		PreNumSamples:     32,
		MM1NumSamples:     100,
		MM2NumSamples:     64,
		DSSTargetRateMcps: 20.0,
		MinEffectiveSpads: 5.0,
		MaxPreRangeMcps:   40.0,
	}
}

// presetReading is one decoded ranging result block.
type presetReading struct {
	rangeMM  uint16
	effSpads float64
	peakRate float64
}

// RunOffsetCalibration runs the MM1 and MM2 ranging presets against a
// target at the caller-provided ground-truth distance and derives the
// signed per-preset range offsets (measured minus true). Warnings do not
// suppress the result: it is still written to the device offset
// registers and to the session store, and the caller decides whether a
// degraded calibration is acceptable.
func (s *Session) RunOffsetCalibration(calDistanceMM int16, p OffsetCalParams) (caldata.OffsetCalibrationResult, CalibrationStatus, error) {
	mm1, err := s.runRangingPreset(seqConfigMM1, p.MM1NumSamples, p)
	if err != nil {
		return caldata.OffsetCalibrationResult{}, CalOk, fmt.Errorf("tof: MM1 preset: %w", err)
	}
	mm2, err := s.runRangingPreset(seqConfigMM2, p.MM2NumSamples, p)
	if err != nil {
		return caldata.OffsetCalibrationResult{}, CalOk, fmt.Errorf("tof: MM2 preset: %w", err)
	}

	status := CalOk
	switch {
	case mm1.effSpads < p.MinEffectiveSpads:
		status = CalInsufficientMM1Spads
	case mm1.peakRate > p.MaxPreRangeMcps:
		status = CalPreRangeRateTooHigh
	}

	result := caldata.OffsetCalibrationResult{
		MM1OffsetMM:           int16(int32(mm1.rangeMM) - int32(calDistanceMM)),
		MM2OffsetMM:           int16(int32(mm2.rangeMM) - int32(calDistanceMM)),
		EffectiveSpadCountMM1: mm1.effSpads,
		PreRangeRateMcps:      mm1.peakRate,
		Status:                status.String(),
	}

	if err := s.io.WriteReg16(ALGO_PART_TO_PART_RANGE_OFFSET_MM, uint16(result.MM1OffsetMM)); err != nil {
		return caldata.OffsetCalibrationResult{}, CalOk, fmt.Errorf("tof: write MM1 offset: %w", err)
	}
	if err := s.io.WriteReg16(MM_CONFIG_OUTER_OFFSET_MM, uint16(result.MM2OffsetMM)); err != nil {
		return caldata.OffsetCalibrationResult{}, CalOk, fmt.Errorf("tof: write MM2 offset: %w", err)
	}

	s.store.PutOffsetCalibration(result)
	return result, status, nil
}

// runRangingPreset configures one MM preset, runs it through the device
// test machinery and decodes the averaged result block the firmware
// leaves behind.
func (s *Session) runRangingPreset(seq uint8, numSamples uint8, p OffsetCalParams) (presetReading, error) {
	writes := []struct {
		reg uint16
		val uint8
	}{
		{SYSTEM_SEQUENCE_CONFIG, seq},
		{CAL_CONFIG_PRE_NUM_SAMPLES, p.PreNumSamples},
		{CAL_CONFIG_RANGE_NUM_SAMPLES, numSamples},
	}
	for _, w := range writes {
		if err := s.io.WriteReg(w.reg, w.val); err != nil {
			return presetReading{}, fmt.Errorf("write reg 0x%04X: %w", w.reg, err)
		}
	}

	if err := s.io.WriteReg16(PHASECAL_CONFIG_TIMEOUT_MACROP, encodeTimeoutUs(p.PhasecalTimeoutUs)); err != nil {
		return presetReading{}, fmt.Errorf("phasecal timeout: %w", err)
	}
	// Same range timeout on both the MM and range stages.
	rangeTimeout := encodeTimeoutUs(p.RangeTimeoutUs)
	if err := s.io.WriteReg16(MM_CONFIG_TIMEOUT_MACROP_A, rangeTimeout); err != nil {
		return presetReading{}, fmt.Errorf("mm timeout: %w", err)
	}
	if err := s.io.WriteReg16(RANGE_CONFIG_TIMEOUT_MACROP_A, rangeTimeout); err != nil {
		return presetReading{}, fmt.Errorf("range timeout: %w", err)
	}
	if err := s.io.WriteReg16(DSS_CONFIG_TARGET_TOTAL_RATE_MCPS, uint16(p.DSSTargetRateMcps*signalRateScale)); err != nil {
		return presetReading{}, fmt.Errorf("dss target rate: %w", err)
	}

	// The firmware accumulates all pre and main samples internally and
	// reports one averaged result, so the poll bound covers the full run.
	perSample := time.Duration(p.RangeTimeoutUs+p.PhasecalTimeoutUs) * time.Microsecond
	total := time.Duration(uint32(p.PreNumSamples)+uint32(numSamples))*perSample + 500*time.Millisecond

	if err := s.RunDeviceTest(TestModeRangingPresets, total); err != nil {
		return presetReading{}, err
	}

	buf := make([]byte, 17)
	if err := s.io.ReadBlock(RESULT_RANGE_STATUS, buf); err != nil {
		return presetReading{}, err
	}
	return presetReading{
		rangeMM:  uint16(buf[13])<<8 | uint16(buf[14]),
		effSpads: float64(uint16(buf[3])<<8|uint16(buf[4])) / 256.0,
		peakRate: float64(uint16(buf[15])<<8|uint16(buf[16])) / signalRateScale,
	}, nil
}
