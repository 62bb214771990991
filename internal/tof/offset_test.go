package tof

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOffsetCalibrationNominal(t *testing.T) {
	dev := NewSimDevice()
	dev.MM1RangeMM = 142
	dev.MM2RangeMM = 139
	s := NewSession(dev)

	res, status, err := s.RunOffsetCalibration(140, DefaultOffsetCalParams())
	require.NoError(t, err)
	assert.Equal(t, CalOk, status)

	// Offsets are measured minus true distance, per preset.
	assert.Equal(t, int16(2), res.MM1OffsetMM)
	assert.Equal(t, int16(-1), res.MM2OffsetMM)
	assert.Equal(t, CalOk.String(), res.Status)
	assert.InDelta(t, 12.0, res.EffectiveSpadCountMM1, 1.0/256)
	assert.InDelta(t, 15.0, res.PreRangeRateMcps, 1.0/signalRateScale)

	// Both offsets written to the device, MM2 as two's complement.
	assert.Equal(t, uint16(2), dev.Reg16(ALGO_PART_TO_PART_RANGE_OFFSET_MM))
	assert.Equal(t, uint16(0xFFFF), dev.Reg16(MM_CONFIG_OUTER_OFFSET_MM))

	stored, ok := s.Store().OffsetCalibration()
	require.True(t, ok)
	assert.Equal(t, res, stored)
}

func TestOffsetCalibrationDeterministic(t *testing.T) {
	dev := NewSimDevice()
	dev.MM1RangeMM = 152
	dev.MM2RangeMM = 148
	s := NewSession(dev)

	first, _, err := s.RunOffsetCalibration(150, DefaultOffsetCalParams())
	require.NoError(t, err)
	second, _, err := s.RunOffsetCalibration(150, DefaultOffsetCalParams())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestOffsetCalibrationWarnsOnFewEffectiveSpads(t *testing.T) {
	dev := NewSimDevice()
	dev.EffectiveSpads = 3.5
	s := NewSession(dev)

	res, status, err := s.RunOffsetCalibration(140, DefaultOffsetCalParams())
	require.NoError(t, err)
	assert.Equal(t, CalInsufficientMM1Spads, status)
	assert.Equal(t, CalInsufficientMM1Spads.String(), res.Status)

	// A warning is not a failure: the result is still applied.
	_, ok := s.Store().OffsetCalibration()
	assert.True(t, ok)
	assert.Equal(t, uint16(0), dev.Reg16(ALGO_PART_TO_PART_RANGE_OFFSET_MM))
}

func TestOffsetCalibrationWarnsOnHotPreRange(t *testing.T) {
	dev := NewSimDevice()
	dev.PeakRateMcps = 45.0
	s := NewSession(dev)

	_, status, err := s.RunOffsetCalibration(140, DefaultOffsetCalParams())
	require.NoError(t, err)
	assert.Equal(t, CalPreRangeRateTooHigh, status)
}

func TestOffsetCalibrationConfiguresPresets(t *testing.T) {
	dev := NewSimDevice()
	s := NewSession(dev)
	p := DefaultOffsetCalParams()

	_, _, err := s.RunOffsetCalibration(140, p)
	require.NoError(t, err)

	// MM2 ran last, so its sequence config and sample count remain.
	assert.Equal(t, seqConfigMM2, dev.Reg(SYSTEM_SEQUENCE_CONFIG))
	assert.Equal(t, p.MM2NumSamples, dev.Reg(CAL_CONFIG_RANGE_NUM_SAMPLES))
	assert.Equal(t, p.PreNumSamples, dev.Reg(CAL_CONFIG_PRE_NUM_SAMPLES))

	// Shared range timeout on both the MM and range stages.
	want := encodeTimeoutUs(p.RangeTimeoutUs)
	assert.Equal(t, want, dev.Reg16(MM_CONFIG_TIMEOUT_MACROP_A))
	assert.Equal(t, want, dev.Reg16(RANGE_CONFIG_TIMEOUT_MACROP_A))

	// DSS target in 9.7 fixed point.
	assert.Equal(t, uint16(2560), dev.Reg16(DSS_CONFIG_TARGET_TOTAL_RATE_MCPS))
}

func TestOffsetCalibrationHardErrorLeavesStoreUntouched(t *testing.T) {
	dev := NewSimDevice()
	dev.SetReadError(RESULT_RANGE_STATUS, assert.AnError)
	s := NewSession(dev)

	_, _, err := s.RunOffsetCalibration(140, DefaultOffsetCalParams())
	require.Error(t, err)
	_, ok := s.Store().OffsetCalibration()
	assert.False(t, ok)
}
