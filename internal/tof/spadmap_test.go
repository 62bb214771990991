package tof

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/tof_computer/internal/caldata"
)

func TestSpadRateMapRefArray(t *testing.T) {
	dev := NewSimDevice()
	dev.SetRefRateUniform(caldata.RefLocationNonApertured, 2.5)
	s := NewSession(dev)

	rates, err := s.RunSpadRateMap(TestModeLCRVcselOn, ArrayRef, 36000)
	require.NoError(t, err)
	require.Len(t, rates, caldata.RefArraySpadCount)

	for i, r := range rates {
		assert.Equal(t, i, r.SpadIndex)
		assert.InDelta(t, 2.5, r.RateMcps, 1.0/signalRateScale)
	}

	// The patch RAM read happens inside the power-force scope, which is
	// released again afterwards.
	assert.Equal(t, uint8(0x00), dev.Reg(POWER_MANAGEMENT_GO1_POWER_FORCE))
}

func TestSpadRateMapReturnArray(t *testing.T) {
	dev := NewSimDevice()
	s := NewSession(dev)

	rates, err := s.RunSpadRateMap(TestModeLCRVcselOn, ArrayReturn, 36000)
	require.NoError(t, err)
	require.Len(t, rates, caldata.ReturnArraySpadCount)
	assert.Equal(t, uint8(ArrayReturn), dev.Reg(RANGING_CORE_SPAD_ARRAY_SEL))
}

func TestSpadRateMapDarkCounts(t *testing.T) {
	dev := NewSimDevice()
	dev.SetDarkRates(uniformRates(caldata.RefArraySpadCount, 0.015625))
	s := NewSession(dev)

	rates, err := s.RunSpadRateMap(TestModeLCRVcselOff, ArrayRef, 36000)
	require.NoError(t, err)
	require.Len(t, rates, caldata.RefArraySpadCount)

	// Dark counts use the signed 1.15 encoding, so this value survives
	// the round trip exactly.
	for _, r := range rates {
		assert.Equal(t, 0.015625, r.RateMcps)
	}
}

func TestSpadRateMapRejectsNonSSCMode(t *testing.T) {
	s := NewSession(NewSimDevice())
	_, err := s.RunSpadRateMap(TestModeRangingPresets, ArrayRef, 36000)
	require.Error(t, err)
}
