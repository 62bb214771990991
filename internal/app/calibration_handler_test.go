package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relabs-tech/tof_computer/internal/caldata"
)

func TestMedianRate(t *testing.T) {
	assert.Equal(t, 0.0, medianRate(nil))

	odd := caldata.SpadRateMap{
		{SpadIndex: 0, RateMcps: 5.0},
		{SpadIndex: 1, RateMcps: 1.0},
		{SpadIndex: 2, RateMcps: 3.0},
	}
	assert.Equal(t, 3.0, medianRate(odd))

	even := caldata.SpadRateMap{
		{SpadIndex: 0, RateMcps: 4.0},
		{SpadIndex: 1, RateMcps: 1.0},
		{SpadIndex: 2, RateMcps: 3.0},
		{SpadIndex: 3, RateMcps: 2.0},
	}
	assert.Equal(t, 2.5, medianRate(even))
}

func TestIsRegisterWritable(t *testing.T) {
	// Test mode control is read-write, the model ID is read-only and
	// unknown addresses are rejected outright.
	assert.True(t, isRegisterWritable(0x0054))
	assert.False(t, isRegisterWritable(0x010F))
	assert.False(t, isRegisterWritable(0xBEEF))
}
