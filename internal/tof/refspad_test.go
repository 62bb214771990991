package tof

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/tof_computer/internal/caldata"
)

func TestRefSpadCharNominal(t *testing.T) {
	dev := NewSimDevice()
	s := NewSession(dev)

	// 3.0 Mcps per SPAD puts the minimum five straight into the band.
	cfg, status, err := s.RunRefSpadChar(DefaultCharacterizeParams())
	require.NoError(t, err)
	assert.Equal(t, CalOk, status)
	assert.Equal(t, 5, cfg.NumRefSpads)
	assert.Equal(t, caldata.RefLocationNonApertured, cfg.RefLocation)
	assert.True(t, cfg.Valid())

	// Lowest-index SPADs first: bits 0..4 of the first enable byte.
	assert.Equal(t, [6]byte{0x1F, 0, 0, 0, 0, 0}, cfg.SpadEnables)
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4}, cfg.EnabledSpads())

	// Written through to the customer register group and the store.
	assert.Equal(t, uint8(5), dev.Reg(REF_SPAD_MAN_NUM_REQUESTED_REF_SPAD))
	assert.Equal(t, uint8(caldata.RefLocationNonApertured), dev.Reg(REF_SPAD_MAN_REF_LOCATION))
	assert.Equal(t, uint8(0x1F), dev.Reg(GLOBAL_CONFIG_SPAD_ENABLES_REF_0))

	stored, ok := s.Store().RefSpadConfig()
	require.True(t, ok)
	assert.Equal(t, cfg, stored)
}

func TestRefSpadCharGrowsUntilBandMin(t *testing.T) {
	dev := NewSimDevice()
	// 1.5 Mcps per SPAD: five give 7.5, seven give 10.5.
	dev.SetRefRateUniform(caldata.RefLocationNonApertured, 1.5)
	s := NewSession(dev)

	cfg, status, err := s.RunRefSpadChar(DefaultCharacterizeParams())
	require.NoError(t, err)
	assert.Equal(t, CalOk, status)
	assert.Equal(t, 7, cfg.NumRefSpads)
	assert.Equal(t, caldata.RefLocationNonApertured, cfg.RefLocation)
}

func TestRefSpadCharEscalatesAperture(t *testing.T) {
	dev := NewSimDevice()
	// The minimum five non-apertured SPADs already overshoot the band
	// maximum, so the search must move to the 5x aperture.
	dev.SetRefRateUniform(caldata.RefLocationNonApertured, 9.0)
	dev.SetRefRateUniform(caldata.RefLocationAperture5x, 4.0)
	s := NewSession(dev)

	cfg, status, err := s.RunRefSpadChar(DefaultCharacterizeParams())
	require.NoError(t, err)
	assert.Equal(t, CalOk, status)
	assert.Equal(t, 5, cfg.NumRefSpads)
	assert.Equal(t, caldata.RefLocationAperture5x, cfg.RefLocation)
	assert.Equal(t, uint8(caldata.RefLocationAperture5x), dev.Reg(REF_SPAD_MAN_REF_LOCATION))
}

func TestRefSpadCharRateTooHighInLastClass(t *testing.T) {
	dev := NewSimDevice()
	for _, loc := range apertureClasses {
		dev.SetRefRateUniform(loc, 9.0)
	}
	s := NewSession(dev)

	cfg, status, err := s.RunRefSpadChar(DefaultCharacterizeParams())
	require.NoError(t, err)
	assert.Equal(t, CalRateTooHigh, status)
	assert.Equal(t, 5, cfg.NumRefSpads)
	assert.Equal(t, caldata.RefLocationAperture10x, cfg.RefLocation)

	// Even a degraded characterisation lands in the store.
	_, ok := s.Store().RefSpadConfig()
	assert.True(t, ok)
}

func TestRefSpadCharRateTooLow(t *testing.T) {
	dev := NewSimDevice()
	// 0.1 Mcps per SPAD: even all 48 only reach 4.8.
	dev.SetRefRateUniform(caldata.RefLocationNonApertured, 0.1)
	s := NewSession(dev)

	cfg, status, err := s.RunRefSpadChar(DefaultCharacterizeParams())
	require.NoError(t, err)
	assert.Equal(t, CalRateTooLow, status)
	assert.Equal(t, caldata.RefLocationNonApertured, cfg.RefLocation)
	assert.Equal(t, caldata.RefArraySpadCount, cfg.NumRefSpads)
}

func TestRefSpadCharInsufficientSpads(t *testing.T) {
	dev := NewSimDevice()
	// Only three usable SPADs in any class.
	sparse := func(rate float64) []float64 {
		r := make([]float64, caldata.RefArraySpadCount)
		r[2], r[7], r[11] = rate, rate, rate
		return r
	}
	dev.SetRefRates(caldata.RefLocationNonApertured, sparse(3.0))
	dev.SetRefRates(caldata.RefLocationAperture5x, sparse(0.6))
	dev.SetRefRates(caldata.RefLocationAperture10x, sparse(0.3))
	s := NewSession(dev)

	cfg, status, err := s.RunRefSpadChar(DefaultCharacterizeParams())
	require.NoError(t, err)
	assert.Equal(t, CalInsufficientSpads, status)
	assert.Equal(t, 3, cfg.NumRefSpads)
	assert.False(t, cfg.Valid())
	assert.ElementsMatch(t, []int{2, 7, 11}, cfg.EnabledSpads())

	// The applied registers must describe one coherent class: the
	// fallback location with its own attenuation code, not the last
	// class the search happened to sample.
	assert.Equal(t, uint8(cfg.RefLocation), dev.Reg(REF_SPAD_MAN_REF_LOCATION))
	assert.Equal(t, apertureAttenuation(cfg.RefLocation), dev.Reg(DSS_CONFIG_APERTURE_ATTENUATION))

	// Best-effort configuration still persisted for inspection.
	stored, ok := s.Store().RefSpadConfig()
	require.True(t, ok)
	assert.Equal(t, cfg, stored)
}

func TestRefSpadCharRejectsInvalidBand(t *testing.T) {
	s := NewSession(NewSimDevice())
	p := DefaultCharacterizeParams()
	p.Band = RateBand{MinMcps: 40.0, MaxMcps: 10.0}
	_, _, err := s.RunRefSpadChar(p)
	require.Error(t, err)
}

func TestRefSpadCharHardErrorLeavesStoreUntouched(t *testing.T) {
	dev := NewSimDevice()
	dev.SetWriteError(REF_SPAD_MAN_REF_LOCATION, assert.AnError)
	s := NewSession(dev)

	_, _, err := s.RunRefSpadChar(DefaultCharacterizeParams())
	require.Error(t, err)
	_, ok := s.Store().RefSpadConfig()
	assert.False(t, ok)
}
