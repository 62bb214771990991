// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package tof

import (
	"fmt"

	"github.com/relabs-tech/tof_computer/internal/caldata"
)

// RateBand is the acceptable aggregate reference rate window in Mcps.
type RateBand struct {
	MinMcps float64
	MaxMcps float64
}

// CharacterizeParams tunes the reference SPAD search. The defaults match
// the current FMT settings; product variants adjust them via config.
type CharacterizeParams struct {
	Band         RateBand
	MinSpadCount int
	SSCTimeoutUs uint32
}

// DefaultCharacterizeParams returns the FMT defaults: a 10.0–40.0 Mcps
// band, 5 reference SPADs minimum and a 36 ms SSC acquisition.
func DefaultCharacterizeParams() CharacterizeParams {
	return CharacterizeParams{
		Band:         RateBand{MinMcps: 10.0, MaxMcps: 40.0},
		MinSpadCount: 5,
		SSCTimeoutUs: 36000,
	}
}

// apertureClasses lists the escalation order, least attenuating first.
// The search only ever moves forward through this list.
var apertureClasses = []caldata.RefLocation{
	caldata.RefLocationNonApertured,
	caldata.RefLocationAperture5x,
	caldata.RefLocationAperture10x,
}

func apertureAttenuation(loc caldata.RefLocation) uint8 {
	switch loc {
	case caldata.RefLocationAperture5x:
		return 0x05
	case caldata.RefLocationAperture10x:
		return 0x0A
	default:
		return 0x00
	}
}

// RunRefSpadChar finds the minimal reference SPAD configuration whose
// aggregate signal rate lands inside the target band. It escalates to a
// more attenuating aperture class whenever the minimum viable count
// already exceeds the band maximum, and within a class enables SPADs in
// ascending index order until the rate clears the band minimum or one
// more SPAD would overshoot the maximum.
//
// Should run once per part, with the cover glass attached: the winning
// configuration is written both to the device customer register group
// and to the session store, overwriting any previous characterisation.
// The returned status is a warning classification; the configuration is
// produced and persisted even when it is not CalOk.
func (s *Session) RunRefSpadChar(p CharacterizeParams) (caldata.ReferenceSpadConfig, CalibrationStatus, error) {
	if p.Band.MinMcps >= p.Band.MaxMcps {
		return caldata.ReferenceSpadConfig{}, CalOk,
			fmt.Errorf("tof: invalid rate band [%.1f, %.1f]", p.Band.MinMcps, p.Band.MaxMcps)
	}
	if p.MinSpadCount <= 0 {
		p.MinSpadCount = DefaultCharacterizeParams().MinSpadCount
	}

	// Fallback when no class yields enough usable SPADs.
	var bestShort []caldata.SpadRateSample
	bestShortLoc := caldata.RefLocationNonApertured

	for ci, loc := range apertureClasses {
		lastClass := ci == len(apertureClasses)-1

		if err := s.io.WriteReg(REF_SPAD_MAN_REF_LOCATION, uint8(loc)); err != nil {
			return caldata.ReferenceSpadConfig{}, CalOk, fmt.Errorf("tof: ref location select: %w", err)
		}
		if err := s.io.WriteReg(DSS_CONFIG_APERTURE_ATTENUATION, apertureAttenuation(loc)); err != nil {
			return caldata.ReferenceSpadConfig{}, CalOk, fmt.Errorf("tof: aperture attenuation: %w", err)
		}

		rates, err := s.RunSpadRateMap(TestModeLCRVcselOn, ArrayRef, p.SSCTimeoutUs)
		if err != nil {
			return caldata.ReferenceSpadConfig{}, CalOk, err
		}

		var good []caldata.SpadRateSample
		for _, r := range rates {
			if r.RateMcps > 0 {
				good = append(good, r)
			}
		}

		if len(good) < p.MinSpadCount {
			if len(good) > len(bestShort) {
				bestShort = good
				bestShortLoc = loc
			}
			if !lastClass {
				continue
			}
			cfg := buildRefSpadConfig(bestShortLoc, bestShort)
			if err := s.applyRefSpadConfig(cfg); err != nil {
				return caldata.ReferenceSpadConfig{}, CalOk, err
			}
			s.store.PutRefSpadConfig(cfg)
			return cfg, CalInsufficientSpads, nil
		}

		selected := good[:p.MinSpadCount]
		total := 0.0
		for _, r := range selected {
			total += r.RateMcps
		}

		if total > p.Band.MaxMcps && !lastClass {
			// Even the minimum count is too hot here; escalate.
			continue
		}

		for _, r := range good[p.MinSpadCount:] {
			if total >= p.Band.MinMcps {
				break
			}
			if total+r.RateMcps > p.Band.MaxMcps {
				break
			}
			selected = append(selected, r)
			total += r.RateMcps
		}

		status := CalOk
		switch {
		case total > p.Band.MaxMcps:
			status = CalRateTooHigh
		case total < p.Band.MinMcps:
			status = CalRateTooLow
		}

		cfg := buildRefSpadConfig(loc, selected)
		if err := s.applyRefSpadConfig(cfg); err != nil {
			return caldata.ReferenceSpadConfig{}, CalOk, err
		}
		s.store.PutRefSpadConfig(cfg)
		return cfg, status, nil
	}

	// Unreachable: the last class always settles above.
	return caldata.ReferenceSpadConfig{}, CalOk, fmt.Errorf("tof: ref spad search exhausted")
}

func buildRefSpadConfig(loc caldata.RefLocation, selected []caldata.SpadRateSample) caldata.ReferenceSpadConfig {
	cfg := caldata.ReferenceSpadConfig{
		NumRefSpads: len(selected),
		RefLocation: loc,
	}
	for _, r := range selected {
		cfg.SpadEnables[r.SpadIndex/8] |= 1 << uint(r.SpadIndex%8)
	}
	return cfg
}

// applyRefSpadConfig writes the configuration into the device customer
// register group so it survives into normal ranging.
func (s *Session) applyRefSpadConfig(cfg caldata.ReferenceSpadConfig) error {
	if err := s.io.WriteReg(REF_SPAD_MAN_NUM_REQUESTED_REF_SPAD, uint8(cfg.NumRefSpads)); err != nil {
		return fmt.Errorf("tof: write num ref spads: %w", err)
	}
	if err := s.io.WriteReg(REF_SPAD_MAN_REF_LOCATION, uint8(cfg.RefLocation)); err != nil {
		return fmt.Errorf("tof: write ref location: %w", err)
	}
	// Location and attenuation must always land as a matched pair.
	if err := s.io.WriteReg(DSS_CONFIG_APERTURE_ATTENUATION, apertureAttenuation(cfg.RefLocation)); err != nil {
		return fmt.Errorf("tof: write aperture attenuation: %w", err)
	}
	for i, b := range cfg.SpadEnables {
		if err := s.io.WriteReg(GLOBAL_CONFIG_SPAD_ENABLES_REF_0+uint16(i), b); err != nil {
			return fmt.Errorf("tof: write spad enables byte %d: %w", i, err)
		}
	}
	return nil
}
