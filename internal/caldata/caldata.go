// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package caldata holds the calibration artifacts exchanged between the
// calibration core, the MQTT telemetry bus and the external persistence
// layer. The JSON shapes here are the on-the-wire and on-disk formats.
package caldata

// Physical SPAD counts of the two arrays on the sensor die.
const (
	RefArraySpadCount    = 48
	ReturnArraySpadCount = 256
)

// RefSpadEnableBytes is the width of the reference SPAD enable mask.
const RefSpadEnableBytes = RefArraySpadCount / 8

// RefLocation identifies the aperture class of the reference SPAD group
// used for the winning configuration. Classes are ordered from least to
// most attenuating.
type RefLocation uint8

const (
	RefLocationNonApertured RefLocation = iota
	RefLocationAperture5x
	RefLocationAperture10x
)

func (l RefLocation) String() string {
	switch l {
	case RefLocationNonApertured:
		return "non-apertured"
	case RefLocationAperture5x:
		return "5x-apertured"
	case RefLocationAperture10x:
		return "10x-apertured"
	default:
		return "unknown"
	}
}

// SpadRateSample is the photon rate measured on a single SPAD.
type SpadRateSample struct {
	SpadIndex int     `json:"spad_index"`
	RateMcps  float64 `json:"rate_mcps"`
}

// SpadRateMap covers one array for one acquisition, in ascending SPAD
// index order. A fresh map is allocated per sampling call.
type SpadRateMap []SpadRateSample

// ReferenceSpadConfig is the durable artifact produced by reference SPAD
// characterisation. It is generated once per part, with the cover glass
// attached; re-running the characterisation overwrites it.
type ReferenceSpadConfig struct {
	NumRefSpads int                      `json:"num_ref_spads"`
	RefLocation RefLocation              `json:"ref_location"`
	SpadEnables [RefSpadEnableBytes]byte `json:"spad_enables"`
}

// Valid reports whether the configuration meets the minimum reference
// SPAD count the device needs for stable ranging.
func (c ReferenceSpadConfig) Valid() bool {
	return c.NumRefSpads >= 5
}

// EnabledSpads returns the enabled SPAD indices in ascending order.
func (c ReferenceSpadConfig) EnabledSpads() []int {
	var out []int
	for i := 0; i < RefArraySpadCount; i++ {
		if c.SpadEnables[i/8]&(1<<uint(i%8)) != 0 {
			out = append(out, i)
		}
	}
	return out
}

// OffsetCalibrationResult holds the MM1/MM2 range offsets derived against
// a known-distance target, plus the acquisition figures the warnings are
// judged on. Status carries the unfiltered calibration classification.
type OffsetCalibrationResult struct {
	MM1OffsetMM           int16   `json:"mm1_offset_mm"`
	MM2OffsetMM           int16   `json:"mm2_offset_mm"`
	EffectiveSpadCountMM1 float64 `json:"effective_spad_count_mm1"`
	PreRangeRateMcps      float64 `json:"pre_range_rate_mcps"`
	Status                string  `json:"status"`
}
