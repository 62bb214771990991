// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package tof

// RegisterInfo describes one register for the debug tooling: name,
// access type and bit field layout.
type RegisterInfo struct {
	Address     string     `json:"address"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Access      string     `json:"access"` // "R", "W", "RW"
	Default     string     `json:"default,omitempty"`
	BitFields   []BitField `json:"bit_fields,omitempty"`
}

// BitField describes a named field within a register.
type BitField struct {
	Bits        string `json:"bits"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Values      string `json:"values,omitempty"`
}

// RegisterMap returns metadata for the registers the calibration flows
// touch. Register names, descriptions, access types, and bit field
// definitions for the debug tooling.
func RegisterMap() []RegisterInfo {
	return []RegisterInfo{
		// Identification and firmware state
		{Address: "0x0000", Name: "SOFT_RESET", Description: "Software reset", Access: "W", Default: "0x00",
			BitFields: []BitField{
				{Bits: "0", Name: "SOFT_RESET", Description: "Reset device", Values: "0=Run, 1=Reset"},
			}},
		{Address: "0x010F", Name: "IDENTIFICATION_MODEL_ID", Description: "Device model ID (should be 0xEACC)", Access: "R", Default: "0xEACC"},
		{Address: "0x00E5", Name: "FIRMWARE_SYSTEM_STATUS", Description: "Firmware state machine status", Access: "R", Default: "0x00",
			BitFields: []BitField{
				{Bits: "0", Name: "FIRMWARE_BOOTUP", Description: "Firmware idle / test complete", Values: "0=Busy, 1=Idle"},
			}},

		// Power management
		{Address: "0x0083", Name: "POWER_MANAGEMENT_GO1_POWER_FORCE", Description: "GO1 regulator power force", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "0", Name: "GO1_DSS_POWER_FORCE", Description: "Keep GO1 powered (patch RAM readable)", Values: "0=Auto, 1=Forced on"},
			}},

		// Reference SPAD management
		{Address: "0x000D", Name: "GLOBAL_CONFIG_SPAD_ENABLES_REF_0", Description: "Reference SPAD enable mask byte 0 (of 6)", Access: "RW", Default: "0x00"},
		{Address: "0x0014", Name: "REF_SPAD_MAN_NUM_REQUESTED_REF_SPAD", Description: "Requested reference SPAD count", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "5:0", Name: "NUM_REQUESTED_REF_SPAD", Description: "Reference SPADs to enable", Values: "0-48"},
			}},
		{Address: "0x0016", Name: "REF_SPAD_MAN_REF_LOCATION", Description: "Reference SPAD aperture class", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "1:0", Name: "REF_LOCATION", Description: "Aperture class", Values: "0=Non-apertured, 1=5x, 2=10x"},
			}},
		{Address: "0x0024", Name: "DSS_CONFIG_TARGET_TOTAL_RATE_MCPS", Description: "DSS target rate (9.7 fixed point Mcps)", Access: "RW", Default: "0x0A00"},
		{Address: "0x0057", Name: "DSS_CONFIG_APERTURE_ATTENUATION", Description: "Aperture attenuation select", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7:0", Name: "APERTURE_ATTENUATION", Description: "Attenuation code", Values: "0x00=None, 0x05=5x, 0x0A=10x"},
			}},

		// Test mode and SSC
		{Address: "0x0054", Name: "TEST_MODE_CTRL", Description: "Device test mode control", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7:0", Name: "TEST_MODE", Description: "Test mode select", Values: "0x00=None, 0x08=LCR VCSEL off, 0x09=LCR VCSEL on, 0x11=Ranging presets"},
			}},
		{Address: "0x0055", Name: "RANGING_CORE_SPAD_ARRAY_SEL", Description: "SPAD array select for SSC capture", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "0", Name: "SPAD_ARRAY_SEL", Description: "Array under test", Values: "0=Return (256 SPADs), 1=Reference (48 SPADs)"},
			}},
		{Address: "0x0059", Name: "SSC_CONFIG_TIMEOUT_MACROP", Description: "SSC acquisition timeout, (M<<E)+1 encoded", Access: "RW"},

		// Ranging preset configuration
		{Address: "0x0081", Name: "SYSTEM_SEQUENCE_CONFIG", Description: "Ranging sequence step enables", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7:0", Name: "SEQUENCE_CONFIG", Description: "Sequence preset", Values: "0xE1=MM1, 0xE2=MM2"},
			}},
		{Address: "0x004E", Name: "CAL_CONFIG_PRE_NUM_SAMPLES", Description: "Pre-range calibration sample count", Access: "RW", Default: "0x20"},
		{Address: "0x0050", Name: "CAL_CONFIG_RANGE_NUM_SAMPLES", Description: "Main range calibration sample count", Access: "RW", Default: "0x40"},
		{Address: "0x004B", Name: "PHASECAL_CONFIG_TIMEOUT_MACROP", Description: "Phase-cal timeout, (M<<E)+1 encoded", Access: "RW"},
		{Address: "0x005A", Name: "MM_CONFIG_TIMEOUT_MACROP_A", Description: "MM stage timeout, (M<<E)+1 encoded", Access: "RW"},
		{Address: "0x005E", Name: "RANGE_CONFIG_TIMEOUT_MACROP_A", Description: "Range stage timeout, (M<<E)+1 encoded", Access: "RW"},

		// Offset registers
		{Address: "0x001E", Name: "ALGO_PART_TO_PART_RANGE_OFFSET_MM", Description: "MM1 part-to-part range offset (signed mm)", Access: "RW", Default: "0x0000"},
		{Address: "0x0022", Name: "MM_CONFIG_OUTER_OFFSET_MM", Description: "MM2 outer ring range offset (signed mm)", Access: "RW", Default: "0x0000"},

		// Results
		{Address: "0x0089", Name: "RESULT_RANGE_STATUS", Description: "Ranging result block (17 bytes)", Access: "R",
			BitFields: []BitField{
				{Bits: "4:0", Name: "RANGE_STATUS", Description: "Range validity code", Values: "0=Valid"},
			}},
		{Address: "0x8C00", Name: "PATCH_RAM_SPAD_RATE_DATA", Description: "Per-SPAD rate buffer (patch RAM, needs power force)", Access: "R"},
	}
}
