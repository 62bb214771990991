package tof

import "github.com/relabs-tech/tof_computer/internal/caldata"

// Register addresses for the VL53L1X-class time-of-flight sensor. The
// index is 16 bits wide and sent big-endian before every transfer.
const (
	SOFT_RESET               uint16 = 0x0000
	I2C_SLAVE_DEVICE_ADDRESS uint16 = 0x0001

	// Identification and firmware state
	IDENTIFICATION_MODEL_ID uint16 = 0x010F
	FIRMWARE_SYSTEM_STATUS  uint16 = 0x00E5

	// Reference SPAD management (customer register group)
	GLOBAL_CONFIG_SPAD_ENABLES_REF_0    uint16 = 0x000D
	REF_SPAD_MAN_NUM_REQUESTED_REF_SPAD uint16 = 0x0014
	REF_SPAD_MAN_REF_LOCATION           uint16 = 0x0016

	// DSS target rate used by both the characteriser and the MM presets
	DSS_CONFIG_TARGET_TOTAL_RATE_MCPS uint16 = 0x0024
	DSS_CONFIG_APERTURE_ATTENUATION   uint16 = 0x0057

	// Power management; forced on while the patch RAM is read
	POWER_MANAGEMENT_GO1_POWER_FORCE uint16 = 0x0083

	// Device test sequencing
	TEST_MODE_CTRL              uint16 = 0x0054
	RANGING_CORE_SPAD_ARRAY_SEL uint16 = 0x0055
	SSC_CONFIG_TIMEOUT_MACROP   uint16 = 0x0059

	// MM / range preset configuration
	SYSTEM_SEQUENCE_CONFIG         uint16 = 0x0081
	CAL_CONFIG_PRE_NUM_SAMPLES     uint16 = 0x004E
	CAL_CONFIG_RANGE_NUM_SAMPLES   uint16 = 0x0050
	PHASECAL_CONFIG_TIMEOUT_MACROP uint16 = 0x004B
	MM_CONFIG_TIMEOUT_MACROP_A     uint16 = 0x005A
	RANGE_CONFIG_TIMEOUT_MACROP_A  uint16 = 0x005E

	// Part-to-part offset outputs
	ALGO_PART_TO_PART_RANGE_OFFSET_MM uint16 = 0x001E
	MM_CONFIG_OUTER_OFFSET_MM         uint16 = 0x0022

	// Results
	RESULT_RANGE_STATUS uint16 = 0x0089

	// Per-SPAD rate data captured by the SSC test modes lives in patch
	// RAM, reachable only while power force is asserted.
	PATCH_RAM_SPAD_RATE_DATA uint16 = 0x8C00
)

// TestMode selects the hardware self-test the device runs end to end.
type TestMode uint8

const (
	TestModeNone           TestMode = 0x00
	TestModeLCRVcselOff    TestMode = 0x08
	TestModeLCRVcselOn     TestMode = 0x09
	TestModeRangingPresets TestMode = 0x11
)

// ArraySelect picks which SPAD array an SSC acquisition covers.
type ArraySelect uint8

const (
	ArrayReturn ArraySelect = 0x00
	ArrayRef    ArraySelect = 0x01
)

// SpadCount returns the physical SPAD count of the selected array.
func (a ArraySelect) SpadCount() int {
	if a == ArrayRef {
		return caldata.RefArraySpadCount
	}
	return caldata.ReturnArraySpadCount
}

// Sequence config values selecting the MM stage the ranging presets
// target during offset calibration.
const (
	seqConfigMM1 uint8 = 0xE1
	seqConfigMM2 uint8 = 0xE2
)

const modelIDVL53L1X uint16 = 0xEACC
