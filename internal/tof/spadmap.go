package tof

import (
	"fmt"
	"time"

	"github.com/relabs-tech/tof_computer/internal/caldata"
)

// Fixed-point scaling of the per-SPAD rate data. With the VCSEL off the
// dark counts come back as signed 1.15; with it on the signal counts use
// unsigned 9.7.
const (
	darkRateScale   = 1 << 15
	signalRateScale = 1 << 7
)

// RunSpadRateMap captures per-SPAD photon rates across the selected
// array. mode must be one of the two LCR SSC test modes and determines
// the fixed-point decoding of the raw buffer. The returned map always has
// one sample per physical SPAD of the array, in ascending SPAD index
// order, so repeated acquisitions correlate positionally.
func (s *Session) RunSpadRateMap(mode TestMode, array ArraySelect, sscTimeoutUs uint32) (caldata.SpadRateMap, error) {
	if mode != TestModeLCRVcselOff && mode != TestModeLCRVcselOn {
		return nil, fmt.Errorf("tof: test mode 0x%02X is not an SSC rate map mode", uint8(mode))
	}

	count := array.SpadCount()
	raw := make([]byte, 2*count)

	// The rate data sits in patch RAM, so the whole acquisition plus the
	// readback stays inside one power-force scope.
	err := s.withPowerForce(func() error {
		if err := s.io.WriteReg(RANGING_CORE_SPAD_ARRAY_SEL, uint8(array)); err != nil {
			return fmt.Errorf("tof: array select: %w", err)
		}
		if err := s.io.WriteReg16(SSC_CONFIG_TIMEOUT_MACROP, encodeTimeoutUs(sscTimeoutUs)); err != nil {
			return fmt.Errorf("tof: ssc timeout: %w", err)
		}
		testTimeout := 4*time.Duration(sscTimeoutUs)*time.Microsecond + 100*time.Millisecond
		if err := s.RunDeviceTest(mode, testTimeout); err != nil {
			return err
		}
		return s.io.ReadBlock(PATCH_RAM_SPAD_RATE_DATA, raw)
	})
	if err != nil {
		return nil, err
	}

	rates := make(caldata.SpadRateMap, count)
	for i := 0; i < count; i++ {
		word := uint16(raw[2*i])<<8 | uint16(raw[2*i+1])
		var mcps float64
		if mode == TestModeLCRVcselOff {
			mcps = float64(int16(word)) / darkRateScale
		} else {
			mcps = float64(word) / signalRateScale
		}
		rates[i] = caldata.SpadRateSample{SpadIndex: i, RateMcps: mcps}
	}
	return rates, nil
}
