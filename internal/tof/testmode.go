package tof

import (
	"fmt"
	"time"
)

// RunDeviceTest executes a single hardware self-test end to end: power
// force on, start the selected mode, poll the firmware busy flag until
// completion or timeout, then restore the prior power state. The device
// cannot abort a test mid-flight, so there is no cancellation beyond the
// bound; a stuck completion flag surfaces as ErrTimeout.
func (s *Session) RunDeviceTest(mode TestMode, timeout time.Duration) error {
	return s.withPowerForce(func() error {
		if err := s.io.WriteReg(TEST_MODE_CTRL, uint8(mode)); err != nil {
			return fmt.Errorf("tof: start test 0x%02X: %w", uint8(mode), err)
		}
		deadline := time.Now().Add(timeout)
		for {
			status, err := s.io.ReadReg(FIRMWARE_SYSTEM_STATUS)
			if err != nil {
				return fmt.Errorf("tof: test status poll: %w", err)
			}
			// bit 0 set: firmware back in the idle state, test done
			if status&0x01 != 0 {
				break
			}
			if time.Now().After(deadline) {
				return fmt.Errorf("test 0x%02X after %v: %w", uint8(mode), timeout, ErrTimeout)
			}
			time.Sleep(s.pollInterval)
		}
		if err := s.io.WriteReg(TEST_MODE_CTRL, uint8(TestModeNone)); err != nil {
			return fmt.Errorf("tof: clear test mode: %w", err)
		}
		return nil
	})
}
