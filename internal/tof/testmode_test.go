package tof

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunDeviceTestCompletes(t *testing.T) {
	dev := NewSimDevice()
	s := NewSession(dev)

	require.NoError(t, s.RunDeviceTest(TestModeLCRVcselOn, time.Second))

	// Test mode cleared and power force back at its prior value.
	assert.Equal(t, uint8(TestModeNone), dev.Reg(TEST_MODE_CTRL))
	hist := dev.PowerForceHistory()
	require.NotEmpty(t, hist)
	assert.Equal(t, uint8(0x01), hist[0])
	assert.Equal(t, uint8(0x00), hist[len(hist)-1])
}

func TestRunDeviceTestTimeout(t *testing.T) {
	dev := NewSimDevice()
	dev.StuckBusy = true
	s := NewSession(dev)

	err := s.RunDeviceTest(TestModeLCRVcselOff, 10*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout), "got %v", err)

	// Power force must be released even on the timeout path.
	hist := dev.PowerForceHistory()
	require.NotEmpty(t, hist)
	assert.Equal(t, uint8(0x00), hist[len(hist)-1])
}

func TestRunDeviceTestTransportError(t *testing.T) {
	dev := NewSimDevice()
	bus := errors.New("i2c bus stuck")
	dev.SetReadError(FIRMWARE_SYSTEM_STATUS, bus)
	s := NewSession(dev)

	err := s.RunDeviceTest(TestModeLCRVcselOn, time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, bus), "got %v", err)

	hist := dev.PowerForceHistory()
	require.NotEmpty(t, hist)
	assert.Equal(t, uint8(0x00), hist[len(hist)-1])
}

func TestPowerForceRestoresPriorValue(t *testing.T) {
	dev := NewSimDevice()
	require.NoError(t, dev.WriteReg(POWER_MANAGEMENT_GO1_POWER_FORCE, 0x01))
	s := NewSession(dev)

	require.NoError(t, s.RunDeviceTest(TestModeLCRVcselOn, time.Second))
	assert.Equal(t, uint8(0x01), dev.Reg(POWER_MANAGEMENT_GO1_POWER_FORCE))
}
