package tof

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeoutEncoding(t *testing.T) {
	assert.Equal(t, uint16(0), encodeTimeoutUs(0))

	// Values up to 256 need no exponent.
	assert.Equal(t, uint16(0x00FF), encodeTimeoutUs(256))
	assert.Equal(t, uint32(256), decodeTimeoutUs(0x00FF))

	// Larger values lose precision but never decode above the request.
	for _, us := range []uint32{1000, 13000, 36000, 100000} {
		enc := encodeTimeoutUs(us)
		dec := decodeTimeoutUs(enc)
		assert.LessOrEqual(t, dec, us, "encoded 0x%04X", enc)
		assert.Greater(t, dec, us/2, "encoded 0x%04X", enc)
	}
}

func TestCheckModelID(t *testing.T) {
	dev := NewSimDevice()
	s := NewSession(dev)
	require.NoError(t, s.CheckModelID())

	require.NoError(t, dev.WriteReg16(IDENTIFICATION_MODEL_ID, 0xBEEF))
	err := s.CheckModelID()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0xBEEF")
}
