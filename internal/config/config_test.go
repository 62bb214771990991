package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tof_config.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `# test config
MQTT_BROKER=tcp://localhost:1883
TOF_I2C_BUS=1
TOF_I2C_ADDR=0x29
TELEMETRY_INTERVAL=100
CONSOLE_LOG_INTERVAL=1000
`

func TestLoadMinimal(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "tcp://localhost:1883", cfg.MQTTBroker)
	assert.Equal(t, "1", cfg.TOFI2CBus)
	assert.Equal(t, uint16(0x29), cfg.TOFI2CAddr)

	// Calibration parameters fall back to the factory defaults.
	assert.Equal(t, 10.0, cfg.RefRateMinMcps)
	assert.Equal(t, 40.0, cfg.RefRateMaxMcps)
	assert.Equal(t, 5, cfg.MinRefSpadCount)
	assert.Equal(t, 140, cfg.CalDistanceMM)
	assert.Equal(t, byte(100), cfg.MM1NumSamples)
	assert.Equal(t, byte(64), cfg.MM2NumSamples)
	assert.Equal(t, 13000, cfg.RangeTimeoutUs)
	assert.Equal(t, 8080, cfg.WebServerPort)
	assert.Equal(t, 8081, cfg.RegisterDebugPort)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+`
REF_RATE_MIN_MCPS=8.5
REF_RATE_MAX_MCPS=35.0
CAL_DISTANCE_MM=600
MM1_NUM_SAMPLES=50
REGISTER_DEBUG_PORT=9081
`))
	require.NoError(t, err)

	assert.Equal(t, 8.5, cfg.RefRateMinMcps)
	assert.Equal(t, 35.0, cfg.RefRateMaxMcps)
	assert.Equal(t, 600, cfg.CalDistanceMM)
	assert.Equal(t, byte(50), cfg.MM1NumSamples)
	assert.Equal(t, 9081, cfg.RegisterDebugPort)
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+"BOGUS_KEY=1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BOGUS_KEY")
}

func TestLoadRejectsMissingBroker(t *testing.T) {
	_, err := Load(writeConfig(t, `TOF_I2C_BUS=1
TOF_I2C_ADDR=0x29
TELEMETRY_INTERVAL=100
CONSOLE_LOG_INTERVAL=1000
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MQTT_BROKER")
}

func TestLoadRejectsInvertedRateBand(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+`
REF_RATE_MIN_MCPS=40.0
REF_RATE_MAX_MCPS=10.0
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REF_RATE_MIN_MCPS")
}

func TestLoadRejectsMalformedLine(t *testing.T) {
	_, err := Load(writeConfig(t, "MQTT_BROKER tcp://localhost:1883\n"))
	require.Error(t, err)
}
