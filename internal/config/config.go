package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker              string
	MQTTClientIDProducer    string
	MQTTClientIDCalibration string
	MQTTClientIDConsole     string
	MQTTClientIDWeb         string
	MQTTClientIDDisplay     string

	// Topics
	TopicSpadRateMap  string
	TopicRefSpad      string
	TopicOffsetCal    string
	TopicSensorStatus string

	// ToF Hardware
	TOFI2CBus  string
	TOFI2CAddr uint16

	// Reference SPAD characterisation
	// Target aggregate rate band for the reference array, in Mcps.
	RefRateMinMcps float64
	RefRateMaxMcps float64
	// Minimum reference SPADs for a valid configuration.
	MinRefSpadCount int
	SSCTimeoutUs    int

	// Offset calibration
	CalDistanceMM     int
	PhasecalTimeoutUs int
	RangeTimeoutUs    int
	PreNumSamples     byte
	MM1NumSamples     byte
	MM2NumSamples     byte
	DSSTargetRateMcps float64
	MinMM1EffSpads    float64
	MaxPreRangeMcps   float64

	// Timing
	TelemetryInterval  int // milliseconds
	ConsoleLogInterval int // milliseconds

	// Web Servers
	WebServerPort     int
	RegisterDebugPort int

	// Display
	DisplayUpdateInterval int // milliseconds
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: unexported (lowercase) so other packages cannot access it directly.
//     This enforces encapsulation and prevents external code from modifying config without proper locking.
//     Has package-level scope (visible to all functions in this package, persists for program lifetime).
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex protects concurrent access. Write lock (Lock) for initialization,
//     read lock (RLock) for Get() allows multiple concurrent readers without blocking each other.
//
// External code must use InitGlobal() to set and Get() to read, ensuring thread safety.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// defaults returns a Config pre-filled with the factory calibration
// settings. Any of these can be overridden in the config file; the
// required hardware and broker keys have no defaults.
func defaults() *Config {
	return &Config{
		RefRateMinMcps:    10.0,
		RefRateMaxMcps:    40.0,
		MinRefSpadCount:   5,
		SSCTimeoutUs:      36000,
		CalDistanceMM:     140,
		PhasecalTimeoutUs: 1000,
		RangeTimeoutUs:    13000,
		PreNumSamples:     32,
		MM1NumSamples:     100,
		MM2NumSamples:     64,
		DSSTargetRateMcps: 20.0,
		MinMM1EffSpads:    5.0,
		MaxPreRangeMcps:   40.0,
		WebServerPort:     8080,
		RegisterDebugPort: 8081,
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := defaults()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Validate required fields
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_CALIBRATION":
		c.MQTTClientIDCalibration = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_SPAD_RATE_MAP":
		c.TopicSpadRateMap = value
	case "TOPIC_REF_SPAD":
		c.TopicRefSpad = value
	case "TOPIC_OFFSET_CAL":
		c.TopicOffsetCal = value
	case "TOPIC_SENSOR_STATUS":
		c.TopicSensorStatus = value

	// ToF Hardware
	case "TOF_I2C_BUS":
		c.TOFI2CBus = value
	case "TOF_I2C_ADDR":
		addr, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid TOF_I2C_ADDR %q: %w", value, err)
		}
		c.TOFI2CAddr = uint16(addr)

	// Reference SPAD characterisation
	case "REF_RATE_MIN_MCPS":
		rate, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid REF_RATE_MIN_MCPS %q: %w", value, err)
		}
		c.RefRateMinMcps = rate
	case "REF_RATE_MAX_MCPS":
		rate, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid REF_RATE_MAX_MCPS %q: %w", value, err)
		}
		c.RefRateMaxMcps = rate
	case "MIN_REF_SPAD_COUNT":
		count, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid MIN_REF_SPAD_COUNT %q: %w", value, err)
		}
		if count < 1 || count > 48 {
			return fmt.Errorf("MIN_REF_SPAD_COUNT must be 1-48, got %d", count)
		}
		c.MinRefSpadCount = count
	case "SSC_TIMEOUT_US":
		us, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SSC_TIMEOUT_US %q: %w", value, err)
		}
		c.SSCTimeoutUs = us

	// Offset calibration
	case "CAL_DISTANCE_MM":
		dist, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid CAL_DISTANCE_MM %q: %w", value, err)
		}
		if dist < 1 || dist > 4000 {
			return fmt.Errorf("CAL_DISTANCE_MM must be 1-4000, got %d", dist)
		}
		c.CalDistanceMM = dist
	case "PHASECAL_TIMEOUT_US":
		us, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid PHASECAL_TIMEOUT_US %q: %w", value, err)
		}
		c.PhasecalTimeoutUs = us
	case "RANGE_TIMEOUT_US":
		us, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid RANGE_TIMEOUT_US %q: %w", value, err)
		}
		c.RangeTimeoutUs = us
	case "PRE_NUM_SAMPLES":
		val, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid PRE_NUM_SAMPLES %q: %w", value, err)
		}
		if val < 1 || val > 255 {
			return fmt.Errorf("PRE_NUM_SAMPLES must be 1-255, got %d", val)
		}
		c.PreNumSamples = byte(val)
	case "MM1_NUM_SAMPLES":
		val, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid MM1_NUM_SAMPLES %q: %w", value, err)
		}
		if val < 1 || val > 255 {
			return fmt.Errorf("MM1_NUM_SAMPLES must be 1-255, got %d", val)
		}
		c.MM1NumSamples = byte(val)
	case "MM2_NUM_SAMPLES":
		val, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid MM2_NUM_SAMPLES %q: %w", value, err)
		}
		if val < 1 || val > 255 {
			return fmt.Errorf("MM2_NUM_SAMPLES must be 1-255, got %d", val)
		}
		c.MM2NumSamples = byte(val)
	case "DSS_TARGET_RATE_MCPS":
		rate, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid DSS_TARGET_RATE_MCPS %q: %w", value, err)
		}
		c.DSSTargetRateMcps = rate
	case "MIN_MM1_EFF_SPADS":
		val, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid MIN_MM1_EFF_SPADS %q: %w", value, err)
		}
		c.MinMM1EffSpads = val
	case "MAX_PRE_RANGE_RATE_MCPS":
		rate, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid MAX_PRE_RANGE_RATE_MCPS %q: %w", value, err)
		}
		c.MaxPreRangeMcps = rate

	// Timing
	case "TELEMETRY_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid TELEMETRY_INTERVAL %q: %w", value, err)
		}
		c.TelemetryInterval = interval
	case "CONSOLE_LOG_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid CONSOLE_LOG_INTERVAL %q: %w", value, err)
		}
		c.ConsoleLogInterval = interval

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port
	case "REGISTER_DEBUG_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid REGISTER_DEBUG_PORT %q: %w", value, err)
		}
		c.RegisterDebugPort = port

	// Display
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		c.DisplayUpdateInterval = interval

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that all required fields are set and the calibration
// parameters are mutually consistent.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.TOFI2CBus == "" {
		return fmt.Errorf("TOF_I2C_BUS is required")
	}
	if c.TOFI2CAddr == 0 {
		return fmt.Errorf("TOF_I2C_ADDR is required")
	}
	if c.TelemetryInterval == 0 {
		return fmt.Errorf("TELEMETRY_INTERVAL is required")
	}
	if c.ConsoleLogInterval == 0 {
		return fmt.Errorf("CONSOLE_LOG_INTERVAL is required")
	}
	if c.RefRateMinMcps >= c.RefRateMaxMcps {
		return fmt.Errorf("REF_RATE_MIN_MCPS (%.1f) must be below REF_RATE_MAX_MCPS (%.1f)",
			c.RefRateMinMcps, c.RefRateMaxMcps)
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
// Acquires write lock (configMu.Lock) during initialization to prevent concurrent access.
// This is the only function that can set globalConfig.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
// Uses read lock (configMu.RLock) to allow multiple concurrent readers without blocking.
// This is thread-safe and efficient for concurrent access across goroutines.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
