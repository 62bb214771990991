// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/tof_computer/internal/config"
	"github.com/relabs-tech/tof_computer/internal/tof"
)

// TOFManager owns the single ranging sensor session shared by the
// calibration tools. Access it through GetTOFManager; Init must run
// before any calibration operation.
type TOFManager struct {
	mu        sync.Mutex
	session   *tof.Session
	sim       *tof.SimDevice
	available bool
}

var (
	tofManager     *TOFManager
	tofManagerOnce sync.Once
)

// GetTOFManager returns the process-wide sensor manager.
func GetTOFManager() *TOFManager {
	tofManagerOnce.Do(func() {
		tofManager = &TOFManager{}
	})
	return tofManager
}

// Init opens the sensor on the configured I2C bus and verifies its model
// ID. With simulated set, a synthetic device backs the session instead
// and no hardware is touched.
func (m *TOFManager) Init(simulated bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		return nil
	}

	if simulated {
		m.sim = tof.NewSimDevice()
		m.session = tof.NewSession(m.sim)
		m.available = true
		log.Println("tof: using simulated device")
		return nil
	}

	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("tof: config not initialized")
	}

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("tof: periph host init: %w", err)
	}

	bus, err := i2creg.Open(cfg.TOFI2CBus)
	if err != nil {
		return fmt.Errorf("tof: open I2C bus %q: %w", cfg.TOFI2CBus, err)
	}

	dev := &i2c.Dev{Bus: bus, Addr: cfg.TOFI2CAddr}
	session := tof.NewSession(tof.NewI2CRegisterIO(dev))

	if err := session.CheckModelID(); err != nil {
		bus.Close()
		return err
	}
	log.Printf("tof: sensor responding on bus %q at 0x%02X", cfg.TOFI2CBus, cfg.TOFI2CAddr)

	m.session = session
	m.available = true
	return nil
}

// IsAvailable reports whether Init succeeded.
func (m *TOFManager) IsAvailable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available
}

// Session returns the calibration session, or an error before Init.
func (m *TOFManager) Session() (*tof.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, fmt.Errorf("tof: manager not initialized")
	}
	return m.session, nil
}

// SimDevice returns the synthetic device backing the session, or nil
// when running against hardware.
func (m *TOFManager) SimDevice() *tof.SimDevice {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sim
}

// ReadRegister reads a single 8-bit register for the debug tooling.
func (m *TOFManager) ReadRegister(addr uint16) (byte, error) {
	s, err := m.Session()
	if err != nil {
		return 0, err
	}
	return s.Transport().ReadReg(addr)
}

// WriteRegister writes a single 8-bit register for the debug tooling.
func (m *TOFManager) WriteRegister(addr uint16, value byte) error {
	s, err := m.Session()
	if err != nil {
		return err
	}
	return s.Transport().WriteReg(addr, value)
}

// ReadAllRegisters reads every register in the metadata map that admits
// a plain 8-bit read. Block-only regions (patch RAM, result block) are
// skipped.
func (m *TOFManager) ReadAllRegisters() (map[uint16]byte, error) {
	s, err := m.Session()
	if err != nil {
		return nil, err
	}

	out := make(map[uint16]byte)
	for _, info := range tof.RegisterMap() {
		addr, perr := parseRegAddr(info.Address)
		if perr != nil {
			continue
		}
		if addr == tof.PATCH_RAM_SPAD_RATE_DATA || addr == tof.RESULT_RANGE_STATUS {
			continue
		}
		v, err := s.Transport().ReadReg(addr)
		if err != nil {
			return nil, fmt.Errorf("tof: read %s: %w", info.Name, err)
		}
		out[addr] = v
	}
	return out, nil
}

func parseRegAddr(addr string) (uint16, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(addr, "0x"), 16, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

// CharacterizeParams builds the reference SPAD search parameters from
// the loaded configuration, falling back to the factory defaults when
// no config is loaded.
func (m *TOFManager) CharacterizeParams() tof.CharacterizeParams {
	cfg := config.Get()
	if cfg == nil {
		return tof.DefaultCharacterizeParams()
	}
	return tof.CharacterizeParams{
		Band: tof.RateBand{
			MinMcps: cfg.RefRateMinMcps,
			MaxMcps: cfg.RefRateMaxMcps,
		},
		MinSpadCount: cfg.MinRefSpadCount,
		SSCTimeoutUs: uint32(cfg.SSCTimeoutUs),
	}
}

// OffsetParams builds the offset calibration parameters from the loaded
// configuration, falling back to the factory defaults.
func (m *TOFManager) OffsetParams() tof.OffsetCalParams {
	cfg := config.Get()
	if cfg == nil {
		return tof.DefaultOffsetCalParams()
	}
	return tof.OffsetCalParams{
		PhasecalTimeoutUs: uint32(cfg.PhasecalTimeoutUs),
		RangeTimeoutUs:    uint32(cfg.RangeTimeoutUs),
		PreNumSamples:     cfg.PreNumSamples,
		MM1NumSamples:     cfg.MM1NumSamples,
		MM2NumSamples:     cfg.MM2NumSamples,
		DSSTargetRateMcps: cfg.DSSTargetRateMcps,
		MinEffectiveSpads: cfg.MinMM1EffSpads,
		MaxPreRangeMcps:   cfg.MaxPreRangeMcps,
	}
}

// CalDistanceMM returns the configured ground-truth target distance.
func (m *TOFManager) CalDistanceMM() int16 {
	cfg := config.Get()
	if cfg == nil {
		return 140
	}
	return int16(cfg.CalDistanceMM)
}
