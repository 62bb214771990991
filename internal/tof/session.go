// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package tof

import (
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned when a device test fails to complete within the
// caller-supplied bound. It is never retried internally; retry policy
// belongs to the caller.
var ErrTimeout = errors.New("tof: device test timeout")

const defaultPollInterval = 1 * time.Millisecond

// Session owns exclusive access to one physical sensor for the duration
// of a calibration run. It layers intent-level operations (run a test,
// sample rates, write a calibration group) over the raw register
// transport, and holds the in-memory result store the ranging pipeline
// reads from. A Session must not be shared between concurrent
// calibration operations; callers needing that serialise externally.
type Session struct {
	io           RegisterIO
	store        *Store
	pollInterval time.Duration
}

// NewSession creates a calibration session over the given transport.
func NewSession(io RegisterIO) *Session {
	return &Session{
		io:           io,
		store:        NewStore(),
		pollInterval: defaultPollInterval,
	}
}

// Store returns the calibration result store owned by this session.
func (s *Session) Store() *Store {
	return s.store
}

// Transport exposes the raw register transport, for the register debug
// tooling only; calibration code goes through the typed operations.
func (s *Session) Transport() RegisterIO {
	return s.io
}

// CheckModelID verifies the part answers with the expected model ID.
func (s *Session) CheckModelID() error {
	id, err := s.io.ReadReg16(IDENTIFICATION_MODEL_ID)
	if err != nil {
		return fmt.Errorf("tof: model id read: %w", err)
	}
	if id != modelIDVL53L1X {
		return fmt.Errorf("tof: unexpected model id 0x%04X (want 0x%04X)", id, modelIDVL53L1X)
	}
	return nil
}

// withPowerForce saves the power-force register, asserts it, runs fn and
// restores the prior value on every exit path. The patch RAM holding the
// SPAD rate data is only readable while power force is asserted.
func (s *Session) withPowerForce(fn func() error) (err error) {
	prev, err := s.io.ReadReg(POWER_MANAGEMENT_GO1_POWER_FORCE)
	if err != nil {
		return fmt.Errorf("tof: power force read: %w", err)
	}
	if err := s.io.WriteReg(POWER_MANAGEMENT_GO1_POWER_FORCE, 0x01); err != nil {
		return fmt.Errorf("tof: power force enable: %w", err)
	}
	defer func() {
		if rerr := s.io.WriteReg(POWER_MANAGEMENT_GO1_POWER_FORCE, prev); rerr != nil && err == nil {
			err = fmt.Errorf("tof: power force restore: %w", rerr)
		}
	}()
	return fn()
}

// encodeTimeoutUs packs a microsecond timeout into the device's
// (mantissa << exponent) + 1 register format.
func encodeTimeoutUs(us uint32) uint16 {
	if us == 0 {
		return 0
	}
	m := us - 1
	var e uint16
	for m > 0xFF {
		m >>= 1
		e++
	}
	return e<<8 | uint16(m)
}

// decodeTimeoutUs is the inverse of encodeTimeoutUs.
func decodeTimeoutUs(v uint16) uint32 {
	return (uint32(v&0xFF) << (v >> 8)) + 1
}
