package tof

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
)

// RegisterIO is the device register transport. The calibration core never
// talks to the bus directly; everything goes through this interface so a
// simulated device can stand in for the real part.
type RegisterIO interface {
	ReadReg(reg uint16) (uint8, error)
	WriteReg(reg uint16, value uint8) error
	ReadReg16(reg uint16) (uint16, error)
	WriteReg16(reg uint16, value uint16) error
	// ReadBlock fills buf starting at reg, one register index per byte.
	ReadBlock(reg uint16, buf []byte) error
}

// i2cRegisterIO drives the sensor over a periph.io I2C device handle.
// The register index is 16 bits, transmitted big-endian.
type i2cRegisterIO struct {
	dev *i2c.Dev
}

// NewI2CRegisterIO wraps an I2C device handle as a register transport.
func NewI2CRegisterIO(dev *i2c.Dev) RegisterIO {
	return &i2cRegisterIO{dev: dev}
}

func regAddr(reg uint16) []byte {
	return []byte{byte(reg >> 8), byte(reg)}
}

func (t *i2cRegisterIO) ReadReg(reg uint16) (uint8, error) {
	var buf [1]byte
	if err := t.dev.Tx(regAddr(reg), buf[:]); err != nil {
		return 0, fmt.Errorf("tof: read reg 0x%04X: %w", reg, err)
	}
	return buf[0], nil
}

func (t *i2cRegisterIO) WriteReg(reg uint16, value uint8) error {
	if err := t.dev.Tx(append(regAddr(reg), value), nil); err != nil {
		return fmt.Errorf("tof: write reg 0x%04X: %w", reg, err)
	}
	return nil
}

func (t *i2cRegisterIO) ReadReg16(reg uint16) (uint16, error) {
	var buf [2]byte
	if err := t.dev.Tx(regAddr(reg), buf[:]); err != nil {
		return 0, fmt.Errorf("tof: read reg16 0x%04X: %w", reg, err)
	}
	return uint16(buf[0])<<8 | uint16(buf[1]), nil
}

func (t *i2cRegisterIO) WriteReg16(reg uint16, value uint16) error {
	w := append(regAddr(reg), byte(value>>8), byte(value))
	if err := t.dev.Tx(w, nil); err != nil {
		return fmt.Errorf("tof: write reg16 0x%04X: %w", reg, err)
	}
	return nil
}

func (t *i2cRegisterIO) ReadBlock(reg uint16, buf []byte) error {
	if err := t.dev.Tx(regAddr(reg), buf); err != nil {
		return fmt.Errorf("tof: read block 0x%04X (%d bytes): %w", reg, len(buf), err)
	}
	return nil
}
