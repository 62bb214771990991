package tof

import (
	"sync"

	"github.com/relabs-tech/tof_computer/internal/caldata"
)

// Store is the in-memory calibration result holder owned by a device
// session. The calibration procedures write it; the ranging pipeline
// reads it. Persisting to non-volatile storage and restoring on the next
// power cycle belongs to an external collaborator.
type Store struct {
	mu      sync.RWMutex
	refSpad *caldata.ReferenceSpadConfig
	offset  *caldata.OffsetCalibrationResult
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// PutRefSpadConfig replaces the stored reference SPAD configuration.
func (s *Store) PutRefSpadConfig(cfg caldata.ReferenceSpadConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := cfg
	s.refSpad = &c
}

// RefSpadConfig returns the stored configuration, if any.
func (s *Store) RefSpadConfig() (caldata.ReferenceSpadConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.refSpad == nil {
		return caldata.ReferenceSpadConfig{}, false
	}
	return *s.refSpad, true
}

// PutOffsetCalibration replaces the stored offset calibration result.
func (s *Store) PutOffsetCalibration(res caldata.OffsetCalibrationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := res
	s.offset = &r
}

// OffsetCalibration returns the stored result, if any.
func (s *Store) OffsetCalibration() (caldata.OffsetCalibrationResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.offset == nil {
		return caldata.OffsetCalibrationResult{}, false
	}
	return *s.offset, true
}
