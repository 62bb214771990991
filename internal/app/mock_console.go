// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text


package app

import (
	"fmt"
	"time"

	"github.com/relabs-tech/tof_computer/internal/tof"
)

// RunSimConsole samples the simulated sensor on a tick and prints rate-map
// statistics. Useful for exercising the acquisition path without hardware.
func RunSimConsole() error {
	sim := tof.NewSimDevice()
	session := tof.NewSession(sim)

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		dark, err := session.RunSpadRateMap(tof.TestModeLCRVcselOff, tof.ArrayRef, 36000)
		if err != nil {
			return err
		}
		lit, err := session.RunSpadRateMap(tof.TestModeLCRVcselOn, tof.ArrayRef, 36000)
		if err != nil {
			return err
		}

		fmt.Printf(
			"DARK med=%8.4f Mcps  LIT med=%8.4f Mcps  spads=%d\n",
			medianRate(dark),
			medianRate(lit),
			len(lit),
		)
	}
	return nil
}
