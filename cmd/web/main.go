// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/tof_computer/internal/app"
	"github.com/relabs-tech/tof_computer/internal/config"
	"github.com/relabs-tech/tof_computer/internal/sensors"
)

func main() {
	configPath := flag.String("config", "tof_config.txt", "path to configuration file")
	simulated := flag.Bool("sim", false, "use the simulated sensor instead of hardware")
	flag.Parse()

	log.Println("starting tof-computer web server (MQTT subscriber)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// The guided calibration endpoint drives the sensor directly. The
	// server still runs without it; only /ws/calibration is degraded.
	tofManager := sensors.GetTOFManager()
	if err := tofManager.Init(*simulated); err != nil {
		log.Printf("Warning: ToF initialization failed: %v", err)
		log.Println("Continuing anyway - calibration over WebSocket will be unavailable")
	}

	log.Println("Note: live data requires the telemetry producer to be running (sudo ./telemetry)")

	if err := app.RunWeb(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
