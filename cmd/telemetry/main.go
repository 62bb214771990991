// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text


package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/tof_computer/internal/app"
	"github.com/relabs-tech/tof_computer/internal/config"
)

func main() {
	configPath := flag.String("config", "./tof_config.txt", "path to configuration file")
	simulated := flag.Bool("sim", false, "use the simulated sensor instead of hardware")
	flag.Parse()

	log.Println("starting tof-computer telemetry producer (ToF → MQTT)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunTelemetryProducer(*simulated); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
