// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"

	"github.com/relabs-tech/tof_computer/internal/app"
	"github.com/relabs-tech/tof_computer/internal/config"
	"github.com/relabs-tech/tof_computer/internal/sensors"
)

func main() {
	configPath := flag.String("config", "tof_config.txt", "path to configuration file")
	simulated := flag.Bool("sim", false, "use the simulated sensor instead of hardware")
	flag.Parse()

	log.Println("starting VL53L1X register debug tool (standalone)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	log.Println("Initializing ToF manager...")
	tofManager := sensors.GetTOFManager()
	if err := tofManager.Init(*simulated); err != nil {
		log.Fatalf("ToF initialization failed: %v", err)
	}

	if tofManager.IsAvailable() {
		log.Println("ToF sensor available")
	} else {
		log.Println("Warning: ToF sensor not available")
	}

	http.HandleFunc("/ws", app.HandleRegisterDebugWS)

	// API endpoint for the current calibration store contents
	http.HandleFunc("/api/calibration", app.HandleCalibrationData)

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "web/register_debug.html")
	})

	addr := fmt.Sprintf(":%d", config.Get().RegisterDebugPort)
	log.Printf("Register debug tool listening on %s", addr)
	log.Printf("Open http://localhost%s in your browser", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
