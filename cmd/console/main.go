// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text


package main

import (
	"log"

	"github.com/relabs-tech/tof_computer/internal/app"
)

func main() {
	log.Println("starting tof-computer (sim console)")

	if err := app.RunSimConsole(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
