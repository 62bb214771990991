// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/tof_computer/internal/caldata"
	"github.com/relabs-tech/tof_computer/internal/config"
	"github.com/relabs-tech/tof_computer/internal/sensors"
	"github.com/relabs-tech/tof_computer/internal/tof"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// CalibrationSession holds the state of an active guided calibration
type CalibrationSession struct {
	Conn         *websocket.Conn
	mu           sync.Mutex
	currentPhase string
	currentStep  int
	results      CalibrationResult
}

// CalibrationResult is the JSON artifact written when the run completes
type CalibrationResult struct {
	Version   int       `json:"version"`
	Timestamp time.Time `json:"timestamp"`

	// Device health
	DarkRateMedianMcps float64 `json:"dark_rate_median_mcps"`

	// Reference SPAD characterisation
	RefSpad       caldata.ReferenceSpadConfig `json:"ref_spad"`
	RefSpadStatus string                      `json:"ref_spad_status"`

	// Offset calibration
	Offset        caldata.OffsetCalibrationResult `json:"offset"`
	CalDistanceMM int16                           `json:"cal_distance_mm"`
}

// WebSocket message types
type WSMessage struct {
	Action string `json:"action"` // init, next, cancel
}

type WSResponse struct {
	Type     string                 `json:"type"` // phase, step, progress, stats, complete, error
	Phase    string                 `json:"phase,omitempty"`
	Step     string                 `json:"step,omitempty"`
	Progress float64                `json:"progress,omitempty"`
	Stats    map[string]interface{} `json:"stats,omitempty"`
	Results  interface{}            `json:"results,omitempty"`
	Message  string                 `json:"message,omitempty"`
}

// HandleCalibrationWS handles the WebSocket connection for calibration
func HandleCalibrationWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("calibration: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	session := &CalibrationSession{
		Conn: conn,
		results: CalibrationResult{
			Version:   1,
			Timestamp: time.Now(),
		},
	}

	// Main message loop
	for {
		var msg WSMessage
		err := conn.ReadJSON(&msg)
		if err != nil {
			log.Printf("calibration: websocket read error: %v", err)
			break
		}

		switch msg.Action {
		case "init":
			log.Println("calibration: session initialized")

		case "next":
			session.mu.Lock()
			err := session.runNextStep()
			session.mu.Unlock()
			if err != nil {
				session.sendError(err.Error())
			}

		case "cancel":
			log.Printf("calibration: cancelled by user")
			return
		}
	}
}

func (s *CalibrationSession) runNextStep() error {
	// State machine for calibration phases
	switch s.currentPhase {
	case "":
		// Start with the reference SPAD characterisation
		s.currentPhase = "refspad"
		s.currentStep = 0
		return s.runRefSpadStep()

	case "refspad":
		s.currentStep++
		if s.currentStep >= 2 {
			// Move to offset calibration
			s.currentPhase = "offset"
			s.currentStep = 0
			return s.runOffsetStep()
		}
		return s.runRefSpadStep()

	case "offset":
		// Complete calibration
		return s.complete()
	}

	return nil
}

func (s *CalibrationSession) runRefSpadStep() error {
	s.sendPhase("refspad")

	mgr := sensors.GetTOFManager()
	if !mgr.IsAvailable() {
		return fmt.Errorf("sensor not available")
	}
	session, err := mgr.Session()
	if err != nil {
		return err
	}

	switch s.currentStep {
	case 0: // Dark count survey with the VCSEL off
		s.sendStep("refspad-dark", "refspad")
		s.sendProgress(10)

		p := mgr.CharacterizeParams()
		rates, err := session.RunSpadRateMap(tof.TestModeLCRVcselOff, tof.ArrayRef, p.SSCTimeoutUs)
		if err != nil {
			return err
		}
		s.results.DarkRateMedianMcps = medianRate(rates)
		s.sendProgress(100)

	default: // Characterisation with the cover glass attached
		s.sendStep("refspad-char", "refspad")
		s.sendProgress(20)

		cfg, status, err := session.RunRefSpadChar(mgr.CharacterizeParams())
		if err != nil {
			return err
		}
		s.results.RefSpad = cfg
		s.results.RefSpadStatus = status.String()
		s.sendProgress(100)

		log.Printf("calibration: ref SPAD char done: %d SPADs (%s), status %s",
			cfg.NumRefSpads, cfg.RefLocation, status)
	}

	s.sendStats()
	s.sendActionReady()
	return nil
}

func (s *CalibrationSession) runOffsetStep() error {
	s.sendPhase("offset")
	s.sendStep("offset-mm", "offset")
	s.sendProgress(0)

	mgr := sensors.GetTOFManager()
	session, err := mgr.Session()
	if err != nil {
		return err
	}

	dist := mgr.CalDistanceMM()
	s.results.CalDistanceMM = dist
	s.sendProgress(20)

	result, status, err := session.RunOffsetCalibration(dist, mgr.OffsetParams())
	if err != nil {
		return err
	}
	s.results.Offset = result
	s.sendProgress(100)

	log.Printf("calibration: offsets MM1=%+d MM2=%+d mm, status %s",
		result.MM1OffsetMM, result.MM2OffsetMM, status)

	s.sendStats()
	// Don't send action ready - auto-proceed to complete
	time.Sleep(1 * time.Second)
	return s.complete()
}

func (s *CalibrationSession) complete() error {
	// Save results to file
	filename := fmt.Sprintf("tof_%d_calibration.json", time.Now().Unix())

	// Use current directory
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	outPath := filepath.Join(cwd, filename)

	data, err := json.MarshalIndent(s.results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal calibration results: %w", err)
	}

	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write calibration file: %w", err)
	}

	log.Printf("calibration: saved results to %s", outPath)

	// Push the fresh artifacts to the retained MQTT topics so the
	// display and web views update without waiting for a telemetry tick.
	if err := s.publishResults(); err != nil {
		log.Printf("calibration: MQTT publish failed: %v", err)
	}

	// Send completion message
	s.Conn.WriteJSON(WSResponse{
		Type:    "complete",
		Results: map[string]interface{}{"filename": filename},
	})

	return nil
}

func (s *CalibrationSession) publishResults() error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("config not initialized")
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDCalibration)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)

	if payload, err := json.Marshal(s.results.RefSpad); err == nil {
		if token := client.Publish(cfg.TopicRefSpad, 0, true, payload); token.Wait() && token.Error() != nil {
			return token.Error()
		}
	}
	if payload, err := json.Marshal(s.results.Offset); err == nil {
		if token := client.Publish(cfg.TopicOffsetCal, 0, true, payload); token.Wait() && token.Error() != nil {
			return token.Error()
		}
	}
	return nil
}

func (s *CalibrationSession) sendPhase(phase string) {
	s.Conn.WriteJSON(WSResponse{
		Type:  "phase",
		Phase: phase,
	})
}

func (s *CalibrationSession) sendStep(step, phase string) {
	s.Conn.WriteJSON(WSResponse{
		Type:  "step",
		Step:  step,
		Phase: phase,
	})
}

func (s *CalibrationSession) sendProgress(progress float64) {
	s.Conn.WriteJSON(WSResponse{
		Type:     "progress",
		Progress: progress,
	})
}

func (s *CalibrationSession) sendStats() {
	stats := map[string]interface{}{
		"dark_median":     s.results.DarkRateMedianMcps,
		"num_ref_spads":   s.results.RefSpad.NumRefSpads,
		"ref_location":    s.results.RefSpad.RefLocation.String(),
		"ref_spad_status": s.results.RefSpadStatus,
		"mm1_offset_mm":   s.results.Offset.MM1OffsetMM,
		"mm2_offset_mm":   s.results.Offset.MM2OffsetMM,
		"offset_status":   s.results.Offset.Status,
	}
	s.Conn.WriteJSON(WSResponse{
		Type:  "stats",
		Stats: stats,
	})
}

func (s *CalibrationSession) sendActionReady() {
	s.Conn.WriteJSON(WSResponse{
		Type:    "action",
		Message: "ready",
	})
}

func (s *CalibrationSession) sendError(message string) {
	s.Conn.WriteJSON(WSResponse{
		Type:    "error",
		Message: message,
	})
}

// medianRate returns the median photon rate across a SPAD map.
func medianRate(rates caldata.SpadRateMap) float64 {
	if len(rates) == 0 {
		return 0
	}
	vals := make([]float64, len(rates))
	for i, r := range rates {
		vals[i] = r.RateMcps
	}
	sort.Float64s(vals)
	mid := len(vals) / 2
	if len(vals)%2 == 0 {
		return (vals[mid-1] + vals[mid]) / 2
	}
	return vals[mid]
}
