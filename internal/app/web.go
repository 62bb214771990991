package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/relabs-tech/tof_computer/internal/caldata"
	"github.com/relabs-tech/tof_computer/internal/config"
)

// CalibrationView is the aggregate the web API serves, assembled from the
// retained MQTT topics.
type CalibrationView struct {
	Status  *SensorStatus                    `json:"status,omitempty"`
	RefSpad *caldata.ReferenceSpadConfig     `json:"ref_spad,omitempty"`
	Offset  *caldata.OffsetCalibrationResult `json:"offset,omitempty"`
}

func RunWeb() error {
	cfg := config.Get()

	var (
		mu   sync.RWMutex
		view CalibrationView
	)

	// 1) Connect to MQTT broker on the Pi
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("connected to MQTT broker at %s", cfg.MQTTBroker)

	// 2) Subscribe to the calibration topics and keep the latest of each
	token := client.Subscribe(cfg.TopicSensorStatus, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s SensorStatus
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("MQTT payload unmarshal error (status): %v", err)
			return
		}
		mu.Lock()
		view.Status = &s
		mu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("subscribed to MQTT topic %s", cfg.TopicSensorStatus)

	token = client.Subscribe(cfg.TopicRefSpad, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var c caldata.ReferenceSpadConfig
		if err := json.Unmarshal(msg.Payload(), &c); err != nil {
			log.Printf("MQTT payload unmarshal error (ref spad): %v", err)
			return
		}
		mu.Lock()
		view.RefSpad = &c
		mu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("subscribed to MQTT topic %s", cfg.TopicRefSpad)

	token = client.Subscribe(cfg.TopicOffsetCal, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var r caldata.OffsetCalibrationResult
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			log.Printf("MQTT payload unmarshal error (offset): %v", err)
			return
		}
		mu.Lock()
		view.Offset = &r
		mu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("subscribed to MQTT topic %s", cfg.TopicOffsetCal)

	// 3) JSON API endpoint: latest calibration state
	http.HandleFunc("/api/calibration", func(w http.ResponseWriter, r *http.Request) {
		mu.RLock()
		defer mu.RUnlock()

		if view.Status == nil && view.RefSpad == nil && view.Offset == nil {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(view); err != nil {
			log.Printf("json encode error: %v", err)
		}
	})

	// 4) Guided calibration over WebSocket
	http.HandleFunc("/ws/calibration", HandleCalibrationWS)

	// 5) Static files from ./web as the root
	fs := http.FileServer(http.Dir("web"))
	http.Handle("/", fs)

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web server listening on %s", addr)
	return http.ListenAndServe(addr, nil)
}
