package app

import (
	"encoding/json"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/relabs-tech/tof_computer/internal/caldata"
	"github.com/relabs-tech/tof_computer/internal/config"
	"github.com/relabs-tech/tof_computer/internal/sensors"
	"github.com/relabs-tech/tof_computer/internal/tof"
)

// SensorStatus is the periodic health record published on the status topic.
type SensorStatus struct {
	DarkRateMedianMcps float64 `json:"dark_rate_median_mcps"`
	RefSpadValid       bool    `json:"ref_spad_valid"`
	OffsetCalibrated   bool    `json:"offset_calibrated"`
	Time               string  `json:"time"`
}

// RunTelemetryProducer polls the sensor and publishes device health plus the
// current calibration artifacts over MQTT.
func RunTelemetryProducer(simulated bool) error {
	log.Println("starting tof-computer telemetry producer")

	cfg := config.Get()

	// --- Initialize ToF manager ---
	tofManager := sensors.GetTOFManager()
	if err := tofManager.Init(simulated); err != nil {
		log.Fatalf("failed to initialize ToF manager: %v", err)
		return err
	}

	session, err := tofManager.Session()
	if err != nil {
		log.Fatalf("ToF session unavailable: %v", err)
		return err
	}

	// --- connect to MQTT ---
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDProducer)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalf("MQTT connect error: %v", token.Error())
		return token.Error()
	}
	defer client.Disconnect(250)

	log.Println("connected to MQTT, starting publish loop")

	sscTimeout := uint32(cfg.SSCTimeoutUs)

	// main tick
	ticker := time.NewTicker(time.Duration(cfg.TelemetryInterval) * time.Millisecond)
	defer ticker.Stop()

	for t := range ticker.C {
		// 1) Dark-count survey of the reference array. The VCSEL stays
		// off so the median tracks ambient plus intrinsic noise only.
		darkMap, err := session.RunSpadRateMap(tof.TestModeLCRVcselOff, tof.ArrayRef, sscTimeout)
		if err != nil {
			log.Printf("error sampling dark rates: %v", err)
			continue
		}
		darkMedian := medianRate(darkMap)

		if payload, err := json.Marshal(darkMap); err != nil {
			log.Printf("json marshal error (rate map): %v", err)
		} else {
			if token := client.Publish(cfg.TopicSpadRateMap, 0, true, payload); token.Wait() && token.Error() != nil {
				log.Printf("MQTT publish error (rate map): %v", token.Error())
				continue
			}
		}

		// 2) Current store contents, retained so late subscribers see the
		// last calibration without waiting for a tick.
		refCfg, refOK := session.Store().RefSpadConfig()
		if refOK {
			if payload, err := json.Marshal(refCfg); err != nil {
				log.Printf("ref spad marshal error: %v", err)
			} else {
				if token := client.Publish(cfg.TopicRefSpad, 0, true, payload); token.Wait() && token.Error() != nil {
					log.Printf("MQTT publish error (ref spad): %v", token.Error())
					continue
				}
			}
		}

		offsetRes, offsetOK := session.Store().OffsetCalibration()
		if offsetOK {
			if payload, err := json.Marshal(offsetRes); err != nil {
				log.Printf("offset marshal error: %v", err)
			} else {
				if token := client.Publish(cfg.TopicOffsetCal, 0, true, payload); token.Wait() && token.Error() != nil {
					log.Printf("MQTT publish error (offset): %v", token.Error())
					continue
				}
			}
		}

		// 3) Health summary
		status := SensorStatus{
			DarkRateMedianMcps: darkMedian,
			RefSpadValid:       refOK && refCfg.Valid(),
			OffsetCalibrated:   offsetOK,
			Time:               t.Format(time.RFC3339),
		}
		if payload, err := json.Marshal(status); err != nil {
			log.Printf("status marshal error: %v", err)
			continue
		} else {
			if token := client.Publish(cfg.TopicSensorStatus, 0, true, payload); token.Wait() && token.Error() != nil {
				log.Printf("MQTT publish error (status): %v", token.Error())
				continue
			}
		}

		log.Printf("%s tick: dark median=%.4f Mcps | ref spads=%s | offsets=%s",
			t.Format(time.RFC3339),
			darkMedian,
			refSpadSummary(refCfg, refOK),
			offsetSummary(offsetRes, offsetOK),
		)
	}
	return nil
}

func refSpadSummary(cfg caldata.ReferenceSpadConfig, ok bool) string {
	if !ok {
		return "uncharacterized"
	}
	return cfg.RefLocation.String()
}

func offsetSummary(res caldata.OffsetCalibrationResult, ok bool) string {
	if !ok {
		return "uncalibrated"
	}
	return res.Status
}
