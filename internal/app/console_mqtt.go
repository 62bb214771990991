package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/tof_computer/internal/caldata"
	"github.com/relabs-tech/tof_computer/internal/config"
)

func RunConsoleMQTT() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	// Subscribe to sensor status
	statusToken := client.Subscribe(cfg.TopicSensorStatus, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s SensorStatus
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("console: status unmarshal error: %v", err)
			return
		}

		fmt.Printf(
			"[STAT]  dark=%8.4f Mcps  ref_valid=%-5t offset_cal=%-5t time=%s\n",
			s.DarkRateMedianMcps, s.RefSpadValid, s.OffsetCalibrated, s.Time,
		)
	})
	statusToken.Wait()
	if statusToken.Error() != nil {
		return statusToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicSensorStatus)

	// Subscribe to reference SPAD configuration
	refToken := client.Subscribe(cfg.TopicRefSpad, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var c caldata.ReferenceSpadConfig
		if err := json.Unmarshal(msg.Payload(), &c); err != nil {
			log.Printf("console: ref spad unmarshal error: %v", err)
			return
		}

		fmt.Printf(
			"[REFSPAD] count=%2d location=%-13s valid=%t enables=% X\n",
			c.NumRefSpads, c.RefLocation, c.Valid(), c.SpadEnables,
		)
	})
	refToken.Wait()
	if refToken.Error() != nil {
		return refToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicRefSpad)

	// Subscribe to offset calibration
	offsetToken := client.Subscribe(cfg.TopicOffsetCal, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var r caldata.OffsetCalibrationResult
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			log.Printf("console: offset unmarshal error: %v", err)
			return
		}

		fmt.Printf(
			"[OFFSET] mm1=%+4d mm  mm2=%+4d mm  eff_spads=%5.1f  pre_range=%6.2f Mcps  status=%s\n",
			r.MM1OffsetMM, r.MM2OffsetMM, r.EffectiveSpadCountMM1, r.PreRangeRateMcps, r.Status,
		)
	})
	offsetToken.Wait()
	if offsetToken.Error() != nil {
		return offsetToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicOffsetCal)

	// Subscribe to SPAD rate maps. Full maps arrive on every telemetry
	// tick, so printing is throttled to the configured console interval.
	logInterval := time.Duration(cfg.ConsoleLogInterval) * time.Millisecond
	var (
		rateMu        sync.Mutex
		lastRatePrint time.Time
	)
	rateToken := client.Subscribe(cfg.TopicSpadRateMap, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var m caldata.SpadRateMap
		if err := json.Unmarshal(msg.Payload(), &m); err != nil {
			log.Printf("console: rate map unmarshal error: %v", err)
			return
		}
		if len(m) == 0 {
			return
		}

		rateMu.Lock()
		if time.Since(lastRatePrint) < logInterval {
			rateMu.Unlock()
			return
		}
		lastRatePrint = time.Now()
		rateMu.Unlock()

		min, max, sum := m[0].RateMcps, m[0].RateMcps, 0.0
		for _, s := range m {
			if s.RateMcps < min {
				min = s.RateMcps
			}
			if s.RateMcps > max {
				max = s.RateMcps
			}
			sum += s.RateMcps
		}
		fmt.Printf(
			"[RATES] spads=%3d  min=%8.4f  max=%8.4f  mean=%8.4f Mcps\n",
			len(m), min, max, sum/float64(len(m)),
		)
	})
	rateToken.Wait()
	if rateToken.Error() != nil {
		return rateToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicSpadRateMap)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
