package main

import (
	"encoding/json"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/relabs-tech/tof_computer/internal/tof"
)

func main() {
	log.Println("starting tof-computer MQTT producer (mock)")

	// 1) Connect to MQTT broker on the Pi
	opts := mqtt.NewClientOptions().
		AddBroker("tcp://localhost:1883").
		SetClientID("tof-producer-mock")

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalf("MQTT connect error: %v", token.Error())
	}
	defer client.Disconnect(250)

	sim := tof.NewSimDevice()
	session := tof.NewSession(sim)

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for t := range ticker.C {
		rates, err := session.RunSpadRateMap(tof.TestModeLCRVcselOff, tof.ArrayRef, 36000)
		if err != nil {
			log.Printf("error from simulated sensor: %v", err)
			continue
		}

		payload, err := json.Marshal(rates)
		if err != nil {
			log.Printf("json marshal error: %v", err)
			continue
		}

		token := client.Publish("tof/spad_rates", 0, true, payload)
		token.Wait()

		log.Printf("%s published rate map: %d spads", t.Format(time.RFC3339), len(rates))
	}
}
