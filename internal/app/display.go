package app

import (
	"encoding/json"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/tof_computer/internal/caldata"
	"github.com/relabs-tech/tof_computer/internal/config"
)

// DisplayData holds the latest data for display
type DisplayData struct {
	mu sync.RWMutex

	// Sensor health
	status     SensorStatus
	haveStatus bool

	// Calibration artifacts
	refSpad     caldata.ReferenceSpadConfig
	haveRefSpad bool
	offset      caldata.OffsetCalibrationResult
	haveOffset  bool
}

func RunDisplay() error {
	cfg := config.Get()

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	// Open I2C bus
	bus, err := i2creg.Open("")
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	// Initialize display (the panel sits at the SSD1306's fixed 0x3C address)
	display, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Println("display: initialized")

	// Show splash screen
	if err := showSplash(display); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	// Data storage
	data := &DisplayData{}

	// Connect to MQTT
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDDisplay)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTTBroker)

	if err := subscribeCalibrationTopics(client, data, cfg); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	// Display update loop
	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	// Pages rotate each tick so the 128x64 panel shows everything over time.
	page := 0
	for range ticker.C {
		// Read data without copying the mutex
		data.mu.RLock()
		snapshot := DisplayData{
			status:      data.status,
			haveStatus:  data.haveStatus,
			refSpad:     data.refSpad,
			haveRefSpad: data.haveRefSpad,
			offset:      data.offset,
			haveOffset:  data.haveOffset,
		}
		data.mu.RUnlock()

		var err error
		switch page {
		case 0:
			err = updateStatusDisplay(display, snapshot.status, snapshot.haveStatus)
		case 1:
			err = updateRefSpadDisplay(display, snapshot.refSpad, snapshot.haveRefSpad)
		default:
			err = updateOffsetDisplay(display, snapshot.offset, snapshot.haveOffset)
		}
		if err != nil {
			log.Printf("display: error updating display: %v", err)
		}
		page = (page + 1) % 3
	}

	return nil
}

func subscribeCalibrationTopics(client mqtt.Client, data *DisplayData, cfg *config.Config) error {
	token := client.Subscribe(cfg.TopicSensorStatus, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s SensorStatus
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("display: status unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.status = s
		data.haveStatus = true
		data.mu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: subscribed to %s", cfg.TopicSensorStatus)

	token = client.Subscribe(cfg.TopicRefSpad, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var c caldata.ReferenceSpadConfig
		if err := json.Unmarshal(msg.Payload(), &c); err != nil {
			log.Printf("display: ref spad unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.refSpad = c
		data.haveRefSpad = true
		data.mu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: subscribed to %s", cfg.TopicRefSpad)

	token = client.Subscribe(cfg.TopicOffsetCal, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var r caldata.OffsetCalibrationResult
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			log.Printf("display: offset unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.offset = r
		data.haveOffset = true
		data.mu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: subscribed to %s", cfg.TopicOffsetCal)

	return nil
}

func updateStatusDisplay(dev *ssd1306.Dev, status SensorStatus, haveData bool) error {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	// Blank image
	for i := 0; i < 1024; i++ {
		img.Pix[i] = 0
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	if !haveData {
		drawer.Dot = fixed.P(0, 26)
		drawer.DrawBytes([]byte("ToF Status"))
		drawer.Dot = fixed.P(0, 39)
		drawer.DrawBytes([]byte("Waiting..."))
	} else {
		drawer.Dot = fixed.P(0, 13)
		drawer.DrawBytes([]byte("ToF Status"))

		drawer.Dot = fixed.P(0, 26)
		drawer.DrawBytes([]byte(fmt.Sprintf("Dark %.4f", status.DarkRateMedianMcps)))

		drawer.Dot = fixed.P(0, 39)
		drawer.DrawBytes([]byte(fmt.Sprintf("Ref  %s", yesNo(status.RefSpadValid))))

		drawer.Dot = fixed.P(0, 52)
		drawer.DrawBytes([]byte(fmt.Sprintf("Offs %s", yesNo(status.OffsetCalibrated))))
	}

	return dev.Draw(dev.Bounds(), img, image.Point{})
}

func updateRefSpadDisplay(dev *ssd1306.Dev, cfg caldata.ReferenceSpadConfig, haveData bool) error {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	// Blank image
	for i := 0; i < 1024; i++ {
		img.Pix[i] = 0
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	if !haveData {
		drawer.Dot = fixed.P(0, 26)
		drawer.DrawBytes([]byte("Ref SPADs"))
		drawer.Dot = fixed.P(0, 39)
		drawer.DrawBytes([]byte("Waiting..."))
	} else {
		drawer.Dot = fixed.P(0, 13)
		drawer.DrawBytes([]byte("Ref SPADs"))

		drawer.Dot = fixed.P(0, 26)
		drawer.DrawBytes([]byte(fmt.Sprintf("Count: %d", cfg.NumRefSpads)))

		drawer.Dot = fixed.P(0, 39)
		drawer.DrawBytes([]byte(cfg.RefLocation.String()))

		drawer.Dot = fixed.P(0, 52)
		drawer.DrawBytes([]byte(fmt.Sprintf("Valid: %s", yesNo(cfg.Valid()))))
	}

	return dev.Draw(dev.Bounds(), img, image.Point{})
}

func updateOffsetDisplay(dev *ssd1306.Dev, res caldata.OffsetCalibrationResult, haveData bool) error {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	// Blank image
	for i := 0; i < 1024; i++ {
		img.Pix[i] = 0
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	if !haveData {
		drawer.Dot = fixed.P(0, 26)
		drawer.DrawBytes([]byte("Offsets"))
		drawer.Dot = fixed.P(0, 39)
		drawer.DrawBytes([]byte("Waiting..."))
	} else {
		drawer.Dot = fixed.P(0, 13)
		drawer.DrawBytes([]byte(fmt.Sprintf("MM1: %+d mm", res.MM1OffsetMM)))

		drawer.Dot = fixed.P(0, 26)
		drawer.DrawBytes([]byte(fmt.Sprintf("MM2: %+d mm", res.MM2OffsetMM)))

		drawer.Dot = fixed.P(0, 39)
		drawer.DrawBytes([]byte(fmt.Sprintf("Spads %.1f", res.EffectiveSpadCountMM1)))

		drawer.Dot = fixed.P(0, 52)
		drawer.DrawBytes([]byte(res.Status))
	}

	return dev.Draw(dev.Bounds(), img, image.Point{})
}

func showSplash(dev *ssd1306.Dev) error {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	// Blank image
	for i := 0; i < 1024; i++ {
		img.Pix[i] = 0
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	drawer.Dot = fixed.P(10, 26)
	drawer.DrawBytes([]byte("ToF Pi"))

	drawer.Dot = fixed.P(5, 43)
	drawer.DrawBytes([]byte("Calibration"))

	drawer.Dot = fixed.P(25, 56)
	drawer.DrawBytes([]byte("Bench"))

	return dev.Draw(dev.Bounds(), img, image.Point{})
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
