package app

import (
	"encoding/json"
	"fmt"
	"image"
	"log"
	"math"
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

	"github.com/relabs-tech/inertial_initializer/internal/config"
	"github.com/relabs-tech/inertial_initializer/internal/initializer"
)

// displayData holds the latest data for the OLED status panel.
type displayData struct {
	mu sync.RWMutex

	status     initializer.Status
	haveStatus bool

	state     initializer.State
	haveState bool
}

// RunDisplay drives a 128x64 SSD1306 OLED showing the initializer's
// readiness and, once available, the estimated attitude and biases.
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

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Println("display: SSD1306 initialized")

	data := &displayData{}

	// Connect to MQTT
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDDisplay)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTTBroker)

	token := client.Subscribe(cfg.TopicInitStatus, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var st initializer.Status
		if err := json.Unmarshal(msg.Payload(), &st); err != nil {
			log.Printf("display: status unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.status = st
		data.haveStatus = true
		data.mu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}

	token = client.Subscribe(cfg.TopicInitState, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s initializer.State
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("display: state unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.state = s
		data.haveState = true
		data.mu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: subscribed to %s and %s", cfg.TopicInitStatus, cfg.TopicInitState)

	// Display update loop
	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for range ticker.C {
		data.mu.RLock()
		status, haveStatus := data.status, data.haveStatus
		state, haveState := data.state, data.haveState
		data.mu.RUnlock()

		if err := updateStatusDisplay(dev, status, haveStatus, state, haveState); err != nil {
			log.Printf("display: update error: %v", err)
		}
	}

	return nil
}

func updateStatusDisplay(dev *ssd1306.Dev, status initializer.Status, haveStatus bool, state initializer.State, haveState bool) error {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	if !haveStatus {
		drawer.Dot = fixed.P(0, 26)
		drawer.DrawBytes([]byte("Initializer"))
		drawer.Dot = fixed.P(0, 39)
		drawer.DrawBytes([]byte("Waiting..."))
		return dev.Draw(dev.Bounds(), img, image.Point{})
	}

	drawer.Dot = fixed.P(0, 13)
	drawer.DrawBytes([]byte(fmt.Sprintf("%-10s", status.Classification)))

	drawer.Dot = fixed.P(0, 26)
	drawer.DrawBytes([]byte(fmt.Sprintf("span %4.1fs v %.4f", status.Span, status.Excitation)))

	if haveState {
		roll, pitch, _ := state.RollPitchYaw()
		drawer.Dot = fixed.P(0, 39)
		drawer.DrawBytes([]byte(fmt.Sprintf("R%6.1f P%6.1f", roll*180/math.Pi, pitch*180/math.Pi)))

		drawer.Dot = fixed.P(0, 52)
		drawer.DrawBytes([]byte(fmt.Sprintf("bw %+.3f %+.3f %+.3f", state.GyroBias.X, state.GyroBias.Y, state.GyroBias.Z)))
	} else {
		drawer.Dot = fixed.P(0, 39)
		drawer.DrawBytes([]byte("not initialized"))
	}

	return dev.Draw(dev.Bounds(), img, image.Point{})
}
