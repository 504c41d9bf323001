package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/relabs-tech/inertial_initializer/internal/config"
	"github.com/relabs-tech/inertial_initializer/internal/imu"
	"github.com/relabs-tech/inertial_initializer/internal/initializer"
	"github.com/relabs-tech/inertial_initializer/internal/sensors"
)

// mockNoise is the accelerometer noise sigma (m/s²) of the mock source,
// comfortably below the usual excitation thresholds so a bench run
// initializes without hardware.
const mockNoise = 0.002

// RunInitProducer samples the IMU, feeds the stand-still initializer, and
// publishes raw samples, readiness status, and — once the platform has been
// still for a full window — the initial navigation state over MQTT. The
// state topic is retained so a downstream filter can pick up the latest
// initialization whenever it connects.
func RunInitProducer() error {
	log.Println("starting stand-still initializer producer (IMU → MQTT)")

	cfg := config.Get()
	gravity := r3.Vec{X: cfg.GravityX, Y: cfg.GravityY, Z: cfg.GravityZ}

	ini, err := initializer.New(gravity, cfg.InitWindowLength, cfg.InitExciteThreshold)
	if err != nil {
		return fmt.Errorf("initializer setup: %w", err)
	}

	// --- Choose IMU source (mock vs real hardware) ---
	var src imu.Source
	if cfg.IMUSource == "mock" {
		log.Println("using mock IMU source")
		src = imu.NewMockSource(gravity, mockNoise)
	} else {
		src, err = sensors.NewMPU9250Source()
		if err != nil {
			return fmt.Errorf("IMU source: %w", err)
		}
	}

	// --- connect to MQTT ---
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDProducer)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect: %w", token.Error())
	}
	defer client.Disconnect(250)

	log.Println("connected to MQTT, starting sample loop")

	poll := time.Duration(cfg.InitPollInterval) * time.Millisecond
	lastPoll := time.Now()
	initCount := 0

	ticker := time.NewTicker(time.Duration(cfg.IMUSampleInterval) * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		sample, err := src.Next()
		if err != nil {
			log.Printf("IMU read error: %v", err)
			continue
		}
		ini.FeedSample(sample)

		if payload, err := json.Marshal(sample); err != nil {
			log.Printf("sample marshal error: %v", err)
		} else if token := client.Publish(cfg.TopicIMU, 0, false, payload); token.Wait() && token.Error() != nil {
			log.Printf("MQTT publish error (imu): %v", token.Error())
		}

		// Initialization attempts run at a slower cadence than sampling.
		if time.Since(lastPoll) < poll {
			continue
		}
		lastPoll = time.Now()

		status := ini.Status()
		if payload, err := json.Marshal(status); err != nil {
			log.Printf("status marshal error: %v", err)
		} else if token := client.Publish(cfg.TopicInitStatus, 0, true, payload); token.Wait() && token.Error() != nil {
			log.Printf("MQTT publish error (init/status): %v", token.Error())
		}

		state, err := ini.Initialize()
		switch {
		case errors.Is(err, initializer.ErrWindowTooShort):
			log.Printf("init pending: window %.2fs of %.2fs (%d samples)",
				status.Span, cfg.InitWindowLength, status.Samples)
			continue
		case errors.Is(err, initializer.ErrExcessiveMotion):
			log.Printf("init gated: excitation %.4g above %.4g, waiting for the platform to settle",
				status.Excitation, cfg.InitExciteThreshold)
			continue
		case err != nil:
			log.Printf("init error: %v", err)
			continue
		}

		initCount++
		payload, err := json.Marshal(state)
		if err != nil {
			log.Printf("state marshal error: %v", err)
			continue
		}
		if token := client.Publish(cfg.TopicInitState, 0, true, payload); token.Wait() && token.Error() != nil {
			log.Printf("MQTT publish error (init/state): %v", token.Error())
			continue
		}

		roll, pitch, _ := state.RollPitchYaw()
		log.Printf("initialized #%d at t=%.3f: roll=%.2f° pitch=%.2f° | gyro bias=(%.4f %.4f %.4f) rad/s | accel bias=(%.3f %.3f %.3f) m/s²",
			initCount, state.Timestamp,
			roll*180/math.Pi, pitch*180/math.Pi,
			state.GyroBias.X, state.GyroBias.Y, state.GyroBias.Z,
			state.AccelBias.X, state.AccelBias.Y, state.AccelBias.Z,
		)
	}
	return nil
}
