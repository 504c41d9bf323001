package app

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/inertial_initializer/internal/config"
	"github.com/relabs-tech/inertial_initializer/internal/gps"
	"github.com/relabs-tech/inertial_initializer/internal/initializer"
)

// RunConsole subscribes to the initializer's status and state topics (plus
// GPS fixes) and prints them, for watching an initialization run live.
func RunConsole() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	// Subscribe to readiness status
	statusToken := client.Subscribe(cfg.TopicInitStatus, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var st initializer.Status
		if err := json.Unmarshal(msg.Payload(), &st); err != nil {
			log.Printf("console: status unmarshal error: %v", err)
			return
		}

		fmt.Printf(
			"[STAT]  %-9s  span=%5.2fs  samples=%4d  excitation=%.5f  dropped=%d\n",
			st.Classification, st.Span, st.Samples, st.Excitation, st.Dropped,
		)
	})
	statusToken.Wait()
	if statusToken.Error() != nil {
		return statusToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicInitStatus)

	// Subscribe to the initial state (retained, so the latest one arrives
	// immediately on connect)
	stateToken := client.Subscribe(cfg.TopicInitState, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s initializer.State
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("console: state unmarshal error: %v", err)
			return
		}

		roll, pitch, _ := s.RollPitchYaw()
		fmt.Printf(
			"[INIT]  t=%.3f  ROLL=%6.2f°  PITCH=%6.2f°  gyro_bias=(%.4f %.4f %.4f)  accel_bias=(%.3f %.3f %.3f)\n",
			s.Timestamp, roll*180/math.Pi, pitch*180/math.Pi,
			s.GyroBias.X, s.GyroBias.Y, s.GyroBias.Z,
			s.AccelBias.X, s.AccelBias.Y, s.AccelBias.Z,
		)
	})
	stateToken.Wait()
	if stateToken.Error() != nil {
		return stateToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicInitState)

	// Subscribe to GPS
	gpsToken := client.Subscribe(cfg.TopicGPS, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var f gps.Fix
		if err := json.Unmarshal(msg.Payload(), &f); err != nil {
			log.Printf("console: gps unmarshal error: %v", err)
			return
		}

		fmt.Printf(
			"[GPS ]  time=%s date=%s lat=%.6f lon=%.6f speed=%.1fkn course=%.1f° validity=%s\n",
			f.Time, f.Date, f.Latitude, f.Longitude, f.SpeedKnots, f.CourseDeg, f.Validity,
		)
	})
	gpsToken.Wait()
	if gpsToken.Error() != nil {
		return gpsToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicGPS)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
