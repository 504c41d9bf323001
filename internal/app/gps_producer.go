package app

import (
	"bufio"
	"encoding/json"
	"log"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/inertial_initializer/internal/config"
	"github.com/relabs-tech/inertial_initializer/internal/gps"
)

// RunGPSProducer opens the GPS serial port, parses NMEA sentences, and
// publishes combined GPS fixes as JSON over MQTT. The fixes georeference
// the initialization point: the inertial state anchors its global frame
// wherever the platform sat still, and the last fix says where that was.
func RunGPSProducer() error {
	cfg := config.Get()

	// ---- 1) Connect to MQTT broker ----
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDGPS)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("GPS producer connected to MQTT broker at %s", cfg.MQTTBroker)

	// ---- 2) Open GPS serial port ----
	serialOpts := serial.OpenOptions{
		PortName:              cfg.GPSSerialPort,
		BaudRate:              uint(cfg.GPSBaudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		return err
	}
	defer port.Close()
	log.Printf("GPS serial port opened on %s at %d baud", serialOpts.PortName, serialOpts.BaudRate)

	reader := bufio.NewReader(port)

	// Fixes accumulate from RMC sentences; extend to GGA/GSA if altitude
	// or DOP ever become interesting here.
	var current gps.Fix

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			log.Printf("GPS read error: %v", err)
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		// NMEA sentences usually start with '$'
		if !strings.HasPrefix(line, "$") {
			continue
		}

		sentence, err := nmea.Parse(line)
		if err != nil {
			// noisy GPS or partial sentences
			continue
		}

		switch sentence.DataType() {
		case nmea.TypeRMC:
			m := sentence.(nmea.RMC)

			current.Time = m.Time.String()
			current.Date = m.Date.String()
			current.Latitude = m.Latitude
			current.Longitude = m.Longitude
			current.SpeedKnots = m.Speed
			current.CourseDeg = m.Course
			current.Validity = string(m.Validity)

			payload, err := json.Marshal(current)
			if err != nil {
				log.Printf("GPS JSON marshal error: %v", err)
				continue
			}

			token := client.Publish(cfg.TopicGPS, 0, true, payload)
			token.Wait()
			if token.Error() != nil {
				log.Printf("GPS publish error: %v", token.Error())
				continue
			}

		default:
			// ignore other sentence types
		}
	}
}
