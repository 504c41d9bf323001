package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker           string
	MQTTClientIDProducer string
	MQTTClientIDGPS      string
	MQTTClientIDConsole  string
	MQTTClientIDWeb      string
	MQTTClientIDDisplay  string

	// Topics
	TopicIMU        string
	TopicInitState  string
	TopicInitStatus string
	TopicGPS        string

	// Initializer
	// Gravity is the specific force an ideal accelerometer reports at
	// rest, expressed in the global frame (z-up default: 0, 0, 9.81).
	GravityX            float64
	GravityY            float64
	GravityZ            float64
	InitWindowLength    float64 // seconds of stillness required
	InitExciteThreshold float64 // acceleration variance gate
	InitPollInterval    int     // milliseconds between initialization attempts

	// IMU Hardware
	IMUSource    string // "mpu9250" or "mock"
	IMUSPIDevice string
	IMUCSPin     string

	// IMU Sensor Ranges
	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	IMUAccelRange byte
	// Gyroscope: 0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s
	IMUGyroRange byte

	// GPS
	GPSSerialPort string
	GPSBaudRate   int

	// Timing
	IMUSampleInterval int // milliseconds

	// Web Server
	WebServerPort int

	// Display
	DisplayUpdateInterval int // milliseconds
}

// Package-level unexported variables for the process-global config:
// external code must use InitGlobal() to set and Get() to read. configOnce
// ensures initialization runs once; configMu allows concurrent readers.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := defaults()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// defaults returns a Config with the values that rarely need overriding.
func defaults() *Config {
	return &Config{
		MQTTClientIDProducer: "inertial-init-producer",
		MQTTClientIDGPS:      "inertial-gps-producer",
		MQTTClientIDConsole:  "inertial-console-subscriber",
		MQTTClientIDWeb:      "inertial-web-subscriber",
		MQTTClientIDDisplay:  "inertial-display-subscriber",

		TopicIMU:        "inertial/imu",
		TopicInitState:  "inertial/init/state",
		TopicInitStatus: "inertial/init/status",
		TopicGPS:        "inertial/gps",

		GravityZ:         9.81,
		InitPollInterval: 250,

		IMUSource: "mpu9250",

		WebServerPort:         8080,
		DisplayUpdateInterval: 500,
	}
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_GPS":
		c.MQTTClientIDGPS = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_IMU":
		c.TopicIMU = value
	case "TOPIC_INIT_STATE":
		c.TopicInitState = value
	case "TOPIC_INIT_STATUS":
		c.TopicInitStatus = value
	case "TOPIC_GPS":
		c.TopicGPS = value

	// Initializer
	case "GRAVITY_X":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid GRAVITY_X %q: %w", value, err)
		}
		c.GravityX = v
	case "GRAVITY_Y":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid GRAVITY_Y %q: %w", value, err)
		}
		c.GravityY = v
	case "GRAVITY_Z":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid GRAVITY_Z %q: %w", value, err)
		}
		c.GravityZ = v
	case "INIT_WINDOW_LENGTH":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid INIT_WINDOW_LENGTH %q: %w", value, err)
		}
		if v <= 0 {
			return fmt.Errorf("INIT_WINDOW_LENGTH must be positive, got %g", v)
		}
		c.InitWindowLength = v
	case "INIT_EXCITE_THRESHOLD":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid INIT_EXCITE_THRESHOLD %q: %w", value, err)
		}
		if v <= 0 {
			return fmt.Errorf("INIT_EXCITE_THRESHOLD must be positive, got %g", v)
		}
		c.InitExciteThreshold = v
	case "INIT_POLL_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid INIT_POLL_INTERVAL %q: %w", value, err)
		}
		if interval <= 0 {
			return fmt.Errorf("INIT_POLL_INTERVAL must be positive, got %d", interval)
		}
		c.InitPollInterval = interval

	// IMU Hardware
	case "IMU_SOURCE":
		if value != "mpu9250" && value != "mock" {
			return fmt.Errorf("IMU_SOURCE must be \"mpu9250\" or \"mock\", got %q", value)
		}
		c.IMUSource = value
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value

	// IMU Sensor Ranges
	case "IMU_ACCEL_RANGE":
		rangeVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_ACCEL_RANGE %q: %w", value, err)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("IMU_ACCEL_RANGE must be 0-3 (0=±2g, 1=±4g, 2=±8g, 3=±16g), got %d", rangeVal)
		}
		c.IMUAccelRange = byte(rangeVal)
	case "IMU_GYRO_RANGE":
		rangeVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_GYRO_RANGE %q: %w", value, err)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("IMU_GYRO_RANGE must be 0-3 (0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s), got %d", rangeVal)
		}
		c.IMUGyroRange = byte(rangeVal)

	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GPS_BAUD_RATE %q: %w", value, err)
		}
		c.GPSBaudRate = rate

	// Timing
	case "IMU_SAMPLE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_SAMPLE_INTERVAL %q: %w", value, err)
		}
		c.IMUSampleInterval = interval

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	// Display
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		c.DisplayUpdateInterval = interval

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.InitWindowLength == 0 {
		return fmt.Errorf("INIT_WINDOW_LENGTH is required")
	}
	if c.InitExciteThreshold == 0 {
		return fmt.Errorf("INIT_EXCITE_THRESHOLD is required")
	}
	if c.GravityX == 0 && c.GravityY == 0 && c.GravityZ == 0 {
		return fmt.Errorf("gravity vector must be non-zero")
	}
	if c.IMUSampleInterval == 0 {
		return fmt.Errorf("IMU_SAMPLE_INTERVAL is required")
	}
	if c.IMUSource == "mpu9250" && c.IMUSPIDevice == "" {
		return fmt.Errorf("IMU_SPI_DEVICE is required when IMU_SOURCE=mpu9250")
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
