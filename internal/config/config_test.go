package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inertial_config.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
# minimal working config
MQTT_BROKER=tcp://localhost:1883
INIT_WINDOW_LENGTH=1.0
INIT_EXCITE_THRESHOLD=0.01
IMU_SAMPLE_INTERVAL=10
IMU_SOURCE=mock
`

func TestLoadMinimalConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "tcp://localhost:1883", cfg.MQTTBroker)
	assert.Equal(t, 1.0, cfg.InitWindowLength)
	assert.Equal(t, 0.01, cfg.InitExciteThreshold)
	assert.Equal(t, 10, cfg.IMUSampleInterval)

	// Defaults survive when not overridden.
	assert.Equal(t, 9.81, cfg.GravityZ)
	assert.Equal(t, "inertial/init/state", cfg.TopicInitState)
	assert.Equal(t, 250, cfg.InitPollInterval)
	assert.Equal(t, 8080, cfg.WebServerPort)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+`
GRAVITY_X=0.1
GRAVITY_Z=9.80665
TOPIC_INIT_STATE=nav/init
INIT_POLL_INTERVAL=100
IMU_ACCEL_RANGE=2
IMU_GYRO_RANGE=1
DISPLAY_UPDATE_INTERVAL=250
`))
	require.NoError(t, err)

	assert.Equal(t, 0.1, cfg.GravityX)
	assert.Equal(t, 9.80665, cfg.GravityZ)
	assert.Equal(t, "nav/init", cfg.TopicInitState)
	assert.Equal(t, 100, cfg.InitPollInterval)
	assert.Equal(t, byte(2), cfg.IMUAccelRange)
	assert.Equal(t, byte(1), cfg.IMUGyroRange)
	assert.Equal(t, 250, cfg.DisplayUpdateInterval)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"negative window":    "INIT_WINDOW_LENGTH=-1",
		"zero window":        "INIT_WINDOW_LENGTH=0",
		"bad threshold":      "INIT_EXCITE_THRESHOLD=none",
		"negative threshold": "INIT_EXCITE_THRESHOLD=-0.5",
		"accel range":        "IMU_ACCEL_RANGE=4",
		"gyro range":         "IMU_GYRO_RANGE=-1",
		"unknown key":        "NOT_A_KEY=1",
		"bad source":         "IMU_SOURCE=bno055",
		"malformed line":     "JUST_A_KEY_NO_VALUE",
	}
	for name, line := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, minimalConfig+line+"\n"))
			assert.Error(t, err)
		})
	}
}

func TestLoadRequiredFields(t *testing.T) {
	_, err := Load(writeConfig(t, "MQTT_BROKER=tcp://localhost:1883\n"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, `
INIT_WINDOW_LENGTH=1.0
INIT_EXCITE_THRESHOLD=0.01
IMU_SAMPLE_INTERVAL=10
`))
	require.Error(t, err, "missing broker")

	// mpu9250 source needs a SPI device.
	_, err = Load(writeConfig(t, `
MQTT_BROKER=tcp://localhost:1883
INIT_WINDOW_LENGTH=1.0
INIT_EXCITE_THRESHOLD=0.01
IMU_SAMPLE_INTERVAL=10
IMU_SOURCE=mpu9250
`))
	require.Error(t, err)
}

func TestLoadZeroGravityRejected(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+"GRAVITY_Z=0\n"))
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
