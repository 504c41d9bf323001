package imu

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Sample is a single timestamped inertial reading in SI units.
type Sample struct {
	Timestamp float64 `json:"timestamp"` // seconds, strictly increasing per source

	Gyro  r3.Vec `json:"gyro"`  // angular velocity, rad/s
	Accel r3.Vec `json:"accel"` // linear acceleration (specific force), m/s²
}

// Source is anything that can produce inertial samples over time:
// a real sensor, a mock, or a replay of a recorded log.
type Source interface {
	Next() (Sample, error)
}
