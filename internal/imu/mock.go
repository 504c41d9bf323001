// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text


package imu

import (
	"math/rand"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

type mockSource struct {
	start    time.Time
	gravity  r3.Vec
	gyroBias r3.Vec
	noise    float64
	rng      *rand.Rand
}

// NewMockSource creates a mock IMU source that behaves like a sensor
// resting on a bench: the accelerometer reads the configured gravity
// reaction plus Gaussian noise, the gyro reads a small fixed bias plus
// noise. Useful when no hardware is attached.
func NewMockSource(gravity r3.Vec, noise float64) Source {
	return &mockSource{
		start:    time.Now(),
		gravity:  gravity,
		gyroBias: r3.Vec{X: 0.002, Y: -0.001, Z: 0.0015},
		noise:    noise,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (m *mockSource) Next() (Sample, error) {
	return Sample{
		Timestamp: time.Since(m.start).Seconds(),
		Gyro: r3.Vec{
			X: m.gyroBias.X + m.noise*0.01*m.rng.NormFloat64(),
			Y: m.gyroBias.Y + m.noise*0.01*m.rng.NormFloat64(),
			Z: m.gyroBias.Z + m.noise*0.01*m.rng.NormFloat64(),
		},
		Accel: r3.Vec{
			X: m.gravity.X + m.noise*m.rng.NormFloat64(),
			Y: m.gravity.Y + m.noise*m.rng.NormFloat64(),
			Z: m.gravity.Z + m.noise*m.rng.NormFloat64(),
		},
	}, nil
}
