// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"log"
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/inertial_initializer/internal/config"
	"github.com/relabs-tech/inertial_initializer/internal/imu"
)

const standardGravity = 9.80665 // m/s² per g

type mpuSource struct {
	imu   *mpu9250.MPU9250
	epoch time.Time

	accelScale float64 // m/s² per count
	gyroScale  float64 // rad/s per count
}

// NewMPU9250Source initializes the MPU9250 over SPI and returns an
// imu.Source producing SI-unit samples with monotonic timestamps.
//
// The driver is NOT asked to calibrate: hardware bias compensation would
// hide exactly the offsets the stand-still initializer exists to estimate.
func NewMPU9250Source() (imu.Source, error) {
	cfg := config.Get()

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("IMU: periph host init: %w", err)
	}

	cs := gpioreg.ByName(cfg.IMUCSPin)
	if cs == nil {
		return nil, fmt.Errorf("IMU: CS pin %q not found", cfg.IMUCSPin)
	}

	tr, err := mpu9250.NewSpiTransport(cfg.IMUSPIDevice, cs)
	if err != nil {
		return nil, fmt.Errorf("IMU: SPI transport (%s): %w", cfg.IMUSPIDevice, err)
	}

	dev, err := mpu9250.New(tr)
	if err != nil {
		return nil, fmt.Errorf("IMU: device creation: %w", err)
	}

	if err := dev.Init(); err != nil {
		return nil, fmt.Errorf("IMU: initialization: %w", err)
	}

	if _, err := dev.SelfTest(); err != nil {
		log.Printf("Warning: IMU self-test failed: %v", err)
	} else {
		log.Println("IMU self-test passed")
	}

	// Counts → SI scale factors for the configured full-scale ranges.
	// The ranges here must match what the sensor is actually running at
	// (the MPU9250 powers up at ±2g and ±250°/s).
	fullScaleG := []float64{2, 4, 8, 16}[cfg.IMUAccelRange]
	fullScaleDps := []float64{250, 500, 1000, 2000}[cfg.IMUGyroRange]
	log.Printf("IMU: converting counts at ±%gg / ±%g°/s full scale", fullScaleG, fullScaleDps)

	return &mpuSource{
		imu:        dev,
		epoch:      time.Now(),
		accelScale: fullScaleG * standardGravity / 32768,
		gyroScale:  fullScaleDps * math.Pi / 180 / 32768,
	}, nil
}

// Next reads one accelerometer+gyro sample and converts it to SI units.
func (s *mpuSource) Next() (imu.Sample, error) {
	ax, err := s.imu.GetAccelerationX()
	if err != nil {
		return imu.Sample{}, fmt.Errorf("IMU accel X: %w", err)
	}
	ay, err := s.imu.GetAccelerationY()
	if err != nil {
		return imu.Sample{}, fmt.Errorf("IMU accel Y: %w", err)
	}
	az, err := s.imu.GetAccelerationZ()
	if err != nil {
		return imu.Sample{}, fmt.Errorf("IMU accel Z: %w", err)
	}

	gx, err := s.imu.GetRotationX()
	if err != nil {
		return imu.Sample{}, fmt.Errorf("IMU gyro X: %w", err)
	}
	gy, err := s.imu.GetRotationY()
	if err != nil {
		return imu.Sample{}, fmt.Errorf("IMU gyro Y: %w", err)
	}
	gz, err := s.imu.GetRotationZ()
	if err != nil {
		return imu.Sample{}, fmt.Errorf("IMU gyro Z: %w", err)
	}

	return imu.Sample{
		Timestamp: time.Since(s.epoch).Seconds(),
		Gyro: r3.Vec{
			X: float64(gx) * s.gyroScale,
			Y: float64(gy) * s.gyroScale,
			Z: float64(gz) * s.gyroScale,
		},
		Accel: r3.Vec{
			X: float64(ax) * s.accelScale,
			Y: float64(ay) * s.accelScale,
			Z: float64(az) * s.accelScale,
		},
	}, nil
}
