// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"log"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/flight_computer/internal/config"
	"github.com/relabs-tech/flight_computer/internal/imu"
)

// accelLSBPerG and gyroLSBPerDPS index sensitivity by the configured range.
var (
	accelLSBPerG   = [4]float64{16384, 8192, 4096, 2048}
	gyroLSBPerDPS  = [4]float64{131, 65.5, 32.8, 16.4}
)

// IMUSource reads the flight IMU (MPU9250 over SPI).
type IMUSource struct {
	imu        *mpu9250.MPU9250
	accelRange byte
	gyroRange  byte
}

// NewIMUSource initializes the MPU9250 on the configured SPI device and
// applies the configured sensor ranges. Self-test and calibration failures
// are logged but not fatal: a vibration-rich bench can fail them while the
// sensor is still usable.
func NewIMUSource(cfg config.Config) (*IMUSource, error) {
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

	if err := dev.SetAccelRange(cfg.IMUAccelRange); err != nil {
		return nil, fmt.Errorf("IMU: set accel range: %w", err)
	}
	log.Printf("IMU: accelerometer range set to %d (±%dg)", cfg.IMUAccelRange, []int{2, 4, 8, 16}[cfg.IMUAccelRange])

	if err := dev.SetGyroRange(cfg.IMUGyroRange); err != nil {
		return nil, fmt.Errorf("IMU: set gyro range: %w", err)
	}
	log.Printf("IMU: gyroscope range set to %d (±%d°/s)", cfg.IMUGyroRange, []int{250, 500, 1000, 2000}[cfg.IMUGyroRange])

	if _, err := dev.SelfTest(); err != nil {
		log.Printf("Warning: IMU self-test failed: %v", err)
	}
	if err := dev.Calibrate(); err != nil {
		log.Printf("Warning: IMU calibration failed: %v", err)
	}

	return &IMUSource{
		imu:        dev,
		accelRange: cfg.IMUAccelRange,
		gyroRange:  cfg.IMUGyroRange,
	}, nil
}

// ReadRaw reads one register-level accelerometer/gyro sample.
func (s *IMUSource) ReadRaw() (imu.Raw, error) {
	ax, err := s.imu.GetAccelerationX()
	if err != nil {
		return imu.Raw{}, fmt.Errorf("IMU accel X: %w", err)
	}
	ay, err := s.imu.GetAccelerationY()
	if err != nil {
		return imu.Raw{}, fmt.Errorf("IMU accel Y: %w", err)
	}
	az, err := s.imu.GetAccelerationZ()
	if err != nil {
		return imu.Raw{}, fmt.Errorf("IMU accel Z: %w", err)
	}

	gx, err := s.imu.GetRotationX()
	if err != nil {
		return imu.Raw{}, fmt.Errorf("IMU gyro X: %w", err)
	}
	gy, err := s.imu.GetRotationY()
	if err != nil {
		return imu.Raw{}, fmt.Errorf("IMU gyro Y: %w", err)
	}
	gz, err := s.imu.GetRotationZ()
	if err != nil {
		return imu.Raw{}, fmt.Errorf("IMU gyro Z: %w", err)
	}

	return imu.Raw{Ax: ax, Ay: ay, Az: az, Gx: gx, Gy: gy, Gz: gz}, nil
}

// Convert scales a raw sample to physical units per the device's configured
// ranges.
func (s *IMUSource) Convert(raw imu.Raw) (accel [3]float64, gyro [3]float64) {
	return Convert(raw, s.accelRange, s.gyroRange)
}

// Convert scales a raw sample to physical units: accelerations in g,
// angular rates in deg/s, per the given range settings.
func Convert(raw imu.Raw, accelRange, gyroRange byte) (accel [3]float64, gyro [3]float64) {
	ag := accelLSBPerG[accelRange]
	gg := gyroLSBPerDPS[gyroRange]
	accel = [3]float64{float64(raw.Ax) / ag, float64(raw.Ay) / ag, float64(raw.Az) / ag}
	gyro = [3]float64{float64(raw.Gx) / gg, float64(raw.Gy) / gg, float64(raw.Gz) / gg}
	return accel, gyro
}
