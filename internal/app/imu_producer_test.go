package app

import (
	"errors"
	"math"
	"testing"

	"github.com/relabs-tech/flight_computer/internal/imu"
	"github.com/relabs-tech/flight_computer/internal/orientation"
	"github.com/relabs-tech/flight_computer/internal/sensors"
)

// stubRawSource feeds canned register readings through the imu.RawSource
// interface, standing in for the SPI device.
type stubRawSource struct {
	raw imu.Raw
	err error
}

func (s stubRawSource) ReadRaw() (imu.Raw, error) {
	return s.raw, s.err
}

func TestTickSampleMockPath(t *testing.T) {
	mock := orientation.NewMockSource()

	pose, accel, gyro, err := tickSample(mock, nil, nil, orientation.Pose{}, 0.01)
	if err != nil {
		t.Fatalf("mock path: %v", err)
	}

	// The mock sways gently around level.
	if math.Abs(pose.Roll) > 5 || math.Abs(pose.Pitch) > 4 {
		t.Fatalf("mock pose out of sway range: %+v", pose)
	}
	if accel != [3]float64{0, 0, 1} {
		t.Fatalf("mock accel = %v, want level gravity", accel)
	}
	if gyro != [3]float64{} {
		t.Fatalf("mock gyro = %v, want zero rates", gyro)
	}
}

func TestTickSampleRawPath(t *testing.T) {
	// 1g on z, 10 deg/s roll rate at range setting 1 (8192 LSB/g, 65.5 LSB/dps).
	src := stubRawSource{raw: imu.Raw{Az: 8192, Gx: 655}}
	convert := func(r imu.Raw) ([3]float64, [3]float64) {
		return sensors.Convert(r, 1, 1)
	}

	pose, accel, gyro, err := tickSample(nil, src, convert, orientation.Pose{}, 0.1)
	if err != nil {
		t.Fatalf("raw path: %v", err)
	}

	if accel[2] != 1.0 {
		t.Fatalf("az = %v, want 1.0 g", accel[2])
	}
	if math.Abs(gyro[0]-10) > 1e-9 {
		t.Fatalf("gx = %v, want 10 deg/s", gyro[0])
	}
	want := orientation.FusePose(0, 0, 1, 10, 0, 0, orientation.Pose{}, 0.1)
	if pose != want {
		t.Fatalf("fused pose = %+v, want %+v", pose, want)
	}
}

func TestTickSampleRawError(t *testing.T) {
	src := stubRawSource{err: errors.New("bus fault")}

	_, _, _, err := tickSample(nil, src, nil, orientation.Pose{}, 0.01)
	if err == nil {
		t.Fatal("read error not propagated")
	}
}
