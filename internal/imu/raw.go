package imu

// Raw holds one register-level MPU9250 reading before unit conversion.
type Raw struct {
	Ax int16 `json:"ax"` // accel
	Ay int16 `json:"ay"`
	Az int16 `json:"az"`

	Gx int16 `json:"gx"` // gyro
	Gy int16 `json:"gy"`
	Gz int16 `json:"gz"`
}

// RawSource is anything that can produce raw IMU readings.
type RawSource interface {
	ReadRaw() (Raw, error)
}
