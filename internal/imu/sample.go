package imu

// Attitude is the vehicle attitude in degrees.
type Attitude struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Sample represents a single inertial reading as published by the IMU
// producer: body accelerations in g, angular rates in deg/s, the fused
// attitude and the battery bus voltage.
type Sample struct {
	Accel    [3]float64 `json:"accel"` // ax, ay, az in g
	Gyro     [3]float64 `json:"gyro"`  // gx, gy, gz in deg/s
	Attitude Attitude   `json:"attitude"`

	BatteryVoltage float64 `json:"battery_v"`
	Timestamp      float64 `json:"ts"` // Unix seconds
}
