package orientation

import (
	"math"
)

// Pose is the vehicle attitude in degrees.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Source is anything that can provide poses over time: the real IMU, the
// mock generator, or a replay from a recorded flight.
type Source interface {
	Next() (Pose, error)
}

// PoseFromAccel computes roll and pitch from accelerometer ratios only.
// Yaw cannot be observed from gravity and is returned as 0.
//
// Tilt formulas:
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
func PoseFromAccel(ax, ay, az float64) Pose {
	rollRad := math.Atan2(ay, az)
	pitchRad := math.Atan2(-ax, math.Sqrt(ay*ay+az*az))

	return Pose{
		Roll:  rollRad * 180.0 / math.Pi,
		Pitch: pitchRad * 180.0 / math.Pi,
	}
}

// complementaryGain weights the gyro integration against the accelerometer
// tilt reference. Close to 1: trust the gyro short-term, let the
// accelerometer pull out the drift slowly.
const complementaryGain = 0.98

// FusePose blends gyro-integrated attitude with the accelerometer tilt
// estimate. gx/gy/gz are angular rates in deg/s, dt the elapsed seconds
// since prev was computed. Yaw has no absolute reference here and is pure
// gyro integration.
func FusePose(ax, ay, az, gx, gy, gz float64, prev Pose, dt float64) Pose {
	accel := PoseFromAccel(ax, ay, az)

	roll := complementaryGain*(prev.Roll+gx*dt) + (1-complementaryGain)*accel.Roll
	pitch := complementaryGain*(prev.Pitch+gy*dt) + (1-complementaryGain)*accel.Pitch
	yaw := math.Mod(prev.Yaw+gz*dt, 360)

	return Pose{Roll: roll, Pitch: pitch, Yaw: yaw}
}
