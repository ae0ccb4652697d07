package rangefinder

import "math"

// Sample represents a single downward-distance reading.
type Sample struct {
	Distance  float64 `json:"distance"` // meters, along the sensor axis
	Timestamp float64 `json:"ts"`       // Unix seconds
}

// TiltCompensate turns a raw downward range reading into true vertical
// distance to ground. The measurement is first projected through the vehicle
// roll and pitch, then the mounting offset is removed: the sensor does not sit
// on the rotation axis, so tilting the frame moves it up or down by
// leverArm*sin(mountAngle-roll), itself foreshortened by pitch.
//
// rollDeg and pitchDeg are in degrees; mountAngle is in radians and leverArm
// in meters, both fixed by the sensor placement.
func TiltCompensate(raw, rollDeg, pitchDeg, leverArm, mountAngle float64) float64 {
	roll := rollDeg * math.Pi / 180.0
	pitch := pitchDeg * math.Pi / 180.0

	corrected := raw * math.Cos(roll) * math.Cos(pitch)
	offset := leverArm * math.Sin(mountAngle-roll) * math.Cos(pitch)
	return corrected - offset
}
