package control

import "math"

// Clamp saturates v to [-limit, limit], preserving v's own sign when the
// limit is hit.
func Clamp(v, limit float64) float64 {
	if math.Abs(v) >= limit {
		if v < 0 {
			return -limit
		}
		return limit
	}
	return v
}
