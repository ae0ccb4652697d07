package estimator

import "math"

// Truncate2 truncates toward zero to two decimal digits. Measurements are
// truncated to the range sensor's centimeter resolution before entering a
// filter, which also damps injected noise.
func Truncate2(v float64) float64 {
	return math.Trunc(v*100) / 100
}
