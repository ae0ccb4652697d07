package rangefinder

import (
	"math"
	"testing"
)

const (
	testLeverArm   = 0.05517
	testMountAngle = 0.81
)

func TestTiltCompensateLevel(t *testing.T) {
	// Level frame: only the fixed mounting offset is removed.
	got := TiltCompensate(1.0, 0, 0, testLeverArm, testMountAngle)
	want := 1.0 - testLeverArm*math.Sin(testMountAngle)

	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("level compensation = %v, want %v", got, want)
	}
}

func TestTiltCompensateShortensWithTilt(t *testing.T) {
	level := TiltCompensate(2.0, 0, 0, testLeverArm, testMountAngle)
	tilted := TiltCompensate(2.0, 10, 15, testLeverArm, testMountAngle)

	if tilted >= level {
		t.Fatalf("tilted reading %v not below level reading %v", tilted, level)
	}
}

func TestTiltCompensateRollMovesSensor(t *testing.T) {
	// Rolling toward the mount angle shrinks the offset term, rolling away
	// grows it. With pitch zero the projected distance is symmetric in roll,
	// so the difference isolates the lever arm.
	toward := TiltCompensate(1.5, 5, 0, testLeverArm, testMountAngle)
	away := TiltCompensate(1.5, -5, 0, testLeverArm, testMountAngle)

	if toward <= away {
		t.Fatalf("roll toward mount %v not above roll away %v", toward, away)
	}
}
