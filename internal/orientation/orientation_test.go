package orientation

import (
	"math"
	"testing"
)

func TestPoseFromAccelLevel(t *testing.T) {
	p := PoseFromAccel(0, 0, 1)
	if p.Roll != 0 || p.Pitch != 0 || p.Yaw != 0 {
		t.Fatalf("level pose = %+v, want zeros", p)
	}
}

func TestPoseFromAccelPureRoll(t *testing.T) {
	// Gravity split evenly between y and z: 45 degrees of roll.
	p := PoseFromAccel(0, math.Sqrt2/2, math.Sqrt2/2)
	if math.Abs(p.Roll-45) > 1e-9 {
		t.Fatalf("roll = %v, want 45", p.Roll)
	}
	if math.Abs(p.Pitch) > 1e-9 {
		t.Fatalf("pitch = %v, want 0", p.Pitch)
	}
}

func TestFusePoseIntegratesGyro(t *testing.T) {
	// Level accelerometer, 10 deg/s roll rate for 0.1 s.
	p := FusePose(0, 0, 1, 10, 0, 0, Pose{}, 0.1)
	want := complementaryGain * 1.0 // accel term is zero
	if math.Abs(p.Roll-want) > 1e-9 {
		t.Fatalf("roll = %v, want %v", p.Roll, want)
	}
}

func TestFusePoseYawWraps(t *testing.T) {
	p := FusePose(0, 0, 1, 0, 0, 90, Pose{Yaw: 350}, 1.0)
	if math.Abs(p.Yaw-80) > 1e-9 {
		t.Fatalf("yaw = %v, want 80 after wrap", p.Yaw)
	}
}
