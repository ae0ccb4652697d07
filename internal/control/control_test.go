package control

import (
	"math"
	"testing"
)

func TestClampSaturation(t *testing.T) {
	const limit = 150.0
	for _, v := range []float64{-1e6, -151, -150, -10, 0, 10, 150, 151, 1e6} {
		got := Clamp(v, limit)
		if math.Abs(got) > limit {
			t.Errorf("Clamp(%v, %v) = %v exceeds limit", v, limit, got)
		}
		if math.Abs(v) >= limit && got != math.Copysign(limit, v) {
			t.Errorf("Clamp(%v, %v) = %v, want sign-preserving %v", v, limit, got, math.Copysign(limit, v))
		}
		if math.Abs(v) < limit && got != v {
			t.Errorf("Clamp(%v, %v) = %v, want unchanged", v, limit, got)
		}
	}
}

func TestPIDProportional(t *testing.T) {
	p := NewPID(60, 0, 0)
	if got := p.Compute(0.5, 0.01, 0); got != 30 {
		t.Fatalf("P-only output = %v, want 30", got)
	}
}

func TestPIDIntegralAccumulates(t *testing.T) {
	p := NewPID(0, 1, 0)
	p.Compute(1.0, 0.5, 0)
	if got := p.Compute(1.0, 0.5, 0); got != 1.0 {
		t.Fatalf("integral after 1s of unit error = %v, want 1.0", got)
	}
}

func TestPIDDerivativeUsesSuppliedRate(t *testing.T) {
	p := NewPID(0, 0, 30)
	// Error rate is supplied externally; a climb (positive velocity) arrives
	// as a negative error rate and must reduce the output.
	if got := p.Compute(0.2, 0.01, -0.5); got != -15 {
		t.Fatalf("D-only output = %v, want -15", got)
	}
}

func TestPIDStatePersists(t *testing.T) {
	p := NewPID(0, 0.05, 0)
	for i := 0; i < 100; i++ {
		p.Compute(1.0, 0.01, 0)
	}
	// 1 second of unit error at Ki=0.05.
	if got := p.Compute(0, 0.01, 0); math.Abs(got-0.05) > 1e-9 {
		t.Fatalf("integrator contribution = %v, want 0.05", got)
	}
}
