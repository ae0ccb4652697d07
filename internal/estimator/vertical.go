package estimator

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Vertical estimates altitude and vertical velocity from tilt-compensated
// range readings. State is [altitude, vertical_velocity].
type Vertical struct {
	k kalman
}

// NewVertical returns a vertical estimator with the calibrated noise model:
// process noise is deliberately large relative to the ~1 cm range sensor
// noise so the filter tracks the sensor closely.
func NewVertical() *Vertical {
	const dt = 0.01 // placeholder; overwritten every Predict
	return &Vertical{
		k: kalman{
			x: mat.NewVecDense(2, nil),
			P: diag(0.1, 0.1),
			F: mat.NewDense(2, 2, []float64{1, dt, 0, 1}),
			B: mat.NewDense(2, 1, []float64{0.5 * dt * dt, dt}),
			H: identity(2),
			Q: diag(0.9, 0.4),
			R: diag(0.02*0.02, 0.05*0.05),
		},
	}
}

// Predict advances the state by dt seconds. accel is the vertical
// acceleration control input; the loop currently always passes 0, so the
// control path is wired but inactive. When |dt| reaches the trust bound the
// velocity coupling and the position control entry are zeroed for this step;
// the velocity control entry keeps dt, matching the original tuning.
func (v *Vertical) Predict(dt, accel float64) {
	coupling := dt
	posCtl := 0.5 * dt * dt
	if math.Abs(dt) >= dtBound {
		coupling = 0
		posCtl = 0
	}
	v.k.F.Set(0, 1, coupling)
	v.k.B.Set(0, 0, posCtl)
	v.k.B.Set(1, 0, dt)
	v.k.predict(mat.NewVecDense(1, []float64{accel}))
}

// Update folds in one corrected range reading and the climb rate derived
// from it. Both components are truncated to sensor resolution first.
func (v *Vertical) Update(altitude, climbRate float64) error {
	z := mat.NewVecDense(2, []float64{Truncate2(altitude), Truncate2(climbRate)})
	return v.k.update(z)
}

// Relatch hard-sets the state to the given altitude with zero velocity,
// bypassing filter convergence. Used on hold-reset.
func (v *Vertical) Relatch(altitude float64) {
	v.k.x.SetVec(0, altitude)
	v.k.x.SetVec(1, 0)
}

// Altitude returns the current altitude estimate in meters.
func (v *Vertical) Altitude() float64 { return v.k.x.AtVec(0) }

// Velocity returns the current vertical velocity estimate in m/s.
func (v *Vertical) Velocity() float64 { return v.k.x.AtVec(1) }
