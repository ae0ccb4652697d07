package estimator

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Horizontal estimates ground-plane position and velocity from optical flow.
// State is [x, y, vx, vy]; the measurement channels observe vx and vy.
type Horizontal struct {
	k        kalman
	u        *mat.VecDense // staged control input [0, 0, ax, ay]
	useAccel bool
}

// NewHorizontal returns a horizontal estimator. useAccel enables the
// IMU-acceleration control input on predict; the default configuration
// leaves it off, so the control matrices are populated every tick but the
// predict runs with zero input.
func NewHorizontal(useAccel bool) *Horizontal {
	return &Horizontal{
		k: kalman{
			x: mat.NewVecDense(4, nil),
			P: diag(0.9, 0.9, 1, 1),
			F: identity(4),
			B: identity(4),
			H: mat.NewDense(2, 4, []float64{
				0, 0, 1, 0,
				0, 0, 0, 1,
			}),
			Q: diag(0.01, 0.01, 0.01, 0.01), // 0.1^2
			R: diag(0.0001, 0.0001),         // 0.01^2
		},
		u:        mat.NewVecDense(4, nil),
		useAccel: useAccel,
	}
}

// SetMeasurementNoise inflates the flow measurement uncertainty with the
// current vertical speed: flow quality degrades while climbing or sinking.
func (h *Horizontal) SetMeasurementNoise(verticalSpeed float64) {
	r := 0.01 + math.Abs(verticalSpeed)/100
	h.k.R.Set(0, 0, r)
	h.k.R.Set(1, 1, r)
}

// Predict advances the state one step. dtFlow drives the position-velocity
// coupling, dtIMU the acceleration control entries; both obey the dtBound
// clamp. ax and ay are the truncated IMU accelerations in m/s^2, staged into
// the control vector but only applied when acceleration control is enabled.
func (h *Horizontal) Predict(dtFlow, dtIMU, ax, ay float64) {
	cf := dtFlow
	if math.Abs(dtFlow) >= dtBound {
		cf = 0
	}
	ci := dtIMU
	if math.Abs(dtIMU) >= dtBound {
		ci = 0
	}
	h.k.F.Set(0, 2, cf)
	h.k.F.Set(1, 3, cf)
	h.k.B.Set(2, 2, ci)
	h.k.B.Set(3, 3, ci)
	h.u.SetVec(2, ax)
	h.u.SetVec(3, ay)

	if h.useAccel {
		h.k.predict(h.u)
	} else {
		h.k.predict(nil)
	}
}

// UpdateFlow folds in one optical displacement, scaled by negative current
// altitude to project it onto the ground plane. The flow sensor's x axis
// feeds the estimator's y measurement channel and vice versa; the swap
// matches the sensor mounting and must be preserved.
func (h *Horizontal) UpdateFlow(dx, dy, altitude float64) error {
	zx, zy := flowMeasurement(dx, dy, altitude)
	return h.k.update(mat.NewVecDense(2, []float64{zx, zy}))
}

func flowMeasurement(dx, dy, altitude float64) (zx, zy float64) {
	return dy * -altitude, dx * -altitude
}

// X returns the position estimate along the pitch axis.
func (h *Horizontal) X() float64 { return h.k.x.AtVec(0) }

// Y returns the position estimate along the roll axis.
func (h *Horizontal) Y() float64 { return h.k.x.AtVec(1) }

// VX returns the velocity estimate along the pitch axis.
func (h *Horizontal) VX() float64 { return h.k.x.AtVec(2) }

// VY returns the velocity estimate along the roll axis.
func (h *Horizontal) VY() float64 { return h.k.x.AtVec(3) }
