// Package estimator holds the two linear state estimators of the flight
// core: a 2-state vertical filter fed by the rangefinder and a 4-state
// horizontal filter fed by the optical flow sensor.
package estimator

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// dtBound is the plausibility limit on elapsed time between samples.
// Startup timestamps and channel gaps can produce arbitrarily large dt; any
// |dt| at or beyond this bound zeroes the affected transition/control terms
// for that step instead of propagating an unstable prediction.
const dtBound = 3.0 // seconds

// kalman is a plain linear Kalman filter over gonum matrices.
type kalman struct {
	x *mat.VecDense // state
	P *mat.Dense    // state covariance
	F *mat.Dense    // transition
	B *mat.Dense    // control
	H *mat.Dense    // observation
	Q *mat.Dense    // process noise
	R *mat.Dense    // measurement noise
}

// predict advances state and covariance one step. A nil u skips the control
// term entirely (equivalent to zero input).
func (k *kalman) predict(u *mat.VecDense) {
	var x mat.VecDense
	x.MulVec(k.F, k.x)
	if u != nil {
		var bu mat.VecDense
		bu.MulVec(k.B, u)
		x.AddVec(&x, &bu)
	}
	k.x.CopyVec(&x)

	var fp, p mat.Dense
	fp.Mul(k.F, k.P)
	p.Mul(&fp, k.F.T())
	p.Add(&p, k.Q)
	k.P = &p
}

// update folds in one measurement vector z.
func (k *kalman) update(z *mat.VecDense) error {
	var hx, y mat.VecDense
	hx.MulVec(k.H, k.x)
	y.SubVec(z, &hx)

	var pht, s mat.Dense
	pht.Mul(k.P, k.H.T())
	s.Mul(k.H, &pht)
	s.Add(&s, k.R)

	var sInv mat.Dense
	if err := sInv.Inverse(&s); err != nil {
		return fmt.Errorf("innovation covariance not invertible: %w", err)
	}

	var gain mat.Dense
	gain.Mul(&pht, &sInv)

	var ky mat.VecDense
	ky.MulVec(&gain, &y)
	k.x.AddVec(k.x, &ky)

	n, _ := k.P.Dims()
	var kh mat.Dense
	kh.Mul(&gain, k.H)
	ikh := identity(n)
	ikh.Sub(ikh, &kh)
	var p mat.Dense
	p.Mul(ikh, k.P)
	k.P = &p
	return nil
}

func identity(n int) *mat.Dense {
	d := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		d.Set(i, i, 1)
	}
	return d
}

func diag(v ...float64) *mat.Dense {
	d := mat.NewDense(len(v), len(v), nil)
	for i, x := range v {
		d.Set(i, i, x)
	}
	return d
}
