// Package control holds the per-axis feedback controllers and the command
// saturation helper.
package control

// PID is one axis's feedback controller. The derivative term is not
// differentiated from the error signal; the caller supplies the error rate
// externally (the negated estimator velocity), which avoids amplifying
// measurement noise.
//
// Integrator and previous-error state persist for the lifetime of the
// process. They are intentionally not reset on flight-phase transitions.
type PID struct {
	Kp, Ki, Kd float64

	integral  float64
	prevError float64
}

// NewPID creates a controller with the given gains.
func NewPID(kp, ki, kd float64) *PID {
	return &PID{Kp: kp, Ki: ki, Kd: kd}
}

// Compute returns the control output for the current error. dt is the
// elapsed time in seconds used to accumulate the integrator; errRate is the
// externally supplied derivative of the error signal.
func (p *PID) Compute(err, dt, errRate float64) float64 {
	p.integral += err * dt
	p.prevError = err
	return p.Kp*err + p.Ki*p.integral + p.Kd*errRate
}
