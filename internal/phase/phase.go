// Package phase models the flight-phase state machine and the takeoff
// thrust ramp.
package phase

// Phase is the current control regime. Only the control loop mutates it.
type Phase int

const (
	// Takeoff ramps thrust open-loop from the precomputed profile.
	Takeoff Phase = iota
	// Hold runs the full estimate-to-control pipeline.
	Hold
	// HoldReset is the momentary re-latch of references; back to Hold next tick.
	HoldReset
	// Landing descends open-loop until externally disarmed.
	Landing
)

func (p Phase) String() string {
	switch p {
	case Takeoff:
		return "TAKEOFF"
	case Hold:
		return "HOLD"
	case HoldReset:
		return "HOLD_RESET"
	case Landing:
		return "LANDING"
	}
	return "UNKNOWN"
}
