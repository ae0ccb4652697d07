// Package loop implements the fixed-period estimation-and-control loop: it
// fuses the inbound sensor mailboxes into altitude and position estimates,
// runs the three-axis controller bank gated by the flight phase, and
// publishes bounded actuator commands under a one-pending-command rule.
//
// A single goroutine owns every piece of estimator, controller and phase
// state; all outside interaction goes through latest-wins mailboxes.
package loop

import (
	"fmt"
	"log"
	"math"
	"time"

	"github.com/relabs-tech/flight_computer/internal/command"
	"github.com/relabs-tech/flight_computer/internal/config"
	"github.com/relabs-tech/flight_computer/internal/control"
	"github.com/relabs-tech/flight_computer/internal/estimator"
	"github.com/relabs-tech/flight_computer/internal/flow"
	"github.com/relabs-tech/flight_computer/internal/imu"
	"github.com/relabs-tech/flight_computer/internal/mailbox"
	"github.com/relabs-tech/flight_computer/internal/phase"
	"github.com/relabs-tech/flight_computer/internal/rangefinder"
)

const gravity = 9.81

// Telemetry is the per-tick state snapshot exported for the console, web and
// display consumers. Latest-wins; a slow consumer just sees fewer snapshots.
type Telemetry struct {
	Phase     string          `json:"phase"`
	Altitude  float64         `json:"altitude"`
	Velocity  float64         `json:"velocity"`
	X         float64         `json:"x"`
	Y         float64         `json:"y"`
	BatteryV  float64         `json:"battery_v"`
	Command   command.Command `json:"command"`
	Published bool            `json:"published"`
}

// Mailboxes are the loop's endpoints to its sibling processes.
type Mailboxes struct {
	IMU   *mailbox.Box[imu.Sample]
	Range *mailbox.Box[rangefinder.Sample]
	Flow  *mailbox.Box[flow.Sample]
	Mode  *mailbox.Box[bool]

	Command      *mailbox.Box[command.Command]
	RangeRequest *mailbox.Box[struct{}]
	FlowRequest  *mailbox.Box[struct{}]
	Telemetry    *mailbox.Box[Telemetry]
}

// NewMailboxes allocates every endpoint.
func NewMailboxes() *Mailboxes {
	return &Mailboxes{
		IMU:          &mailbox.Box[imu.Sample]{},
		Range:        &mailbox.Box[rangefinder.Sample]{},
		Flow:         &mailbox.Box[flow.Sample]{},
		Mode:         &mailbox.Box[bool]{},
		Command:      &mailbox.Box[command.Command]{},
		RangeRequest: &mailbox.Box[struct{}]{},
		FlowRequest:  &mailbox.Box[struct{}]{},
		Telemetry:    &mailbox.Box[Telemetry]{},
	}
}

// Loop owns the full estimate-to-control pipeline.
type Loop struct {
	cfg config.Config
	mb  *Mailboxes

	vertical   *estimator.Vertical
	horizontal *estimator.Horizontal

	throttle *control.PID
	roll     *control.PID
	pitch    *control.PID

	profile *phase.Profile
	phase   phase.Phase

	// Latest cached inputs; mailboxes that held nothing this tick leave
	// these untouched.
	imu       imu.Sample
	haveIMU   bool
	rawRange  float64
	haveRange bool

	lastRangeTime float64 // sample timestamps, Unix seconds
	lastFlowTime  float64

	holdRequested bool

	// Vertical reference; armed by the first hold-reset latch, re-targeted
	// when the takeoff ramp completes.
	refAltitude float64
	haveRef     bool
	refX, refY  float64

	// Altitude/velocity read once per tick after predict.
	altitude float64
	velocity float64

	prevCorrected float64 // feeds the climb-rate measurement
	lastCorrected float64

	hoverThrust float64 // voltage-compensated thrust constant, Takeoff only
	feedForward float64 // frozen hover feed-forward after Takeoff
}

// New builds a loop around the given immutable configuration and endpoints.
func New(cfg config.Config, mb *Mailboxes) *Loop {
	return &Loop{
		cfg:        cfg,
		mb:         mb,
		vertical:   estimator.NewVertical(),
		horizontal: estimator.NewHorizontal(cfg.HorizontalAccelControl),
		throttle:   control.NewPID(cfg.ThrottleKP, cfg.ThrottleKI, cfg.ThrottleKD),
		roll:       control.NewPID(cfg.RollKP, cfg.RollKI, cfg.RollKD),
		pitch:      control.NewPID(cfg.PitchKP, cfg.PitchKI, cfg.PitchKD),
		profile:    phase.NewProfile(cfg.TakeoffRampSteps),
		phase:      phase.Takeoff,

		hoverThrust: cfg.TakeoffThrust,
	}
}

// Phase returns the current flight phase.
func (l *Loop) Phase() phase.Phase { return l.phase }

// Run drives the loop at the configured period until the process is killed.
// A fault inside one tick is logged and the next tick proceeds; the loop
// never halts on its own.
func (l *Loop) Run() {
	period := time.Duration(l.cfg.LoopPeriodMS) * time.Millisecond
	log.Printf("loop: starting, period %v", period)
	for {
		if err := l.safeTick(time.Now()); err != nil {
			log.Printf("loop: tick failed in phase %s: %v (continuing)", l.phase, err)
		}
		// Soft period: processing time is not deducted from the sleep.
		time.Sleep(period)
	}
}

func (l *Loop) safeTick(now time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panic: %v", r)
		}
	}()
	l.Tick(now)
	return nil
}

// Tick runs one full cycle: poll inputs, estimate, control, publish. It is
// exported so tests can drive the loop with synthetic clocks.
func (l *Loop) Tick(now time.Time) {
	// A hold-reset consumes its whole tick; resume Hold on the next one.
	if l.phase == phase.HoldReset {
		l.phase = phase.Hold
	}

	cmd := command.Command{Throttle: l.cfg.ThrottleTrim}
	valueAvailable := false

	// Pace the triggered producers.
	l.mb.RangeRequest.Put(struct{}{})
	l.mb.FlowRequest.Put(struct{}{})

	nowSec := float64(now.UnixNano()) / 1e9

	// At most one mode signal is honored per tick. True arms/re-latches
	// position hold, false starts the open-loop descent.
	if hold, ok := l.mb.Mode.Take(); ok {
		if hold {
			l.holdRequested = true
		} else {
			l.phase = phase.Landing
			l.haveRef = false
			log.Println("loop: hold released, entering LANDING")
		}
	}

	// Latest IMU sample; the thrust constant follows battery voltage only
	// while still ramping.
	if s, ok := l.mb.IMU.Take(); ok {
		l.imu = s
		l.haveIMU = true
		if l.phase == phase.Takeoff && s.BatteryVoltage > 0 {
			l.hoverThrust = l.cfg.ThrustIntercept - l.cfg.ThrustSlope*s.BatteryVoltage
		}
	}

	// Hold-reset: hard-latch the current raw reading as the new vertical
	// reference and the current position estimate as the new origin. The
	// re-latch bypasses filter convergence and ends the tick unpublished.
	if l.holdRequested && l.haveRange {
		l.holdRequested = false
		l.refAltitude = l.rawRange
		l.haveRef = true
		l.prevCorrected = l.rawRange
		l.lastCorrected = l.rawRange
		l.vertical.Relatch(l.rawRange)
		l.refX = l.horizontal.X()
		l.refY = l.horizontal.Y()
		if l.phase != phase.Takeoff {
			l.phase = phase.HoldReset
		}
		l.altitude = l.vertical.Altitude()
		l.velocity = 0
		log.Printf("loop: hold reset, reference altitude %.2f m", l.refAltitude)
		l.publishTelemetry(cmd, false)
		return
	}

	// Vertical movement control. dt spans back to the previous range
	// sample; the estimator zeroes its coupling when it is implausible.
	var dt float64
	if l.haveRef {
		dt = nowSec - l.lastRangeTime
		// Control input is vertical acceleration; always zero in the
		// default wiring.
		l.vertical.Predict(dt, 0)
		l.altitude = l.vertical.Altitude()
		l.velocity = l.vertical.Velocity()

		if l.phase == phase.Takeoff {
			if fraction, ok := l.profile.Next(); ok {
				// Ramp thrust open-loop, bypassing the throttle
				// controller entirely.
				cmd.Throttle = fraction * l.hoverThrust
				l.feedForward = cmd.Throttle
				valueAvailable = true
			} else {
				l.refAltitude = l.cfg.TakeoffAltitude
				l.velocity = 0
				l.phase = phase.Hold
				log.Printf("loop: takeoff complete, holding %.2f m", l.refAltitude)
			}
		}

		if l.phase == phase.Hold {
			errAltitude := l.refAltitude - l.altitude
			next := l.throttle.Compute(errAltitude, dt, -l.velocity)
			cmd.Throttle = control.Clamp(next, l.cfg.AbsMaxThrottle)
			// Hover feed-forward, boosted for thrust lost to tilt.
			cmd.Throttle += l.feedForward / (cosDeg(l.imu.Attitude.Roll) * cosDeg(l.imu.Attitude.Pitch))
			valueAvailable = true
			l.prevCorrected = l.lastCorrected
		}
	}

	// Open-loop descent until externally disarmed.
	if l.phase == phase.Landing {
		cmd.Throttle = l.feedForward - l.cfg.DescentDecrement
	}

	// Fold in a new range reading. Before the reference is armed the raw
	// value is only cached for the first latch.
	if s, ok := l.mb.Range.Take(); ok {
		if !l.haveRef {
			l.rawRange = s.Distance
			l.lastRangeTime = s.Timestamp
			l.haveRange = true
		} else {
			corrected := rangefinder.TiltCompensate(s.Distance,
				l.imu.Attitude.Roll, l.imu.Attitude.Pitch,
				l.cfg.RangeLeverArm, l.cfg.RangeMountAngle)
			climb := 0.0
			if dt != 0 {
				climb = (corrected - l.prevCorrected) / dt
			}
			if err := l.vertical.Update(corrected, climb); err != nil {
				log.Printf("loop: vertical update: %v", err)
			}
			l.lastCorrected = corrected
			l.rawRange = s.Distance
			l.lastRangeTime = s.Timestamp
			l.haveRange = true
		}
	}

	// Horizontal position control runs in every phase but Takeoff.
	if l.phase != phase.Takeoff {
		dtFlow := nowSec - l.lastFlowTime
		dtIMU := nowSec - l.imu.Timestamp

		// Flow quality degrades with vertical speed.
		l.horizontal.SetMeasurementNoise(l.velocity)

		ax := estimator.Truncate2(gravity * l.imu.Accel[0] * cosDeg(l.imu.Attitude.Pitch))
		ay := estimator.Truncate2(gravity * l.imu.Accel[1] * cosDeg(l.imu.Attitude.Roll))

		if fs, ok := l.mb.Flow.Take(); ok {
			l.lastFlowTime = fs.Timestamp
			if math.Abs(l.velocity) <= l.cfg.FlowSpeedIgnore {
				if err := l.horizontal.UpdateFlow(fs.Dx, fs.Dy, l.altitude); err != nil {
					log.Printf("loop: horizontal update: %v", err)
				}
			}
		}

		l.horizontal.Predict(dtFlow, dtIMU, ax, ay)

		errRoll := estimator.Truncate2(l.refY-l.horizontal.Y()) / l.cfg.RollErrorDivisor
		errPitch := estimator.Truncate2(l.refX-l.horizontal.X()) / l.cfg.PitchErrorDivisor
		velRoll := estimator.Truncate2(l.horizontal.VY())
		velPitch := estimator.Truncate2(l.horizontal.VX())

		period := float64(l.cfg.LoopPeriodMS) / 1000.0
		cmd.Roll = control.Clamp(l.roll.Compute(errRoll, period, -velRoll), l.cfg.AbsMaxRoll)
		cmd.Pitch = control.Clamp(l.pitch.Compute(errPitch, period, -velPitch), l.cfg.AbsMaxPitch)
		valueAvailable = true

		log.Printf("loop: %s alt=%.2f vz=%.2f errR=%.2f errP=%.2f dtOF=%.2f dtIMU=%.2f cmd=[%.1f %.1f %.1f]",
			l.phase, l.altitude, l.velocity, errRoll, errPitch, dtFlow, dtIMU,
			cmd.Throttle, cmd.Roll, cmd.Pitch)
	}

	// Publish under the one-pending-command rule: if the consumer has not
	// drained the previous command, this one is dropped; a fresher one
	// follows next tick. Every emitted field honors its absolute limit.
	published := false
	if valueAvailable && !l.mb.Command.Pending() {
		cmd.Throttle = control.Clamp(cmd.Throttle, l.cfg.AbsMaxThrottle)
		cmd.Roll = control.Clamp(cmd.Roll, l.cfg.AbsMaxRoll)
		cmd.Pitch = control.Clamp(cmd.Pitch, l.cfg.AbsMaxPitch)
		l.mb.Command.Put(cmd)
		published = true
	}

	l.publishTelemetry(cmd, published)
}

// publishTelemetry exports the per-tick state snapshot; every tick emits
// exactly one, including the relatch tick that publishes no command.
func (l *Loop) publishTelemetry(cmd command.Command, published bool) {
	l.mb.Telemetry.Put(Telemetry{
		Phase:     l.phase.String(),
		Altitude:  l.altitude,
		Velocity:  l.velocity,
		X:         l.horizontal.X(),
		Y:         l.horizontal.Y(),
		BatteryV:  l.imu.BatteryVoltage,
		Command:   cmd,
		Published: published,
	})
}

func cosDeg(deg float64) float64 {
	return math.Cos(deg * math.Pi / 180.0)
}
