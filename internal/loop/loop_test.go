package loop

import (
	"math"
	"testing"
	"time"

	"github.com/relabs-tech/flight_computer/internal/config"
	"github.com/relabs-tech/flight_computer/internal/flow"
	"github.com/relabs-tech/flight_computer/internal/phase"
	"github.com/relabs-tech/flight_computer/internal/rangefinder"
)

// testConfig uses a small thrust constant so the hover feed-forward stays
// inside the throttle limit on the bench.
func testConfig() config.Config {
	cfg := config.Default()
	cfg.TakeoffThrust = 100
	return cfg
}

type harness struct {
	l   *Loop
	mb  *Mailboxes
	now time.Time
}

func newHarness(cfg config.Config) *harness {
	mb := NewMailboxes()
	return &harness{
		l:   New(cfg, mb),
		mb:  mb,
		now: time.Unix(1_000_000, 0),
	}
}

// tick advances the synthetic clock one period and runs the loop once.
func (h *harness) tick() {
	h.now = h.now.Add(10 * time.Millisecond)
	h.l.Tick(h.now)
}

func (h *harness) nowSec() float64 {
	return float64(h.now.UnixNano()) / 1e9
}

// putRange injects a raw range reading stamped with the harness clock.
func (h *harness) putRange(distance float64) {
	h.mb.Range.Put(rangefinder.Sample{Distance: distance, Timestamp: h.nowSec()})
}

// arm walks the loop to an armed takeoff: one cached range reading, then the
// position-hold latch.
func (h *harness) arm(t *testing.T, groundRange float64) {
	t.Helper()
	h.putRange(groundRange)
	h.tick()
	h.mb.Mode.Put(true)
	h.tick()
	if !h.l.haveRef {
		t.Fatal("arm: vertical reference not latched")
	}
}

func TestTakeoffMonotonicAndSingleHoldTransition(t *testing.T) {
	cfg := testConfig()
	h := newHarness(cfg)
	h.arm(t, 0.05)

	var throttles []float64
	transitions := 0
	prevPhase := h.l.Phase()

	for i := 0; i < cfg.TakeoffRampSteps+5; i++ {
		h.putRange(0.05)
		h.tick()
		if p := h.l.Phase(); p != prevPhase {
			if prevPhase == phase.Takeoff && p == phase.Hold {
				transitions++
			} else {
				t.Fatalf("unexpected phase change %s -> %s", prevPhase, p)
			}
			prevPhase = p
		}
		if prevPhase == phase.Takeoff {
			cmd, ok := h.mb.Command.Take()
			if !ok {
				t.Fatalf("tick %d: no command published during takeoff", i)
			}
			throttles = append(throttles, cmd.Throttle)
		} else {
			h.mb.Command.Take()
		}
	}

	if transitions != 1 {
		t.Fatalf("saw %d TAKEOFF->HOLD transitions, want exactly 1", transitions)
	}
	if len(throttles) != cfg.TakeoffRampSteps {
		t.Fatalf("got %d ramp commands, want %d", len(throttles), cfg.TakeoffRampSteps)
	}
	for i := 1; i < len(throttles); i++ {
		if throttles[i] < throttles[i-1] {
			t.Fatalf("ramp throttle decreased at step %d: %v -> %v", i, throttles[i-1], throttles[i])
		}
	}
	if throttles[0] != 0 {
		t.Fatalf("first ramp throttle = %v, want 0", throttles[0])
	}
}

func TestBackpressureDropsNotOverwrites(t *testing.T) {
	cfg := testConfig()
	h := newHarness(cfg)
	h.arm(t, 0.05)

	// Never drain the outbound mailbox.
	for i := 0; i < 50; i++ {
		h.putRange(0.05)
		h.tick()
	}

	// The first ramp command (fraction 0 of the profile) must still be the
	// one pending: later commands were dropped, not queued or overwritten.
	cmd, ok := h.mb.Command.Take()
	if !ok {
		t.Fatal("no command pending")
	}
	if cmd.Throttle != 0 {
		t.Fatalf("pending throttle = %v, want the first ramp value 0", cmd.Throttle)
	}
	if h.mb.Command.Pending() {
		t.Fatal("more than one command was pending")
	}
}

// completeTakeoff drains commands through the whole ramp into HOLD.
func (h *harness) completeTakeoff(t *testing.T) {
	t.Helper()
	for i := 0; i < 100 && h.l.Phase() != phase.Hold; i++ {
		h.putRange(0.05)
		h.tick()
		h.mb.Command.Take()
	}
	if h.l.Phase() != phase.Hold {
		t.Fatal("loop never reached HOLD")
	}
}

func TestHoldRespondsToAltitudeError(t *testing.T) {
	cfg := testConfig()
	h := newHarness(cfg)
	h.arm(t, 0.05)
	h.completeTakeoff(t)

	feedForward := h.l.feedForward
	if feedForward <= 0 {
		t.Fatalf("hover feed-forward = %v, want positive", feedForward)
	}

	// Persistent reading 0.10 m below the 1.0 m reference. The raw value
	// compensates for the mounting offset so the corrected altitude is 0.90.
	raw := 0.90 + cfg.RangeLeverArm*math.Sin(cfg.RangeMountAngle)

	var last float64
	for i := 0; i < 300; i++ {
		h.putRange(raw)
		h.tick()
		if cmd, ok := h.mb.Command.Take(); ok {
			last = cmd.Throttle
		}
	}

	if got := h.l.vertical.Altitude(); math.Abs(got-0.90) > 0.05 {
		t.Fatalf("altitude estimate = %v, want near 0.90", got)
	}
	if last <= feedForward {
		t.Fatalf("throttle %v not above hover feed-forward %v despite altitude deficit", last, feedForward)
	}
	if math.Abs(last) > cfg.AbsMaxThrottle {
		t.Fatalf("published throttle %v outside [-%v, %v]", last, cfg.AbsMaxThrottle, cfg.AbsMaxThrottle)
	}
}

func TestHoldResetRelatchesReference(t *testing.T) {
	cfg := testConfig()
	h := newHarness(cfg)
	h.arm(t, 0.05)
	h.completeTakeoff(t)

	if h.l.refAltitude != cfg.TakeoffAltitude {
		t.Fatalf("reference after takeoff = %v, want %v", h.l.refAltitude, cfg.TakeoffAltitude)
	}

	h.putRange(1.23)
	h.tick()
	h.mb.Command.Take()

	h.mb.Mode.Put(true)
	h.tick()

	if h.l.Phase() != phase.HoldReset {
		t.Fatalf("phase after re-latch = %s, want HOLD_RESET", h.l.Phase())
	}
	if h.l.refAltitude != 1.23 {
		t.Fatalf("re-latched reference = %v, want 1.23", h.l.refAltitude)
	}
	if got := h.l.vertical.Altitude(); got != 1.23 {
		t.Fatalf("estimator altitude after re-latch = %v, want hard-set 1.23", got)
	}
	if h.mb.Command.Pending() {
		t.Fatal("re-latch tick published a command")
	}

	// The re-latch tick still exports its telemetry snapshot.
	snap, ok := h.mb.Telemetry.Take()
	if !ok {
		t.Fatal("no telemetry on the re-latch tick")
	}
	if snap.Phase != "HOLD_RESET" {
		t.Fatalf("re-latch telemetry phase = %q, want HOLD_RESET", snap.Phase)
	}
	if snap.Published {
		t.Fatal("re-latch telemetry claims a command was published")
	}
	if snap.Altitude != 1.23 {
		t.Fatalf("re-latch telemetry altitude = %v, want 1.23", snap.Altitude)
	}

	h.tick()
	if h.l.Phase() != phase.Hold {
		t.Fatalf("phase one tick after re-latch = %s, want HOLD", h.l.Phase())
	}
}

func TestLandingThrottleIsOpenLoop(t *testing.T) {
	cfg := testConfig()
	h := newHarness(cfg)
	h.arm(t, 0.05)
	h.completeTakeoff(t)
	feedForward := h.l.feedForward

	h.mb.Mode.Put(false)
	h.tick()

	if h.l.Phase() != phase.Landing {
		t.Fatalf("phase = %s, want LANDING", h.l.Phase())
	}
	cmd, ok := h.mb.Command.Take()
	if !ok {
		t.Fatal("no command published while landing")
	}
	want := feedForward - cfg.DescentDecrement
	if cmd.Throttle != want {
		t.Fatalf("landing throttle = %v, want %v", cmd.Throttle, want)
	}
}

func TestFlowIgnoredAboveVerticalSpeedThreshold(t *testing.T) {
	cfg := testConfig()
	h := newHarness(cfg)
	h.l.phase = phase.Landing // horizontal block active, vertical idle
	h.l.velocity = cfg.FlowSpeedIgnore + 0.1

	h.mb.Flow.Put(flow.Sample{Dx: 5, Dy: 5, Timestamp: h.nowSec()})
	h.tick()

	if vy := h.l.horizontal.VY(); vy != 0 {
		t.Fatalf("flow update applied despite vertical speed: vy = %v", vy)
	}
}

func TestTelemetryPublishedEachTick(t *testing.T) {
	cfg := testConfig()
	h := newHarness(cfg)
	h.tick()

	snap, ok := h.mb.Telemetry.Take()
	if !ok {
		t.Fatal("no telemetry after tick")
	}
	if snap.Phase != "TAKEOFF" {
		t.Fatalf("telemetry phase = %q, want TAKEOFF", snap.Phase)
	}
}

func TestPacingTokensEveryTick(t *testing.T) {
	cfg := testConfig()
	h := newHarness(cfg)
	h.tick()

	if !h.mb.RangeRequest.Pending() || !h.mb.FlowRequest.Pending() {
		t.Fatal("pacing tokens not sent")
	}
}
