package citizen

import (
	"math"
	"math/rand"
	"testing"

	"eunomia/internal/profile"
	"eunomia/internal/settings"
	"eunomia/internal/wave"
)

const tickDt = 1.0 / 30.0

func baselineCitizen(t *testing.T) *Citizen {
	t.Helper()
	p, err := profile.ConstructProfile(profile.BaselineProfileName)
	if err != nil {
		t.Fatalf("ConstructProfile: %v", err)
	}
	return New("citizen-1", p)
}

func defaultSettings() *settings.Settings {
	s := settings.Default()
	return &s
}

func targetBands(t *testing.T) []float64 {
	t.Helper()
	p, err := profile.ConstructProfile(profile.BaselineProfileName)
	if err != nil {
		t.Fatalf("ConstructProfile: %v", err)
	}
	return p.Targets
}

var farBands = []float64{1, 1, 0, 0, 1}

func runTicks(c *Citizen, s *settings.Settings, bands []float64, n int) {
	sample := wave.SampleOf(bands)
	for i := 0; i < n; i++ {
		c.Tick(s, &sample, tickDt)
	}
}

type eventLog struct {
	events []Event
}

func (l *eventLog) Notify(e Event) {
	l.events = append(l.events, e)
}

func (l *eventLog) count(kind EventKind) int {
	n := 0
	for _, e := range l.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func TestScenarioPerfectTrackingStabilizesAtMinimumStimulationTime(t *testing.T) {
	c := baselineCitizen(t)
	s := defaultSettings()
	log := &eventLog{}
	c.SetObserver(log)

	c.StartStimulation()
	if c.State() != StateBeingStimulated {
		t.Fatalf("state after start = %s", c.State())
	}

	sample := wave.SampleOf(targetBands(t))
	ticksToStabilize := 0
	for i := 1; i <= 120; i++ {
		c.Tick(s, &sample, tickDt)
		if c.State() == StateStabilized {
			ticksToStabilize = i
			break
		}
	}

	// 2.0s of continuous hold at 30 Hz is 60 ticks, give or take
	// floating point accumulation in the hold timer.
	if ticksToStabilize < 60 || ticksToStabilize > 61 {
		t.Fatalf("stabilized after %d ticks, want 60-61", ticksToStabilize)
	}

	snap := c.Snapshot()
	if snap.Score != 1.0 {
		t.Fatalf("smoothed score = %v, want 1.0", snap.Score)
	}
	if snap.Instability != 0 {
		t.Fatalf("instability = %v, want 0", snap.Instability)
	}
	if log.count(EventStabilized) != 1 || log.count(EventCriticalFailure) != 0 {
		t.Fatalf("events = %+v, want exactly one stabilized", log.events)
	}
	if at := log.events[0].At; at < 1.99 || at > 2.1 {
		t.Fatalf("stabilized at %.4fs, want about 2.0s", at)
	}
}

func TestScenarioMismatchedSignalEscalatesToCriticalFailure(t *testing.T) {
	c := baselineCitizen(t)
	s := defaultSettings()
	log := &eventLog{}
	c.SetObserver(log)

	c.StartStimulation()
	sample := wave.SampleOf(farBands)

	c.Tick(s, &sample, tickDt)
	if c.State() != StateAgitated {
		t.Fatalf("state after first overload tick = %s, want agitated", c.State())
	}
	if snap := c.Snapshot(); snap.Instability <= 0 {
		t.Fatalf("instability should be positive after overload tick, got %v", snap.Instability)
	}

	failed := false
	for i := 0; i < 300; i++ {
		c.Tick(s, &sample, tickDt)
		snap := c.Snapshot()
		if snap.Instability < 0 || snap.Instability > 1 {
			t.Fatalf("instability %v escaped [0,1]", snap.Instability)
		}
		if c.State() == StateCriticalFailure {
			failed = true
			break
		}
	}
	if !failed {
		t.Fatalf("citizen never reached critical failure; state=%s instability=%v", c.State(), c.Snapshot().Instability)
	}
	if c.Snapshot().Instability < s.InstabilityFailThreshold {
		t.Fatalf("failed below threshold: %v", c.Snapshot().Instability)
	}
	if log.count(EventCriticalFailure) != 1 || log.count(EventStabilized) != 0 {
		t.Fatalf("events = %+v, want exactly one critical failure", log.events)
	}
}

func TestTerminalStateFreezesAllRuntimeFields(t *testing.T) {
	c := baselineCitizen(t)
	s := defaultSettings()
	c.StartStimulation()
	sample := wave.SampleOf(farBands)
	for i := 0; i < 300 && c.State() != StateCriticalFailure; i++ {
		c.Tick(s, &sample, tickDt)
	}
	if c.State() != StateCriticalFailure {
		t.Fatalf("setup did not reach critical failure")
	}

	frozen := c.Snapshot()
	good := wave.SampleOf(targetBands(t))
	for i := 0; i < 50; i++ {
		c.Tick(s, &good, tickDt)
	}
	if c.Snapshot() != frozen {
		t.Fatalf("terminal citizen changed under ticks:\n got %+v\nwant %+v", c.Snapshot(), frozen)
	}

	// StartStimulation must not revive a terminal citizen either.
	c.StartStimulation()
	c.Tick(s, &good, tickDt)
	if c.Snapshot() != frozen {
		t.Fatalf("terminal citizen revived by StartStimulation")
	}
}

func TestResetAfterFailureReproducesCleanStabilization(t *testing.T) {
	c := baselineCitizen(t)
	s := defaultSettings()
	log := &eventLog{}
	c.SetObserver(log)

	// Drive into critical failure first.
	c.StartStimulation()
	bad := wave.SampleOf(farBands)
	for i := 0; i < 300 && c.State() != StateCriticalFailure; i++ {
		c.Tick(s, &bad, tickDt)
	}
	if c.State() != StateCriticalFailure {
		t.Fatalf("setup did not reach critical failure")
	}

	c.Reset()
	snap := c.Snapshot()
	if snap.State != StateIdle || snap.Active {
		t.Fatalf("reset state = %+v", snap)
	}
	if snap.Instability != 0 || snap.Compliance != 50 || snap.Score != 0 || snap.Ticks != 0 {
		t.Fatalf("reset runtime not re-armed: %+v", snap)
	}

	c.StartStimulation()
	good := wave.SampleOf(targetBands(t))
	stabilized := false
	for i := 0; i < 120; i++ {
		c.Tick(s, &good, tickDt)
		if c.State() == StateStabilized {
			stabilized = true
			break
		}
	}
	if !stabilized {
		t.Fatalf("post-reset run did not stabilize; state=%s", c.State())
	}
	if log.count(EventStabilized) != 1 || log.count(EventCriticalFailure) != 1 {
		t.Fatalf("events across reset = %+v", log.events)
	}
}

func TestComplianceCouplingDampsInstabilityGrowth(t *testing.T) {
	s := defaultSettings()

	rebel, err := profile.ConstructProfile(profile.BaselineProfileName)
	if err != nil {
		t.Fatalf("ConstructProfile: %v", err)
	}
	rebel.StartingCompliance = 0
	loyal := rebel.Clone()
	loyal.StartingCompliance = 100

	low := New("rebel", rebel)
	high := New("loyal", loyal)
	low.StartStimulation()
	high.StartStimulation()

	runTicks(low, s, farBands, 30)
	runTicks(high, s, farBands, 30)

	lowSnap, highSnap := low.Snapshot(), high.Snapshot()
	if lowSnap.Instability <= highSnap.Instability {
		t.Fatalf("rebellious multiplier should grow instability faster: low=%v high=%v",
			lowSnap.Instability, highSnap.Instability)
	}
	if lowSnap.Multiplier < 1.9 {
		t.Fatalf("zero-compliance multiplier = %v, want about %v", lowSnap.Multiplier, s.RebelliousMultiplier)
	}
	if highSnap.Multiplier > 0.5 {
		t.Fatalf("full-compliance multiplier = %v, want near %v", highSnap.Multiplier, s.CompliantMultiplier)
	}

	// Sustained good tracking must raise compliance and pull the
	// multiplier down toward the compliant end while instability drains.
	runTicks(low, s, targetBands(t), 150)
	final := low.Snapshot()
	if final.Multiplier > s.CompliantMultiplier+0.05 {
		t.Fatalf("multiplier after recovery = %v, want near %v", final.Multiplier, s.CompliantMultiplier)
	}
	if final.Instability != 0 {
		t.Fatalf("instability after recovery = %v, want 0", final.Instability)
	}
}

func TestStopStimulationFreezesButKeepsInstability(t *testing.T) {
	c := baselineCitizen(t)
	s := defaultSettings()
	c.StartStimulation()
	runTicks(c, s, farBands, 30)

	paused := c.Snapshot()
	if paused.Instability <= 0 {
		t.Fatalf("setup produced no instability")
	}

	c.StopStimulation()
	runTicks(c, s, targetBands(t), 50)
	afterPause := c.Snapshot()
	afterPause.Active = paused.Active // only the flag may differ
	if afterPause != paused {
		t.Fatalf("paused citizen advanced:\n got %+v\nwant %+v", c.Snapshot(), paused)
	}
	if c.Snapshot().Instability != paused.Instability {
		t.Fatalf("pause lost instability: %v != %v", c.Snapshot().Instability, paused.Instability)
	}

	// Resuming picks up exactly where the pause left off.
	c.StartStimulation()
	resumed := c.Snapshot()
	if !resumed.Active || resumed.Instability != paused.Instability || resumed.State != paused.State {
		t.Fatalf("resume disturbed state: %+v", resumed)
	}
}

func TestStartStimulationOnActiveCitizenIsNoOp(t *testing.T) {
	c := baselineCitizen(t)
	s := defaultSettings()
	c.StartStimulation()
	runTicks(c, s, targetBands(t), 10)

	before := c.Snapshot()
	c.StartStimulation()
	if c.Snapshot() != before {
		t.Fatalf("restart on active citizen changed state:\n got %+v\nwant %+v", c.Snapshot(), before)
	}
}

func TestRecoveringExpiryWithLowScoreReturnsToIdle(t *testing.T) {
	c := baselineCitizen(t)
	s := defaultSettings()
	log := &eventLog{}
	c.SetObserver(log)
	c.StartStimulation()

	// Into agitation, then hold the score mid-band so recovery expires
	// below the success threshold.
	runTicks(c, s, farBands, 5)
	if c.State() != StateAgitated {
		t.Fatalf("setup state = %s, want agitated", c.State())
	}

	mid := make([]float64, len(targetBands(t)))
	for i, v := range targetBands(t) {
		mid[i] = v + 0.075 // half a tolerance off target: similarity 0.5 per band
	}
	reachedRecovering := false
	for i := 0; i < 300; i++ {
		runTicks(c, s, mid, 1)
		if c.State() == StateRecovering {
			reachedRecovering = true
		}
		if c.State() == StateIdle {
			break
		}
	}
	if !reachedRecovering {
		t.Fatalf("never entered recovering; state=%s score=%v", c.State(), c.Snapshot().Score)
	}
	if c.State() != StateIdle {
		t.Fatalf("state after recovery expiry = %s, want idle", c.State())
	}
	if c.Snapshot().Active {
		t.Fatalf("citizen should be inactive after falling back to idle")
	}
	if len(log.events) != 0 {
		t.Fatalf("no terminal events expected, got %+v", log.events)
	}
}

func TestRecoveringExpiryWithHighScoreStabilizes(t *testing.T) {
	c := baselineCitizen(t)
	s := defaultSettings()
	log := &eventLog{}
	c.SetObserver(log)
	c.StartStimulation()

	runTicks(c, s, farBands, 5)
	if c.State() != StateAgitated {
		t.Fatalf("setup state = %s, want agitated", c.State())
	}

	stabilized := false
	for i := 0; i < 300; i++ {
		runTicks(c, s, targetBands(t), 1)
		if c.State() == StateStabilized {
			stabilized = true
			break
		}
	}
	if !stabilized {
		t.Fatalf("recovery with good signal did not stabilize; state=%s", c.State())
	}
	if log.count(EventStabilized) != 1 {
		t.Fatalf("events = %+v", log.events)
	}
}

func TestContinuousHoldTimerResetsOnDip(t *testing.T) {
	c := baselineCitizen(t)
	s := defaultSettings()
	log := &eventLog{}
	c.SetObserver(log)
	c.StartStimulation()

	// 1.5s of perfect tracking, then a short zero-signal dip that drags
	// the smoothed score below the success threshold, then recovery.
	runTicks(c, s, targetBands(t), 45)
	if c.State() != StateBeingStimulated {
		t.Fatalf("stabilized too early: %s", c.State())
	}
	runTicks(c, s, []float64{0, 0, 0, 0, 0}, 3)
	running := 48

	for c.State() == StateBeingStimulated && running < 400 {
		runTicks(c, s, targetBands(t), 1)
		running++
	}
	if c.State() != StateStabilized {
		t.Fatalf("state = %s after %d ticks", c.State(), running)
	}
	// Without the dip the citizen stabilizes around tick 60. The dip at
	// 1.5s must restart the hold, pushing stabilization past 100 ticks.
	if running <= 100 {
		t.Fatalf("stabilized after %d ticks; hold timer did not reset on dip", running)
	}
	if log.count(EventStabilized) != 1 {
		t.Fatalf("events = %+v", log.events)
	}
}

func TestTicksBeforeStartAreIgnored(t *testing.T) {
	c := baselineCitizen(t)
	s := defaultSettings()
	runTicks(c, s, targetBands(t), 10)

	snap := c.Snapshot()
	if snap.Ticks != 0 || snap.State != StateIdle || snap.Score != 0 {
		t.Fatalf("idle citizen consumed ticks: %+v", snap)
	}
}

func TestTickWithNilSettingsIsIgnored(t *testing.T) {
	c := baselineCitizen(t)
	c.StartStimulation()
	sample := wave.SampleOf(targetBands(t))
	c.Tick(nil, &sample, tickDt)
	if c.Snapshot().Ticks != 0 {
		t.Fatalf("nil settings tick was processed")
	}
}

func TestNilSampleScoresAsNoSignal(t *testing.T) {
	c := baselineCitizen(t)
	s := defaultSettings()
	c.StartStimulation()
	c.Tick(s, nil, tickDt)

	snap := c.Snapshot()
	if snap.RawScore != 0 || snap.Score != 0 {
		t.Fatalf("nil sample produced score: %+v", snap)
	}
	if snap.Ticks != 1 {
		t.Fatalf("nil sample tick should still count: %+v", snap)
	}
}

func TestResetFromEveryReachableState(t *testing.T) {
	s := defaultSettings()
	builders := map[string]func(t *testing.T) *Citizen{
		"idle": func(t *testing.T) *Citizen {
			return baselineCitizen(t)
		},
		"being_stimulated": func(t *testing.T) *Citizen {
			c := baselineCitizen(t)
			c.StartStimulation()
			runTicks(c, s, targetBands(t), 10)
			return c
		},
		"agitated": func(t *testing.T) *Citizen {
			c := baselineCitizen(t)
			c.StartStimulation()
			runTicks(c, s, farBands, 10)
			return c
		},
		"stabilized": func(t *testing.T) *Citizen {
			c := baselineCitizen(t)
			c.StartStimulation()
			runTicks(c, s, targetBands(t), 70)
			return c
		},
		"critical_failure": func(t *testing.T) *Citizen {
			c := baselineCitizen(t)
			c.StartStimulation()
			runTicks(c, s, farBands, 300)
			return c
		},
	}

	for name, build := range builders {
		c := build(t)
		if name != "idle" && c.State() != State(name) {
			t.Fatalf("builder %s produced state %s", name, c.State())
		}
		c.Reset()
		snap := c.Snapshot()
		if snap.State != StateIdle || snap.Active {
			t.Fatalf("reset from %s: state %+v", name, snap)
		}
		if snap.Instability != 0 || snap.Compliance != 50 || snap.Score != 0 || snap.RawScore != 0 {
			t.Fatalf("reset from %s left runtime state: %+v", name, snap)
		}
		if snap.Ticks != 0 || snap.Elapsed != 0 || snap.StateSeconds != 0 {
			t.Fatalf("reset from %s left clocks: %+v", name, snap)
		}
	}
}

func TestMalformedProfileIsRepairedAtConstruction(t *testing.T) {
	p := profile.Profile{
		ID:         "broken",
		Targets:    []float64{0.5},
		Tolerances: []float64{0},
		Weights:    nil,
	}
	c := New("broken-citizen", p)
	s := defaultSettings()
	c.StartStimulation()

	sample := wave.SampleOf([]float64{0.5, 0, 0, 0, 0})
	for i := 0; i < 50; i++ {
		c.Tick(s, &sample, tickDt)
		snap := c.Snapshot()
		if snap.Score < 0 || snap.Score > 1 || math.IsNaN(snap.Score) {
			t.Fatalf("score %v escaped bounds with repaired profile", snap.Score)
		}
	}

	owned := c.Profile()
	if len(owned.Targets) != wave.BandCount {
		t.Fatalf("profile not repaired at construction: %+v", owned)
	}
}

func TestRuntimeBoundsHoldUnderAdversarialFuzz(t *testing.T) {
	c := baselineCitizen(t)
	s := defaultSettings()
	rng := rand.New(rand.NewSource(1234))
	c.StartStimulation()

	for i := 0; i < 5000; i++ {
		switch rng.Intn(40) {
		case 0:
			c.StopStimulation()
		case 1:
			c.StartStimulation()
		case 2:
			c.Reset()
			c.StartStimulation()
		}

		var sample wave.Sample
		for b := range sample.Bands {
			switch rng.Intn(12) {
			case 0:
				sample.Bands[b] = math.NaN()
			case 1:
				sample.Bands[b] = math.Inf(1)
			default:
				sample.Bands[b] = rng.Float64()*4 - 2
			}
		}
		dt := rng.Float64() * 0.2
		if rng.Intn(20) == 0 {
			dt = -dt
		}
		if rng.Intn(50) == 0 {
			dt = math.NaN()
		}
		c.Tick(s, &sample, dt)

		snap := c.Snapshot()
		if snap.Instability < 0 || snap.Instability > 1 || math.IsNaN(snap.Instability) {
			t.Fatalf("iteration %d: instability %v out of bounds", i, snap.Instability)
		}
		if snap.Compliance < 0 || snap.Compliance > 100 || math.IsNaN(snap.Compliance) {
			t.Fatalf("iteration %d: compliance %v out of bounds", i, snap.Compliance)
		}
		if snap.Score < 0 || snap.Score > 1 || math.IsNaN(snap.Score) {
			t.Fatalf("iteration %d: score %v out of bounds", i, snap.Score)
		}
		if !snap.State.Valid() {
			t.Fatalf("iteration %d: invalid state %q", i, snap.State)
		}
	}
}
