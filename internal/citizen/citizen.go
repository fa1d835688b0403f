// Package citizen runs the per-tick stimulation pipeline for a single
// simulated citizen: evaluate the incoming sample against the profile,
// smooth the score, advance the compliance and instability loops, and
// step the life-cycle state machine. One Citizen is owned by exactly
// one tick loop; none of its methods are safe for concurrent use.
package citizen

import (
	"eunomia/internal/dynamics"
	"eunomia/internal/eval"
	"eunomia/internal/profile"
	"eunomia/internal/settings"
	"eunomia/internal/wave"
)

type Citizen struct {
	id      string
	profile profile.Profile

	state  State
	active bool

	raw         float64
	smoother    eval.Smoother
	instability float64
	compliance  float64
	multiplier  float64

	// stateTimer carries the per-state clock: the continuous success
	// hold while being stimulated, elapsed recovery time while
	// recovering. It resets on every transition and on any hold break.
	stateTimer float64

	ticks int
	clock float64

	observer Observer
}

// Snapshot is the read-only view handed to the presentation layer.
type Snapshot struct {
	ID           string
	State        State
	Active       bool
	RawScore     float64
	Score        float64
	Instability  float64
	Compliance   float64
	Multiplier   float64
	StateSeconds float64
	Ticks        int
	Elapsed      float64
}

// New builds a citizen around a normalized copy of the profile. The
// original profile is not retained, so later caller mutations cannot
// leak into a running citizen.
func New(id string, p profile.Profile) *Citizen {
	owned := p.Clone()
	owned.Normalize()
	return &Citizen{
		id:         id,
		profile:    owned,
		state:      StateIdle,
		compliance: owned.StartingCompliance,
	}
}

func (c *Citizen) ID() string {
	return c.id
}

func (c *Citizen) Profile() profile.Profile {
	return c.profile.Clone()
}

func (c *Citizen) State() State {
	return c.state
}

func (c *Citizen) SetObserver(o Observer) {
	c.observer = o
}

// StartStimulation begins or resumes monitoring. Starting an active or
// terminal citizen is a no-op; starting from Idle re-arms the runtime
// state (score 0, instability 0, compliance at the profile's starting
// value); starting a paused citizen resumes with its accumulated state
// untouched.
func (c *Citizen) StartStimulation() {
	if c.active || c.state.Terminal() {
		return
	}
	if c.state == StateIdle {
		c.rearm()
		c.state = StateBeingStimulated
	}
	c.active = true
}

// StopStimulation freezes the pipeline: ticks are ignored until the
// next StartStimulation. Accumulated instability is deliberately kept
// so that pausing and resuming preserves the citizen's state exactly.
func (c *Citizen) StopStimulation() {
	c.active = false
}

// Reset returns the citizen to Idle from any state, including the
// terminal ones, and re-arms the runtime state.
func (c *Citizen) Reset() {
	c.rearm()
	c.state = StateIdle
	c.active = false
}

func (c *Citizen) rearm() {
	c.raw = 0
	c.smoother.Reset()
	c.instability = 0
	c.compliance = c.profile.StartingCompliance
	c.multiplier = 0
	c.stateTimer = 0
	c.ticks = 0
	c.clock = 0
}

// Tick advances the citizen by one sample. The settings snapshot must
// stay constant for the duration of the call; loading it fresh from a
// settings.Holder each tick is the supported way to retune live.
// Inactive, idle, and terminal citizens ignore ticks entirely.
func (c *Citizen) Tick(s *settings.Settings, sample *wave.Sample, dt float64) {
	if s == nil || !c.active || c.state == StateIdle || c.state.Terminal() {
		return
	}
	if !wave.Finite(dt) || dt < 0 {
		dt = 0
	}

	c.ticks++
	c.clock += dt

	c.raw = eval.Score(sample, &c.profile)
	score := c.smoother.Update(c.raw, dt, s.SmoothingTauSeconds)

	// Compliance moves first so the multiplier it yields feeds this
	// tick's instability update, not last tick's.
	c.compliance = dynamics.AdvanceCompliance(c.compliance, score, dt, s)
	c.multiplier = dynamics.InstabilityMultiplier(c.compliance, s)
	c.instability = dynamics.AdvanceInstability(c.instability, score, dt, c.profile.InstabilityRate, c.multiplier, s)

	c.advanceState(s, score, dt)
}

func (c *Citizen) advanceState(s *settings.Settings, score, dt float64) {
	switch c.state {
	case StateBeingStimulated:
		if score <= s.OverloadThreshold && c.instability > 0 {
			c.transition(StateAgitated)
			return
		}
		if score >= s.SuccessThreshold {
			c.stateTimer += dt
			if c.stateTimer >= c.profile.MinStimulationSeconds {
				c.transition(StateStabilized)
			}
		} else {
			// Continuous-hold semantics: any dip below the success
			// threshold restarts the stabilization clock.
			c.stateTimer = 0
		}
	case StateAgitated:
		if c.instability >= s.InstabilityFailThreshold {
			c.transition(StateCriticalFailure)
			return
		}
		if score > s.OverloadThreshold {
			c.transition(StateRecovering)
		}
	case StateRecovering:
		c.stateTimer += dt
		if c.stateTimer >= c.profile.RecoverySeconds {
			if score >= s.SuccessThreshold {
				c.transition(StateStabilized)
			} else {
				// Another chance rather than outright failure: back to
				// Idle, awaiting a fresh StartStimulation.
				c.transition(StateIdle)
				c.active = false
			}
		}
	}
}

func (c *Citizen) transition(next State) {
	c.state = next
	c.stateTimer = 0
	switch next {
	case StateStabilized:
		c.emit(EventStabilized)
	case StateCriticalFailure:
		c.emit(EventCriticalFailure)
	}
}

func (c *Citizen) emit(kind EventKind) {
	if c.observer == nil {
		return
	}
	c.observer.Notify(Event{
		CitizenID: c.id,
		Kind:      kind,
		Tick:      c.ticks,
		At:        c.clock,
	})
}

func (c *Citizen) Snapshot() Snapshot {
	return Snapshot{
		ID:           c.id,
		State:        c.state,
		Active:       c.active,
		RawScore:     c.raw,
		Score:        c.smoother.Value(),
		Instability:  c.instability,
		Compliance:   c.compliance,
		Multiplier:   c.multiplier,
		StateSeconds: c.stateTimer,
		Ticks:        c.ticks,
		Elapsed:      c.clock,
	}
}
