// Package session runs a single citizen against a waveform source in a
// fixed-step tick loop until a terminal state, the duration cap, or a
// stop request ends it.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"eunomia/internal/citizen"
	"eunomia/internal/model"
	"eunomia/internal/profile"
	"eunomia/internal/settings"
	"eunomia/internal/wave"
)

const (
	OutcomeStabilized      = "stabilized"
	OutcomeCriticalFailure = "critical_failure"
	OutcomeTimeout         = "timeout"
	OutcomeStopped         = "stopped"
	OutcomeCanceled        = "canceled"
)

const (
	DefaultMaxDurationSeconds = 60.0
	DefaultRecordEvery        = 5
)

type Config struct {
	SessionID string
	CitizenID string

	Profile profile.Profile
	Source  wave.Source

	// Settings is the tick-loop snapshot; nil means defaults. When
	// Holder is set it wins, and a Swap becomes visible at the next
	// tick boundary.
	Settings *settings.Settings
	Holder   *settings.Holder

	MaxDurationSeconds float64
	RecordEvery        int
	Realtime           bool

	// Stop ends the session cooperatively with OutcomeStopped. The
	// runner never closes it.
	Stop <-chan struct{}
}

type Result struct {
	SessionID string
	CitizenID string
	Outcome   string

	Final    citizen.Snapshot
	Events   []model.EventRecord
	Timeline []model.TimelinePoint

	Ticks          int
	ElapsedSeconds float64
	StartedAt      time.Time
	FinishedAt     time.Time
}

// Run drives one fresh citizen to completion. The context cancels the
// loop between ticks, never mid-tick.
func Run(ctx context.Context, cfg Config) (Result, error) {
	if cfg.Source == nil {
		return Result{}, errors.New("session source is required")
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	if cfg.CitizenID == "" {
		cfg.CitizenID = uuid.NewString()
	}
	if cfg.MaxDurationSeconds <= 0 {
		cfg.MaxDurationSeconds = DefaultMaxDurationSeconds
	}
	if cfg.RecordEvery <= 0 {
		cfg.RecordEvery = DefaultRecordEvery
	}

	local := settings.Default()
	if cfg.Settings != nil {
		local = *cfg.Settings
		local.Normalize()
	}
	current := &local
	if cfg.Holder != nil {
		current = cfg.Holder.Load()
	}

	c := citizen.New(cfg.CitizenID, cfg.Profile)
	recorder := NewRecorder(cfg.RecordEvery)
	c.SetObserver(recorder)
	c.StartStimulation()

	var pace *pacer
	if cfg.Realtime {
		pace = newPacer(current.SampleRateHz)
	}

	result := Result{
		SessionID: cfg.SessionID,
		CitizenID: cfg.CitizenID,
		StartedAt: time.Now().UTC(),
	}

	simTime := 0.0
	outcome := ""
	for {
		if err := ctx.Err(); err != nil {
			outcome = OutcomeCanceled
			break
		}
		if stopped(cfg.Stop) {
			outcome = OutcomeStopped
			break
		}
		if simTime >= cfg.MaxDurationSeconds {
			outcome = OutcomeTimeout
			break
		}

		if cfg.Holder != nil {
			current = cfg.Holder.Load()
		}
		dt := 1.0 / current.SampleRateHz

		if pace != nil {
			if err := pace.wait(ctx, current.SampleRateHz); err != nil {
				outcome = OutcomeCanceled
				break
			}
		}

		sample := cfg.Source.At(simTime)
		c.Tick(current, &sample, dt)
		simTime += dt

		snap := c.Snapshot()
		recorder.Observe(snap)

		if snap.State.Terminal() {
			if snap.State == citizen.StateCriticalFailure {
				outcome = OutcomeCriticalFailure
			} else {
				outcome = OutcomeStabilized
			}
			break
		}
		if !snap.Active {
			// The citizen fell back to idle without a terminal verdict.
			outcome = OutcomeStopped
			break
		}
	}

	final := c.Snapshot()
	recorder.Flush(final)

	result.Outcome = outcome
	result.Final = final
	result.Events = recorder.Events()
	result.Timeline = recorder.Timeline()
	result.Ticks = final.Ticks
	result.ElapsedSeconds = final.Elapsed
	result.FinishedAt = time.Now().UTC()
	return result, nil
}

func stopped(stop <-chan struct{}) bool {
	if stop == nil {
		return false
	}
	select {
	case <-stop:
		return true
	default:
		return false
	}
}
