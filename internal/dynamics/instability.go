package dynamics

import (
	"eunomia/internal/settings"
	"eunomia/internal/wave"
)

// AdvanceInstability accumulates instability while the smoothed score
// sits in overload, drains it at the flat recovery rate while the score
// holds at success, and leaves it untouched in the dead zone between
// the thresholds. The result is clamped to [0,1] every tick.
func AdvanceInstability(current, score, dt, baseRate, multiplier float64, s *settings.Settings) float64 {
	current = clampRange(current, 0, 1)
	if !wave.Finite(dt) || dt <= 0 {
		return current
	}
	if !wave.Finite(score) {
		score = 0
	}
	if !wave.Finite(baseRate) || baseRate < 0 {
		baseRate = 0
	}
	if !wave.Finite(multiplier) || multiplier < 0 {
		multiplier = 0
	}

	switch {
	case score <= s.OverloadThreshold:
		current += (s.OverloadThreshold - score) * baseRate * multiplier * dt
	case score >= s.SuccessThreshold:
		current -= s.InstabilityRecoveryRate * dt
	}
	return clampRange(current, 0, 1)
}
