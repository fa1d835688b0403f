// Package dynamics advances the two coupled per-tick feedback loops:
// compliance chases the smoothed score, and instability accumulates or
// drains with a growth rate modulated by compliance. Both are pure
// functions of (current value, score, dt, settings) so ticks stay
// deterministic and trivially testable.
package dynamics

import (
	"eunomia/internal/settings"
	"eunomia/internal/wave"
)

// ComplianceTarget maps a score to the compliance level it pulls
// toward. The target gain lets moderate scores reach full compliance;
// the result is clamped to [0,100].
func ComplianceTarget(score float64, s *settings.Settings) float64 {
	if !wave.Finite(score) {
		score = 0
	}
	return clampRange(score*100*s.ComplianceTargetGain, 0, 100)
}

// AdvanceCompliance moves the current compliance toward the score's
// target by at most rate*dt, rising fast and falling slow, and never
// overshoots the target.
func AdvanceCompliance(current, score, dt float64, s *settings.Settings) float64 {
	current = clampRange(current, 0, 100)
	if !wave.Finite(dt) || dt <= 0 {
		return current
	}

	target := ComplianceTarget(score, s)
	if target > current {
		next := current + s.ComplianceRiseRate*dt
		if next > target {
			return target
		}
		return next
	}
	if target < current {
		next := current - s.ComplianceFallRate*dt
		if next < target {
			return target
		}
		return next
	}
	return current
}

// InstabilityMultiplier interpolates between the rebellious multiplier
// at zero compliance and the compliant multiplier at full compliance.
// This is the coupling that makes recovery self-reinforcing: high
// compliance damps instability growth, low compliance accelerates it.
func InstabilityMultiplier(compliance float64, s *settings.Settings) float64 {
	u := clampRange(compliance, 0, 100) / 100
	return s.RebelliousMultiplier + (s.CompliantMultiplier-s.RebelliousMultiplier)*u
}

func clampRange(v, lo, hi float64) float64 {
	if !wave.Finite(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
