// Package settings holds the process-wide tuning knobs shared by every
// citizen. Settings are immutable snapshots: live retuning publishes a
// fresh snapshot through a Holder, and tick loops pick it up at the next
// tick boundary, never mid-tick.
package settings

import (
	"fmt"

	"eunomia/internal/wave"
)

type Settings struct {
	// Score boundaries. Instability grows while the smoothed score sits
	// at or below the overload threshold and drains at or above the
	// success threshold; between them it holds.
	SuccessThreshold  float64
	OverloadThreshold float64

	// InstabilityFailThreshold is the instability level at which an
	// agitated citizen tips into critical failure.
	InstabilityFailThreshold float64

	SampleRateHz        float64
	SmoothingTauSeconds float64

	// InstabilityRecoveryRate drains instability, in units per second,
	// while the smoothed score holds at or above the success threshold.
	InstabilityRecoveryRate float64

	// Compliance loop. The target gain lets moderate scores reach full
	// compliance (target = score * 100 * gain, clamped to [0,100]); the
	// asymmetric rise/fall rates bias the loop toward recoverability.
	ComplianceTargetGain float64
	ComplianceRiseRate   float64
	ComplianceFallRate   float64

	// Multiplier endpoints for the compliance -> instability coupling:
	// rebellious applies at 0 compliance, compliant at 100.
	RebelliousMultiplier float64
	CompliantMultiplier  float64
}

func Default() Settings {
	return Settings{
		SuccessThreshold:         0.75,
		OverloadThreshold:        0.25,
		InstabilityFailThreshold: 0.8,
		SampleRateHz:             30,
		SmoothingTauSeconds:      0.25,
		InstabilityRecoveryRate:  0.25,
		ComplianceTargetGain:     1.1,
		ComplianceRiseRate:       40,
		ComplianceFallRate:       10,
		RebelliousMultiplier:     2.0,
		CompliantMultiplier:      0.3,
	}
}

// Normalize repairs the settings in place and reports what it changed.
// The rules mirror profile normalization: clamp, substitute defaults for
// non-finite values, and force the overload threshold strictly below the
// success threshold.
func (s *Settings) Normalize() []string {
	var repairs []string
	def := Default()

	fix := func(v *float64, fallback float64, name string) {
		if !wave.Finite(*v) {
			*v = fallback
			repairs = append(repairs, fmt.Sprintf("%s not finite, set to %g", name, fallback))
		}
	}

	fix(&s.SuccessThreshold, def.SuccessThreshold, "success threshold")
	fix(&s.OverloadThreshold, def.OverloadThreshold, "overload threshold")
	fix(&s.InstabilityFailThreshold, def.InstabilityFailThreshold, "instability fail threshold")
	fix(&s.SampleRateHz, def.SampleRateHz, "sample rate")
	fix(&s.SmoothingTauSeconds, def.SmoothingTauSeconds, "smoothing tau")
	fix(&s.InstabilityRecoveryRate, def.InstabilityRecoveryRate, "instability recovery rate")
	fix(&s.ComplianceTargetGain, def.ComplianceTargetGain, "compliance target gain")
	fix(&s.ComplianceRiseRate, def.ComplianceRiseRate, "compliance rise rate")
	fix(&s.ComplianceFallRate, def.ComplianceFallRate, "compliance fall rate")
	fix(&s.RebelliousMultiplier, def.RebelliousMultiplier, "rebellious multiplier")
	fix(&s.CompliantMultiplier, def.CompliantMultiplier, "compliant multiplier")

	if s.SuccessThreshold < 0 || s.SuccessThreshold > 1 {
		s.SuccessThreshold = clamp01(s.SuccessThreshold)
		repairs = append(repairs, fmt.Sprintf("success threshold clamped to %g", s.SuccessThreshold))
	}
	if s.OverloadThreshold < 0 || s.OverloadThreshold > 1 {
		s.OverloadThreshold = clamp01(s.OverloadThreshold)
		repairs = append(repairs, fmt.Sprintf("overload threshold clamped to %g", s.OverloadThreshold))
	}
	if s.OverloadThreshold >= s.SuccessThreshold {
		s.OverloadThreshold = s.SuccessThreshold / 2
		repairs = append(repairs, fmt.Sprintf("overload threshold >= success threshold, corrected to %g", s.OverloadThreshold))
	}

	if s.InstabilityFailThreshold <= 0 {
		s.InstabilityFailThreshold = def.InstabilityFailThreshold
		repairs = append(repairs, fmt.Sprintf("instability fail threshold must be > 0, set to %g", s.InstabilityFailThreshold))
	} else if s.InstabilityFailThreshold > 1 {
		s.InstabilityFailThreshold = 1
		repairs = append(repairs, "instability fail threshold clamped to 1")
	}

	if s.SampleRateHz <= 0 {
		s.SampleRateHz = def.SampleRateHz
		repairs = append(repairs, fmt.Sprintf("sample rate must be > 0, set to %g", s.SampleRateHz))
	}
	if s.SmoothingTauSeconds <= 0 {
		s.SmoothingTauSeconds = def.SmoothingTauSeconds
		repairs = append(repairs, fmt.Sprintf("smoothing tau must be > 0, set to %g", s.SmoothingTauSeconds))
	}
	if s.InstabilityRecoveryRate < 0 {
		s.InstabilityRecoveryRate = 0
		repairs = append(repairs, "instability recovery rate clamped to 0")
	}
	if s.ComplianceTargetGain <= 0 {
		s.ComplianceTargetGain = def.ComplianceTargetGain
		repairs = append(repairs, fmt.Sprintf("compliance target gain must be > 0, set to %g", s.ComplianceTargetGain))
	}
	if s.ComplianceRiseRate < 0 {
		s.ComplianceRiseRate = 0
		repairs = append(repairs, "compliance rise rate clamped to 0")
	}
	if s.ComplianceFallRate < 0 {
		s.ComplianceFallRate = 0
		repairs = append(repairs, "compliance fall rate clamped to 0")
	}
	if s.RebelliousMultiplier < 0 {
		s.RebelliousMultiplier = 0
		repairs = append(repairs, "rebellious multiplier clamped to 0")
	}
	if s.CompliantMultiplier < 0 {
		s.CompliantMultiplier = 0
		repairs = append(repairs, "compliant multiplier clamped to 0")
	}

	return repairs
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
