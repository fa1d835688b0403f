// Package eval scores how closely a signal sample tracks a profile's
// band targets and smooths that score over time. Both halves run once
// per tick per citizen and never allocate or fail: degenerate input is
// absorbed, not propagated.
package eval

import (
	"math"

	"eunomia/internal/profile"
	"eunomia/internal/wave"
)

// Score returns the weighted band similarity between a sample and the
// profile's targets, in [0,1]. A nil sample means no signal and scores
// zero. The profile must be normalized; Score indexes its band slices
// directly.
func Score(sample *wave.Sample, p *profile.Profile) float64 {
	if sample == nil {
		return 0
	}

	var weighted, weightSum, plain float64
	for i := 0; i < wave.BandCount; i++ {
		d := BandSimilarity(sample.Bands[i], p.Targets[i], p.Tolerances[i])
		w := p.Weights[i]
		weighted += w * d
		weightSum += w
		plain += d
	}
	if weightSum <= 0 {
		return clamp01(plain / wave.BandCount)
	}
	return clamp01(weighted / weightSum)
}

// BandSimilarity computes one band's contribution:
// clamp(1 - |sample - target| / tolerance, 0, 1). A non-finite sample
// or target contributes zero similarity; tolerances below the profile
// floor are lifted to it, matching construction-time repair.
func BandSimilarity(sample, target, tolerance float64) float64 {
	if !wave.Finite(sample) || !wave.Finite(target) {
		return 0
	}
	if !wave.Finite(tolerance) || tolerance < profile.ToleranceFloor {
		tolerance = profile.ToleranceFloor
	}
	return clamp01(1 - math.Abs(sample-target)/tolerance)
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
