// Package profile defines the per-citizen stimulation profile and the
// built-in archetype catalogue. Profiles repair invalid data on
// normalization instead of rejecting it: the runtime must always end up
// with a usable profile.
package profile

import (
	"fmt"
	"strings"

	"eunomia/internal/wave"
)

// ToleranceFloor is the smallest usable band tolerance. Anything below
// it would make the similarity term blow up toward division by zero.
const ToleranceFloor = 0.01

type Profile struct {
	ID   string
	Name string

	Targets    []float64
	Tolerances []float64
	Weights    []float64

	// InstabilityRate scales how fast instability accumulates while the
	// citizen is overloaded, in units per second before the compliance
	// multiplier is applied.
	InstabilityRate float64

	// MinStimulationSeconds is how long the smoothed score must hold at
	// or above the success threshold before the citizen stabilizes.
	MinStimulationSeconds float64

	RecoverySeconds    float64
	StartingCompliance float64
}

// Normalize repairs the profile in place and reports every repair it
// applied. Band slices are forced to exactly wave.BandCount entries,
// numeric fields are clamped to their legal ranges, and non-finite
// values are replaced. The returned list is empty for a valid profile.
func (p *Profile) Normalize() []string {
	var repairs []string

	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		p.ID = "custom"
		repairs = append(repairs, "id empty, set to custom")
	}
	if strings.TrimSpace(p.Name) == "" {
		p.Name = p.ID
	}

	if fixed, changed := resizeBands(p.Targets, 0); changed {
		repairs = append(repairs, fmt.Sprintf("targets resized to %d entries", wave.BandCount))
		p.Targets = fixed
	} else {
		p.Targets = fixed
	}
	if fixed, changed := resizeBands(p.Tolerances, ToleranceFloor); changed {
		repairs = append(repairs, fmt.Sprintf("tolerances resized to %d entries", wave.BandCount))
		p.Tolerances = fixed
	} else {
		p.Tolerances = fixed
	}
	if fixed, changed := resizeBands(p.Weights, 1); changed {
		repairs = append(repairs, fmt.Sprintf("weights resized to %d entries", wave.BandCount))
		p.Weights = fixed
	} else {
		p.Weights = fixed
	}

	for i, v := range p.Targets {
		switch {
		case !wave.Finite(v):
			p.Targets[i] = 0
			repairs = append(repairs, fmt.Sprintf("targets[%d] not finite, set to 0", i))
		case v < 0:
			p.Targets[i] = 0
			repairs = append(repairs, fmt.Sprintf("targets[%d] clamped to 0", i))
		case v > 1:
			p.Targets[i] = 1
			repairs = append(repairs, fmt.Sprintf("targets[%d] clamped to 1", i))
		}
	}
	for i, v := range p.Tolerances {
		if !wave.Finite(v) || v < ToleranceFloor {
			p.Tolerances[i] = ToleranceFloor
			repairs = append(repairs, fmt.Sprintf("tolerances[%d] raised to %.2f", i, ToleranceFloor))
		}
	}
	for i, v := range p.Weights {
		switch {
		case !wave.Finite(v):
			p.Weights[i] = 1
			repairs = append(repairs, fmt.Sprintf("weights[%d] not finite, set to 1", i))
		case v < 0:
			p.Weights[i] = 0
			repairs = append(repairs, fmt.Sprintf("weights[%d] clamped to 0", i))
		}
	}

	if !wave.Finite(p.InstabilityRate) || p.InstabilityRate < 0 {
		p.InstabilityRate = 0
		repairs = append(repairs, "instability rate clamped to 0")
	}
	if !wave.Finite(p.MinStimulationSeconds) || p.MinStimulationSeconds < 0 {
		p.MinStimulationSeconds = 0
		repairs = append(repairs, "min stimulation clamped to 0")
	}
	if !wave.Finite(p.RecoverySeconds) || p.RecoverySeconds < 0 {
		p.RecoverySeconds = 0
		repairs = append(repairs, "recovery duration clamped to 0")
	}
	switch {
	case !wave.Finite(p.StartingCompliance):
		p.StartingCompliance = 50
		repairs = append(repairs, "starting compliance not finite, set to 50")
	case p.StartingCompliance < 0:
		p.StartingCompliance = 0
		repairs = append(repairs, "starting compliance clamped to 0")
	case p.StartingCompliance > 100:
		p.StartingCompliance = 100
		repairs = append(repairs, "starting compliance clamped to 100")
	}

	return repairs
}

func (p Profile) Clone() Profile {
	out := p
	out.Targets = append([]float64(nil), p.Targets...)
	out.Tolerances = append([]float64(nil), p.Tolerances...)
	out.Weights = append([]float64(nil), p.Weights...)
	return out
}

func resizeBands(values []float64, fill float64) ([]float64, bool) {
	if len(values) == wave.BandCount {
		return values, false
	}
	fixed := make([]float64, wave.BandCount)
	for i := range fixed {
		if i < len(values) {
			fixed[i] = values[i]
		} else {
			fixed[i] = fill
		}
	}
	return fixed, true
}
