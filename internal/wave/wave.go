// Package wave models the five-band signal consumed by the citizen
// evaluation pipeline and the deterministic sources that produce it.
package wave

import "math"

type Band int

const (
	Delta Band = iota
	Theta
	Alpha
	Beta
	Gamma
)

const BandCount = 5

var bandNames = [BandCount]string{"delta", "theta", "alpha", "beta", "gamma"}

func (b Band) String() string {
	if b < 0 || int(b) >= BandCount {
		return "unknown"
	}
	return bandNames[b]
}

func BandNames() []string {
	out := make([]string, BandCount)
	copy(out, bandNames[:])
	return out
}

// Sample is one timestamped five-band reading. Values are expected in
// [0,1] but are never trusted: consumers clamp and treat non-finite
// bands as zero similarity.
type Sample struct {
	At    float64
	Bands [BandCount]float64
}

// SampleOf builds a sample from a loosely sized vector, padding missing
// bands with zero and dropping extras.
func SampleOf(values []float64) Sample {
	var s Sample
	for i := 0; i < BandCount && i < len(values); i++ {
		s.Bands[i] = values[i]
	}
	return s
}

func (s Sample) Band(b Band) float64 {
	if b < 0 || int(b) >= BandCount {
		return 0
	}
	return s.Bands[b]
}

func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
