package eval

import (
	"math"

	"eunomia/internal/wave"
)

// Smoother is an exponential moving average over the raw score. The
// first update seeds the average with the raw value so a citizen does
// not pay an artificial ramp-up penalty, and alpha is recomputed from
// the actual dt so variable-step schedulers smooth correctly.
type Smoother struct {
	value  float64
	seeded bool
}

func (s *Smoother) Update(raw, dt, tau float64) float64 {
	if !wave.Finite(raw) {
		return s.value
	}
	if !s.seeded {
		s.value = raw
		s.seeded = true
		return s.value
	}
	if !wave.Finite(dt) || dt <= 0 {
		return s.value
	}
	if !wave.Finite(tau) || tau <= 0 {
		s.value = raw
		return s.value
	}

	alpha := 1 - math.Exp(-dt/tau)
	s.value += alpha * (raw - s.value)
	return s.value
}

func (s *Smoother) Value() float64 {
	return s.value
}

func (s *Smoother) Seeded() bool {
	return s.seeded
}

func (s *Smoother) Reset() {
	s.value = 0
	s.seeded = false
}
