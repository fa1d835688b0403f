package wave

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
)

// Source produces the sample for a given point in simulated time.
// Implementations are deterministic for a fixed construction so that
// scripted scenarios replay identically.
type Source interface {
	Name() string
	At(t float64) Sample
}

type ConstantSource struct {
	name  string
	bands [BandCount]float64
}

func NewConstantSource(name string, bands []float64) *ConstantSource {
	s := &ConstantSource{name: name}
	for i := 0; i < BandCount && i < len(bands); i++ {
		s.bands[i] = bands[i]
	}
	return s
}

func (s *ConstantSource) Name() string {
	return s.name
}

func (s *ConstantSource) At(t float64) Sample {
	return Sample{At: t, Bands: s.bands}
}

// Segment is one piece of a scripted signal: Bands hold while t < Until.
// The final segment holds for the remainder of the session.
type Segment struct {
	Until float64   `json:"until" yaml:"until"`
	Bands []float64 `json:"bands" yaml:"bands"`
}

type ScriptedSource struct {
	name  string
	until []float64
	bands [][BandCount]float64
}

func NewScriptedSource(name string, segments []Segment) (*ScriptedSource, error) {
	if len(segments) == 0 {
		return nil, errors.New("scripted source requires at least one segment")
	}
	s := &ScriptedSource{
		name:  name,
		until: make([]float64, len(segments)),
		bands: make([][BandCount]float64, len(segments)),
	}
	prev := 0.0
	for i, seg := range segments {
		until := seg.Until
		if until < prev {
			until = prev
		}
		s.until[i] = until
		prev = until
		for j := 0; j < BandCount && j < len(seg.Bands); j++ {
			s.bands[i][j] = seg.Bands[j]
		}
	}
	return s, nil
}

func (s *ScriptedSource) Name() string {
	return s.name
}

func (s *ScriptedSource) At(t float64) Sample {
	idx := sort.Search(len(s.until), func(i int) bool { return s.until[i] > t })
	if idx >= len(s.until) {
		idx = len(s.until) - 1
	}
	return Sample{At: t, Bands: s.bands[idx]}
}

// NoisySource perturbs an inner source with seeded uniform noise in
// [-amplitude, amplitude]. The perturbation sequence depends on the seed
// and call order, so a fixed-step session replays identically.
type NoisySource struct {
	inner     Source
	amplitude float64
	rng       *rand.Rand
}

func NewNoisySource(inner Source, amplitude float64, seed int64) *NoisySource {
	if amplitude < 0 {
		amplitude = -amplitude
	}
	return &NoisySource{
		inner:     inner,
		amplitude: amplitude,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

func (s *NoisySource) Name() string {
	return fmt.Sprintf("%s+noise", s.inner.Name())
}

func (s *NoisySource) At(t float64) Sample {
	sample := s.inner.At(t)
	if s.amplitude == 0 {
		return sample
	}
	for i := range sample.Bands {
		sample.Bands[i] += (s.rng.Float64()*2 - 1) * s.amplitude
	}
	return sample
}
