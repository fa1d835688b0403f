package wave

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

const (
	ConstantSourceKind = "constant"
	ScriptedSourceKind = "scripted"
	NoisySourceKind    = "noisy"
)

var (
	ErrSourceExists   = errors.New("source kind already registered")
	ErrSourceNotFound = errors.New("source kind not found")
)

// Config carries everything a registered builder may need. Unused
// fields are ignored by kinds that do not consume them.
type Config struct {
	Kind     string
	Name     string
	Bands    []float64
	Segments []Segment
	Noise    float64
	Seed     int64
}

type BuildFn func(cfg Config) (Source, error)

type Spec struct {
	Kind        string
	Description string
	Build       BuildFn
}

var sourceRegistry = struct {
	mu sync.RWMutex
	m  map[string]Spec
}{
	m: make(map[string]Spec),
}

func NormalizeKind(kind string) string {
	return strings.ToLower(strings.TrimSpace(kind))
}

func Register(spec Spec) error {
	spec.Kind = NormalizeKind(spec.Kind)
	if spec.Kind == "" {
		return errors.New("source kind is required")
	}
	if spec.Build == nil {
		return errors.New("source builder is required")
	}

	sourceRegistry.mu.Lock()
	defer sourceRegistry.mu.Unlock()

	if _, exists := sourceRegistry.m[spec.Kind]; exists {
		return fmt.Errorf("%w: %s", ErrSourceExists, spec.Kind)
	}
	sourceRegistry.m[spec.Kind] = spec
	return nil
}

func BuildSource(cfg Config) (Source, error) {
	kind := NormalizeKind(cfg.Kind)
	if kind == "" {
		kind = ConstantSourceKind
	}

	sourceRegistry.mu.RLock()
	spec, ok := sourceRegistry.m[kind]
	sourceRegistry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, kind)
	}
	return spec.Build(cfg)
}

func AvailableSources() []string {
	sourceRegistry.mu.RLock()
	defer sourceRegistry.mu.RUnlock()

	kinds := make([]string, 0, len(sourceRegistry.m))
	for kind := range sourceRegistry.m {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

func DescribeSource(kind string) (Spec, bool) {
	sourceRegistry.mu.RLock()
	defer sourceRegistry.mu.RUnlock()

	spec, ok := sourceRegistry.m[NormalizeKind(kind)]
	return spec, ok
}

func init() {
	registerDefaultSources()
}

func registerDefaultSources() {
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}

	must(Register(Spec{
		Kind:        ConstantSourceKind,
		Description: "fixed band vector held for the whole session",
		Build: func(cfg Config) (Source, error) {
			name := cfg.Name
			if name == "" {
				name = ConstantSourceKind
			}
			return NewConstantSource(name, cfg.Bands), nil
		},
	}))
	must(Register(Spec{
		Kind:        ScriptedSourceKind,
		Description: "piecewise band segments keyed by elapsed seconds",
		Build: func(cfg Config) (Source, error) {
			name := cfg.Name
			if name == "" {
				name = ScriptedSourceKind
			}
			return NewScriptedSource(name, cfg.Segments)
		},
	}))
	must(Register(Spec{
		Kind:        NoisySourceKind,
		Description: "constant band vector with seeded uniform noise",
		Build: func(cfg Config) (Source, error) {
			name := cfg.Name
			if name == "" {
				name = NoisySourceKind
			}
			base := NewConstantSource(name, cfg.Bands)
			return NewNoisySource(base, cfg.Noise, cfg.Seed), nil
		},
	}))
}
