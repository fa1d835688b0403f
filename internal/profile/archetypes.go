package profile

import (
	"fmt"
	"sort"
	"strings"
)

const (
	BaselineProfileName  = "baseline"
	DocileProfileName    = "docile"
	ResistantProfileName = "resistant"
	FragileProfileName   = "fragile"
	VeteranProfileName   = "veteran"
)

// ConstructProfile returns a fresh copy of a built-in archetype. Names
// are matched case- and separator-insensitively, with a few aliases
// kept for operator muscle memory.
func ConstructProfile(name string) (Profile, error) {
	switch NormalizeProfileName(name) {
	case "", "default", BaselineProfileName:
		return baselineProfile(), nil
	case DocileProfileName, "compliant":
		return docileProfile(), nil
	case ResistantProfileName, "rebel", "rebellious":
		return resistantProfile(), nil
	case FragileProfileName, "sensitive":
		return fragileProfile(), nil
	case VeteranProfileName, "hardened":
		return veteranProfile(), nil
	default:
		return Profile{}, fmt.Errorf("unsupported profile archetype: %s", name)
	}
}

func AvailableProfiles() []string {
	names := []string{
		BaselineProfileName,
		DocileProfileName,
		ResistantProfileName,
		FragileProfileName,
		VeteranProfileName,
	}
	sort.Strings(names)
	return names
}

func NormalizeProfileName(raw string) string {
	name := strings.TrimSpace(strings.ToLower(raw))
	name = strings.ReplaceAll(name, "-", "_")
	return name
}

func baselineProfile() Profile {
	p := Profile{
		ID:                    BaselineProfileName,
		Name:                  "Baseline Citizen",
		Targets:               []float64{0.1, 0.2, 0.6, 0.6, 0.2},
		Tolerances:            []float64{0.15, 0.15, 0.15, 0.15, 0.15},
		Weights:               []float64{1, 1, 1, 1, 1},
		InstabilityRate:       0.5,
		MinStimulationSeconds: 2.0,
		RecoverySeconds:       3.0,
		StartingCompliance:    50,
	}
	p.Normalize()
	return p
}

func docileProfile() Profile {
	p := Profile{
		ID:                    DocileProfileName,
		Name:                  "Docile Citizen",
		Targets:               []float64{0.2, 0.3, 0.5, 0.4, 0.1},
		Tolerances:            []float64{0.25, 0.25, 0.25, 0.25, 0.25},
		Weights:               []float64{1, 1, 1, 1, 1},
		InstabilityRate:       0.3,
		MinStimulationSeconds: 1.5,
		RecoverySeconds:       2.0,
		StartingCompliance:    75,
	}
	p.Normalize()
	return p
}

func resistantProfile() Profile {
	p := Profile{
		ID:                    ResistantProfileName,
		Name:                  "Resistant Citizen",
		Targets:               []float64{0.1, 0.1, 0.4, 0.7, 0.5},
		Tolerances:            []float64{0.12, 0.12, 0.12, 0.12, 0.12},
		Weights:               []float64{1, 1, 1, 1, 1},
		InstabilityRate:       0.8,
		MinStimulationSeconds: 3.0,
		RecoverySeconds:       4.0,
		StartingCompliance:    20,
	}
	p.Normalize()
	return p
}

func fragileProfile() Profile {
	p := Profile{
		ID:                    FragileProfileName,
		Name:                  "Fragile Citizen",
		Targets:               []float64{0.3, 0.4, 0.5, 0.3, 0.2},
		Tolerances:            []float64{0.08, 0.08, 0.08, 0.08, 0.08},
		Weights:               []float64{1, 1, 2, 2, 1},
		InstabilityRate:       0.6,
		MinStimulationSeconds: 2.5,
		RecoverySeconds:       5.0,
		StartingCompliance:    40,
	}
	p.Normalize()
	return p
}

func veteranProfile() Profile {
	p := Profile{
		ID:                    VeteranProfileName,
		Name:                  "Veteran Citizen",
		Targets:               []float64{0.1, 0.2, 0.5, 0.6, 0.3},
		Tolerances:            []float64{0.2, 0.2, 0.2, 0.2, 0.2},
		Weights:               []float64{1, 1, 1, 1, 1},
		InstabilityRate:       0.4,
		MinStimulationSeconds: 2.0,
		RecoverySeconds:       1.5,
		StartingCompliance:    60,
	}
	p.Normalize()
	return p
}
