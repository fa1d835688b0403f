package settings

import (
	"math"
	"testing"
)

func TestDefaultSettingsNeedNoRepairs(t *testing.T) {
	s := Default()
	if repairs := s.Normalize(); len(repairs) != 0 {
		t.Fatalf("defaults required repairs: %v", repairs)
	}
}

func TestNormalizeCorrectsOverloadAboveSuccess(t *testing.T) {
	s := Default()
	s.SuccessThreshold = 0.6
	s.OverloadThreshold = 0.9
	repairs := s.Normalize()

	if s.OverloadThreshold != 0.3 {
		t.Fatalf("overload threshold = %v, want success/2 = 0.3", s.OverloadThreshold)
	}
	if len(repairs) == 0 {
		t.Fatalf("expected repair report")
	}
}

func TestNormalizeCorrectsOverloadEqualToSuccess(t *testing.T) {
	s := Default()
	s.SuccessThreshold = 0.8
	s.OverloadThreshold = 0.8
	s.Normalize()
	if s.OverloadThreshold != 0.4 {
		t.Fatalf("overload threshold = %v, want 0.4", s.OverloadThreshold)
	}
}

func TestNormalizeReplacesNonFiniteFieldsWithDefaults(t *testing.T) {
	s := Settings{
		SuccessThreshold:         math.NaN(),
		OverloadThreshold:        math.Inf(-1),
		InstabilityFailThreshold: math.NaN(),
		SampleRateHz:             math.Inf(1),
		SmoothingTauSeconds:      math.NaN(),
		InstabilityRecoveryRate:  math.NaN(),
		ComplianceTargetGain:     math.NaN(),
		ComplianceRiseRate:       math.NaN(),
		ComplianceFallRate:       math.NaN(),
		RebelliousMultiplier:     math.NaN(),
		CompliantMultiplier:      math.NaN(),
	}
	s.Normalize()

	def := Default()
	if s.SuccessThreshold != def.SuccessThreshold || s.OverloadThreshold != def.OverloadThreshold {
		t.Fatalf("thresholds not repaired: %+v", s)
	}
	if s.SampleRateHz != def.SampleRateHz || s.SmoothingTauSeconds != def.SmoothingTauSeconds {
		t.Fatalf("timing fields not repaired: %+v", s)
	}
	if repairs := s.Normalize(); len(repairs) != 0 {
		t.Fatalf("second pass should be clean, got %v", repairs)
	}
}

func TestNormalizeRejectsZeroSampleRateAndTau(t *testing.T) {
	s := Default()
	s.SampleRateHz = 0
	s.SmoothingTauSeconds = -1
	s.Normalize()
	if s.SampleRateHz != 30 {
		t.Fatalf("sample rate = %v, want 30", s.SampleRateHz)
	}
	if s.SmoothingTauSeconds != 0.25 {
		t.Fatalf("tau = %v, want 0.25", s.SmoothingTauSeconds)
	}
}

func TestNormalizeFailThresholdBounds(t *testing.T) {
	s := Default()
	s.InstabilityFailThreshold = 0
	s.Normalize()
	if s.InstabilityFailThreshold != 0.8 {
		t.Fatalf("zero fail threshold = %v, want default 0.8", s.InstabilityFailThreshold)
	}

	s.InstabilityFailThreshold = 4
	s.Normalize()
	if s.InstabilityFailThreshold != 1 {
		t.Fatalf("oversized fail threshold = %v, want 1", s.InstabilityFailThreshold)
	}
}

func TestHolderSwapPublishesFreshSnapshot(t *testing.T) {
	h := NewHolder(Default())
	first := h.Load()
	if first == nil {
		t.Fatalf("holder returned nil snapshot")
	}

	next := Default()
	next.SuccessThreshold = 0.9
	h.Swap(next)

	second := h.Load()
	if second == first {
		t.Fatalf("swap should publish a new pointer")
	}
	if second.SuccessThreshold != 0.9 {
		t.Fatalf("swap lost the change: %v", second.SuccessThreshold)
	}
	if first.SuccessThreshold != 0.75 {
		t.Fatalf("old snapshot mutated: %v", first.SuccessThreshold)
	}
}

func TestHolderSwapNormalizesCandidate(t *testing.T) {
	h := NewHolder(Default())
	bad := Default()
	bad.OverloadThreshold = 0.95
	repairs := h.Swap(bad)
	if len(repairs) == 0 {
		t.Fatalf("expected repairs from swap")
	}
	if got := h.Load().OverloadThreshold; got != 0.375 {
		t.Fatalf("published overload threshold = %v, want 0.375", got)
	}
}
