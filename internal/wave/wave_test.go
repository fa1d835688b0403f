package wave

import (
	"math"
	"testing"
)

func TestSampleOfPadsMissingBandsAndDropsExtras(t *testing.T) {
	short := SampleOf([]float64{0.1, 0.2})
	want := [BandCount]float64{0.1, 0.2, 0, 0, 0}
	if short.Bands != want {
		t.Fatalf("short vector: got %v want %v", short.Bands, want)
	}

	long := SampleOf([]float64{1, 2, 3, 4, 5, 6, 7})
	if long.Bands != [BandCount]float64{1, 2, 3, 4, 5} {
		t.Fatalf("long vector: got %v", long.Bands)
	}
}

func TestFiniteRejectsNaNAndInfinities(t *testing.T) {
	if Finite(math.NaN()) {
		t.Fatalf("NaN reported finite")
	}
	if Finite(math.Inf(1)) || Finite(math.Inf(-1)) {
		t.Fatalf("infinity reported finite")
	}
	if !Finite(0) || !Finite(-1.5) {
		t.Fatalf("finite value rejected")
	}
}

func TestBandStringNamesAllFiveBands(t *testing.T) {
	names := BandNames()
	if len(names) != BandCount {
		t.Fatalf("expected %d names, got %d", BandCount, len(names))
	}
	if Delta.String() != "delta" || Gamma.String() != "gamma" {
		t.Fatalf("unexpected band names: %s %s", Delta, Gamma)
	}
	if Band(99).String() != "unknown" {
		t.Fatalf("out-of-range band should read unknown")
	}
}

func TestScriptedSourceSelectsSegmentByElapsedTime(t *testing.T) {
	src, err := NewScriptedSource("script", []Segment{
		{Until: 1.0, Bands: []float64{0.1, 0.1, 0.1, 0.1, 0.1}},
		{Until: 2.0, Bands: []float64{0.5, 0.5, 0.5, 0.5, 0.5}},
		{Until: 3.0, Bands: []float64{0.9, 0.9, 0.9, 0.9, 0.9}},
	})
	if err != nil {
		t.Fatalf("NewScriptedSource: %v", err)
	}

	cases := []struct {
		t    float64
		want float64
	}{
		{0.0, 0.1},
		{0.99, 0.1},
		{1.0, 0.5},
		{1.5, 0.5},
		{2.0, 0.9},
		{10.0, 0.9},
	}
	for _, tc := range cases {
		got := src.At(tc.t).Bands[0]
		if got != tc.want {
			t.Fatalf("t=%.2f: got %v want %v", tc.t, got, tc.want)
		}
	}
}

func TestScriptedSourceRequiresAtLeastOneSegment(t *testing.T) {
	if _, err := NewScriptedSource("empty", nil); err == nil {
		t.Fatalf("expected error for empty script")
	}
}

func TestScriptedSourceRepairsNonMonotonicBoundaries(t *testing.T) {
	src, err := NewScriptedSource("script", []Segment{
		{Until: 2.0, Bands: []float64{0.2, 0, 0, 0, 0}},
		{Until: 1.0, Bands: []float64{0.8, 0, 0, 0, 0}},
	})
	if err != nil {
		t.Fatalf("NewScriptedSource: %v", err)
	}
	// Second boundary is lifted to the first, so it only serves as the tail.
	if got := src.At(1.5).Bands[0]; got != 0.2 {
		t.Fatalf("t=1.5: got %v want 0.2", got)
	}
	if got := src.At(2.0).Bands[0]; got != 0.8 {
		t.Fatalf("t=2.0: got %v want 0.8", got)
	}
}

func TestNoisySourceIsDeterministicForSeed(t *testing.T) {
	build := func() Source {
		return NewNoisySource(NewConstantSource("base", []float64{0.5, 0.5, 0.5, 0.5, 0.5}), 0.1, 42)
	}

	a, b := build(), build()
	for i := 0; i < 50; i++ {
		t0 := float64(i) / 30.0
		sa, sb := a.At(t0), b.At(t0)
		if sa.Bands != sb.Bands {
			t.Fatalf("tick %d: diverged %v vs %v", i, sa.Bands, sb.Bands)
		}
	}
}

func TestNoisySourceStaysWithinAmplitude(t *testing.T) {
	src := NewNoisySource(NewConstantSource("base", []float64{0.5, 0.5, 0.5, 0.5, 0.5}), 0.2, 7)
	for i := 0; i < 200; i++ {
		s := src.At(float64(i))
		for b, v := range s.Bands {
			if v < 0.3-1e-12 || v > 0.7+1e-12 {
				t.Fatalf("tick %d band %d escaped amplitude: %v", i, b, v)
			}
		}
	}
}

func TestBuildSourceNormalizesKindAndDefaults(t *testing.T) {
	src, err := BuildSource(Config{Kind: "  Constant ", Bands: []float64{1, 0, 0, 0, 0}})
	if err != nil {
		t.Fatalf("BuildSource: %v", err)
	}
	if src.At(0).Bands[0] != 1 {
		t.Fatalf("constant source did not carry bands")
	}

	if _, err := BuildSource(Config{Kind: "no-such-kind"}); err == nil {
		t.Fatalf("expected unknown-kind error")
	}
}

func TestAvailableSourcesIncludesDefaultsSorted(t *testing.T) {
	kinds := AvailableSources()
	if len(kinds) < 3 {
		t.Fatalf("expected at least 3 registered kinds, got %v", kinds)
	}
	for i := 1; i < len(kinds); i++ {
		if kinds[i-1] > kinds[i] {
			t.Fatalf("kinds not sorted: %v", kinds)
		}
	}
	seen := map[string]bool{}
	for _, k := range kinds {
		seen[k] = true
	}
	for _, want := range []string{ConstantSourceKind, ScriptedSourceKind, NoisySourceKind} {
		if !seen[want] {
			t.Fatalf("missing default kind %s in %v", want, kinds)
		}
	}
}
