package eval

import (
	"math"
	"math/rand"
	"testing"

	"eunomia/internal/profile"
	"eunomia/internal/wave"
)

func scenarioProfile(t *testing.T) profile.Profile {
	t.Helper()
	p, err := profile.ConstructProfile(profile.BaselineProfileName)
	if err != nil {
		t.Fatalf("ConstructProfile: %v", err)
	}
	return p
}

func TestScoreIsOneWhenSampleMatchesTargetsExactly(t *testing.T) {
	p := scenarioProfile(t)
	sample := wave.SampleOf(p.Targets)
	if got := Score(&sample, &p); got != 1.0 {
		t.Fatalf("score = %v, want 1.0", got)
	}
}

func TestScoreIsZeroForNilSample(t *testing.T) {
	p := scenarioProfile(t)
	if got := Score(nil, &p); got != 0 {
		t.Fatalf("no-signal score = %v, want 0", got)
	}
}

func TestBandSimilarityMonotoneAwayFromTarget(t *testing.T) {
	const target, tolerance = 0.5, 0.15
	prev := BandSimilarity(target, target, tolerance)
	if prev != 1 {
		t.Fatalf("similarity at target = %v, want 1", prev)
	}
	for _, offset := range []float64{0.01, 0.05, 0.1, 0.14, 0.15, 0.3, 1.0} {
		d := BandSimilarity(target+offset, target, tolerance)
		if d > prev {
			t.Fatalf("similarity rose from %v to %v at offset %v", prev, d, offset)
		}
		prev = d
	}
	if prev != 0 {
		t.Fatalf("similarity far from target = %v, want 0", prev)
	}
}

func TestBandSimilarityNonFiniteSampleContributesZero(t *testing.T) {
	if d := BandSimilarity(math.NaN(), 0.5, 0.15); d != 0 {
		t.Fatalf("NaN sample similarity = %v, want 0", d)
	}
	if d := BandSimilarity(math.Inf(1), 0.5, 0.15); d != 0 {
		t.Fatalf("+Inf sample similarity = %v, want 0", d)
	}
	if d := BandSimilarity(math.Inf(-1), 0.5, 0.15); d != 0 {
		t.Fatalf("-Inf sample similarity = %v, want 0", d)
	}
}

func TestBandSimilarityLiftsDegenerateTolerance(t *testing.T) {
	got := BandSimilarity(0.5, 0.5, 0)
	if got != 1 {
		t.Fatalf("on-target with zero tolerance = %v, want 1", got)
	}
	off := BandSimilarity(0.6, 0.5, 0)
	if math.IsNaN(off) || math.IsInf(off, 0) {
		t.Fatalf("zero tolerance leaked a non-finite similarity: %v", off)
	}
	if off != 0 {
		t.Fatalf("0.1 away with floor tolerance = %v, want 0", off)
	}
}

func TestScoreSingleNaNBandOnlyZeroesThatBand(t *testing.T) {
	p := scenarioProfile(t)
	sample := wave.SampleOf(p.Targets)
	sample.Bands[2] = math.NaN()

	got := Score(&sample, &p)
	want := 4.0 / 5.0
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("score with one NaN band = %v, want %v", got, want)
	}
}

func TestScoreZeroWeightsFallBackToUnweightedMean(t *testing.T) {
	p := scenarioProfile(t)
	p.Weights = []float64{0, 0, 0, 0, 0}
	sample := wave.SampleOf(p.Targets)
	sample.Bands[0] = p.Targets[0] + p.Tolerances[0] // exactly one band at zero similarity

	got := Score(&sample, &p)
	want := 4.0 / 5.0
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("fallback score = %v, want %v", got, want)
	}
}

func TestScoreWeightsBiasTheAggregate(t *testing.T) {
	p := scenarioProfile(t)
	p.Weights = []float64{10, 0, 0, 0, 0}
	sample := wave.SampleOf(p.Targets)
	sample.Bands[0] = p.Targets[0] + p.Tolerances[0]/2 // half similarity on the only weighted band

	got := Score(&sample, &p)
	if math.Abs(got-0.5) > 1e-12 {
		t.Fatalf("weighted score = %v, want 0.5", got)
	}
}

func TestScoreStaysInUnitIntervalUnderRandomInput(t *testing.T) {
	p := scenarioProfile(t)
	rng := rand.New(rand.NewSource(99))
	for i := 0; i < 5000; i++ {
		var sample wave.Sample
		for b := range sample.Bands {
			switch rng.Intn(10) {
			case 0:
				sample.Bands[b] = math.NaN()
			case 1:
				sample.Bands[b] = math.Inf(1)
			default:
				sample.Bands[b] = rng.Float64()*6 - 3
			}
		}
		got := Score(&sample, &p)
		if got < 0 || got > 1 || math.IsNaN(got) {
			t.Fatalf("iteration %d: score %v escaped [0,1] for sample %v", i, got, sample.Bands)
		}
	}
}
