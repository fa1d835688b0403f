package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"eunomia/internal/config"
	"eunomia/internal/model"
	"eunomia/internal/profile"
	"eunomia/internal/storage"
	"eunomia/internal/wave"
)

// runGenerate writes batches of randomized profile and scenario
// documents for offline authoring. All randomness comes from the seed,
// so a batch can be regenerated byte for byte.
func runGenerate(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	kind := fs.String("kind", "profiles", "documents to generate: profiles|scenarios")
	outDir := fs.String("out", "generated", "output directory")
	count := fs.Int("count", 5, "documents to generate")
	seed := fs.Int64("seed", 1, "rng seed")
	base := fs.String("base", profile.BaselineProfileName, "archetype the generated documents vary around: baseline|docile|resistant|fragile|veteran")
	spread := fs.Float64("spread", 0.2, "maximum relative deviation from the base archetype values")
	segments := fs.Int("segments", 4, "segments per scripted scenario")
	segmentSeconds := fs.Float64("segment-seconds", 5, "seconds each scenario segment holds")
	format := fs.String("format", "json", "document format: json|yaml")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *count <= 0 {
		return errors.New("count must be > 0")
	}
	if *spread < 0 || *spread > 1 {
		return errors.New("spread must be within [0, 1]")
	}
	if *segments <= 0 {
		return errors.New("segments must be > 0")
	}
	if *segmentSeconds <= 0 {
		return errors.New("segment-seconds must be > 0")
	}

	baseProfile, err := profile.ConstructProfile(*base)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(*seed))

	var written []string
	switch *kind {
	case "profiles":
		written, err = generateProfileDocuments(*outDir, baseProfile, rng, *count, *spread, *format)
	case "scenarios":
		written, err = generateScenarioDocuments(*outDir, baseProfile, rng, generatorOptions{
			Count:          *count,
			Spread:         *spread,
			Segments:       *segments,
			SegmentSeconds: *segmentSeconds,
			Format:         *format,
		})
	default:
		return fmt.Errorf("unsupported generate kind: %s", *kind)
	}
	if err != nil {
		return err
	}

	for _, path := range written {
		fmt.Printf("wrote %s\n", path)
	}
	fmt.Printf("generate kind=%s base=%s count=%d seed=%d out=%s\n", *kind, baseProfile.ID, len(written), *seed, *outDir)
	return nil
}

type generatorOptions struct {
	Count          int
	Spread         float64
	Segments       int
	SegmentSeconds float64
	Format         string
}

func generateProfileDocuments(dir string, base profile.Profile, rng *rand.Rand, count int, spread float64, format string) ([]string, error) {
	written := make([]string, 0, count)
	for i := 0; i < count; i++ {
		variant := base.Clone()
		variant.ID = fmt.Sprintf("%s-var-%03d", base.ID, i+1)
		variant.Name = fmt.Sprintf("%s Variant %03d", base.Name, i+1)
		for b := range variant.Targets {
			variant.Targets[b] = jitter(rng, variant.Targets[b], spread)
		}
		for b := range variant.Tolerances {
			variant.Tolerances[b] = jitter(rng, variant.Tolerances[b], spread)
		}
		variant.InstabilityRate = jitter(rng, variant.InstabilityRate, spread)
		variant.MinStimulationSeconds = jitter(rng, variant.MinStimulationSeconds, spread)
		variant.RecoverySeconds = jitter(rng, variant.RecoverySeconds, spread)
		variant.StartingCompliance = jitter(rng, variant.StartingCompliance, spread)
		variant.Normalize()

		record := model.RecordFromProfile(variant)
		record.VersionedRecord = storage.CurrentVersioned()
		path, err := writeGeneratedDocument(dir, fmt.Sprintf("profile_%03d", i+1), format, record)
		if err != nil {
			return nil, err
		}
		written = append(written, path)
	}
	return written, nil
}

func generateScenarioDocuments(dir string, base profile.Profile, rng *rand.Rand, opts generatorOptions) ([]string, error) {
	written := make([]string, 0, opts.Count)
	for i := 0; i < opts.Count; i++ {
		segs := make([]wave.Segment, 0, opts.Segments)
		for s := 0; s < opts.Segments; s++ {
			bands := make([]float64, len(base.Targets))
			for b := range bands {
				bands[b] = clamp01(jitter(rng, base.Targets[b], opts.Spread))
			}
			segs = append(segs, wave.Segment{
				Until: float64(s+1) * opts.SegmentSeconds,
				Bands: bands,
			})
		}

		doc := config.ScenarioDocument{
			Kind:     wave.ScriptedSourceKind,
			Name:     fmt.Sprintf("%s-sweep-%03d", base.ID, i+1),
			Segments: segs,
		}
		doc.VersionedRecord = storage.CurrentVersioned()
		path, err := writeGeneratedDocument(dir, fmt.Sprintf("scenario_%03d", i+1), opts.Format, doc)
		if err != nil {
			return nil, err
		}
		written = append(written, path)
	}
	return written, nil
}

// jitter perturbs a value by up to spread of its own magnitude, so zero
// stays zero and each field varies in proportion to the archetype.
func jitter(rng *rand.Rand, value, spread float64) float64 {
	return value * (1 + spread*(2*rng.Float64()-1))
}

func clamp01(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}

func writeGeneratedDocument(dir, stem, format string, doc any) (string, error) {
	var (
		data []byte
		ext  string
		err  error
	)
	switch format {
	case "json":
		data, err = json.MarshalIndent(doc, "", "  ")
		if err == nil {
			data = append(data, '\n')
		}
		ext = ".json"
	case "yaml":
		data, err = yaml.Marshal(doc)
		ext = ".yaml"
	default:
		return "", fmt.Errorf("unsupported document format: %s", format)
	}
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, stem+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
