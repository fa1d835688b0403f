package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"eunomia/internal/settings"
	"eunomia/internal/storage"
	"eunomia/internal/wave"
)

func writeDocument(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadProfileFromJSON(t *testing.T) {
	path := writeDocument(t, "profile.json", `{
		"schema_version": 1,
		"codec_version": 1,
		"id": "night-shift",
		"name": "Night Shift",
		"targets": [0.2, 0.3, 0.5, 0.4, 0.1],
		"tolerances": [0.25, 0.25, 0.25, 0.25, 0.25],
		"instability_rate": 4,
		"min_stimulation_seconds": 1.5,
		"recovery_seconds": 2,
		"starting_compliance": 60
	}`)

	p, repairs, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if len(repairs) != 0 {
		t.Fatalf("expected clean load, got repairs %v", repairs)
	}
	if p.ID != "night-shift" || p.Name != "Night Shift" {
		t.Fatalf("unexpected identity: %q %q", p.ID, p.Name)
	}
	if len(p.Targets) != wave.BandCount || p.Targets[2] != 0.5 {
		t.Fatalf("unexpected targets: %v", p.Targets)
	}
	if p.StartingCompliance != 60 {
		t.Fatalf("unexpected starting compliance: %v", p.StartingCompliance)
	}
}

func TestLoadProfileFromYAML(t *testing.T) {
	path := writeDocument(t, "profile.yaml", `
id: archive-dweller
targets: [0.1, 0.1, 0.8, 0.8, 0.1]
tolerances: [0.2, 0.2, 0.2, 0.2, 0.2]
weights: [1, 1, 2, 2, 1]
instability_rate: 3
min_stimulation_seconds: 2
recovery_seconds: 1.5
starting_compliance: 45
`)

	p, repairs, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if len(repairs) != 0 {
		t.Fatalf("expected clean load, got repairs %v", repairs)
	}
	if p.ID != "archive-dweller" {
		t.Fatalf("unexpected id: %q", p.ID)
	}
	if p.Weights[2] != 2 {
		t.Fatalf("unexpected weights: %v", p.Weights)
	}
}

func TestLoadProfileReportsRepairs(t *testing.T) {
	path := writeDocument(t, "profile.json", `{
		"targets": [0.2, 0.3, 1.7],
		"tolerances": [0.25],
		"instability_rate": -1
	}`)

	p, repairs, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if len(repairs) == 0 {
		t.Fatal("expected repairs for a malformed document")
	}
	if p.ID != "custom" {
		t.Fatalf("expected default id, got %q", p.ID)
	}
	if len(p.Targets) != wave.BandCount {
		t.Fatalf("targets not resized: %v", p.Targets)
	}
	if p.Targets[2] != 1 {
		t.Fatalf("targets[2] not clamped: %v", p.Targets[2])
	}
	if p.InstabilityRate != 0 {
		t.Fatalf("instability rate not clamped: %v", p.InstabilityRate)
	}
}

func TestLoadSettingsPartialDocumentKeepsDefaults(t *testing.T) {
	path := writeDocument(t, "settings.yaml", "sample_rate_hz: 60\n")

	s, repairs, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if len(repairs) != 0 {
		t.Fatalf("expected clean load, got repairs %v", repairs)
	}
	if s.SampleRateHz != 60 {
		t.Fatalf("override lost: %v", s.SampleRateHz)
	}
	def := settings.Default()
	if s.SuccessThreshold != def.SuccessThreshold || s.SmoothingTauSeconds != def.SmoothingTauSeconds {
		t.Fatalf("defaults not preserved: %+v", s)
	}
}

func TestLoadSettingsRepairsBadValues(t *testing.T) {
	path := writeDocument(t, "settings.json", `{"sample_rate_hz": -10}`)

	s, repairs, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if len(repairs) == 0 {
		t.Fatal("expected repairs for a negative sample rate")
	}
	if s.SampleRateHz <= 0 {
		t.Fatalf("sample rate not repaired: %v", s.SampleRateHz)
	}
}

func TestLoadDocumentRejectsVersionMismatch(t *testing.T) {
	path := writeDocument(t, "settings.json", `{"schema_version": 99, "sample_rate_hz": 60}`)
	if _, _, err := LoadSettings(path); !errors.Is(err, storage.ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}

	path = writeDocument(t, "profile.yaml", "codec_version: 99\nid: stale\n")
	if _, _, err := LoadProfile(path); !errors.Is(err, storage.ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
}

func TestLoadScenarioScripted(t *testing.T) {
	path := writeDocument(t, "scenario.yaml", `
kind: scripted
name: escalation
segments:
  - until: 2
    bands: [0.1, 0.1, 0.1, 0.1, 0.1]
  - until: 5
    bands: [0.5, 0.5, 0.5, 0.5, 0.5]
`)

	cfg, err := LoadScenario(path)
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	src, err := wave.BuildSource(cfg)
	if err != nil {
		t.Fatalf("BuildSource: %v", err)
	}
	if src.Name() != "escalation" {
		t.Fatalf("unexpected source name: %q", src.Name())
	}
	early := src.At(1)
	late := src.At(4)
	if early.Bands[0] != 0.1 || late.Bands[0] != 0.5 {
		t.Fatalf("segments not honored: %v %v", early.Bands, late.Bands)
	}
}

func TestLoadScenarioNoisySeedSurvives(t *testing.T) {
	path := writeDocument(t, "scenario.json", `{
		"kind": "noisy",
		"bands": [0.3, 0.3, 0.3, 0.3, 0.3],
		"noise": 0.05,
		"seed": 11
	}`)

	cfg, err := LoadScenario(path)
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	if cfg.Seed != 11 || cfg.Noise != 0.05 {
		t.Fatalf("noise parameters lost: %+v", cfg)
	}
	a, err := wave.BuildSource(cfg)
	if err != nil {
		t.Fatalf("BuildSource: %v", err)
	}
	b, err := wave.BuildSource(cfg)
	if err != nil {
		t.Fatalf("BuildSource: %v", err)
	}
	if a.At(0.5).Bands != b.At(0.5).Bands {
		t.Fatal("same seed should replay identically")
	}
}

func TestDecodeDocumentRejectsUnknownExtension(t *testing.T) {
	path := writeDocument(t, "profile.txt", "id: nope\n")
	_, _, err := LoadProfile(path)
	if err == nil || !strings.Contains(err.Error(), "unsupported document extension") {
		t.Fatalf("expected extension error, got %v", err)
	}
}

func TestLoadProfileMissingFile(t *testing.T) {
	if _, _, err := LoadProfile(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for a missing file")
	}
}

func TestRuntimeFromEnvOverrides(t *testing.T) {
	t.Setenv(EnvStoreKind, "sqlite")
	t.Setenv(EnvDBPath, "/tmp/ward.db")
	t.Setenv(EnvSessionsDir, "/tmp/sessions")
	t.Setenv(EnvExportsDir, "/tmp/exports")

	rt := RuntimeFromEnv()
	if rt.StoreKind != "sqlite" || rt.DBPath != "/tmp/ward.db" {
		t.Fatalf("store overrides lost: %+v", rt)
	}
	if rt.SessionsDir != "/tmp/sessions" || rt.ExportsDir != "/tmp/exports" {
		t.Fatalf("directory overrides lost: %+v", rt)
	}
}

func TestRuntimeFromEnvDefaults(t *testing.T) {
	t.Setenv(EnvStoreKind, "")
	t.Setenv(EnvDBPath, "")
	t.Setenv(EnvSessionsDir, "")
	t.Setenv(EnvExportsDir, "")

	if rt := RuntimeFromEnv(); rt != DefaultRuntime() {
		t.Fatalf("expected defaults, got %+v", rt)
	}
}

func TestLoadEnvAppliesDotenvFile(t *testing.T) {
	path := writeDocument(t, "ward.env", "EUNOMIA_STORE=sqlite\nEUNOMIA_DB_PATH=ward.db\n")

	// t.Setenv registers restoration; the unset makes the variables
	// genuinely absent so godotenv is allowed to define them.
	t.Setenv(EnvStoreKind, "")
	t.Setenv(EnvDBPath, "")
	os.Unsetenv(EnvStoreKind)
	os.Unsetenv(EnvDBPath)

	loaded, err := LoadEnv(path)
	if err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if !loaded {
		t.Fatal("expected the env file to load")
	}
	if got := os.Getenv(EnvStoreKind); got != "sqlite" {
		t.Fatalf("store kind not applied: %q", got)
	}
	if got := os.Getenv(EnvDBPath); got != "ward.db" {
		t.Fatalf("db path not applied: %q", got)
	}
}

func TestLoadEnvMissingFileIsNotAnError(t *testing.T) {
	loaded, err := LoadEnv(filepath.Join(t.TempDir(), "absent.env"))
	if err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if loaded {
		t.Fatal("missing file should report not loaded")
	}
}
