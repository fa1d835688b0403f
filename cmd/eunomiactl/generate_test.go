package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"eunomia/internal/config"
	"eunomia/internal/wave"
)

func TestGenerateCommandWritesProfileDocuments(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "gen")

	out, err := captureStdout(func() error {
		return run(context.Background(), []string{
			"generate",
			"--kind", "profiles",
			"--count", "3",
			"--seed", "9",
			"--out", dir,
		})
	})
	if err != nil {
		t.Fatalf("generate command: %v", err)
	}
	if !strings.Contains(out, "wrote ") || !strings.Contains(out, "generate kind=profiles base=baseline count=3 seed=9") {
		t.Fatalf("unexpected generate output: %s", out)
	}

	for _, file := range []string{"profile_001.json", "profile_002.json", "profile_003.json"} {
		if _, err := os.Stat(filepath.Join(dir, file)); err != nil {
			t.Fatalf("expected generated document %s: %v", file, err)
		}
	}

	p, repairs, err := config.LoadProfile(filepath.Join(dir, "profile_001.json"))
	if err != nil {
		t.Fatalf("load generated profile: %v", err)
	}
	if p.ID != "baseline-var-001" || p.Name != "Baseline Citizen Variant 001" {
		t.Fatalf("unexpected generated identity: id=%s name=%s", p.ID, p.Name)
	}
	if len(p.Targets) != 5 || len(p.Tolerances) != 5 {
		t.Fatalf("expected five-band profile, got %d/%d", len(p.Targets), len(p.Tolerances))
	}
	// Generated documents are normalized before writing, so reloading
	// them never needs a repair.
	if len(repairs) != 0 {
		t.Fatalf("generated profile should load cleanly, repairs=%v", repairs)
	}

	dirB := filepath.Join(t.TempDir(), "gen-b")
	if err := run(context.Background(), []string{
		"generate",
		"--kind", "profiles",
		"--count", "3",
		"--seed", "9",
		"--out", dirB,
	}); err != nil {
		t.Fatalf("regenerate command: %v", err)
	}
	a, err := os.ReadFile(filepath.Join(dir, "profile_002.json"))
	if err != nil {
		t.Fatalf("read first batch: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dirB, "profile_002.json"))
	if err != nil {
		t.Fatalf("read second batch: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("same seed should regenerate identical documents")
	}
}

func TestGenerateCommandWritesScenarioDocuments(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "gen")

	if err := run(context.Background(), []string{
		"generate",
		"--kind", "scenarios",
		"--count", "2",
		"--segments", "3",
		"--segment-seconds", "4",
		"--seed", "5",
		"--out", dir,
	}); err != nil {
		t.Fatalf("generate command: %v", err)
	}

	for _, file := range []string{"scenario_001.json", "scenario_002.json"} {
		if _, err := os.Stat(filepath.Join(dir, file)); err != nil {
			t.Fatalf("expected generated document %s: %v", file, err)
		}
	}

	cfg, err := config.LoadScenario(filepath.Join(dir, "scenario_001.json"))
	if err != nil {
		t.Fatalf("load generated scenario: %v", err)
	}
	if cfg.Kind != wave.ScriptedSourceKind || cfg.Name != "baseline-sweep-001" {
		t.Fatalf("unexpected scenario identity: kind=%s name=%s", cfg.Kind, cfg.Name)
	}
	if len(cfg.Segments) != 3 {
		t.Fatalf("expected three segments, got %d", len(cfg.Segments))
	}
	if cfg.Segments[2].Until != 12 {
		t.Fatalf("expected segment ends at multiples of the segment length, got %f", cfg.Segments[2].Until)
	}
	if _, err := wave.BuildSource(cfg); err != nil {
		t.Fatalf("generated scenario should build a source: %v", err)
	}

	yamlDir := filepath.Join(t.TempDir(), "gen-yaml")
	if err := run(context.Background(), []string{
		"generate",
		"--kind", "scenarios",
		"--count", "1",
		"--format", "yaml",
		"--out", yamlDir,
	}); err != nil {
		t.Fatalf("generate yaml command: %v", err)
	}
	cfg, err = config.LoadScenario(filepath.Join(yamlDir, "scenario_001.yaml"))
	if err != nil {
		t.Fatalf("load yaml scenario: %v", err)
	}
	if cfg.Kind != wave.ScriptedSourceKind {
		t.Fatalf("unexpected yaml scenario kind: %s", cfg.Kind)
	}
}

func TestGenerateCommandValidation(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "gen")
	cases := []struct {
		args []string
		want string
	}{
		{[]string{"generate", "--kind", "widgets", "--out", dir}, "unsupported generate kind"},
		{[]string{"generate", "--count", "0", "--out", dir}, "count must be > 0"},
		{[]string{"generate", "--spread", "1.5", "--out", dir}, "spread must be within"},
		{[]string{"generate", "--segments", "0", "--out", dir}, "segments must be > 0"},
		{[]string{"generate", "--segment-seconds", "0", "--out", dir}, "segment-seconds must be > 0"},
		{[]string{"generate", "--format", "xml", "--out", dir}, "unsupported document format"},
		{[]string{"generate", "--base", "martian", "--out", dir}, "unsupported profile archetype"},
	}
	for _, tc := range cases {
		err := run(context.Background(), tc.args)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("args %v: expected error containing %q, got %v", tc.args, tc.want, err)
		}
	}
}
