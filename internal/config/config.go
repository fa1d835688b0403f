// Package config loads profile, settings, and scenario documents from
// JSON or YAML files and resolves runtime options from the environment.
// Documents repair on load the same way the runtime does: malformed
// values are normalized and the applied repairs are reported, never
// rejected.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"eunomia/internal/model"
	"eunomia/internal/profile"
	"eunomia/internal/settings"
	"eunomia/internal/storage"
	"eunomia/internal/wave"
)

// Environment variables consulted by RuntimeFromEnv. A .env file loaded
// through LoadEnv populates the same names.
const (
	EnvStoreKind   = "EUNOMIA_STORE"
	EnvDBPath      = "EUNOMIA_DB_PATH"
	EnvSessionsDir = "EUNOMIA_SESSIONS_DIR"
	EnvExportsDir  = "EUNOMIA_EXPORTS_DIR"
)

// Runtime carries the process-level options shared by the CLI and the
// facade: which store backend to open and where artifact directories
// live.
type Runtime struct {
	StoreKind   string
	DBPath      string
	SessionsDir string
	ExportsDir  string
}

func DefaultRuntime() Runtime {
	return Runtime{
		StoreKind:   storage.DefaultStoreKind,
		DBPath:      "eunomia.db",
		SessionsDir: "sessions",
		ExportsDir:  "exports",
	}
}

// LoadEnv loads a dotenv file into the process environment. Variables
// already set keep their values. A missing file is not an error; the
// boolean reports whether a file was read.
func LoadEnv(path string) (bool, error) {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := godotenv.Load(path); err != nil {
		return false, fmt.Errorf("load env file %s: %w", path, err)
	}
	return true, nil
}

// RuntimeFromEnv resolves the runtime options from the environment on
// top of the defaults.
func RuntimeFromEnv() Runtime {
	rt := DefaultRuntime()
	if v := os.Getenv(EnvStoreKind); v != "" {
		rt.StoreKind = v
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		rt.DBPath = v
	}
	if v := os.Getenv(EnvSessionsDir); v != "" {
		rt.SessionsDir = v
	}
	if v := os.Getenv(EnvExportsDir); v != "" {
		rt.ExportsDir = v
	}
	return rt
}

// LoadProfile reads a profile document and returns the normalized
// profile along with the repairs normalization applied.
func LoadProfile(path string) (profile.Profile, []string, error) {
	var record model.ProfileRecord
	if err := decodeDocument(path, &record); err != nil {
		return profile.Profile{}, nil, err
	}
	if err := checkDocumentVersion(path, record.VersionedRecord); err != nil {
		return profile.Profile{}, nil, err
	}
	p := record.Profile()
	repairs := p.Normalize()
	return p, repairs, nil
}

// LoadSettings reads a settings document. Fields absent from the
// document keep their defaults, so partial documents only override what
// they name.
func LoadSettings(path string) (settings.Settings, []string, error) {
	record := model.RecordFromSettings(settings.Default())
	if err := decodeDocument(path, &record); err != nil {
		return settings.Settings{}, nil, err
	}
	if err := checkDocumentVersion(path, record.VersionedRecord); err != nil {
		return settings.Settings{}, nil, err
	}
	s := record.Settings()
	repairs := s.Normalize()
	return s, repairs, nil
}

// ScenarioDocument is the file schema for a waveform source: a source
// kind plus whichever parameters that kind consumes.
type ScenarioDocument struct {
	model.VersionedRecord `yaml:",inline"`

	Kind     string         `json:"kind" yaml:"kind"`
	Name     string         `json:"name,omitempty" yaml:"name,omitempty"`
	Bands    []float64      `json:"bands,omitempty" yaml:"bands,omitempty"`
	Segments []wave.Segment `json:"segments,omitempty" yaml:"segments,omitempty"`
	Noise    float64        `json:"noise,omitempty" yaml:"noise,omitempty"`
	Seed     int64          `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// SourceConfig converts the document into a registry build config.
func (d ScenarioDocument) SourceConfig() wave.Config {
	segments := make([]wave.Segment, 0, len(d.Segments))
	for _, seg := range d.Segments {
		segments = append(segments, wave.Segment{
			Until: seg.Until,
			Bands: append([]float64(nil), seg.Bands...),
		})
	}
	return wave.Config{
		Kind:     d.Kind,
		Name:     d.Name,
		Bands:    append([]float64(nil), d.Bands...),
		Segments: segments,
		Noise:    d.Noise,
		Seed:     d.Seed,
	}
}

// LoadScenario reads a scenario document and returns the source build
// config. The kind is validated by wave.BuildSource when the source is
// actually constructed.
func LoadScenario(path string) (wave.Config, error) {
	var doc ScenarioDocument
	if err := decodeDocument(path, &doc); err != nil {
		return wave.Config{}, err
	}
	if err := checkDocumentVersion(path, doc.VersionedRecord); err != nil {
		return wave.Config{}, err
	}
	return doc.SourceConfig(), nil
}

func decodeDocument(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read document %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, out); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported document extension %q: %s", filepath.Ext(path), path)
	}
	return nil
}

// checkDocumentVersion tolerates unstamped hand-written documents but
// rejects stamps from another schema or codec generation.
func checkDocumentVersion(path string, v model.VersionedRecord) error {
	if v.SchemaVersion != 0 && v.SchemaVersion != storage.CurrentSchemaVersion {
		return fmt.Errorf("%s: %w", path, storage.ErrVersionMismatch)
	}
	if v.CodecVersion != 0 && v.CodecVersion != storage.CurrentCodecVersion {
		return fmt.Errorf("%s: %w", path, storage.ErrVersionMismatch)
	}
	return nil
}
