package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"eunomia/internal/model"
	"eunomia/internal/wave"
)

const sessionIndexFile = "session_index.json"

// SessionConfig is the replayable description of one session, written
// next to its results so a run can be reconstructed from disk alone.
type SessionConfig struct {
	SessionID string `json:"session_id"`
	CitizenID string `json:"citizen_id"`

	Profile  model.ProfileRecord  `json:"profile"`
	Settings model.SettingsRecord `json:"settings"`

	SourceKind     string         `json:"source_kind"`
	SourceBands    []float64      `json:"source_bands,omitempty"`
	SourceSegments []wave.Segment `json:"source_segments,omitempty"`
	SourceNoise    float64        `json:"source_noise,omitempty"`
	Seed           int64          `json:"seed,omitempty"`

	MaxDurationSeconds float64 `json:"max_duration_seconds"`
	RecordEvery        int     `json:"record_every"`
	Realtime           bool    `json:"realtime"`
}

type SessionArtifacts struct {
	Config   SessionConfig       `json:"config"`
	Summary  model.SessionRecord `json:"summary"`
	Timeline []model.TimelinePoint
}

type SessionIndexEntry struct {
	SessionID       string  `json:"session_id"`
	CitizenID       string  `json:"citizen_id"`
	ProfileID       string  `json:"profile_id"`
	SourceKind      string  `json:"source_kind"`
	Outcome         string  `json:"outcome"`
	FinalState      string  `json:"final_state"`
	Ticks           int     `json:"ticks"`
	DurationSeconds float64 `json:"duration_seconds"`
	CreatedAtUTC    string  `json:"created_at_utc"`
}

func WriteSessionArtifacts(baseDir string, artifacts SessionArtifacts) (string, error) {
	if artifacts.Config.SessionID == "" {
		return "", fmt.Errorf("session id is required")
	}

	sessionDir := filepath.Join(baseDir, artifacts.Config.SessionID)
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(sessionDir, "config.json"), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(sessionDir, "summary.json"), artifacts.Summary); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(sessionDir, "events.json"), artifacts.Summary.Events); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(sessionDir, "timeline.json"), artifacts.Timeline); err != nil {
		return "", err
	}
	if err := WriteTimelineCSV(sessionDir, artifacts.Timeline); err != nil {
		return "", err
	}

	return sessionDir, nil
}

func AppendSessionIndex(baseDir string, entry SessionIndexEntry) error {
	if entry.SessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListSessionIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].SessionID == entry.SessionID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, sessionIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, sessionIndexFile), index)
}

func ListSessionIndex(baseDir string) ([]SessionIndexEntry, error) {
	path := filepath.Join(baseDir, sessionIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []SessionIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []SessionIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry SessionIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]SessionIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

func ExportSessionArtifacts(baseDir, sessionID, outDir string) (string, error) {
	if sessionID == "" {
		return "", fmt.Errorf("session id is required")
	}

	src := filepath.Join(baseDir, sessionID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, sessionID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	files := []string{"config.json", "summary.json", "events.json", "timeline.json"}
	for _, file := range files {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	csvPath := filepath.Join(src, "timeline.csv")
	if _, err := os.Stat(csvPath); err == nil {
		if err := copyFile(csvPath, filepath.Join(dst, "timeline.csv")); err != nil {
			return "", err
		}
	} else if err != nil && !os.IsNotExist(err) {
		return "", err
	}

	return dst, nil
}

func ReadSessionConfig(baseDir, sessionID string) (SessionConfig, bool, error) {
	path := filepath.Join(baseDir, sessionID, "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return SessionConfig{}, false, nil
		}
		return SessionConfig{}, false, err
	}

	var cfg SessionConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return SessionConfig{}, false, err
	}
	return cfg, true, nil
}

func ReadSessionSummary(baseDir, sessionID string) (model.SessionRecord, bool, error) {
	path := filepath.Join(baseDir, sessionID, "summary.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.SessionRecord{}, false, nil
		}
		return model.SessionRecord{}, false, err
	}

	var record model.SessionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return model.SessionRecord{}, false, err
	}
	return record, true, nil
}

func ReadTimeline(baseDir, sessionID string) ([]model.TimelinePoint, bool, error) {
	path := filepath.Join(baseDir, sessionID, "timeline.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var points []model.TimelinePoint
	if err := json.Unmarshal(data, &points); err != nil {
		return nil, false, err
	}
	return points, true, nil
}

func WriteTimelineCSV(sessionDir string, points []model.TimelinePoint) error {
	path := filepath.Join(sessionDir, "timeline.csv")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"tick", "at", "state", "raw_score", "score", "instability", "compliance", "multiplier"}); err != nil {
		return err
	}
	for _, p := range points {
		if err := writer.Write([]string{
			strconv.Itoa(p.Tick),
			formatFloat(p.At),
			p.State,
			formatFloat(p.RawScore),
			formatFloat(p.Score),
			formatFloat(p.Instability),
			formatFloat(p.Compliance),
			formatFloat(p.Multiplier),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadTimelineCSV(baseDir, sessionID string) ([]model.TimelinePoint, bool, error) {
	path := filepath.Join(baseDir, sessionID, "timeline.csv")
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []model.TimelinePoint{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 8 {
		return nil, false, fmt.Errorf("timeline header must have at least 8 columns")
	}

	points := make([]model.TimelinePoint, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		if len(record) < 8 {
			return nil, false, fmt.Errorf("timeline row must have at least 8 columns")
		}
		point, err := parseTimelineRow(record)
		if err != nil {
			return nil, false, err
		}
		points = append(points, point)
	}
	return points, true, nil
}

func parseTimelineRow(record []string) (model.TimelinePoint, error) {
	tick, err := strconv.Atoi(strings.TrimSpace(record[0]))
	if err != nil {
		return model.TimelinePoint{}, err
	}
	values := make([]float64, 0, 6)
	for _, idx := range []int{1, 3, 4, 5, 6, 7} {
		value, err := strconv.ParseFloat(strings.TrimSpace(record[idx]), 64)
		if err != nil {
			return model.TimelinePoint{}, err
		}
		values = append(values, value)
	}
	return model.TimelinePoint{
		Tick:        tick,
		At:          values[0],
		State:       record[2],
		RawScore:    values[1],
		Score:       values[2],
		Instability: values[3],
		Compliance:  values[4],
		Multiplier:  values[5],
	}, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
