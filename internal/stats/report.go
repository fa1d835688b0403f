package stats

import (
	"errors"
	"math"
	"sort"
)

// OutcomeTally aggregates the sessions that share one grouping key.
type OutcomeTally struct {
	Sessions            int            `json:"sessions"`
	Outcomes            map[string]int `json:"outcomes"`
	MeanDurationSeconds float64        `json:"mean_duration_seconds"`
	StdDurationSeconds  float64        `json:"std_duration_seconds"`
	MeanTicks           float64        `json:"mean_ticks"`
}

// OutcomeReport is the aggregate view over the session index, totalled
// and broken down per profile.
type OutcomeReport struct {
	Total     OutcomeTally            `json:"total"`
	Profiles  []string                `json:"profiles,omitempty"`
	ByProfile map[string]OutcomeTally `json:"by_profile,omitempty"`
}

func BuildOutcomeReport(entries []SessionIndexEntry) OutcomeReport {
	report := OutcomeReport{Total: tallyEntries(entries)}
	if len(entries) == 0 {
		return report
	}

	byProfile := make(map[string][]SessionIndexEntry)
	for _, entry := range entries {
		key := entry.ProfileID
		if key == "" {
			key = "unknown"
		}
		byProfile[key] = append(byProfile[key], entry)
	}

	report.ByProfile = make(map[string]OutcomeTally, len(byProfile))
	for key, group := range byProfile {
		report.ByProfile[key] = tallyEntries(group)
		report.Profiles = append(report.Profiles, key)
	}
	sort.Strings(report.Profiles)
	return report
}

func tallyEntries(entries []SessionIndexEntry) OutcomeTally {
	tally := OutcomeTally{
		Sessions: len(entries),
		Outcomes: make(map[string]int),
	}
	if len(entries) == 0 {
		return tally
	}

	durations := make([]float64, 0, len(entries))
	ticks := 0
	for _, entry := range entries {
		outcome := entry.Outcome
		if outcome == "" {
			outcome = "unknown"
		}
		tally.Outcomes[outcome]++
		durations = append(durations, entry.DurationSeconds)
		ticks += entry.Ticks
	}

	tally.MeanDurationSeconds, _ = avg(durations)
	tally.StdDurationSeconds, _ = std(durations)
	tally.MeanTicks = float64(ticks) / float64(len(entries))
	return tally
}

func avg(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, errors.New("avg of empty slice")
	}
	sum := 0.0
	for _, value := range values {
		sum += value
	}
	return sum / float64(len(values)), nil
}

func std(values []float64) (float64, error) {
	mean, err := avg(values)
	if err != nil {
		return 0, err
	}
	sum := 0.0
	for _, value := range values {
		diff := mean - value
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(values))), nil
}
