package model

import (
	"time"

	"eunomia/internal/profile"
	"eunomia/internal/settings"
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version" yaml:"schema_version"`
	CodecVersion  int `json:"codec_version" yaml:"codec_version"`
}

// ProfileRecord is the persistent form of a stimulation profile. It
// doubles as the on-disk file schema for profile JSON/YAML documents.
type ProfileRecord struct {
	VersionedRecord `yaml:",inline"`

	ID                    string    `json:"id" yaml:"id"`
	Name                  string    `json:"name,omitempty" yaml:"name,omitempty"`
	Targets               []float64 `json:"targets" yaml:"targets"`
	Tolerances            []float64 `json:"tolerances" yaml:"tolerances"`
	Weights               []float64 `json:"weights,omitempty" yaml:"weights,omitempty"`
	InstabilityRate       float64   `json:"instability_rate" yaml:"instability_rate"`
	MinStimulationSeconds float64   `json:"min_stimulation_seconds" yaml:"min_stimulation_seconds"`
	RecoverySeconds       float64   `json:"recovery_seconds" yaml:"recovery_seconds"`
	StartingCompliance    float64   `json:"starting_compliance" yaml:"starting_compliance"`
}

func RecordFromProfile(p profile.Profile) ProfileRecord {
	return ProfileRecord{
		ID:                    p.ID,
		Name:                  p.Name,
		Targets:               append([]float64(nil), p.Targets...),
		Tolerances:            append([]float64(nil), p.Tolerances...),
		Weights:               append([]float64(nil), p.Weights...),
		InstabilityRate:       p.InstabilityRate,
		MinStimulationSeconds: p.MinStimulationSeconds,
		RecoverySeconds:       p.RecoverySeconds,
		StartingCompliance:    p.StartingCompliance,
	}
}

func (r ProfileRecord) Profile() profile.Profile {
	return profile.Profile{
		ID:                    r.ID,
		Name:                  r.Name,
		Targets:               append([]float64(nil), r.Targets...),
		Tolerances:            append([]float64(nil), r.Tolerances...),
		Weights:               append([]float64(nil), r.Weights...),
		InstabilityRate:       r.InstabilityRate,
		MinStimulationSeconds: r.MinStimulationSeconds,
		RecoverySeconds:       r.RecoverySeconds,
		StartingCompliance:    r.StartingCompliance,
	}
}

// SettingsRecord is the persistent form of the global settings, also
// used as the on-disk file schema for settings documents.
type SettingsRecord struct {
	VersionedRecord `yaml:",inline"`

	SuccessThreshold         float64 `json:"success_threshold" yaml:"success_threshold"`
	OverloadThreshold        float64 `json:"overload_threshold" yaml:"overload_threshold"`
	InstabilityFailThreshold float64 `json:"instability_fail_threshold" yaml:"instability_fail_threshold"`
	SampleRateHz             float64 `json:"sample_rate_hz" yaml:"sample_rate_hz"`
	SmoothingTauSeconds      float64 `json:"smoothing_tau_seconds" yaml:"smoothing_tau_seconds"`
	InstabilityRecoveryRate  float64 `json:"instability_recovery_rate" yaml:"instability_recovery_rate"`
	ComplianceTargetGain     float64 `json:"compliance_target_gain" yaml:"compliance_target_gain"`
	ComplianceRiseRate       float64 `json:"compliance_rise_rate" yaml:"compliance_rise_rate"`
	ComplianceFallRate       float64 `json:"compliance_fall_rate" yaml:"compliance_fall_rate"`
	RebelliousMultiplier     float64 `json:"rebellious_multiplier" yaml:"rebellious_multiplier"`
	CompliantMultiplier      float64 `json:"compliant_multiplier" yaml:"compliant_multiplier"`
}

func RecordFromSettings(s settings.Settings) SettingsRecord {
	return SettingsRecord{
		SuccessThreshold:         s.SuccessThreshold,
		OverloadThreshold:        s.OverloadThreshold,
		InstabilityFailThreshold: s.InstabilityFailThreshold,
		SampleRateHz:             s.SampleRateHz,
		SmoothingTauSeconds:      s.SmoothingTauSeconds,
		InstabilityRecoveryRate:  s.InstabilityRecoveryRate,
		ComplianceTargetGain:     s.ComplianceTargetGain,
		ComplianceRiseRate:       s.ComplianceRiseRate,
		ComplianceFallRate:       s.ComplianceFallRate,
		RebelliousMultiplier:     s.RebelliousMultiplier,
		CompliantMultiplier:      s.CompliantMultiplier,
	}
}

func (r SettingsRecord) Settings() settings.Settings {
	return settings.Settings{
		SuccessThreshold:         r.SuccessThreshold,
		OverloadThreshold:        r.OverloadThreshold,
		InstabilityFailThreshold: r.InstabilityFailThreshold,
		SampleRateHz:             r.SampleRateHz,
		SmoothingTauSeconds:      r.SmoothingTauSeconds,
		InstabilityRecoveryRate:  r.InstabilityRecoveryRate,
		ComplianceTargetGain:     r.ComplianceTargetGain,
		ComplianceRiseRate:       r.ComplianceRiseRate,
		ComplianceFallRate:       r.ComplianceFallRate,
		RebelliousMultiplier:     r.RebelliousMultiplier,
		CompliantMultiplier:      r.CompliantMultiplier,
	}
}

// TimelinePoint is one recorded tick of a session.
type TimelinePoint struct {
	Tick        int     `json:"tick"`
	At          float64 `json:"at"`
	State       string  `json:"state"`
	RawScore    float64 `json:"raw_score"`
	Score       float64 `json:"score"`
	Instability float64 `json:"instability"`
	Compliance  float64 `json:"compliance"`
	Multiplier  float64 `json:"multiplier"`
}

// EventRecord is a one-shot state machine notification captured during
// a session.
type EventRecord struct {
	Kind string  `json:"kind"`
	Tick int     `json:"tick"`
	At   float64 `json:"at"`
}

type SessionRecord struct {
	VersionedRecord

	ID               string         `json:"id"`
	CitizenID        string         `json:"citizen_id"`
	ProfileID        string         `json:"profile_id"`
	SourceName       string         `json:"source_name"`
	Outcome          string         `json:"outcome"`
	FinalState       string         `json:"final_state"`
	Ticks            int            `json:"ticks"`
	DurationSeconds  float64        `json:"duration_seconds"`
	FinalScore       float64        `json:"final_score"`
	FinalInstability float64        `json:"final_instability"`
	FinalCompliance  float64        `json:"final_compliance"`
	Events           []EventRecord  `json:"events,omitempty"`
	Settings         SettingsRecord `json:"settings"`
	CreatedAt        time.Time      `json:"created_at"`
}

// WardStateRecord tracks ward lifecycle across restarts.
type WardStateRecord struct {
	VersionedRecord

	InitializedAt     time.Time `json:"initialized_at"`
	SessionsCompleted int       `json:"sessions_completed"`
}
