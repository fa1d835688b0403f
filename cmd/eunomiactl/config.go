package main

import (
	"encoding/json"
	"fmt"
	"os"

	"eunomia/internal/config"
	"eunomia/internal/model"
	api "eunomia/pkg/eunomia"
)

// runConfigDocument is the JSON schema for a run config file. The
// nested documents reuse the on-disk record schemas, so a profile or
// settings document can be pasted in unchanged.
type runConfigDocument struct {
	SessionID          string                   `json:"session_id"`
	CitizenID          string                   `json:"citizen_id"`
	Profile            string                   `json:"profile"`
	ProfileDoc         *model.ProfileRecord     `json:"profile_doc"`
	SettingsDoc        *model.SettingsRecord    `json:"settings_doc"`
	Source             *config.ScenarioDocument `json:"source"`
	MaxDurationSeconds float64                  `json:"max_duration_seconds"`
	RecordEvery        int                      `json:"record_every"`
	Realtime           bool                     `json:"realtime"`
}

func loadRunRequestFromConfig(path string) (api.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return api.RunRequest{}, err
	}
	var doc runConfigDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return api.RunRequest{}, err
	}

	req := api.RunRequest{
		SessionID:          doc.SessionID,
		CitizenID:          doc.CitizenID,
		ProfileID:          doc.Profile,
		MaxDurationSeconds: doc.MaxDurationSeconds,
		RecordEvery:        doc.RecordEvery,
		Realtime:           doc.Realtime,
	}
	if doc.ProfileDoc != nil {
		p := doc.ProfileDoc.Profile()
		req.Profile = &p
	}
	if doc.SettingsDoc != nil {
		s := doc.SettingsDoc.Settings()
		req.Settings = &s
	}
	if doc.Source != nil {
		req.Source = doc.Source.SourceConfig()
	}
	return req, nil
}

func loadOrDefaultRunRequest(configPath string) (api.RunRequest, error) {
	if configPath == "" {
		return api.RunRequest{}, nil
	}
	req, err := loadRunRequestFromConfig(configPath)
	if err != nil {
		return api.RunRequest{}, fmt.Errorf("load config: %w", err)
	}
	return req, nil
}

func overrideFromFlags(req *api.RunRequest, set map[string]bool, flagValue map[string]any) error {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "session-id":
			req.SessionID = v.(string)
		case "citizen-id":
			req.CitizenID = v.(string)
		case "profile":
			req.ProfileID = v.(string)
		case "source":
			req.Source.Kind = v.(string)
		case "bands":
			req.Source.Bands = v.([]float64)
		case "noise":
			req.Source.Noise = v.(float64)
		case "seed":
			req.Source.Seed = v.(int64)
		case "duration":
			req.MaxDurationSeconds = v.(float64)
		case "record-every":
			req.RecordEvery = v.(int)
		case "realtime":
			req.Realtime = v.(bool)
		}
	}
	return nil
}
