package storage

import (
	"encoding/json"
	"errors"

	"eunomia/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// CurrentVersioned stamps a record with the versions this build writes.
func CurrentVersioned() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeProfile(r model.ProfileRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeProfile(data []byte) (model.ProfileRecord, error) {
	var record model.ProfileRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return model.ProfileRecord{}, err
	}
	if err := checkVersion(record.VersionedRecord); err != nil {
		return model.ProfileRecord{}, err
	}
	return record, nil
}

func EncodeSettings(r model.SettingsRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeSettings(data []byte) (model.SettingsRecord, error) {
	var record model.SettingsRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return model.SettingsRecord{}, err
	}
	if err := checkVersion(record.VersionedRecord); err != nil {
		return model.SettingsRecord{}, err
	}
	return record, nil
}

func EncodeSession(r model.SessionRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeSession(data []byte) (model.SessionRecord, error) {
	var record model.SessionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return model.SessionRecord{}, err
	}
	if err := checkVersion(record.VersionedRecord); err != nil {
		return model.SessionRecord{}, err
	}
	return record, nil
}

func EncodeTimeline(points []model.TimelinePoint) ([]byte, error) {
	return json.Marshal(points)
}

func DecodeTimeline(data []byte) ([]model.TimelinePoint, error) {
	var points []model.TimelinePoint
	if err := json.Unmarshal(data, &points); err != nil {
		return nil, err
	}
	return points, nil
}

func EncodeWardState(r model.WardStateRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeWardState(data []byte) (model.WardStateRecord, error) {
	var record model.WardStateRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return model.WardStateRecord{}, err
	}
	if err := checkVersion(record.VersionedRecord); err != nil {
		return model.WardStateRecord{}, err
	}
	return record, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
