package storage

import (
	"context"
	"errors"

	"eunomia/internal/model"
)

// ErrNotFound is returned by callers that require a record the store
// does not hold. Store getters themselves report absence through their
// boolean result.
var ErrNotFound = errors.New("record not found")

// Store defines persistence operations for ward state, profiles,
// settings, and completed sessions.
type Store interface {
	Init(ctx context.Context) error

	SaveProfile(ctx context.Context, record model.ProfileRecord) error
	GetProfile(ctx context.Context, id string) (model.ProfileRecord, bool, error)
	ListProfiles(ctx context.Context) ([]model.ProfileRecord, error)
	DeleteProfile(ctx context.Context, id string) error

	SaveSettings(ctx context.Context, record model.SettingsRecord) error
	GetSettings(ctx context.Context) (model.SettingsRecord, bool, error)

	SaveSession(ctx context.Context, record model.SessionRecord) error
	GetSession(ctx context.Context, id string) (model.SessionRecord, bool, error)
	ListSessions(ctx context.Context) ([]model.SessionRecord, error)

	SaveTimeline(ctx context.Context, sessionID string, points []model.TimelinePoint) error
	GetTimeline(ctx context.Context, sessionID string) ([]model.TimelinePoint, bool, error)

	SaveWardState(ctx context.Context, record model.WardStateRecord) error
	GetWardState(ctx context.Context) (model.WardStateRecord, bool, error)

	Reset(ctx context.Context) error
}
