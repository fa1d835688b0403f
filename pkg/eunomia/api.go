// Package eunomia is the embedding surface for the stimulation ward:
// one client owns a store and a lazily initialized ward, runs sessions
// to completion, and writes the per-session artifacts the command line
// tools read back.
package eunomia

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"eunomia/internal/model"
	"eunomia/internal/platform"
	"eunomia/internal/profile"
	"eunomia/internal/session"
	"eunomia/internal/settings"
	"eunomia/internal/stats"
	"eunomia/internal/storage"
	"eunomia/internal/wave"
)

const (
	defaultSessionsDir = "sessions"
	defaultExportsDir  = "exports"
	defaultDBPath      = "eunomia.db"
)

type Options struct {
	StoreKind   string
	DBPath      string
	SessionsDir string
	ExportsDir  string
}

type Client struct {
	store storage.Store
	ward  *platform.Ward

	sessionsDir string
	exportsDir  string
}

// RunRequest describes one session. Zero values fall back to the
// baseline profile, a constant source holding the profile's targets,
// and the default duration cap. Settings, when present, updates the
// ward-wide settings before the session launches.
type RunRequest struct {
	SessionID string
	CitizenID string
	ProfileID string
	Profile   *profile.Profile
	Settings  *settings.Settings
	Source    wave.Config

	MaxDurationSeconds float64
	RecordEvery        int
	Realtime           bool
}

type RunSummary struct {
	SessionID        string
	ArtifactsDir     string
	Outcome          string
	FinalState       string
	Ticks            int
	DurationSeconds  float64
	FinalScore       float64
	FinalInstability float64
	FinalCompliance  float64
	SettingsRepairs  []string
}

type SessionsRequest struct {
	Limit int
}

type SessionItem struct {
	SessionID       string
	CitizenID       string
	ProfileID       string
	SourceKind      string
	Outcome         string
	FinalState      string
	Ticks           int
	DurationSeconds float64
	CreatedAtUTC    string
}

type ShowRequest struct {
	SessionID string
	Latest    bool
}

type TimelineRequest struct {
	SessionID string
	Latest    bool
	Limit     int
}

type ExportRequest struct {
	SessionID string
	Latest    bool
	OutDir    string
}

type ExportSummary struct {
	SessionID string
	Directory string
}

type ProfileItem struct {
	ID      string
	Name    string
	Origin  string
	Profile profile.Profile
}

func New(opts Options) (*Client, error) {
	storeKind := storage.NormalizeStoreKind(opts.StoreKind)
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	sessionsDir := opts.SessionsDir
	if sessionsDir == "" {
		sessionsDir = defaultSessionsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:       store,
		sessionsDir: sessionsDir,
		exportsDir:  exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	_, err := c.ensureWard(ctx)
	return err
}

func (c *Client) Reset(ctx context.Context) error {
	w, err := c.ensureWard(ctx)
	if err != nil {
		return err
	}
	return w.Reset(ctx)
}

// Run launches one session, waits for it to finish, and writes its
// artifacts next to the session index. Cancelling ctx cancels the
// session.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if req.MaxDurationSeconds <= 0 {
		req.MaxDurationSeconds = session.DefaultMaxDurationSeconds
	}
	if req.RecordEvery <= 0 {
		req.RecordEvery = session.DefaultRecordEvery
	}

	w, err := c.ensureWard(ctx)
	if err != nil {
		return RunSummary{}, err
	}

	var settingsRepairs []string
	if req.Settings != nil {
		repairs, err := w.UpdateSettings(ctx, *req.Settings)
		if err != nil {
			return RunSummary{}, err
		}
		settingsRepairs = repairs
	}

	status, err := w.LaunchSession(ctx, platform.SessionRequest{
		SessionID:          req.SessionID,
		CitizenID:          req.CitizenID,
		ProfileID:          req.ProfileID,
		Profile:            req.Profile,
		Source:             req.Source,
		MaxDurationSeconds: req.MaxDurationSeconds,
		RecordEvery:        req.RecordEvery,
		Realtime:           req.Realtime,
	})
	if err != nil {
		return RunSummary{}, err
	}

	result, err := w.WaitSession(ctx, status.SessionID)
	if err != nil {
		if ctx.Err() != nil {
			// The caller gave up waiting; tear the session down before
			// returning so it does not keep running behind their back.
			_ = w.CancelSession(status.SessionID)
			return RunSummary{}, ctx.Err()
		}
		return RunSummary{}, err
	}

	record, ok, err := c.store.GetSession(ctx, result.SessionID)
	if err != nil {
		return RunSummary{}, err
	}
	if !ok {
		return RunSummary{}, fmt.Errorf("session record missing: %s", result.SessionID)
	}
	timeline, _, err := c.store.GetTimeline(ctx, result.SessionID)
	if err != nil {
		return RunSummary{}, err
	}

	artifactsDir, err := stats.WriteSessionArtifacts(c.sessionsDir, stats.SessionArtifacts{
		Config:   c.sessionConfig(ctx, req, record),
		Summary:  record,
		Timeline: timeline,
	})
	if err != nil {
		return RunSummary{}, err
	}
	if err := stats.AppendSessionIndex(c.sessionsDir, stats.SessionIndexEntry{
		SessionID:       record.ID,
		CitizenID:       record.CitizenID,
		ProfileID:       record.ProfileID,
		SourceKind:      sourceKind(req.Source),
		Outcome:         record.Outcome,
		FinalState:      record.FinalState,
		Ticks:           record.Ticks,
		DurationSeconds: record.DurationSeconds,
		CreatedAtUTC:    record.CreatedAt.UTC().Format(time.RFC3339Nano),
	}); err != nil {
		return RunSummary{}, err
	}

	return RunSummary{
		SessionID:        record.ID,
		ArtifactsDir:     filepath.Clean(artifactsDir),
		Outcome:          record.Outcome,
		FinalState:       record.FinalState,
		Ticks:            record.Ticks,
		DurationSeconds:  record.DurationSeconds,
		FinalScore:       record.FinalScore,
		FinalInstability: record.FinalInstability,
		FinalCompliance:  record.FinalCompliance,
		SettingsRepairs:  settingsRepairs,
	}, nil
}

func (c *Client) Sessions(_ context.Context, req SessionsRequest) ([]SessionItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListSessionIndex(c.sessionsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]SessionItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, SessionItem{
			SessionID:       e.SessionID,
			CitizenID:       e.CitizenID,
			ProfileID:       e.ProfileID,
			SourceKind:      e.SourceKind,
			Outcome:         e.Outcome,
			FinalState:      e.FinalState,
			Ticks:           e.Ticks,
			DurationSeconds: e.DurationSeconds,
			CreatedAtUTC:    e.CreatedAtUTC,
		})
	}
	return out, nil
}

// Show returns one session's summary record, preferring the store and
// falling back to the on-disk artifacts for sessions persisted by an
// earlier process.
func (c *Client) Show(ctx context.Context, req ShowRequest) (model.SessionRecord, error) {
	if req.SessionID != "" && req.Latest {
		return model.SessionRecord{}, errors.New("use either session id or latest")
	}
	sessionID := req.SessionID
	if req.Latest {
		id, err := c.latestSessionID()
		if err != nil {
			return model.SessionRecord{}, err
		}
		sessionID = id
	}
	if sessionID == "" {
		return model.SessionRecord{}, errors.New("show requires session id or latest")
	}

	if _, err := c.ensureWard(ctx); err != nil {
		return model.SessionRecord{}, err
	}
	record, ok, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return model.SessionRecord{}, err
	}
	if !ok {
		record, ok, err = stats.ReadSessionSummary(c.sessionsDir, sessionID)
		if err != nil {
			return model.SessionRecord{}, err
		}
	}
	if !ok {
		return model.SessionRecord{}, fmt.Errorf("session not found: %s", sessionID)
	}
	return record, nil
}

func (c *Client) Timeline(ctx context.Context, req TimelineRequest) ([]model.TimelinePoint, error) {
	if req.SessionID != "" && req.Latest {
		return nil, errors.New("use either session id or latest")
	}
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	sessionID := req.SessionID
	if req.Latest {
		id, err := c.latestSessionID()
		if err != nil {
			return nil, err
		}
		sessionID = id
	}
	if sessionID == "" {
		return nil, errors.New("timeline requires session id or latest")
	}

	if _, err := c.ensureWard(ctx); err != nil {
		return nil, err
	}
	points, ok, err := c.store.GetTimeline(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		points, ok, err = stats.ReadTimeline(c.sessionsDir, sessionID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("timeline not found for session: %s", sessionID)
	}
	if req.Limit > 0 && len(points) > req.Limit {
		points = points[:req.Limit]
	}
	return append([]model.TimelinePoint(nil), points...), nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.SessionID != "" && req.Latest {
		return ExportSummary{}, errors.New("use either session id or latest")
	}
	if req.SessionID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires session id or latest")
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	sessionID := req.SessionID
	if req.Latest {
		id, err := c.latestSessionID()
		if err != nil {
			return ExportSummary{}, err
		}
		sessionID = id
	}

	exportedDir, err := stats.ExportSessionArtifacts(c.sessionsDir, sessionID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{SessionID: sessionID, Directory: filepath.Clean(exportedDir)}, nil
}

// Report aggregates the session index into outcome tallies, totalled
// and broken down per profile.
func (c *Client) Report(_ context.Context) (stats.OutcomeReport, error) {
	entries, err := stats.ListSessionIndex(c.sessionsDir)
	if err != nil {
		return stats.OutcomeReport{}, err
	}
	return stats.BuildOutcomeReport(entries), nil
}

// Profiles lists the built-in archetypes merged with the stored
// profiles. A stored profile shadows an archetype with the same id.
func (c *Client) Profiles(ctx context.Context) ([]ProfileItem, error) {
	if _, err := c.ensureWard(ctx); err != nil {
		return nil, err
	}

	items := make(map[string]ProfileItem)
	for _, name := range profile.AvailableProfiles() {
		p, err := profile.ConstructProfile(name)
		if err != nil {
			return nil, err
		}
		items[p.ID] = ProfileItem{ID: p.ID, Name: p.Name, Origin: "archetype", Profile: p}
	}
	stored, err := c.store.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}
	for _, rec := range stored {
		p := rec.Profile()
		items[p.ID] = ProfileItem{ID: p.ID, Name: p.Name, Origin: "stored", Profile: p}
	}

	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]ProfileItem, 0, len(ids))
	for _, id := range ids {
		out = append(out, items[id])
	}
	return out, nil
}

// SaveProfile normalizes and persists a profile, returning the stored
// form and the repairs normalization applied.
func (c *Client) SaveProfile(ctx context.Context, p profile.Profile) (profile.Profile, []string, error) {
	repairs := p.Normalize()
	if _, err := c.ensureWard(ctx); err != nil {
		return profile.Profile{}, nil, err
	}
	record := model.RecordFromProfile(p)
	record.VersionedRecord = storage.CurrentVersioned()
	if err := c.store.SaveProfile(ctx, record); err != nil {
		return profile.Profile{}, nil, err
	}
	return p, repairs, nil
}

func (c *Client) Settings(ctx context.Context) (settings.Settings, error) {
	w, err := c.ensureWard(ctx)
	if err != nil {
		return settings.Settings{}, err
	}
	return w.CurrentSettings(), nil
}

func (c *Client) UpdateSettings(ctx context.Context, s settings.Settings) (settings.Settings, []string, error) {
	w, err := c.ensureWard(ctx)
	if err != nil {
		return settings.Settings{}, nil, err
	}
	repairs, err := w.UpdateSettings(ctx, s)
	if err != nil {
		return settings.Settings{}, nil, err
	}
	return w.CurrentSettings(), repairs, nil
}

func (c *Client) ensureWard(ctx context.Context) (*platform.Ward, error) {
	if c.ward != nil {
		return c.ward, nil
	}
	w := platform.NewWard(platform.Config{Store: c.store})
	if err := w.Init(ctx); err != nil {
		return nil, err
	}
	c.ward = w
	return c.ward, nil
}

func (c *Client) latestSessionID() (string, error) {
	entries, err := stats.ListSessionIndex(c.sessionsDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no sessions available")
	}
	return entries[0].SessionID, nil
}

// sessionConfig reconstructs the replayable description written to
// config.json. The profile is resolved the same way the launch did:
// explicit profile, then admitted citizen, then store, then archetype.
func (c *Client) sessionConfig(ctx context.Context, req RunRequest, record model.SessionRecord) stats.SessionConfig {
	return stats.SessionConfig{
		SessionID:          record.ID,
		CitizenID:          record.CitizenID,
		Profile:            c.profileRecordFor(ctx, req, record),
		Settings:           record.Settings,
		SourceKind:         sourceKind(req.Source),
		SourceBands:        append([]float64(nil), req.Source.Bands...),
		SourceSegments:     append([]wave.Segment(nil), req.Source.Segments...),
		SourceNoise:        req.Source.Noise,
		Seed:               req.Source.Seed,
		MaxDurationSeconds: req.MaxDurationSeconds,
		RecordEvery:        req.RecordEvery,
		Realtime:           req.Realtime,
	}
}

func (c *Client) profileRecordFor(ctx context.Context, req RunRequest, record model.SessionRecord) model.ProfileRecord {
	if req.Profile != nil {
		p := req.Profile.Clone()
		p.Normalize()
		return stampedProfileRecord(p)
	}
	if c.ward != nil {
		if p, ok := c.ward.CitizenProfile(record.CitizenID); ok {
			return stampedProfileRecord(p)
		}
	}
	if stored, ok, err := c.store.GetProfile(ctx, record.ProfileID); err == nil && ok {
		return stored
	}
	if p, err := profile.ConstructProfile(record.ProfileID); err == nil {
		return stampedProfileRecord(p)
	}
	rec := model.ProfileRecord{ID: record.ProfileID}
	rec.VersionedRecord = storage.CurrentVersioned()
	return rec
}

func stampedProfileRecord(p profile.Profile) model.ProfileRecord {
	record := model.RecordFromProfile(p)
	record.VersionedRecord = storage.CurrentVersioned()
	return record
}

func sourceKind(cfg wave.Config) string {
	kind := wave.NormalizeKind(cfg.Kind)
	if kind == "" {
		kind = wave.ConstantSourceKind
	}
	return kind
}
