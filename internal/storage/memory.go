package storage

import (
	"context"
	"sort"
	"sync"

	"eunomia/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	profiles    map[string]model.ProfileRecord
	sessions    map[string]model.SessionRecord
	timelines   map[string][]model.TimelinePoint
	settings    *model.SettingsRecord
	wardState   *model.WardStateRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Init is idempotent: re-initializing an already initialized store
// keeps its contents, matching the sqlite backend. Reset is the only
// destructive operation.
func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}
	s.initialized = true
	s.reset()
	return nil
}

func (s *MemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reset()
	return nil
}

func (s *MemoryStore) reset() {
	s.profiles = make(map[string]model.ProfileRecord)
	s.sessions = make(map[string]model.SessionRecord)
	s.timelines = make(map[string][]model.TimelinePoint)
	s.settings = nil
	s.wardState = nil
}

func (s *MemoryStore) SaveProfile(_ context.Context, record model.ProfileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.profiles[record.ID] = copyProfileRecord(record)
	return nil
}

func (s *MemoryStore) GetProfile(_ context.Context, id string) (model.ProfileRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.profiles[id]
	if !ok {
		return model.ProfileRecord{}, false, nil
	}
	return copyProfileRecord(record), true, nil
}

func (s *MemoryStore) ListProfiles(_ context.Context) ([]model.ProfileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]model.ProfileRecord, 0, len(s.profiles))
	for _, record := range s.profiles {
		records = append(records, copyProfileRecord(record))
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

func (s *MemoryStore) DeleteProfile(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.profiles, id)
	return nil
}

func (s *MemoryStore) SaveSettings(_ context.Context, record model.SettingsRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings = &record
	return nil
}

func (s *MemoryStore) GetSettings(_ context.Context) (model.SettingsRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.settings == nil {
		return model.SettingsRecord{}, false, nil
	}
	return *s.settings, true, nil
}

func (s *MemoryStore) SaveSession(_ context.Context, record model.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[record.ID] = copySessionRecord(record)
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, id string) (model.SessionRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.sessions[id]
	if !ok {
		return model.SessionRecord{}, false, nil
	}
	return copySessionRecord(record), true, nil
}

func (s *MemoryStore) ListSessions(_ context.Context) ([]model.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]model.SessionRecord, 0, len(s.sessions))
	for _, record := range s.sessions {
		records = append(records, copySessionRecord(record))
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
	return records, nil
}

func (s *MemoryStore) SaveTimeline(_ context.Context, sessionID string, points []model.TimelinePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]model.TimelinePoint, len(points))
	copy(copied, points)
	s.timelines[sessionID] = copied
	return nil
}

func (s *MemoryStore) GetTimeline(_ context.Context, sessionID string) ([]model.TimelinePoint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points, ok := s.timelines[sessionID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.TimelinePoint, len(points))
	copy(copied, points)
	return copied, true, nil
}

func (s *MemoryStore) SaveWardState(_ context.Context, record model.WardStateRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.wardState = &record
	return nil
}

func (s *MemoryStore) GetWardState(_ context.Context) (model.WardStateRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.wardState == nil {
		return model.WardStateRecord{}, false, nil
	}
	return *s.wardState, true, nil
}

func copyProfileRecord(r model.ProfileRecord) model.ProfileRecord {
	r.Targets = append([]float64(nil), r.Targets...)
	r.Tolerances = append([]float64(nil), r.Tolerances...)
	r.Weights = append([]float64(nil), r.Weights...)
	return r
}

func copySessionRecord(r model.SessionRecord) model.SessionRecord {
	r.Events = append([]model.EventRecord(nil), r.Events...)
	return r
}
