package platform

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"eunomia/internal/citizen"
	"eunomia/internal/model"
	"eunomia/internal/profile"
	"eunomia/internal/session"
	"eunomia/internal/settings"
	"eunomia/internal/storage"
	"eunomia/internal/wave"
)

type Config struct {
	Store storage.Store

	// Settings seeds the ward on first Init. A settings record already
	// in the store wins over this seed.
	Settings *settings.Settings
}

type StopReason string

const (
	StopReasonNormal   StopReason = "normal"
	StopReasonShutdown StopReason = "shutdown"
)

// SessionRequest describes one stimulation session to launch. The
// profile is resolved in order: explicit Profile, the profile of an
// admitted citizen matching CitizenID, a stored or archetype profile
// named by ProfileID, and finally the baseline archetype. A CitizenID
// that names no admitted citizen is still used as the session's citizen
// identity.
type SessionRequest struct {
	SessionID string
	CitizenID string
	ProfileID string
	Profile   *profile.Profile

	Source wave.Config

	MaxDurationSeconds float64
	RecordEvery        int
	Realtime           bool
}

type SessionStatus struct {
	SessionID       string    `json:"session_id"`
	CitizenID       string    `json:"citizen_id"`
	ProfileID       string    `json:"profile_id"`
	SourceName      string    `json:"source_name"`
	Running         bool      `json:"running"`
	Outcome         string    `json:"outcome,omitempty"`
	FinalState      string    `json:"final_state,omitempty"`
	Ticks           int       `json:"ticks,omitempty"`
	DurationSeconds float64   `json:"duration_seconds,omitempty"`
	Error           string    `json:"error,omitempty"`
	StartedAt       time.Time `json:"started_at"`
}

type AdmitRequest struct {
	CitizenID string
	Archetype string
	Profile   *profile.Profile
}

type CitizenStatus struct {
	CitizenID string `json:"citizen_id"`
	ProfileID string `json:"profile_id"`
	State     string `json:"state"`
	Active    bool   `json:"active"`
	Ticks     int    `json:"ticks"`
}

// Ward owns the store, the live settings holder, the registry of
// admitted citizens, and the asynchronous session tasks running against
// them.
type Ward struct {
	store storage.Store

	mu sync.RWMutex

	holder            *settings.Holder
	citizens          map[string]*citizen.Citizen
	tasks             map[string]*sessionTask
	finished          map[string]*sessionTask
	started           bool
	lastStopReason    StopReason
	initializedAt     time.Time
	sessionsCompleted int

	config Config
}

type sessionTask struct {
	cancel context.CancelFunc
	stop   chan struct{}
	done   chan struct{}

	sessionID  string
	citizenID  string
	profileID  string
	sourceName string
	startedAt  time.Time

	// result and err are written once, under the ward mutex, before
	// done is closed.
	result *session.Result
	err    error
}

var (
	defaultWardMu sync.Mutex
	defaultWard   *Ward
)

func NewWard(cfg Config) *Ward {
	return &Ward{
		store:          cfg.Store,
		citizens:       make(map[string]*citizen.Citizen),
		tasks:          make(map[string]*sessionTask),
		finished:       make(map[string]*sessionTask),
		config:         cfg,
		lastStopReason: StopReasonNormal,
	}
}

func StartDefault(ctx context.Context, cfg Config) (*Ward, error) {
	defaultWardMu.Lock()
	defer defaultWardMu.Unlock()

	if defaultWard != nil && defaultWard.Started() {
		return defaultWard, nil
	}

	w := NewWard(cfg)
	if err := w.Init(ctx); err != nil {
		return nil, err
	}
	defaultWard = w
	return defaultWard, nil
}

func Default() (*Ward, bool) {
	defaultWardMu.Lock()
	w := defaultWard
	defaultWardMu.Unlock()

	if w == nil || !w.Started() {
		return nil, false
	}
	return w, true
}

func StopDefault(reason StopReason) error {
	defaultWardMu.Lock()
	w := defaultWard
	defaultWardMu.Unlock()
	if w == nil {
		return nil
	}
	if err := w.StopWithReason(reason); err != nil {
		return err
	}
	defaultWardMu.Lock()
	if defaultWard == w {
		defaultWard = nil
	}
	defaultWardMu.Unlock()
	return nil
}

// Init prepares the store, publishes the active settings, and persists
// a fresh ward state record. Settings already in the store win over the
// configured seed; the seed is persisted on first use so later inits
// see it.
func (w *Ward) Init(ctx context.Context) error {
	if w.store == nil {
		return fmt.Errorf("store is required")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	if err := w.store.Init(ctx); err != nil {
		return err
	}

	active := settings.Default()
	if w.config.Settings != nil {
		active = *w.config.Settings
	}
	stored, ok, err := w.store.GetSettings(ctx)
	if err != nil {
		return err
	}
	if ok {
		active = stored.Settings()
	}
	w.holder = settings.NewHolder(active)
	if !ok {
		record := model.RecordFromSettings(*w.holder.Load())
		record.VersionedRecord = storage.CurrentVersioned()
		if err := w.store.SaveSettings(ctx, record); err != nil {
			return err
		}
	}

	state, ok, err := w.store.GetWardState(ctx)
	if err != nil {
		return err
	}
	if !ok {
		state = model.WardStateRecord{}
	}
	state.VersionedRecord = storage.CurrentVersioned()
	state.InitializedAt = time.Now().UTC()
	if err := w.store.SaveWardState(ctx, state); err != nil {
		return err
	}
	w.initializedAt = state.InitializedAt
	w.sessionsCompleted = state.SessionsCompleted

	w.started = true
	return nil
}

func (w *Ward) Create(ctx context.Context) error {
	return w.Init(ctx)
}

// Reset stops everything, wipes the store, and re-initializes. The
// session count starts over because the records backing it are gone.
func (w *Ward) Reset(ctx context.Context) error {
	_ = w.StopWithReason(StopReasonShutdown)
	// Reset may be the first store operation of the process.
	if err := w.store.Init(ctx); err != nil {
		return err
	}
	if err := w.store.Reset(ctx); err != nil {
		return err
	}
	return w.Init(ctx)
}

func (w *Ward) Stop() {
	_ = w.StopWithReason(StopReasonNormal)
}

func (w *Ward) Shutdown() {
	_ = w.StopWithReason(StopReasonShutdown)
}

// StopWithReason signals every running session to stop, waits for them
// to finish persisting, and clears the registry and task maps. Sessions
// end with their cooperative "stopped" outcome rather than being
// canceled mid-tick.
func (w *Ward) StopWithReason(reason StopReason) error {
	if reason == "" {
		reason = StopReasonNormal
	}
	if !isValidStopReason(reason) {
		return fmt.Errorf("unsupported stop reason: %s", reason)
	}

	w.mu.Lock()
	w.started = false
	w.lastStopReason = reason
	active := make([]*sessionTask, 0, len(w.tasks))
	for _, task := range w.tasks {
		select {
		case task.stop <- struct{}{}:
		default:
		}
		active = append(active, task)
	}
	w.mu.Unlock()

	for _, task := range active {
		<-task.done
	}

	w.mu.Lock()
	w.citizens = make(map[string]*citizen.Citizen)
	w.tasks = make(map[string]*sessionTask)
	w.finished = make(map[string]*sessionTask)
	w.mu.Unlock()
	return nil
}

func (w *Ward) Started() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.started
}

func (w *Ward) LastStopReason() StopReason {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastStopReason
}

func (w *Ward) SessionsCompleted() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.sessionsCompleted
}

func (w *Ward) CurrentSettings() settings.Settings {
	w.mu.RLock()
	holder := w.holder
	w.mu.RUnlock()
	if holder == nil {
		return settings.Default()
	}
	return *holder.Load()
}

// UpdateSettings publishes new settings to every running session at its
// next tick boundary and persists them. The returned repairs list what
// normalization had to fix.
func (w *Ward) UpdateSettings(ctx context.Context, s settings.Settings) ([]string, error) {
	w.mu.RLock()
	holder := w.holder
	started := w.started
	w.mu.RUnlock()
	if !started {
		return nil, fmt.Errorf("ward is not initialized")
	}

	repairs := holder.Swap(s)
	record := model.RecordFromSettings(*holder.Load())
	record.VersionedRecord = storage.CurrentVersioned()
	if err := w.store.SaveSettings(ctx, record); err != nil {
		return repairs, err
	}
	return repairs, nil
}

func (w *Ward) AdmitCitizen(ctx context.Context, req AdmitRequest) (CitizenStatus, error) {
	resolved, err := w.resolveProfile(ctx, req.Profile, "", req.Archetype)
	if err != nil {
		return CitizenStatus{}, err
	}
	id := req.CitizenID
	if id == "" {
		id = uuid.NewString()
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return CitizenStatus{}, fmt.Errorf("ward is not initialized")
	}
	if _, exists := w.citizens[id]; exists {
		return CitizenStatus{}, fmt.Errorf("citizen already admitted: %s", id)
	}
	c := citizen.New(id, resolved)
	w.citizens[id] = c
	return citizenStatus(c), nil
}

func (w *Ward) ReleaseCitizen(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.citizens[id]; !ok {
		return fmt.Errorf("citizen not found: %s", id)
	}
	delete(w.citizens, id)
	return nil
}

func (w *Ward) Citizens() []CitizenStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()

	ids := make([]string, 0, len(w.citizens))
	for id := range w.citizens {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]CitizenStatus, 0, len(ids))
	for _, id := range ids {
		out = append(out, citizenStatus(w.citizens[id]))
	}
	return out
}

func (w *Ward) CitizenSnapshot(id string) (citizen.Snapshot, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	c, ok := w.citizens[id]
	if !ok {
		return citizen.Snapshot{}, false
	}
	return c.Snapshot(), true
}

// CitizenProfile returns the profile an admitted citizen was built with.
func (w *Ward) CitizenProfile(id string) (profile.Profile, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	c, ok := w.citizens[id]
	if !ok {
		return profile.Profile{}, false
	}
	return c.Profile(), true
}

func (w *Ward) StartCitizen(id string) error {
	return w.withCitizen(id, (*citizen.Citizen).StartStimulation)
}

func (w *Ward) StopCitizen(id string) error {
	return w.withCitizen(id, (*citizen.Citizen).StopStimulation)
}

func (w *Ward) ResetCitizen(id string) error {
	return w.withCitizen(id, (*citizen.Citizen).Reset)
}

func (w *Ward) withCitizen(id string, op func(*citizen.Citizen)) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	c, ok := w.citizens[id]
	if !ok {
		return fmt.Errorf("citizen not found: %s", id)
	}
	op(c)
	return nil
}

// LaunchSession starts a session in its own goroutine and returns its
// initial status. The run outlives the caller's context; use
// StopSession, CancelSession, or WaitSession to control and collect it.
// Re-launching a finished session id discards the retained status, like
// any fresh launch.
func (w *Ward) LaunchSession(ctx context.Context, req SessionRequest) (SessionStatus, error) {
	if !w.Started() {
		return SessionStatus{}, fmt.Errorf("ward is not initialized")
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	if req.CitizenID == "" {
		req.CitizenID = uuid.NewString()
	}

	resolved, err := w.resolveProfile(ctx, req.Profile, req.CitizenID, req.ProfileID)
	if err != nil {
		return SessionStatus{}, err
	}
	// A source with no band data targets the resolved profile directly,
	// so a bare request runs the happy path for that profile.
	if len(req.Source.Bands) == 0 && len(req.Source.Segments) == 0 {
		req.Source.Bands = append([]float64(nil), resolved.Targets...)
		if req.Source.Name == "" {
			req.Source.Name = "profile-targets"
		}
	}
	source, err := wave.BuildSource(req.Source)
	if err != nil {
		return SessionStatus{}, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	task := &sessionTask{
		cancel:     cancel,
		stop:       make(chan struct{}, 1),
		done:       make(chan struct{}),
		sessionID:  req.SessionID,
		citizenID:  req.CitizenID,
		profileID:  resolved.ID,
		sourceName: source.Name(),
		startedAt:  time.Now().UTC(),
	}

	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		cancel()
		return SessionStatus{}, fmt.Errorf("ward is not initialized")
	}
	if _, exists := w.tasks[req.SessionID]; exists {
		w.mu.Unlock()
		cancel()
		return SessionStatus{}, fmt.Errorf("session already active: %s", req.SessionID)
	}
	delete(w.finished, req.SessionID)
	w.tasks[req.SessionID] = task
	holder := w.holder
	w.mu.Unlock()

	cfg := session.Config{
		SessionID:          req.SessionID,
		CitizenID:          req.CitizenID,
		Profile:            resolved,
		Source:             source,
		Holder:             holder,
		MaxDurationSeconds: req.MaxDurationSeconds,
		RecordEvery:        req.RecordEvery,
		Realtime:           req.Realtime,
		Stop:               task.stop,
	}
	// Status is captured before launch: the goroutine may finish and
	// write the task's result fields at any point after it starts.
	initial := taskStatus(task, true)
	go w.runSession(runCtx, task, cfg)
	return initial, nil
}

func (w *Ward) runSession(ctx context.Context, task *sessionTask, cfg session.Config) {
	result, err := session.Run(ctx, cfg)
	if err == nil {
		// Persistence runs on a fresh context so a canceled run still
		// lands in the store.
		err = w.persistSession(context.Background(), task, result)
	}

	w.mu.Lock()
	if result.SessionID != "" {
		retained := result
		task.result = &retained
	}
	task.err = err
	if current, ok := w.tasks[task.sessionID]; ok && current == task {
		delete(w.tasks, task.sessionID)
		w.finished[task.sessionID] = task
	}
	w.mu.Unlock()
	close(task.done)
}

func (w *Ward) persistSession(ctx context.Context, task *sessionTask, result session.Result) error {
	record := sessionRecord(task, result, w.CurrentSettings())
	if err := w.store.SaveSession(ctx, record); err != nil {
		return fmt.Errorf("save session %s: %w", record.ID, err)
	}
	if err := w.store.SaveTimeline(ctx, record.ID, result.Timeline); err != nil {
		return fmt.Errorf("save timeline %s: %w", record.ID, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.sessionsCompleted++
	state := model.WardStateRecord{
		VersionedRecord:   storage.CurrentVersioned(),
		InitializedAt:     w.initializedAt,
		SessionsCompleted: w.sessionsCompleted,
	}
	if err := w.store.SaveWardState(ctx, state); err != nil {
		return fmt.Errorf("save ward state: %w", err)
	}
	return nil
}

func sessionRecord(task *sessionTask, result session.Result, active settings.Settings) model.SessionRecord {
	settingsRecord := model.RecordFromSettings(active)
	settingsRecord.VersionedRecord = storage.CurrentVersioned()
	return model.SessionRecord{
		VersionedRecord:  storage.CurrentVersioned(),
		ID:               result.SessionID,
		CitizenID:        result.CitizenID,
		ProfileID:        task.profileID,
		SourceName:       task.sourceName,
		Outcome:          result.Outcome,
		FinalState:       result.Final.State.String(),
		Ticks:            result.Ticks,
		DurationSeconds:  result.ElapsedSeconds,
		FinalScore:       result.Final.Score,
		FinalInstability: result.Final.Instability,
		FinalCompliance:  result.Final.Compliance,
		Events:           result.Events,
		Settings:         settingsRecord,
		CreatedAt:        result.FinishedAt,
	}
}

// StopSession asks a running session to stop at its next tick. The
// signal is non-blocking; a pending signal already counts as stopped.
func (w *Ward) StopSession(sessionID string) error {
	task, err := w.activeTask(sessionID)
	if err != nil {
		return err
	}
	select {
	case task.stop <- struct{}{}:
	default:
	}
	return nil
}

// CancelSession cancels a running session's context and waits for it to
// finish.
func (w *Ward) CancelSession(sessionID string) error {
	task, err := w.activeTask(sessionID)
	if err != nil {
		return err
	}
	task.cancel()
	<-task.done
	return nil
}

func (w *Ward) activeTask(sessionID string) (*sessionTask, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	w.mu.RLock()
	task, ok := w.tasks[sessionID]
	w.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session not active: %s", sessionID)
	}
	return task, nil
}

// WaitSession blocks until the session finishes or ctx expires and
// returns the session result. Finished sessions resolve immediately for
// as long as their status is retained.
func (w *Ward) WaitSession(ctx context.Context, sessionID string) (session.Result, error) {
	w.mu.RLock()
	task, ok := w.tasks[sessionID]
	if !ok {
		task, ok = w.finished[sessionID]
	}
	w.mu.RUnlock()
	if !ok {
		return session.Result{}, fmt.Errorf("session not found: %s", sessionID)
	}

	select {
	case <-ctx.Done():
		return session.Result{}, ctx.Err()
	case <-task.done:
	}
	if task.err != nil {
		if task.result != nil {
			return *task.result, task.err
		}
		return session.Result{}, task.err
	}
	return *task.result, nil
}

func (w *Ward) Sessions() []SessionStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()

	ids := make([]string, 0, len(w.tasks)+len(w.finished))
	for id := range w.tasks {
		ids = append(ids, id)
	}
	for id := range w.finished {
		if _, active := w.tasks[id]; active {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]SessionStatus, 0, len(ids))
	for _, id := range ids {
		if task, ok := w.tasks[id]; ok {
			out = append(out, taskStatus(task, true))
			continue
		}
		out = append(out, taskStatus(w.finished[id], false))
	}
	return out
}

func (w *Ward) resolveProfile(ctx context.Context, explicit *profile.Profile, citizenID, profileID string) (profile.Profile, error) {
	if explicit != nil {
		return explicit.Clone(), nil
	}
	if citizenID != "" {
		w.mu.RLock()
		c, ok := w.citizens[citizenID]
		w.mu.RUnlock()
		if ok {
			return c.Profile(), nil
		}
	}
	if profileID != "" {
		record, ok, err := w.store.GetProfile(ctx, profileID)
		if err != nil {
			return profile.Profile{}, err
		}
		if ok {
			return record.Profile(), nil
		}
		return profile.ConstructProfile(profileID)
	}
	return profile.ConstructProfile(profile.BaselineProfileName)
}

func citizenStatus(c *citizen.Citizen) CitizenStatus {
	snap := c.Snapshot()
	return CitizenStatus{
		CitizenID: snap.ID,
		ProfileID: c.Profile().ID,
		State:     snap.State.String(),
		Active:    snap.Active,
		Ticks:     snap.Ticks,
	}
}

func taskStatus(task *sessionTask, running bool) SessionStatus {
	status := SessionStatus{
		SessionID:  task.sessionID,
		CitizenID:  task.citizenID,
		ProfileID:  task.profileID,
		SourceName: task.sourceName,
		Running:    running,
		StartedAt:  task.startedAt,
	}
	if task.result != nil {
		status.Outcome = task.result.Outcome
		status.FinalState = task.result.Final.State.String()
		status.Ticks = task.result.Ticks
		status.DurationSeconds = task.result.ElapsedSeconds
	}
	if task.err != nil {
		status.Error = task.err.Error()
	}
	return status
}

func isValidStopReason(reason StopReason) bool {
	switch reason {
	case StopReasonNormal, StopReasonShutdown:
		return true
	default:
		return false
	}
}
