package session

import (
	"eunomia/internal/citizen"
	"eunomia/internal/model"
)

// Recorder collects the session timeline and event log. It records
// every Nth tick plus every tick where the state changed, so terminal
// transitions always land in the timeline.
type Recorder struct {
	every int

	points    []model.TimelinePoint
	events    []model.EventRecord
	lastState citizen.State
	lastTick  int
}

func NewRecorder(every int) *Recorder {
	if every <= 0 {
		every = DefaultRecordEvery
	}
	return &Recorder{every: every, lastState: citizen.StateIdle}
}

// Notify implements citizen.Observer.
func (r *Recorder) Notify(e citizen.Event) {
	r.events = append(r.events, model.EventRecord{
		Kind: string(e.Kind),
		Tick: e.Tick,
		At:   e.At,
	})
}

// Observe is called once per tick with the post-tick snapshot.
func (r *Recorder) Observe(snap citizen.Snapshot) {
	if snap.Ticks%r.every == 0 || snap.State != r.lastState {
		r.record(snap)
	}
	r.lastState = snap.State
}

// Flush records the final snapshot if the last tick fell between
// recording points.
func (r *Recorder) Flush(snap citizen.Snapshot) {
	if snap.Ticks == 0 || snap.Ticks == r.lastTick {
		return
	}
	r.record(snap)
}

func (r *Recorder) record(snap citizen.Snapshot) {
	if snap.Ticks == r.lastTick && len(r.points) > 0 {
		return
	}
	r.points = append(r.points, model.TimelinePoint{
		Tick:        snap.Ticks,
		At:          snap.Elapsed,
		State:       string(snap.State),
		RawScore:    snap.RawScore,
		Score:       snap.Score,
		Instability: snap.Instability,
		Compliance:  snap.Compliance,
		Multiplier:  snap.Multiplier,
	})
	r.lastTick = snap.Ticks
}

func (r *Recorder) Timeline() []model.TimelinePoint {
	return r.points
}

func (r *Recorder) Events() []model.EventRecord {
	return r.events
}
