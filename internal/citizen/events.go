package citizen

type EventKind string

const (
	EventStabilized      EventKind = "stabilized"
	EventCriticalFailure EventKind = "critical_failure"
)

// Event is a one-shot notification emitted the tick a citizen enters a
// terminal state. Tick and At are the citizen's own tick counter and
// accumulated stimulation seconds.
type Event struct {
	CitizenID string
	Kind      EventKind
	Tick      int
	At        float64
}

// Observer receives terminal notifications synchronously on the tick
// goroutine. Implementations must not block; anything slow should hand
// the event off to its own channel.
type Observer interface {
	Notify(Event)
}

type ObserverFunc func(Event)

func (f ObserverFunc) Notify(e Event) {
	f(e)
}
