package events

import "time"

// Kind names an event category.
type Kind string

const (
	KindStepChange   Kind = "step-change"
	KindProgress     Kind = "progress"
	KindStatusChange Kind = "status-change"
	KindError        Kind = "error"
	KindComplete     Kind = "complete"
	KindTaskProgress Kind = "task-progress"
	KindTaskStatus   Kind = "task-status"
)

// Event is one notification. Fields that do not apply to a kind are zero.
type Event struct {
	// Seq is assigned by the bus and increases by one per published event.
	Seq  uint64
	Kind Kind
	Time time.Time
	// Source is the workflow run ID or the generation task ID.
	Source    string
	ProjectID string

	Step         string
	PreviousStep string
	Progress     int
	Status       string
	// PreviousStatus is set on status-change and task-status events.
	PreviousStatus string
	Message        string

	// Payload carries an immutable snapshot: workflow.State for workflow
	// events, tasks.Task for task events.
	Payload any
}

// Observer receives events in publication order on a goroutine owned by its
// subscription.
type Observer interface {
	Notify(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Notify calls f(e).
func (f ObserverFunc) Notify(e Event) { f(e) }
