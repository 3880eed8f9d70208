package workflow

// Status is the engine's run status. Exactly one holds at any instant.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Terminal reports whether the status ends a run and requires Reset before
// the next Start.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}
