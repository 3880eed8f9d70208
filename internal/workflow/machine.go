package workflow

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidTransition is returned when an operation is not valid in the
	// engine's current status. The state is left untouched.
	ErrInvalidTransition = errors.New("invalid workflow transition")
	// ErrBusy is returned by Start while a run is active.
	ErrBusy = errors.New("workflow run already active")

	errSuperseded = errors.New("workflow run superseded")
)

// State is an immutable snapshot of the engine.
type State struct {
	RunID     string `json:"run_id,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
	Step      Step   `json:"step"`
	Progress  int    `json:"progress"`
	Status    Status `json:"status"`
	// Error is set only while Status is error.
	Error string `json:"error,omitempty"`
	// Halted marks a running run waiting at a checkpoint for Advance.
	Halted    bool      `json:"halted,omitempty"`
	Data      Data      `json:"data"`
	UpdatedAt time.Time `json:"updated_at"`
}

func initialState() State {
	return State{Step: StepNovelUpload, Status: StatusIdle}
}

func (s State) clone() State {
	s.Data = s.Data.Clone()
	return s
}

type event int

const (
	evStart event = iota
	evEnterStage
	evProgress
	evStageDone
	evCheckpoint
	evPause
	evResume
	evCancel
	evFail
	evComplete
	evReset
)

var eventNames = [...]string{
	evStart:      "start",
	evEnterStage: "enter-stage",
	evProgress:   "progress",
	evStageDone:  "stage-done",
	evCheckpoint: "checkpoint",
	evPause:      "pause",
	evResume:     "resume",
	evCancel:     "cancel",
	evFail:       "fail",
	evComplete:   "complete",
	evReset:      "reset",
}

func (e event) String() string {
	if int(e) < len(eventNames) {
		return eventNames[e]
	}
	return fmt.Sprintf("event(%d)", int(e))
}

// change is one event plus its arguments. Only the fields relevant to kind
// are read.
type change struct {
	kind      event
	runID     string
	projectID string
	step      Step
	progress  int
	artifact  Artifact
	message   string
}

// transition is the engine's only way to derive a new state. It never
// mutates s and rejects any (status, event) pair not listed below.
func transition(s State, c change) (State, error) {
	reject := func(reason string) (State, error) {
		return s, fmt.Errorf("%w: %s while %s: %s", ErrInvalidTransition, c.kind, s.Status, reason)
	}
	active := s.Status == StatusRunning || s.Status == StatusPaused

	switch c.kind {
	case evStart:
		if s.Status != StatusIdle {
			return reject("reset the workflow first")
		}
		return State{
			RunID:     c.runID,
			ProjectID: c.projectID,
			Step:      StepNovelUpload,
			Status:    StatusRunning,
			Data:      Data{ProjectID: c.projectID},
		}, nil

	case evEnterStage:
		if s.Status != StatusRunning {
			return reject("stages only start while running")
		}
		if c.step != s.Step && c.step != s.Step+1 {
			return reject(fmt.Sprintf("cannot move from %s to %s", s.Step, c.step))
		}
		s.Step = c.step
		s.Halted = false
		s.Progress = max(s.Progress, c.step.Budget().Low)
		return s, nil

	case evProgress:
		if !active {
			return reject("no stage in flight")
		}
		if c.progress >= 100 {
			return reject("progress 100 is reserved for completion")
		}
		s.Progress = max(s.Progress, c.progress)
		return s, nil

	case evStageDone:
		if !active {
			return reject("no stage in flight")
		}
		if c.artifact == nil || c.artifact.Step() != s.Step {
			return reject(fmt.Sprintf("artifact does not belong to %s", s.Step))
		}
		if c.progress >= 100 {
			return reject("progress 100 is reserved for completion")
		}
		s.Data = s.Data.with(c.artifact)
		s.Progress = max(s.Progress, c.progress)
		return s, nil

	case evCheckpoint:
		if s.Status != StatusRunning {
			return reject("checkpoints are only reached while running")
		}
		if c.step < s.Step {
			return reject(fmt.Sprintf("cannot move from %s back to %s", s.Step, c.step))
		}
		s.Step = c.step
		s.Halted = true
		s.Progress = max(s.Progress, c.step.Budget().Halt)
		return s, nil

	case evPause:
		if s.Status != StatusRunning {
			return reject("only a running workflow can pause")
		}
		s.Status = StatusPaused
		return s, nil

	case evResume:
		if s.Status != StatusPaused {
			return reject("only a paused workflow can resume")
		}
		s.Status = StatusRunning
		return s, nil

	case evCancel:
		if !active {
			return reject("nothing to cancel")
		}
		s.Status = StatusIdle
		s.Progress = 0
		s.Halted = false
		return s, nil

	case evFail:
		if !active {
			return reject("nothing to fail")
		}
		s.Status = StatusError
		s.Error = c.message
		if s.Error == "" {
			s.Error = "workflow failed"
		}
		s.Halted = false
		return s, nil

	case evComplete:
		if s.Status != StatusRunning {
			return reject("only a running workflow can complete")
		}
		if s.Step != StepExport || !s.Data.Has(StepExport) {
			return reject("export has not produced its artifact")
		}
		s.Status = StatusCompleted
		s.Progress = 100
		return s, nil

	case evReset:
		return initialState(), nil
	}
	return reject("unknown event")
}
