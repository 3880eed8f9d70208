package tasks

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"dramaflow/internal/services"
)

var (
	// ErrNotFound is returned for an unknown task ID. It matches
	// services.ErrNotFound.
	ErrNotFound = fmt.Errorf("task %w", services.ErrNotFound)
	// ErrNotRetryable is returned by Retry for tasks that did not fail or get
	// cancelled.
	ErrNotRetryable = errors.New("task is not retryable")
	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("task tracker closed")
)

// Type is the kind of media a task generates.
type Type string

const (
	TypeImage Type = "image"
	TypeVideo Type = "video"
)

// Valid reports whether t is image or video.
func (t Type) Valid() bool {
	return t == TypeImage || t == TypeVideo
}

// ParseType converts user input to a Type.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown task type %q (want image or video)", s)
	}
	return t, nil
}

// Status is a task lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusGenerating Status = "generating"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// IsTerminal reports whether no further transition can leave s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// ParseStatus converts user input to a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusGenerating, StatusCompleted, StatusFailed, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown task status %q", s)
}

// Task is a read-only snapshot of a generation task. ResultURL is set only
// when Status is completed and Error only when it is failed.
type Task struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Status    Status    `json:"status"`
	Progress  int       `json:"progress"`
	Prompt    string    `json:"prompt"`
	Params    Params    `json:"params"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ResultURL string    `json:"result_url,omitempty"`
	Error     string    `json:"error,omitempty"`
	// RetryOf names the task this one was cloned from by Retry.
	RetryOf string `json:"retry_of,omitempty"`
	// Cached marks a result served from the result cache.
	Cached bool `json:"cached,omitempty"`
}

// Duration is the time from creation to the last update.
func (t Task) Duration() time.Duration {
	if t.UpdatedAt.Before(t.CreatedAt) {
		return 0
	}
	return t.UpdatedAt.Sub(t.CreatedAt)
}
