package notifications

import (
	"context"
	"log/slog"
	"time"

	"dramaflow/internal/events"
	"dramaflow/internal/logging"
	"dramaflow/internal/tasks"
)

// Forwarder relays terminal workflow and task events from a bus to a
// Service. Delivery runs on the subscription's goroutine, so a slow ntfy
// server only delays later notifications.
type Forwarder struct {
	svc     Service
	logger  *slog.Logger
	timeout time.Duration
}

// NewForwarder wraps svc. A nil logger discards delivery failures.
func NewForwarder(svc Service, logger *slog.Logger) *Forwarder {
	if svc == nil {
		svc = noopService{}
	}
	return &Forwarder{
		svc:     svc,
		logger:  logging.NewComponentLogger(logger, "notifications"),
		timeout: 15 * time.Second,
	}
}

// Attach subscribes the forwarder to bus.
func (f *Forwarder) Attach(bus *events.Bus) *events.Subscription {
	return bus.Subscribe(f)
}

// Notify implements events.Observer.
func (f *Forwarder) Notify(evt events.Event) {
	event, payload, ok := translate(evt)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()
	if err := f.svc.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(f.logger, "notification delivery failed", "notification_failed",
			logging.String("notification", string(event)),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network reachability"),
			logging.String(logging.FieldImpact, "operator was not notified"),
			logging.Error(err),
		)
	}
}

func translate(evt events.Event) (Event, Payload, bool) {
	switch evt.Kind {
	case events.KindComplete:
		return EventWorkflowCompleted, Payload{
			"project": evt.ProjectID,
			"url":     evt.Message,
		}, true
	case events.KindError:
		return EventWorkflowFailed, Payload{
			"project": evt.ProjectID,
			"step":    evt.Step,
			"error":   evt.Message,
		}, true
	case events.KindTaskStatus:
		payload := Payload{"taskType": evt.Step}
		if task, ok := evt.Payload.(tasks.Task); ok {
			payload["prompt"] = task.Prompt
		}
		switch evt.Status {
		case string(tasks.StatusCompleted):
			payload["url"] = evt.Message
			return EventTaskCompleted, payload, true
		case string(tasks.StatusFailed):
			payload["error"] = evt.Message
			return EventTaskFailed, payload, true
		}
	}
	return "", nil, false
}
