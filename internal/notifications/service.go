package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dramaflow/internal/config"
)

const userAgent = "Dramaflow-Go/0.1.0"

// Event names a notification type.
type Event string

const (
	EventWorkflowCompleted Event = "workflow_completed"
	EventWorkflowFailed    Event = "workflow_failed"
	EventTaskCompleted     Event = "task_completed"
	EventTaskFailed        Event = "task_failed"
	EventTest              Event = "test"
)

// Payload carries event fields: project, step, url, error, taskType, prompt.
type Payload map[string]any

func (p Payload) str(key string) string {
	if p == nil {
		return ""
	}
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// Service publishes notifications.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		workflow: cfg.Notifications.Workflow,
		tasks:    cfg.Notifications.Tasks,
		errors:   cfg.Notifications.Errors,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	workflow bool
	tasks    bool
	errors   bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.enabled(event) {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) enabled(event Event) bool {
	switch event {
	case EventWorkflowCompleted:
		return n.workflow
	case EventTaskCompleted:
		return n.tasks
	case EventWorkflowFailed, EventTaskFailed:
		return n.errors
	case EventTest:
		return true
	}
	return false
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventWorkflowCompleted:
		body := fmt.Sprintf("✅ Drama ready: %s", orUnknown(payload.str("project")))
		if url := payload.str("url"); url != "" {
			body += "\nExport: " + url
		}
		return message{
			title:    "Dramaflow - Workflow Complete",
			body:     body,
			tags:     []string{"dramaflow", "workflow", "completed"},
			priority: "high",
		}, true
	case EventWorkflowFailed:
		var b strings.Builder
		b.WriteString("❌ Workflow failed")
		if project := payload.str("project"); project != "" {
			b.WriteString(" for ")
			b.WriteString(project)
		}
		if step := payload.str("step"); step != "" {
			b.WriteString(" at ")
			b.WriteString(step)
		}
		b.WriteString(": ")
		b.WriteString(orUnknown(payload.str("error")))
		return message{
			title:    "Dramaflow - Error",
			body:     b.String(),
			tags:     []string{"dramaflow", "workflow", "error"},
			priority: "high",
		}, true
	case EventTaskCompleted:
		kind := orUnknown(payload.str("taskType"))
		body := fmt.Sprintf("🎨 %s ready: %s", capitalize(kind), snippet(payload.str("prompt"), 80))
		if url := payload.str("url"); url != "" {
			body += "\n" + url
		}
		return message{
			title: "Dramaflow - Generation Complete",
			body:  body,
			tags:  []string{"dramaflow", "task", kind},
		}, true
	case EventTaskFailed:
		kind := orUnknown(payload.str("taskType"))
		return message{
			title:    "Dramaflow - Generation Failed",
			body:     fmt.Sprintf("❌ %s generation failed: %s", capitalize(kind), orUnknown(payload.str("error"))),
			tags:     []string{"dramaflow", "task", "error"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Dramaflow - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"dramaflow", "test"},
			priority: "low",
		}, true
	}
	return message{}, false
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func snippet(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if runes := []rune(s); len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return s
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
