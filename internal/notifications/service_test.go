package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"dramaflow/internal/config"
	"dramaflow/internal/events"
	"dramaflow/internal/notifications"
	"dramaflow/internal/tasks"
)

type capture struct {
	title    string
	tags     string
	priority string
	body     string
}

type ntfyServer struct {
	mu    sync.Mutex
	calls []capture
	*httptest.Server
}

func newNtfyServer(t *testing.T) *ntfyServer {
	t.Helper()
	s := &ntfyServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		s.mu.Lock()
		s.calls = append(s.calls, capture{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		s.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *ntfyServer) captured() []capture {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]capture(nil), s.calls...)
}

func configFor(url string) *config.Config {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = url
	cfg.Notifications.RequestTimeout = 5
	cfg.Notifications.Workflow = true
	cfg.Notifications.Tasks = true
	cfg.Notifications.Errors = true
	return &cfg
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventWorkflowCompleted, notifications.Payload{"project": "x"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:           "workflow completed",
			event:          notifications.EventWorkflowCompleted,
			payload:        notifications.Payload{"project": "moon-river", "url": "file:///tmp/moon-river/manifest.json"},
			expectTitle:    "Dramaflow - Workflow Complete",
			expectMessage:  "✅ Drama ready: moon-river\nExport: file:///tmp/moon-river/manifest.json",
			expectTags:     "dramaflow,workflow,completed",
			expectPriority: "high",
		},
		{
			name:           "workflow failed",
			event:          notifications.EventWorkflowFailed,
			payload:        notifications.Payload{"project": "moon-river", "step": "novel-parse", "error": "provider failure"},
			expectTitle:    "Dramaflow - Error",
			expectMessage:  "❌ Workflow failed for moon-river at novel-parse: provider failure",
			expectTags:     "dramaflow,workflow,error",
			expectPriority: "high",
		},
		{
			name:          "task completed",
			event:         notifications.EventTaskCompleted,
			payload:       notifications.Payload{"taskType": "image", "prompt": "a  red\nkite", "url": "memory://x.png"},
			expectTitle:   "Dramaflow - Generation Complete",
			expectMessage: "🎨 Image ready: a red kite\nmemory://x.png",
			expectTags:    "dramaflow,task,image",
		},
		{
			name:           "task failed",
			event:          notifications.EventTaskFailed,
			payload:        notifications.Payload{"taskType": "video", "error": "quota exceeded"},
			expectTitle:    "Dramaflow - Generation Failed",
			expectMessage:  "❌ Video generation failed: quota exceeded",
			expectTags:     "dramaflow,task,error",
			expectPriority: "high",
		},
		{
			name:           "test",
			event:          notifications.EventTest,
			expectTitle:    "Dramaflow - Test",
			expectMessage:  "🧪 Notification system test",
			expectTags:     "dramaflow,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := newNtfyServer(t)
			svc := notifications.NewService(configFor(server.URL))
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}
			calls := server.captured()
			if len(calls) != 1 {
				t.Fatalf("expected 1 call, got %d", len(calls))
			}
			got := calls[0]
			if got.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, got.title)
			}
			if got.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, got.body)
			}
			if got.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, got.tags)
			}
			if got.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, got.priority)
			}
		})
	}
}

func TestNtfyServiceIgnoresDisabledCategories(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call for suppressed event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := configFor(server.URL)
	cfg.Notifications.Workflow = false
	cfg.Notifications.Tasks = false
	cfg.Notifications.Errors = false
	svc := notifications.NewService(cfg)

	for _, event := range []notifications.Event{
		notifications.EventWorkflowCompleted,
		notifications.EventWorkflowFailed,
		notifications.EventTaskCompleted,
		notifications.EventTaskFailed,
		notifications.Event("unknown"),
	} {
		if err := svc.Publish(context.Background(), event, notifications.Payload{"value": "ignored"}); err != nil {
			t.Fatalf("expected no error for suppressed event %s, got %v", event, err)
		}
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	svc := notifications.NewService(configFor(server.URL))
	err := svc.Publish(context.Background(), notifications.EventTest, nil)
	if err == nil || !strings.Contains(err.Error(), "ntfy returned 403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}

func TestForwarderRelaysTerminalEvents(t *testing.T) {
	server := newNtfyServer(t)
	bus := events.NewBus(nil)
	defer func() { _ = bus.Close(context.Background()) }()
	fwd := notifications.NewForwarder(notifications.NewService(configFor(server.URL)), nil)
	sub := fwd.Attach(bus)
	defer sub.Close()

	bus.Publish(events.Event{Kind: events.KindProgress, ProjectID: "p", Progress: 40})
	bus.Publish(events.Event{Kind: events.KindTaskStatus, Status: "generating", Step: "image"})
	bus.Publish(events.Event{
		Kind:    events.KindTaskStatus,
		Status:  "completed",
		Step:    "image",
		Message: "memory://img.png",
		Payload: tasks.Task{Prompt: "lantern festival"},
	})
	bus.Publish(events.Event{Kind: events.KindError, ProjectID: "p", Step: "script-generate", Message: "boom"})
	bus.Publish(events.Event{Kind: events.KindComplete, ProjectID: "p", Message: "file:///x"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := bus.Sync(ctx); err != nil {
		t.Fatalf("sync: %v", err)
	}
	calls := server.captured()
	if len(calls) != 3 {
		t.Fatalf("expected 3 notifications, got %d: %+v", len(calls), calls)
	}
	if calls[0].body != "🎨 Image ready: lantern festival\nmemory://img.png" {
		t.Fatalf("unexpected task body %q", calls[0].body)
	}
	if calls[1].body != "❌ Workflow failed for p at script-generate: boom" {
		t.Fatalf("unexpected failure body %q", calls[1].body)
	}
	if calls[2].title != "Dramaflow - Workflow Complete" {
		t.Fatalf("unexpected completion title %q", calls[2].title)
	}
}
