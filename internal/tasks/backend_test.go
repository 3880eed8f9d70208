package tasks_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dramaflow/internal/config"
	"dramaflow/internal/services"
	"dramaflow/internal/tasks"
)

func TestSimulatedBackendReportsProgress(t *testing.T) {
	backend := &tasks.SimulatedBackend{Steps: 4, StepDelay: time.Millisecond}
	var got []int
	url, err := backend.Submit(context.Background(), tasks.Request{TaskID: "t1", Type: tasks.TypeVideo}, func(p int) {
		got = append(got, p)
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if url != "memory://generated/video/t1.mp4" {
		t.Fatalf("unexpected url %q", url)
	}
	if len(got) != 3 || got[0] != 25 || got[2] != 75 {
		t.Fatalf("unexpected progress %v", got)
	}
}

func TestSimulatedBackendHonorsCancellation(t *testing.T) {
	backend := &tasks.SimulatedBackend{Steps: 3, StepDelay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := backend.Submit(ctx, tasks.Request{TaskID: "t"}, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewBackendSelection(t *testing.T) {
	if b, err := tasks.NewBackend(config.Tasks{Backend: config.BackendSimulated}, nil); err != nil {
		t.Fatalf("simulated: %v", err)
	} else if _, ok := b.(*tasks.SimulatedBackend); !ok {
		t.Fatalf("expected simulated backend, got %T", b)
	}
	if _, err := tasks.NewBackend(config.Tasks{Backend: config.BackendHTTP}, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for missing url, got %v", err)
	}
	if _, err := tasks.NewBackend(config.Tasks{Backend: "carrier-pigeon"}, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

type fakeService struct {
	mu      sync.Mutex
	polls   atomic.Int32
	deleted atomic.Int32
	body    map[string]any
	steps   []map[string]any
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer secret" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/generations":
		f.mu.Lock()
		_ = json.NewDecoder(r.Body).Decode(&f.body)
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "remote-1", "status": "pending"})
	case r.Method == http.MethodGet && r.URL.Path == "/generations/remote-1":
		n := int(f.polls.Add(1)) - 1
		if n >= len(f.steps) {
			n = len(f.steps) - 1
		}
		_ = json.NewEncoder(w).Encode(f.steps[n])
	case r.Method == http.MethodDelete && r.URL.Path == "/generations/remote-1":
		f.deleted.Add(1)
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func newHTTPBackend(t *testing.T, svc *fakeService) *tasks.HTTPBackend {
	t.Helper()
	server := httptest.NewServer(svc)
	t.Cleanup(server.Close)
	backend, err := tasks.NewHTTPBackend(server.URL+"/", "secret", tasks.WithPollInterval(time.Millisecond))
	if err != nil {
		t.Fatalf("NewHTTPBackend: %v", err)
	}
	return backend
}

func TestHTTPBackendPollsUntilComplete(t *testing.T) {
	svc := &fakeService{steps: []map[string]any{
		{"id": "remote-1", "status": "running", "progress": 40},
		{"id": "remote-1", "status": "running", "progress": 80},
		{"id": "remote-1", "status": "completed", "progress": 100, "result_url": "https://cdn.example.com/v.mp4"},
	}}
	backend := newHTTPBackend(t, svc)

	var progress []int
	req := tasks.Request{TaskID: "t1", Type: tasks.TypeVideo, Params: tasks.Params{Prompt: "sea", Duration: 10}}
	url, err := backend.Submit(context.Background(), req, func(p int) { progress = append(progress, p) })
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if url != "https://cdn.example.com/v.mp4" {
		t.Fatalf("unexpected url %q", url)
	}
	if len(progress) < 2 || progress[0] != 40 || progress[1] != 80 {
		t.Fatalf("unexpected progress %v", progress)
	}
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if svc.body["client_task_id"] != "t1" || svc.body["type"] != "video" || svc.body["prompt"] != "sea" {
		t.Fatalf("unexpected request body %v", svc.body)
	}
}

func TestHTTPBackendReportsRemoteFailure(t *testing.T) {
	svc := &fakeService{steps: []map[string]any{
		{"id": "remote-1", "status": "failed", "error": "content policy"},
	}}
	backend := newHTTPBackend(t, svc)
	_, err := backend.Submit(context.Background(), tasks.Request{TaskID: "t1", Type: tasks.TypeImage}, nil)
	if !errors.Is(err, services.ErrProvider) || !strings.Contains(err.Error(), "content policy") {
		t.Fatalf("expected provider error with remote message, got %v", err)
	}
}

func TestHTTPBackendAbandonsOnCancel(t *testing.T) {
	svc := &fakeService{steps: []map[string]any{
		{"id": "remote-1", "status": "running", "progress": 10},
	}}
	backend := newHTTPBackend(t, svc)
	ctx, cancel := context.WithCancel(context.Background())
	_, err := backend.Submit(ctx, tasks.Request{TaskID: "t1", Type: tasks.TypeImage}, func(int) { cancel() })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if svc.deleted.Load() != 1 {
		t.Fatalf("expected one DELETE, got %d", svc.deleted.Load())
	}
}

func TestHTTPBackendRejectsBadCredentials(t *testing.T) {
	server := httptest.NewServer(&fakeService{})
	defer server.Close()
	backend, err := tasks.NewHTTPBackend(server.URL, "wrong")
	if err != nil {
		t.Fatalf("NewHTTPBackend: %v", err)
	}
	_, err = backend.Submit(context.Background(), tasks.Request{TaskID: "t1", Type: tasks.TypeImage}, nil)
	if !errors.Is(err, services.ErrProvider) || !strings.Contains(err.Error(), "http 401") {
		t.Fatalf("expected http 401 provider error, got %v", err)
	}
}
