package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dramaflow/internal/config"
	"dramaflow/internal/logging"
	"dramaflow/internal/services"
	"dramaflow/internal/stage"
)

// Request is what a Backend receives for one task.
type Request struct {
	TaskID string
	Type   Type
	Params Params
}

// ProgressFunc receives 0-99 progress updates from a Backend. Values that do
// not increase the task's progress are ignored.
type ProgressFunc func(percent int)

// Backend generates the media for a request and returns its result URL. It
// must return promptly with ctx.Err() once ctx is cancelled.
type Backend interface {
	Submit(ctx context.Context, req Request, progress ProgressFunc) (string, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, req Request, progress ProgressFunc) (string, error)

// Submit calls f.
func (f BackendFunc) Submit(ctx context.Context, req Request, progress ProgressFunc) (string, error) {
	return f(ctx, req, progress)
}

// NewBackend builds the backend selected by cfg.Backend.
func NewBackend(cfg config.Tasks, logger *slog.Logger) (Backend, error) {
	switch cfg.Backend {
	case "", config.BackendSimulated:
		return &SimulatedBackend{}, nil
	case config.BackendHTTP:
		return NewHTTPBackend(cfg.BackendURL, cfg.BackendAPIKey,
			WithPollInterval(time.Duration(cfg.PollIntervalMS)*time.Millisecond),
			WithBackendLogger(logger),
		)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "tasks", "select backend", fmt.Sprintf("unknown backend %q", cfg.Backend), nil)
	}
}

// SimulatedBackend pretends to generate media: it reports progress in Steps
// equal increments, one every StepDelay, then returns a deterministic
// memory:// URL.
type SimulatedBackend struct {
	Steps     int
	StepDelay time.Duration
	// Fail, when set, is consulted before generating and its error returned.
	Fail func(Request) error
}

const (
	defaultSimulatedSteps = 5
	defaultSimulatedDelay = 400 * time.Millisecond
)

// Submit implements Backend.
func (b *SimulatedBackend) Submit(ctx context.Context, req Request, progress ProgressFunc) (string, error) {
	if b.Fail != nil {
		if err := b.Fail(req); err != nil {
			return "", err
		}
	}
	steps := b.Steps
	if steps <= 0 {
		steps = defaultSimulatedSteps
	}
	delay := b.StepDelay
	if delay == 0 {
		delay = defaultSimulatedDelay
	}
	for i := 1; i <= steps; i++ {
		if err := stage.Sleep(ctx, delay); err != nil {
			return "", err
		}
		if i < steps && progress != nil {
			progress(i * 100 / steps)
		}
	}
	return fmt.Sprintf("memory://generated/%s/%s.%s", req.Type, req.TaskID, Extension(req.Type)), nil
}

// HealthCheck implements stage.HealthChecker.
func (b *SimulatedBackend) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("simulated backend")
}

// Extension is the file extension used for downloaded results of t.
func Extension(t Type) string {
	if t == TypeVideo {
		return "mp4"
	}
	return "png"
}

// DownloadName is the suggested local filename for a task's result.
func DownloadName(task Task) string {
	return fmt.Sprintf("%s_%s.%s", task.Type, task.ID, Extension(task.Type))
}

// HTTPBackend submits generations to a remote service and polls for the
// result:
//
//	POST   {base}/generations       -> {"id", "status", "progress", ...}
//	GET    {base}/generations/{id}  -> {"id", "status", "progress", "result_url", "error"}
//	DELETE {base}/generations/{id}  (best effort, on cancellation)
type HTTPBackend struct {
	baseURL      string
	apiKey       string
	client       *http.Client
	pollInterval time.Duration
	logger       *slog.Logger
}

// HTTPOption customizes an HTTPBackend.
type HTTPOption func(*HTTPBackend)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(b *HTTPBackend) {
		if client != nil {
			b.client = client
		}
	}
}

// WithPollInterval sets the delay between status polls.
func WithPollInterval(d time.Duration) HTTPOption {
	return func(b *HTTPBackend) {
		if d > 0 {
			b.pollInterval = d
		}
	}
}

// WithBackendLogger attaches a logger.
func WithBackendLogger(logger *slog.Logger) HTTPOption {
	return func(b *HTTPBackend) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewHTTPBackend validates baseURL and builds the backend.
func NewHTTPBackend(baseURL, apiKey string, opts ...HTTPOption) (*HTTPBackend, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	parsed, err := url.Parse(baseURL)
	if baseURL == "" || err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, services.Wrap(services.ErrConfiguration, "tasks", "http backend", fmt.Sprintf("invalid backend url %q", baseURL), err)
	}
	b := &HTTPBackend{
		baseURL:      baseURL,
		apiKey:       strings.TrimSpace(apiKey),
		client:       &http.Client{Timeout: 30 * time.Second},
		pollInterval: 2 * time.Second,
		logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = logging.NewComponentLogger(b.logger, "tasks.http")
	return b, nil
}

type generationRequest struct {
	ClientTaskID string `json:"client_task_id"`
	Type         Type   `json:"type"`
	Params
}

type generationStatus struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Progress  int    `json:"progress"`
	ResultURL string `json:"result_url"`
	Error     string `json:"error"`
}

// Submit implements Backend.
func (b *HTTPBackend) Submit(ctx context.Context, req Request, progress ProgressFunc) (string, error) {
	body, err := json.Marshal(generationRequest{ClientTaskID: req.TaskID, Type: req.Type, Params: req.Params})
	if err != nil {
		return "", fmt.Errorf("encode generation request: %w", err)
	}
	var status generationStatus
	if err := b.do(ctx, http.MethodPost, b.baseURL+"/generations", body, &status); err != nil {
		return "", err
	}
	if status.ID == "" {
		return "", services.Wrap(services.ErrProvider, "tasks", "submit generation", "response carried no generation id", nil)
	}
	remoteID := status.ID
	for {
		if progress != nil && status.Progress > 0 {
			progress(status.Progress)
		}
		switch strings.ToLower(status.Status) {
		case "completed", "succeeded", "success":
			if status.ResultURL == "" {
				return "", services.Wrap(services.ErrProvider, "tasks", "poll generation", "completed without a result url", nil)
			}
			return status.ResultURL, nil
		case "failed", "error", "cancelled", "canceled":
			msg := status.Error
			if msg == "" {
				msg = "generation " + status.Status
			}
			return "", services.Wrap(services.ErrProvider, "tasks", "poll generation", msg, nil)
		}
		if err := stage.Sleep(ctx, b.pollInterval); err != nil {
			b.abandon(remoteID)
			return "", err
		}
		if err := b.do(ctx, http.MethodGet, b.baseURL+"/generations/"+url.PathEscape(remoteID), nil, &status); err != nil {
			if ctx.Err() != nil {
				b.abandon(remoteID)
				return "", ctx.Err()
			}
			return "", err
		}
	}
}

// abandon asks the service to drop a generation nobody is waiting for.
func (b *HTTPBackend) abandon(remoteID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.do(ctx, http.MethodDelete, b.baseURL+"/generations/"+url.PathEscape(remoteID), nil, nil); err != nil {
		b.logger.Debug("abandon generation failed",
			logging.String("remote_id", remoteID),
			logging.Error(err),
		)
	}
}

func (b *HTTPBackend) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return services.Wrap(services.ErrTransient, "tasks", method+" generation", "request failed", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return services.Wrap(services.ErrProvider, "tasks", method+" generation",
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(payload))), nil)
	}
	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return services.Wrap(services.ErrProvider, "tasks", method+" generation", "decode response", err)
	}
	return nil
}

// HealthCheck implements stage.HealthChecker.
func (b *HTTPBackend) HealthCheck(context.Context) stage.Health {
	if b.baseURL == "" {
		return stage.Unhealthy("http backend", "backend url not configured")
	}
	return stage.Healthy("http backend")
}
