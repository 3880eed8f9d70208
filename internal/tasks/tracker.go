package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"dramaflow/internal/config"
	"dramaflow/internal/events"
	"dramaflow/internal/logging"
	"dramaflow/internal/services"
)

// Archive receives a copy of every task that reaches a terminal status.
type Archive interface {
	Record(ctx context.Context, task Task) error
}

// Tracker owns a set of generation tasks. All methods are safe for
// concurrent use.
type Tracker struct {
	backend Backend
	bus     *events.Bus
	ownsBus bool
	logger  *slog.Logger
	sampler *logging.ProgressSampler
	archive Archive
	now     func() time.Time

	sem      *semaphore.Weighted
	limiter  *rate.Limiter
	results  *cache.Cache
	cacheTTL time.Duration

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	mu     sync.RWMutex
	tasks  map[string]*entry
	order  []string
	closed bool
}

type entry struct {
	task    Task
	cancel  context.CancelFunc
	settled chan struct{}
}

// Option customizes a Tracker.
type Option func(*Tracker)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithBus publishes task events on bus instead of a private one.
func WithBus(bus *events.Bus) Option {
	return func(t *Tracker) {
		if bus != nil {
			t.bus = bus
		}
	}
}

// WithArchive records terminal tasks in archive.
func WithArchive(archive Archive) Option {
	return func(t *Tracker) { t.archive = archive }
}

// WithMaxConcurrent caps the number of tasks generating at once.
func WithMaxConcurrent(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithRateLimit limits how fast tasks are dispatched to the backend.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(t *Tracker) {
		if perSecond <= 0 {
			t.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		if burst < 1 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithResultCache reuses completed results for identical requests within
// ttl. Zero disables the cache.
func WithResultCache(ttl time.Duration) Option {
	return func(t *Tracker) { t.cacheTTL = ttl }
}

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// ConfigOptions translates the [tasks] config section into options.
func ConfigOptions(cfg config.Tasks) []Option {
	return []Option{
		WithMaxConcurrent(cfg.MaxConcurrent),
		WithRateLimit(cfg.DispatchPerSecond, cfg.DispatchBurst),
		WithResultCache(time.Duration(cfg.ResultCacheTTLSeconds) * time.Second),
	}
}

// NewTracker constructs a tracker that generates through backend.
func NewTracker(backend Backend, opts ...Option) (*Tracker, error) {
	if backend == nil {
		return nil, services.Wrap(services.ErrConfiguration, "tasks", "new tracker", "backend is required", nil)
	}
	t := &Tracker{
		backend: backend,
		logger:  logging.NewNop(),
		sampler: logging.NewProgressSampler(25),
		now:     time.Now,
		sem:     semaphore.NewWeighted(3),
		limiter: rate.NewLimiter(rate.Inf, 1),
		tasks:   make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = logging.NewComponentLogger(t.logger, "tasks")
	if t.bus == nil {
		t.bus = events.NewBus(t.logger)
		t.ownsBus = true
	}
	if t.cacheTTL > 0 {
		t.results = cache.New(t.cacheTTL, 2*t.cacheTTL)
	}
	t.baseCtx, t.stop = context.WithCancel(context.Background())
	return t, nil
}

// Bus returns the bus task events are published on.
func (t *Tracker) Bus() *events.Bus { return t.bus }

// Subscribe registers an observer for task events.
func (t *Tracker) Subscribe(observer events.Observer) *events.Subscription {
	return t.bus.Subscribe(observer)
}

// Submit creates a pending task and starts generating it in the background.
func (t *Tracker) Submit(typ Type, params Params) (string, error) {
	return t.submit(typ, params, "")
}

func (t *Tracker) submit(typ Type, params Params, retryOf string) (string, error) {
	if !typ.Valid() {
		return "", services.Wrap(services.ErrValidation, "tasks", "submit", fmt.Sprintf("unknown task type %q", typ), nil)
	}
	if strings.TrimSpace(params.Prompt) == "" {
		return "", services.Wrap(services.ErrValidation, "tasks", "submit", "prompt is required", nil)
	}

	ctx, cancel := context.WithCancel(t.baseCtx)
	now := t.now()
	e := &entry{
		task: Task{
			ID:        uuid.NewString(),
			Type:      typ,
			Status:    StatusPending,
			Prompt:    params.Prompt,
			Params:    params,
			CreatedAt: now,
			UpdatedAt: now,
			RetryOf:   retryOf,
		},
		cancel:  cancel,
		settled: make(chan struct{}),
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		cancel()
		return "", ErrClosed
	}
	t.tasks[e.task.ID] = e
	t.order = append(t.order, e.task.ID)
	t.publishStatusLocked(e, "")
	t.wg.Add(1)
	t.mu.Unlock()

	t.logger.Info("task submitted",
		logging.String(logging.FieldTaskID, e.task.ID),
		logging.String("task_type", string(typ)),
		logging.String("provider", string(params.Provider)),
		logging.String(logging.FieldEventType, "task_submitted"),
	)
	go t.run(ctx, e)
	return e.task.ID, nil
}

func (t *Tracker) run(ctx context.Context, e *entry) {
	defer t.wg.Done()
	defer e.cancel()
	id := e.task.ID
	defer t.sampler.Forget(id)

	if err := t.sem.Acquire(ctx, 1); err != nil {
		t.settle(e, StatusCancelled, "", "", false)
		return
	}
	defer t.sem.Release(1)
	if err := t.limiter.Wait(ctx); err != nil {
		t.settle(e, StatusCancelled, "", "", false)
		return
	}

	t.mu.Lock()
	if e.task.Status != StatusPending {
		t.mu.Unlock()
		return
	}
	e.task.Status = StatusGenerating
	e.task.UpdatedAt = t.now()
	t.publishStatusLocked(e, StatusPending)
	req := Request{TaskID: id, Type: e.task.Type, Params: e.task.Params}
	t.mu.Unlock()

	key := cacheKey(req.Type, req.Params)
	if url, ok := t.cached(key); ok {
		t.logger.Debug("task served from result cache", logging.String(logging.FieldTaskID, id))
		t.settle(e, StatusCompleted, url, "", true)
		return
	}

	taskCtx := services.WithTaskID(ctx, id)
	url, err := t.backend.Submit(taskCtx, req, func(p int) { t.progress(e, p) })
	switch {
	case ctx.Err() != nil:
		t.settle(e, StatusCancelled, "", "", false)
	case err != nil:
		t.settle(e, StatusFailed, "", err.Error(), false)
		details := services.Details(err)
		logging.WarnWithContext(t.logger, "task failed", "task_failed",
			logging.String(logging.FieldTaskID, id),
			logging.String(logging.FieldErrorKind, string(details.Kind)),
			logging.String(logging.FieldErrorHint, details.Hint),
			logging.String(logging.FieldImpact, "no result produced for this task"),
			logging.Error(err),
		)
	case strings.TrimSpace(url) == "":
		t.settle(e, StatusFailed, "", "backend returned an empty result url", false)
	default:
		if t.results != nil && key != "" {
			t.results.Set(key, url, cache.DefaultExpiration)
		}
		t.settle(e, StatusCompleted, url, "", false)
	}
}

func (t *Tracker) cached(key string) (string, bool) {
	if t.results == nil || key == "" {
		return "", false
	}
	v, ok := t.results.Get(key)
	if !ok {
		return "", false
	}
	url, ok := v.(string)
	return url, ok
}

func (t *Tracker) progress(e *entry, percent int) {
	if percent >= 100 {
		percent = 99
	}
	t.mu.Lock()
	if e.task.Status != StatusGenerating || percent <= e.task.Progress {
		t.mu.Unlock()
		return
	}
	e.task.Progress = percent
	e.task.UpdatedAt = t.now()
	snapshot := e.task
	t.bus.Publish(events.Event{
		Kind:     events.KindTaskProgress,
		Source:   snapshot.ID,
		Step:     string(snapshot.Type),
		Progress: snapshot.Progress,
		Status:   string(snapshot.Status),
		Payload:  snapshot,
	})
	t.mu.Unlock()

	if t.sampler.ShouldLog(snapshot.ID, float64(percent), string(snapshot.Type)) {
		t.logger.Debug("task progress",
			logging.String(logging.FieldTaskID, snapshot.ID),
			logging.Int(logging.FieldProgress, percent),
		)
	}
}

// settle moves e to a terminal status once and archives it before waking
// Wait callers. It reports whether this call did the transition.
func (t *Tracker) settle(e *entry, status Status, url, message string, cached bool) bool {
	t.mu.Lock()
	if e.task.Status.IsTerminal() {
		t.mu.Unlock()
		return false
	}
	previous := e.task.Status
	e.task.Status = status
	e.task.UpdatedAt = t.now()
	e.task.Cached = cached
	switch status {
	case StatusCompleted:
		e.task.Progress = 100
		e.task.ResultURL = url
	case StatusFailed:
		e.task.Error = message
	}
	t.publishStatusLocked(e, previous)
	snapshot := e.task
	t.mu.Unlock()
	defer close(e.settled)

	if status == StatusCompleted {
		t.logger.Info("task completed",
			logging.String(logging.FieldTaskID, snapshot.ID),
			logging.String("result_url", snapshot.ResultURL),
			logging.Duration("elapsed", snapshot.Duration()),
			logging.String(logging.FieldEventType, "task_completed"),
		)
	}
	t.record(snapshot)
	return true
}

func (t *Tracker) record(task Task) {
	if t.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := t.archive.Record(ctx, task); err != nil {
		logging.WarnWithContext(t.logger, "task history write failed", "task_archive_failed",
			logging.String(logging.FieldTaskID, task.ID),
			logging.String(logging.FieldErrorHint, "check the task history database under data_dir"),
			logging.String(logging.FieldImpact, "task will be missing from history"),
			logging.Error(err),
		)
	}
}

func (t *Tracker) publishStatusLocked(e *entry, previous Status) {
	snapshot := e.task
	msg := snapshot.Error
	if snapshot.Status == StatusCompleted {
		msg = snapshot.ResultURL
	}
	t.bus.Publish(events.Event{
		Kind:           events.KindTaskStatus,
		Source:         snapshot.ID,
		Step:           string(snapshot.Type),
		Progress:       snapshot.Progress,
		Status:         string(snapshot.Status),
		PreviousStatus: string(previous),
		Message:        msg,
		Payload:        snapshot,
	})
}

// Cancel stops a pending or generating task. Cancelling a terminal task is a
// no-op.
func (t *Tracker) Cancel(id string) error {
	t.mu.RLock()
	e, ok := t.tasks[id]
	t.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	if t.settle(e, StatusCancelled, "", "", false) {
		t.logger.Info("task cancelled",
			logging.String(logging.FieldTaskID, id),
			logging.String(logging.FieldEventType, "task_cancelled"),
		)
	}
	e.cancel()
	return nil
}

// Delete forgets a task regardless of its status, cancelling it first if it
// is still running.
func (t *Tracker) Delete(id string) error {
	t.mu.Lock()
	e, ok := t.tasks[id]
	if !ok {
		t.mu.Unlock()
		return ErrNotFound
	}
	delete(t.tasks, id)
	if idx := slices.Index(t.order, id); idx >= 0 {
		t.order = slices.Delete(t.order, idx, idx+1)
	}
	t.mu.Unlock()
	e.cancel()
	t.logger.Debug("task deleted", logging.String(logging.FieldTaskID, id))
	return nil
}

// Get returns a snapshot of one task.
func (t *Tracker) Get(id string) (Task, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.tasks[id]
	if !ok {
		return Task{}, false
	}
	return e.task, true
}

// List returns snapshots in submission order, optionally restricted to the
// given types.
func (t *Tracker) List(filter ...Type) []Task {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Task, 0, len(t.order))
	for _, id := range t.order {
		task := t.tasks[id].task
		if len(filter) > 0 && !slices.Contains(filter, task.Type) {
			continue
		}
		out = append(out, task)
	}
	return out
}

// Retry submits a copy of a failed or cancelled task and returns the new ID.
func (t *Tracker) Retry(id string) (string, error) {
	task, ok := t.Get(id)
	if !ok {
		return "", ErrNotFound
	}
	if task.Status != StatusFailed && task.Status != StatusCancelled {
		return "", fmt.Errorf("%w: %s is %s", ErrNotRetryable, id, task.Status)
	}
	return t.submit(task.Type, task.Params, id)
}

// Wait blocks until the task is terminal or ctx ends, then returns its
// snapshot.
func (t *Tracker) Wait(ctx context.Context, id string) (Task, error) {
	t.mu.RLock()
	e, ok := t.tasks[id]
	t.mu.RUnlock()
	if !ok {
		return Task{}, ErrNotFound
	}
	select {
	case <-e.settled:
	case <-ctx.Done():
		return Task{}, ctx.Err()
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return e.task, nil
}

// Close rejects new submissions, cancels unfinished tasks and waits for
// their goroutines to exit or ctx to end.
func (t *Tracker) Close(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()
	t.stop()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if t.ownsBus {
		return t.bus.Close(ctx)
	}
	return nil
}

// IsNotFound reports whether err is a missing-task error.
func IsNotFound(err error) bool {
	return errors.Is(err, services.ErrNotFound)
}
