package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"dramaflow/internal/events"
	"dramaflow/internal/logging"
	"dramaflow/internal/stage"
)

// Engine drives one workflow run at a time through the nine steps. All state
// changes go through transition under mu, and every committed change is
// published to the bus before mu is released, so subscribers see events in
// commit order.
type Engine struct {
	runners Runners
	logger  *slog.Logger
	bus     *events.Bus
	sampler *logging.ProgressSampler
	now     func() time.Time

	mu      sync.Mutex
	state   State
	cfg     Config
	epoch   uint64
	driving bool
	cancel  context.CancelFunc
	changed chan struct{}
}

// Option configures optional Engine behavior.
type Option func(*engineOptions)

type engineOptions struct {
	logger *slog.Logger
	bus    *events.Bus
	now    func() time.Time
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) { o.logger = logger }
}

// WithBus publishes engine events on a shared bus instead of a private one.
func WithBus(bus *events.Bus) Option {
	return func(o *engineOptions) { o.bus = bus }
}

// WithClock overrides the clock used for State.UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(o *engineOptions) { o.now = now }
}

// New constructs an idle engine. Steps without a runner fail when reached.
func New(runners Runners, opts ...Option) *Engine {
	options := engineOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	logger := logging.NewComponentLogger(options.logger, "workflow")
	bus := options.bus
	if bus == nil {
		bus = events.NewBus(options.logger)
	}
	now := options.now
	if now == nil {
		now = time.Now
	}
	owned := make(Runners, len(runners)+1)
	for step, runner := range runners {
		if runner != nil {
			owned[step] = runner
		}
	}
	if _, ok := owned[StepNovelUpload]; !ok {
		owned[StepNovelUpload] = uploadRunner{}
	}
	e := &Engine{
		runners: owned,
		logger:  logger,
		bus:     bus,
		sampler: logging.NewProgressSampler(10),
		now:     now,
		changed: make(chan struct{}),
	}
	e.state = initialState()
	e.state.UpdatedAt = now().UTC()
	return e
}

// State returns a deep copy of the last committed state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.clone()
}

// Subscribe registers an observer for engine events.
func (e *Engine) Subscribe(observer events.Observer) *events.Subscription {
	return e.bus.Subscribe(observer)
}

// Bus returns the bus the engine publishes on.
func (e *Engine) Bus() *events.Bus {
	return e.bus
}

// Pause stops the run at the next stage boundary. A stage already in flight
// runs to completion.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.applyLocked(change{kind: evPause}); err != nil {
		return err
	}
	e.logger.Info("workflow paused",
		logging.String(logging.FieldEventType, "workflow_paused"),
		logging.String(logging.FieldRunID, e.state.RunID),
		logging.String(logging.FieldStage, e.state.Step.String()),
	)
	return nil
}

// Resume lets a paused run continue past its boundary. It does not restart a
// run whose Start has returned; use Advance for checkpoint halts.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.applyLocked(change{kind: evResume}); err != nil {
		return err
	}
	e.logger.Info("workflow resumed",
		logging.String(logging.FieldEventType, "workflow_resumed"),
		logging.String(logging.FieldRunID, e.state.RunID),
		logging.String(logging.FieldStage, e.state.Step.String()),
	)
	return nil
}

// Cancel aborts the in-flight stage, sets status idle and progress 0. Data
// from completed stages is kept; the cancelled stage's output never lands.
func (e *Engine) Cancel() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.applyLocked(change{kind: evCancel}); err != nil {
		return err
	}
	e.supersedeLocked()
	e.logger.Info("workflow cancelled",
		logging.String(logging.FieldEventType, "workflow_cancelled"),
		logging.String(logging.FieldRunID, e.state.RunID),
		logging.String(logging.FieldStage, e.state.Step.String()),
	)
	return nil
}

// Reset aborts any run and returns to the initial state with empty data.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	runID := e.state.RunID
	_ = e.applyLocked(change{kind: evReset})
	e.supersedeLocked()
	if runID != "" {
		e.sampler.Forget(runID)
	}
	e.logger.Debug("workflow reset", logging.String(logging.FieldEventType, "workflow_reset"))
}

// Health reports readiness for every step's runner.
func (e *Engine) Health(ctx context.Context) []stage.Health {
	out := make([]stage.Health, 0, len(stepNames))
	for _, step := range Steps() {
		runner, ok := e.runners[step]
		if !ok {
			out = append(out, stage.Unhealthy(step.String(), "no runner configured"))
			continue
		}
		out = append(out, stage.Check(ctx, step.String(), runner))
	}
	return out
}

// supersedeLocked invalidates the active drive, if any. Its late results are
// rejected by epoch.
func (e *Engine) supersedeLocked() {
	e.epoch++
	e.driving = false
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

// applyLocked runs c through the state machine and commits the result.
func (e *Engine) applyLocked(c change) error {
	next, err := transition(e.state, c)
	if err != nil {
		return err
	}
	e.commitLocked(next)
	return nil
}

// apply is applyLocked guarded by the drive's epoch.
func (e *Engine) apply(epoch uint64, c change) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if epoch != e.epoch {
		return errSuperseded
	}
	return e.applyLocked(c)
}

func (e *Engine) commitLocked(next State) {
	prev := e.state
	next.UpdatedAt = e.now().UTC()
	e.state = next
	close(e.changed)
	e.changed = make(chan struct{})

	if next.Progress != prev.Progress && next.RunID != "" {
		if e.sampler.ShouldLog(next.RunID, float64(next.Progress), next.Step.String()) {
			e.logger.Debug("workflow progress",
				logging.String(logging.FieldRunID, next.RunID),
				logging.String(logging.FieldStage, next.Step.String()),
				logging.Int(logging.FieldProgress, next.Progress),
			)
		}
	}
	e.publishLocked(prev, next)
}

// publishLocked emits the events implied by prev -> next in a fixed order:
// step, progress, status, then error or complete.
func (e *Engine) publishLocked(prev, next State) {
	snapshot := next.clone()
	base := events.Event{
		Time:      next.UpdatedAt,
		Source:    next.RunID,
		ProjectID: next.ProjectID,
		Step:      next.Step.String(),
		Progress:  next.Progress,
		Status:    string(next.Status),
		Payload:   snapshot,
	}
	if next.Step != prev.Step {
		evt := base
		evt.Kind = events.KindStepChange
		evt.PreviousStep = prev.Step.String()
		e.bus.Publish(evt)
	}
	if next.Progress != prev.Progress {
		evt := base
		evt.Kind = events.KindProgress
		e.bus.Publish(evt)
	}
	if next.Status != prev.Status {
		evt := base
		evt.Kind = events.KindStatusChange
		evt.PreviousStatus = string(prev.Status)
		e.bus.Publish(evt)
	}
	if next.Status == StatusError && prev.Status != StatusError {
		evt := base
		evt.Kind = events.KindError
		evt.Message = next.Error
		e.bus.Publish(evt)
	}
	if next.Status == StatusCompleted && prev.Status != StatusCompleted {
		evt := base
		evt.Kind = events.KindComplete
		if next.Data.Export != nil {
			evt.Message = next.Data.Export.URL
		}
		e.bus.Publish(evt)
	}
}
