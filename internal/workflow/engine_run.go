package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"dramaflow/internal/logging"
	"dramaflow/internal/services"
)

// Start runs the workflow for projectID from the upload step. It returns when
// the run completes, halts at a checkpoint, is cancelled, or fails. A halt or
// an explicit Cancel returns nil; cancelling ctx returns ctx.Err(); a stage
// failure returns that stage's error after the error event is published.
func (e *Engine) Start(ctx context.Context, projectID, content string, cfg Config) error {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return services.Wrap(services.ErrValidation, "workflow", "start", "project id is required", nil)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	if e.driving || e.state.Status == StatusRunning || e.state.Status == StatusPaused {
		e.mu.Unlock()
		return ErrBusy
	}
	runID := uuid.NewString()
	if err := e.applyLocked(change{kind: evStart, runID: runID, projectID: projectID}); err != nil {
		e.mu.Unlock()
		return err
	}
	e.cfg = cfg
	epoch, runCtx := e.beginLocked(ctx)
	e.mu.Unlock()

	e.logger.Info("workflow started",
		logging.String(logging.FieldEventType, "workflow_started"),
		logging.String(logging.FieldRunID, runID),
		logging.String(logging.FieldProjectID, projectID),
		logging.Int("chapters_to_use", cfg.ChaptersToUse),
		logging.Int("scenes_per_chapter", cfg.ScenesPerChapter),
		logging.Int("panels_per_scene", cfg.PanelsPerScene),
		logging.String("provider", cfg.Provider),
		logging.String("model", cfg.Model),
	)
	return e.drive(ctx, runCtx, epoch, StepNovelUpload, false, content)
}

// Advance continues a run halted at a checkpoint, entering the halted step
// without consulting its auto-advance toggle. Later toggles still apply.
func (e *Engine) Advance(ctx context.Context) error {
	e.mu.Lock()
	if e.driving {
		e.mu.Unlock()
		return ErrBusy
	}
	if e.state.Status != StatusRunning || !e.state.Halted {
		status := e.state.Status
		e.mu.Unlock()
		return fmt.Errorf("%w: advance while %s: no checkpoint to continue from", ErrInvalidTransition, status)
	}
	from := e.state.Step
	runID := e.state.RunID
	epoch, runCtx := e.beginLocked(ctx)
	e.mu.Unlock()

	e.logger.Info("workflow advanced",
		logging.String(logging.FieldEventType, "workflow_advanced"),
		logging.String(logging.FieldRunID, runID),
		logging.String(logging.FieldStage, from.String()),
	)
	return e.drive(ctx, runCtx, epoch, from, true, "")
}

func (e *Engine) beginLocked(ctx context.Context) (uint64, context.Context) {
	e.epoch++
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.driving = true
	return e.epoch, runCtx
}

// end releases the drive slot when epoch is still current.
func (e *Engine) end(epoch uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if epoch != e.epoch {
		return
	}
	e.driving = false
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

func (e *Engine) drive(parent, ctx context.Context, epoch uint64, from Step, skipGate bool, manuscript string) error {
	defer e.end(epoch)

	for step := from; step <= StepExport; step++ {
		if err := e.awaitRunnable(ctx, epoch); err != nil {
			return e.interrupted(parent, epoch, err)
		}
		if !(skipGate && step == from) && !e.runConfig().gate(step) {
			return e.checkpoint(parent, epoch, step)
		}
		if err := e.runStage(ctx, epoch, step, manuscript); err != nil {
			if errors.Is(err, errSuperseded) || ctx.Err() != nil {
				return e.interrupted(parent, epoch, err)
			}
			return e.fail(parent, epoch, step, err)
		}
	}

	if err := e.awaitRunnable(ctx, epoch); err != nil {
		return e.interrupted(parent, epoch, err)
	}
	if err := e.apply(epoch, change{kind: evComplete}); err != nil {
		return e.interrupted(parent, epoch, err)
	}
	state := e.State()
	e.logger.Info("workflow completed",
		logging.String(logging.FieldEventType, "workflow_completed"),
		logging.String(logging.FieldRunID, state.RunID),
		logging.String(logging.FieldProjectID, state.ProjectID),
		logging.String("export_url", exportURL(state.Data)),
	)
	e.sampler.Forget(state.RunID)
	return nil
}

func (e *Engine) runConfig() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// awaitRunnable blocks while the run is paused. It returns errSuperseded when
// the run was cancelled or reset, and ctx.Err() when ctx ends first.
func (e *Engine) awaitRunnable(ctx context.Context, epoch uint64) error {
	for {
		e.mu.Lock()
		if epoch != e.epoch {
			e.mu.Unlock()
			return errSuperseded
		}
		status := e.state.Status
		wait := e.changed
		e.mu.Unlock()

		switch status {
		case StatusRunning:
			if err := ctx.Err(); err != nil {
				return err
			}
			return nil
		case StatusPaused:
		default:
			return errSuperseded
		}
		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (e *Engine) checkpoint(parent context.Context, epoch uint64, step Step) error {
	if err := e.apply(epoch, change{kind: evCheckpoint, step: step}); err != nil {
		return e.interrupted(parent, epoch, err)
	}
	state := e.State()
	e.logger.Info("workflow checkpoint",
		logging.String(logging.FieldEventType, "workflow_checkpoint"),
		logging.String(logging.FieldRunID, state.RunID),
		logging.String(logging.FieldStage, step.String()),
		logging.Int(logging.FieldProgress, state.Progress),
		logging.String("next_action", "advance the workflow to continue"),
	)
	return nil
}

func (e *Engine) runStage(ctx context.Context, epoch uint64, step Step, manuscript string) error {
	if err := e.apply(epoch, change{kind: evEnterStage, step: step}); err != nil {
		return err
	}
	runner, ok := e.runners[step]
	if !ok {
		return services.Wrap(services.ErrConfiguration, step.String(), "select runner", "no runner configured", nil)
	}

	e.mu.Lock()
	if epoch != e.epoch {
		e.mu.Unlock()
		return errSuperseded
	}
	runID := e.state.RunID
	projectID := e.state.ProjectID
	data := e.state.Data.Clone()
	cfg := e.cfg
	e.mu.Unlock()

	if err := data.Require(step, requirements(step, runner)...); err != nil {
		return err
	}

	requestID := uuid.NewString()
	stageCtx := services.WithProjectID(ctx, projectID)
	stageCtx = services.WithStage(stageCtx, step.String())
	stageCtx = services.WithRequestID(stageCtx, requestID)
	logger := logging.WithContext(stageCtx, e.logger).With(logging.String(logging.FieldRunID, runID))

	budget := step.Budget()
	in := Input{
		ProjectID: projectID,
		Data:      data,
		Config:    cfg,
		Logger:    logger,
		Report: func(done, total int) {
			_ = e.apply(epoch, change{kind: evProgress, progress: min(budget.At(done, total), 99)})
		},
	}
	if step == StepNovelUpload {
		in.Manuscript = manuscript
	}

	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_started"),
		logging.String("stage_label", step.Label()),
	)
	started := time.Now()
	artifact, err := runner.Run(stageCtx, in)
	if err == nil {
		switch {
		case artifact == nil:
			err = services.Wrap(services.ErrValidation, step.String(), "run stage", "runner returned no artifact", nil)
		case artifact.Step() != step:
			err = services.Wrap(services.ErrValidation, step.String(), "run stage",
				fmt.Sprintf("runner returned a %s artifact", artifact.Step()), nil)
		}
	}
	if err != nil {
		logger.Debug("stage returned error", logging.Duration("elapsed", time.Since(started)))
		return err
	}

	progress := budget.High
	if step == StepExport {
		progress = 0
	}
	if err := e.apply(epoch, change{kind: evStageDone, artifact: artifact, progress: progress}); err != nil {
		return err
	}
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_completed"),
		logging.Duration("elapsed", time.Since(started)),
	)
	return nil
}

// fail moves the run to error and returns the stage error. The error event
// is published before fail returns.
func (e *Engine) fail(parent context.Context, epoch uint64, step Step, err error) error {
	if applyErr := e.apply(epoch, change{kind: evFail, message: err.Error()}); applyErr != nil {
		return e.interrupted(parent, epoch, applyErr)
	}
	e.mu.Lock()
	runID := e.state.RunID
	projectID := e.state.ProjectID
	e.mu.Unlock()
	e.sampler.Forget(runID)

	details := services.Details(err)
	logging.ErrorWithContext(e.logger, "stage failed", "stage_failed",
		logging.String(logging.FieldRunID, runID),
		logging.String(logging.FieldProjectID, projectID),
		logging.String(logging.FieldStage, step.String()),
		logging.String(logging.FieldErrorKind, string(details.Kind)),
		logging.String(logging.FieldErrorHint, details.Hint),
		logging.Error(err),
	)
	return fmt.Errorf("workflow %s: %w", step, err)
}

// interrupted resolves a drive that stopped without finishing. Cancel and
// Reset have already committed their transition, so the drive returns nil.
// Otherwise the parent context ended and the run is cancelled here.
func (e *Engine) interrupted(parent context.Context, epoch uint64, cause error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if epoch != e.epoch {
		return nil
	}
	if err := e.applyLocked(change{kind: evCancel}); err != nil {
		return fmt.Errorf("workflow interrupted: %w", cause)
	}
	e.supersedeLocked()
	e.logger.Info("workflow cancelled",
		logging.String(logging.FieldEventType, "workflow_cancelled"),
		logging.String(logging.FieldRunID, e.state.RunID),
		logging.String(logging.FieldStage, e.state.Step.String()),
		logging.String("reason", "context done"),
	)
	if err := parent.Err(); err != nil {
		return err
	}
	return cause
}

func exportURL(d Data) string {
	if d.Export == nil {
		return ""
	}
	return d.Export.URL
}
