package workflow

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"dramaflow/internal/services"
)

// Input is what a stage runner sees: a snapshot of the accumulated data and
// the run configuration. Runners must not retain Report past Run.
type Input struct {
	ProjectID string
	Data      Data
	Config    Config
	// Manuscript is set only for the upload stage.
	Manuscript string
	// Report publishes fractional progress inside the stage's budget.
	Report func(done, total int)
	Logger *slog.Logger
}

// Runner executes one stage. It must honour ctx cancellation at its next
// natural yield point and return exactly one artifact for its stage.
type Runner interface {
	Run(ctx context.Context, in Input) (Artifact, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, in Input) (Artifact, error)

// Run calls f(ctx, in).
func (f RunnerFunc) Run(ctx context.Context, in Input) (Artifact, error) {
	return f(ctx, in)
}

// Requirer lets a runner declare the prior artifacts it needs. Runners that
// do not implement it get the stage defaults.
type Requirer interface {
	Requires() []Step
}

var defaultRequirements = map[Step][]Step{
	StepNovelParse:         {StepNovelUpload},
	StepScriptGenerate:     {StepNovelParse},
	StepStoryboardGenerate: {StepScriptGenerate},
	StepCharacterDesign:    {StepNovelParse},
	StepSceneRender:        {StepStoryboardGenerate, StepCharacterDesign},
	StepAnimation:          {StepSceneRender},
	StepVoiceover:          {StepScriptGenerate, StepAnimation},
	StepExport:             {StepAnimation, StepVoiceover},
}

func requirements(step Step, r Runner) []Step {
	if req, ok := r.(Requirer); ok {
		return req.Requires()
	}
	return defaultRequirements[step]
}

// Runners maps each step to its runner. The upload step falls back to a
// built-in runner when absent.
type Runners map[Step]Runner

// uploadRunner records the manuscript after checking it has content.
type uploadRunner struct{}

func (uploadRunner) Run(ctx context.Context, in Input) (Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Manuscript) == "" {
		return nil, services.Wrap(services.ErrValidation, StepNovelUpload.String(), "read manuscript", "manuscript is empty", nil)
	}
	return ManuscriptArtifact{Content: in.Manuscript, Runes: utf8.RuneCountInString(in.Manuscript)}, nil
}
