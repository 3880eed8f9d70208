package media

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"dramaflow/internal/drama"
	"dramaflow/internal/logging"
	"dramaflow/internal/services"
	"dramaflow/internal/stage"
	"dramaflow/internal/workflow"
)

// Placeholder simulates a media stage. It waits for Delay, reporting half-way
// progress, and returns a placeholder:// reference counting the items the
// stage covers.
type Placeholder struct {
	Step  workflow.Step
	Delay time.Duration
}

// Execute implements workflow.Operation.
func (p Placeholder) Execute(ctx context.Context, in workflow.Input) (drama.ArtifactRef, error) {
	half := p.Delay / 2
	if err := stage.Sleep(ctx, half); err != nil {
		return drama.ArtifactRef{}, err
	}
	if in.Report != nil {
		in.Report(1, 2)
	}
	if err := stage.Sleep(ctx, p.Delay-half); err != nil {
		return drama.ArtifactRef{}, err
	}
	ref := drama.ArtifactRef{
		Kind:  p.kind(),
		URI:   placeholderURI(in.ProjectID, p.Step),
		Count: itemCount(p.Step, in.Data),
	}
	if in.Logger != nil {
		in.Logger.Debug("placeholder stage finished", logging.String("kind", ref.Kind), logging.Int("count", ref.Count))
	}
	return ref, nil
}

func (p Placeholder) kind() string {
	switch p.Step {
	case workflow.StepSceneRender:
		return "scene-images"
	case workflow.StepAnimation:
		return "animation-clips"
	case workflow.StepVoiceover:
		return "audio-tracks"
	default:
		return p.Step.String()
	}
}

func placeholderURI(projectID string, step workflow.Step) string {
	u := url.URL{Scheme: "placeholder", Host: url.PathEscape(projectID), Path: "/" + step.String()}
	return u.String()
}

// itemCount is what the stage would produce: one image per panel, one clip
// per scene, one track per dialogue line.
func itemCount(step workflow.Step, data workflow.Data) int {
	switch step {
	case workflow.StepSceneRender:
		if data.Storyboards != nil {
			return len(data.Storyboards.Panels)
		}
	case workflow.StepAnimation:
		if data.Scenes != nil {
			if data.Storyboards != nil && data.Storyboards.Scenes > 0 {
				return data.Storyboards.Scenes
			}
			return data.Scenes.Ref.Count
		}
	case workflow.StepVoiceover:
		if data.Script != nil {
			lines := 0
			for _, scene := range data.Script.Scenes {
				lines += len(scene.Dialogue)
			}
			return lines
		}
	}
	return 0
}

// Runners builds the media runners: placeholders for scene render, animation
// and voiceover, and a manifest writer for export.
func Runners(delay time.Duration, export *ExportManifest) (workflow.Runners, error) {
	if export == nil {
		return nil, services.Wrap(services.ErrConfiguration, workflow.StepExport.String(), "build runners", "export manifest writer is nil", nil)
	}
	ops := map[workflow.Step]workflow.Operation{
		workflow.StepSceneRender: Placeholder{Step: workflow.StepSceneRender, Delay: delay},
		workflow.StepAnimation:   Placeholder{Step: workflow.StepAnimation, Delay: delay},
		workflow.StepVoiceover:   Placeholder{Step: workflow.StepVoiceover, Delay: delay},
		workflow.StepExport:      export,
	}
	runners := make(workflow.Runners, len(ops))
	for step, op := range ops {
		runner, err := workflow.NewOperationRunner(step, op)
		if err != nil {
			return nil, fmt.Errorf("media runner %s: %w", step, err)
		}
		runners[step] = runner
	}
	return runners, nil
}
