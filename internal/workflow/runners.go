package workflow

import (
	"context"
	"fmt"

	"dramaflow/internal/drama"
	"dramaflow/internal/logging"
	"dramaflow/internal/services"
	"dramaflow/internal/stage"
)

// Collaborators are the services behind the default text stages.
type Collaborators struct {
	Parser      drama.NovelParser
	Scripts     drama.ScriptGenerator
	Storyboards drama.StoryboardGenerator
	Characters  drama.CharacterFactory
}

// DefaultRunners wires the text stages to c. Media stages are added by the
// caller with NewOperationRunner.
func DefaultRunners(c Collaborators) Runners {
	runners := Runners{StepNovelUpload: uploadRunner{}}
	if c.Parser != nil {
		runners[StepNovelParse] = ParseRunner{Parser: c.Parser}
	}
	if c.Scripts != nil {
		runners[StepScriptGenerate] = ScriptRunner{Generator: c.Scripts}
	}
	if c.Storyboards != nil {
		runners[StepStoryboardGenerate] = StoryboardRunner{Generator: c.Storyboards}
	}
	factory := c.Characters
	if factory == nil {
		factory = drama.Consistency{}
	}
	runners[StepCharacterDesign] = CharacterRunner{Factory: factory}
	return runners
}

// ParseRunner splits the manuscript into chapters and characters.
type ParseRunner struct {
	Parser drama.NovelParser
}

func (r ParseRunner) Run(ctx context.Context, in Input) (Artifact, error) {
	manuscript, err := in.Data.RequireManuscript(StepNovelParse)
	if err != nil {
		return nil, err
	}
	result, err := r.Parser.Parse(ctx, manuscript.Content, drama.ParseOptions{
		MaxChapters: in.Config.MaxChapters(),
		Provider:    in.Config.Provider,
		Model:       in.Config.Model,
	})
	if err != nil {
		return nil, err
	}
	return NovelArtifact{result}, nil
}

// HealthCheck implements stage.HealthChecker when the parser does.
func (r ParseRunner) HealthCheck(ctx context.Context) stage.Health {
	return stage.Check(ctx, StepNovelParse.String(), r.Parser)
}

// ScriptRunner adapts the parsed chapters into scenes.
type ScriptRunner struct {
	Generator drama.ScriptGenerator
}

func (r ScriptRunner) Run(ctx context.Context, in Input) (Artifact, error) {
	novel, err := in.Data.RequireNovel(StepScriptGenerate)
	if err != nil {
		return nil, err
	}
	script, err := r.Generator.GenerateScript(ctx, novel.NovelParseResult, drama.ScriptOptions{
		ChaptersToUse:    in.Config.ChaptersToUse,
		ScenesPerChapter: in.Config.ScenesPerChapter,
		Provider:         in.Config.Provider,
		Model:            in.Config.Model,
	})
	if err != nil {
		return nil, err
	}
	return ScriptArtifact{script}, nil
}

func (r ScriptRunner) HealthCheck(ctx context.Context) stage.Health {
	return stage.Check(ctx, StepScriptGenerate.String(), r.Generator)
}

// StoryboardRunner generates panels scene by scene, reporting progress after
// each scene. Panels are only handed back once every scene succeeded.
type StoryboardRunner struct {
	Generator drama.StoryboardGenerator
}

func (r StoryboardRunner) Run(ctx context.Context, in Input) (Artifact, error) {
	script, err := in.Data.RequireScript(StepStoryboardGenerate)
	if err != nil {
		return nil, err
	}
	opts := drama.StoryboardOptions{
		PanelsPerScene: in.Config.PanelsPerScene,
		Provider:       in.Config.Provider,
		Model:          in.Config.Model,
	}
	total := len(script.Scenes)
	var panels []drama.StoryboardPanel
	for i, scene := range script.Scenes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		scenePanels, err := r.Generator.GenerateStoryboard(ctx, scene, opts)
		if err != nil {
			return nil, fmt.Errorf("scene %d/%d (%s): %w", i+1, total, scene.ID, err)
		}
		panels = append(panels, scenePanels...)
		if in.Report != nil {
			in.Report(i+1, total)
		}
		if in.Logger != nil {
			in.Logger.Debug("storyboard scene generated",
				logging.Int("scene", i+1),
				logging.Int("scenes", total),
				logging.Int("panels", len(scenePanels)),
			)
		}
	}
	return StoryboardArtifact{Panels: panels, Scenes: total}, nil
}

func (r StoryboardRunner) HealthCheck(ctx context.Context) stage.Health {
	return stage.Check(ctx, StepStoryboardGenerate.String(), r.Generator)
}

// CharacterRunner builds design-ready characters from the parsed profiles.
type CharacterRunner struct {
	Factory drama.CharacterFactory
}

func (r CharacterRunner) Run(ctx context.Context, in Input) (Artifact, error) {
	novel, err := in.Data.RequireNovel(StepCharacterDesign)
	if err != nil {
		return nil, err
	}
	characters := make([]drama.Character, 0, len(novel.Characters))
	for _, profile := range novel.Characters {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		characters = append(characters, r.Factory.CreateCharacter(profile))
	}
	return CharacterArtifact{Characters: characters}, nil
}

// Operation is a black-box media stage: it reads the accumulated data and
// returns an opaque reference to what it produced.
type Operation interface {
	Execute(ctx context.Context, in Input) (drama.ArtifactRef, error)
}

// OperationFunc adapts a function to Operation.
type OperationFunc func(ctx context.Context, in Input) (drama.ArtifactRef, error)

// Execute calls f(ctx, in).
func (f OperationFunc) Execute(ctx context.Context, in Input) (drama.ArtifactRef, error) {
	return f(ctx, in)
}

// OperationRunner runs an Operation for one of the media stages.
type OperationRunner struct {
	step Step
	op   Operation
}

// NewOperationRunner binds op to step. Only scene render, animation,
// voiceover and export accept operations.
func NewOperationRunner(step Step, op Operation) (*OperationRunner, error) {
	if _, ok := RefArtifact(step, drama.ArtifactRef{}); !ok {
		return nil, services.Wrap(services.ErrConfiguration, step.String(), "bind operation",
			"step does not produce a media reference", nil)
	}
	if op == nil {
		return nil, services.Wrap(services.ErrConfiguration, step.String(), "bind operation", "operation is nil", nil)
	}
	return &OperationRunner{step: step, op: op}, nil
}

func (r *OperationRunner) Run(ctx context.Context, in Input) (Artifact, error) {
	ref, err := r.op.Execute(ctx, in)
	if err != nil {
		return nil, err
	}
	if ref.URI == "" {
		return nil, services.Wrap(services.ErrValidation, r.step.String(), "execute operation", "operation returned an empty reference", nil)
	}
	artifact, _ := RefArtifact(r.step, ref)
	return artifact, nil
}

func (r *OperationRunner) HealthCheck(ctx context.Context) stage.Health {
	return stage.Check(ctx, r.step.String(), r.op)
}

