package workflow

import (
	"fmt"

	"dramaflow/internal/services"
)

// Data accumulates one artifact per completed step. A nil field means the
// step has not completed in the current run. Committed artifacts are never
// modified; later steps only add fields.
type Data struct {
	ProjectID   string              `json:"project_id"`
	Manuscript  *ManuscriptArtifact `json:"manuscript,omitempty"`
	Novel       *NovelArtifact      `json:"novel,omitempty"`
	Script      *ScriptArtifact     `json:"script,omitempty"`
	Storyboards *StoryboardArtifact `json:"storyboards,omitempty"`
	Characters  *CharacterArtifact  `json:"characters,omitempty"`
	Scenes      *SceneArtifact      `json:"scenes,omitempty"`
	Animations  *AnimationArtifact  `json:"animations,omitempty"`
	Audio       *AudioArtifact      `json:"audio,omitempty"`
	Export      *ExportArtifact     `json:"export,omitempty"`
}

// Has reports whether the artifact produced by step is present.
func (d Data) Has(step Step) bool {
	switch step {
	case StepNovelUpload:
		return d.Manuscript != nil
	case StepNovelParse:
		return d.Novel != nil
	case StepScriptGenerate:
		return d.Script != nil
	case StepStoryboardGenerate:
		return d.Storyboards != nil
	case StepCharacterDesign:
		return d.Characters != nil
	case StepSceneRender:
		return d.Scenes != nil
	case StepAnimation:
		return d.Animations != nil
	case StepVoiceover:
		return d.Audio != nil
	case StepExport:
		return d.Export != nil
	default:
		return false
	}
}

// Completed lists the steps whose artifacts are present, in pipeline order.
func (d Data) Completed() []Step {
	var out []Step
	for _, step := range Steps() {
		if d.Has(step) {
			out = append(out, step)
		}
	}
	return out
}

// Require returns an input error naming the first missing artifact among steps.
func (d Data) Require(consumer Step, steps ...Step) error {
	for _, step := range steps {
		if !d.Has(step) {
			return missing(consumer, step)
		}
	}
	return nil
}

// RequireManuscript returns the uploaded manuscript or an input error.
func (d Data) RequireManuscript(consumer Step) (*ManuscriptArtifact, error) {
	if d.Manuscript == nil {
		return nil, missing(consumer, StepNovelUpload)
	}
	return d.Manuscript, nil
}

// RequireNovel returns the parse result or an input error.
func (d Data) RequireNovel(consumer Step) (*NovelArtifact, error) {
	if d.Novel == nil {
		return nil, missing(consumer, StepNovelParse)
	}
	return d.Novel, nil
}

// RequireScript returns the script or an input error.
func (d Data) RequireScript(consumer Step) (*ScriptArtifact, error) {
	if d.Script == nil {
		return nil, missing(consumer, StepScriptGenerate)
	}
	return d.Script, nil
}

func missing(consumer, step Step) error {
	return services.Wrap(services.ErrMissingArtifact, consumer.String(), "require input",
		fmt.Sprintf("%s artifact is missing", step), nil)
}

// with returns a copy of d holding a.
func (d Data) with(a Artifact) Data {
	switch v := a.(type) {
	case ManuscriptArtifact:
		d.Manuscript = &v
	case NovelArtifact:
		d.Novel = &v
	case ScriptArtifact:
		d.Script = &v
	case StoryboardArtifact:
		d.Storyboards = &v
	case CharacterArtifact:
		d.Characters = &v
	case SceneArtifact:
		d.Scenes = &v
	case AnimationArtifact:
		d.Animations = &v
	case AudioArtifact:
		d.Audio = &v
	case ExportArtifact:
		d.Export = &v
	}
	return d
}

// Clone returns a deep copy that shares no memory with d.
func (d Data) Clone() Data {
	out := d
	if d.Manuscript != nil {
		v := *d.Manuscript
		out.Manuscript = &v
	}
	if d.Novel != nil {
		out.Novel = &NovelArtifact{cloneNovel(d.Novel.NovelParseResult)}
	}
	if d.Script != nil {
		out.Script = &ScriptArtifact{cloneScript(d.Script.Script)}
	}
	if d.Storyboards != nil {
		out.Storyboards = &StoryboardArtifact{Panels: clonePanels(d.Storyboards.Panels), Scenes: d.Storyboards.Scenes}
	}
	if d.Characters != nil {
		out.Characters = &CharacterArtifact{Characters: cloneCharacters(d.Characters.Characters)}
	}
	if d.Scenes != nil {
		v := *d.Scenes
		out.Scenes = &v
	}
	if d.Animations != nil {
		v := *d.Animations
		out.Animations = &v
	}
	if d.Audio != nil {
		v := *d.Audio
		out.Audio = &v
	}
	if d.Export != nil {
		v := *d.Export
		out.Export = &v
	}
	return out
}
