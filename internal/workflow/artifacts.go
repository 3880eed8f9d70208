package workflow

import (
	"slices"

	"dramaflow/internal/drama"
)

// Artifact is the output of exactly one step. The set of implementations is
// closed; the engine routes each into its own Data field.
type Artifact interface {
	Step() Step
	sealed()
}

// ManuscriptArtifact records the uploaded manuscript.
type ManuscriptArtifact struct {
	Content string `json:"-"`
	Runes   int    `json:"runes"`
}

// NovelArtifact is the parsed manuscript.
type NovelArtifact struct {
	drama.NovelParseResult
}

// ScriptArtifact is the generated script.
type ScriptArtifact struct {
	drama.Script
}

// StoryboardArtifact holds every panel across all scenes, in scene order.
type StoryboardArtifact struct {
	Panels []drama.StoryboardPanel `json:"panels"`
	Scenes int                     `json:"scenes"`
}

// CharacterArtifact holds the designed characters.
type CharacterArtifact struct {
	Characters []drama.Character `json:"characters"`
}

// SceneArtifact references rendered scenes.
type SceneArtifact struct {
	Ref drama.ArtifactRef `json:"ref"`
}

// AnimationArtifact references composed animation.
type AnimationArtifact struct {
	Ref drama.ArtifactRef `json:"ref"`
}

// AudioArtifact references the voiceover and score.
type AudioArtifact struct {
	Ref drama.ArtifactRef `json:"ref"`
}

// ExportArtifact references the finished export.
type ExportArtifact struct {
	URL string `json:"url"`
}

func (ManuscriptArtifact) Step() Step { return StepNovelUpload }
func (NovelArtifact) Step() Step      { return StepNovelParse }
func (ScriptArtifact) Step() Step     { return StepScriptGenerate }
func (StoryboardArtifact) Step() Step { return StepStoryboardGenerate }
func (CharacterArtifact) Step() Step  { return StepCharacterDesign }
func (SceneArtifact) Step() Step      { return StepSceneRender }
func (AnimationArtifact) Step() Step  { return StepAnimation }
func (AudioArtifact) Step() Step      { return StepVoiceover }
func (ExportArtifact) Step() Step     { return StepExport }

func (ManuscriptArtifact) sealed() {}
func (NovelArtifact) sealed()      {}
func (ScriptArtifact) sealed()     {}
func (StoryboardArtifact) sealed() {}
func (CharacterArtifact) sealed()  {}
func (SceneArtifact) sealed()      {}
func (AnimationArtifact) sealed()  {}
func (AudioArtifact) sealed()      {}
func (ExportArtifact) sealed()     {}

// RefArtifact wraps an opaque reference in the artifact type owned by step.
// It returns false for steps whose output is not a plain reference.
func RefArtifact(step Step, ref drama.ArtifactRef) (Artifact, bool) {
	switch step {
	case StepSceneRender:
		return SceneArtifact{Ref: ref}, true
	case StepAnimation:
		return AnimationArtifact{Ref: ref}, true
	case StepVoiceover:
		return AudioArtifact{Ref: ref}, true
	case StepExport:
		return ExportArtifact{URL: ref.URI}, true
	default:
		return nil, false
	}
}

func cloneNovel(in drama.NovelParseResult) drama.NovelParseResult {
	in.Chapters = slices.Clone(in.Chapters)
	in.Characters = slices.Clone(in.Characters)
	return in
}

func cloneScript(in drama.Script) drama.Script {
	scenes := make([]drama.ScriptScene, len(in.Scenes))
	for i, scene := range in.Scenes {
		scene.Characters = slices.Clone(scene.Characters)
		scene.Dialogue = slices.Clone(scene.Dialogue)
		scenes[i] = scene
	}
	in.Scenes = scenes
	return in
}

func clonePanels(in []drama.StoryboardPanel) []drama.StoryboardPanel {
	out := make([]drama.StoryboardPanel, len(in))
	for i, panel := range in {
		panel.Characters = slices.Clone(panel.Characters)
		out[i] = panel
	}
	return out
}

func cloneCharacters(in []drama.Character) []drama.Character {
	out := make([]drama.Character, len(in))
	for i, c := range in {
		c.Appearance.Features = slices.Clone(c.Appearance.Features)
		c.Personality = slices.Clone(c.Personality)
		c.ReferenceImages = slices.Clone(c.ReferenceImages)
		out[i] = c
	}
	return out
}
