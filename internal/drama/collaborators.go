package drama

import "context"

// ParseOptions tunes manuscript parsing.
type ParseOptions struct {
	MaxChapters int
	Provider    string
	Model       string
}

// ScriptOptions tunes script generation.
type ScriptOptions struct {
	ChaptersToUse    int
	ScenesPerChapter int
	Provider         string
	Model            string
}

// StoryboardOptions tunes storyboard generation for one scene.
type StoryboardOptions struct {
	PanelsPerScene int
	Provider       string
	Model          string
}

// NovelParser splits a manuscript into chapters and characters. It fails with
// a descriptive error when the content cannot be parsed.
type NovelParser interface {
	Parse(ctx context.Context, content string, opts ParseOptions) (NovelParseResult, error)
}

// ScriptGenerator adapts parsed chapters into a scene list.
type ScriptGenerator interface {
	GenerateScript(ctx context.Context, novel NovelParseResult, opts ScriptOptions) (Script, error)
}

// StoryboardGenerator breaks one scene into panels. It is invoked once per scene.
type StoryboardGenerator interface {
	GenerateStoryboard(ctx context.Context, scene ScriptScene, opts StoryboardOptions) ([]StoryboardPanel, error)
}

// CharacterFactory turns a manuscript character into a design-ready one. It
// performs no I/O.
type CharacterFactory interface {
	CreateCharacter(profile CharacterProfile) Character
}
