package workflow

import (
	"strings"

	"dramaflow/internal/config"
	"dramaflow/internal/services"
)

// Config holds the per-run options. The engine copies it at Start and never
// modifies it.
type Config struct {
	// AutoParse, when false, halts the run before parsing.
	AutoParse bool `json:"auto_parse"`
	// AutoGenerateScript, when false, halts the run after parsing.
	AutoGenerateScript bool `json:"auto_generate_script"`
	// AutoGenerateStoryboard, when false, halts the run after scripting.
	AutoGenerateStoryboard bool `json:"auto_generate_storyboard"`

	ChaptersToUse    int    `json:"chapters_to_use"`
	ScenesPerChapter int    `json:"scenes_per_chapter"`
	PanelsPerScene   int    `json:"panels_per_scene"`
	Provider         string `json:"provider"`
	Model            string `json:"model"`
}

// DefaultConfig enables every auto-advance toggle.
func DefaultConfig() Config {
	return ConfigFromSettings(config.Default().Workflow)
}

// ConfigFromSettings builds a run configuration from the [workflow] section.
func ConfigFromSettings(w config.Workflow) Config {
	return Config{
		AutoParse:              w.AutoParse,
		AutoGenerateScript:     w.AutoGenerateScript,
		AutoGenerateStoryboard: w.AutoGenerateStoryboard,
		ChaptersToUse:          w.ChaptersToUse,
		ScenesPerChapter:       w.ScenesPerChapter,
		PanelsPerScene:         w.PanelsPerScene,
		Provider:               strings.TrimSpace(w.Provider),
		Model:                  strings.TrimSpace(w.Model),
	}
}

// MaxChapters is how many chapters the parser is asked for: twice the number
// the script will use, leaving the script generator room to choose.
func (c Config) MaxChapters() int {
	return c.ChaptersToUse * 2
}

// Validate rejects knob values no stage could honour.
func (c Config) Validate() error {
	switch {
	case c.ChaptersToUse < 1:
		return services.Wrap(services.ErrValidation, "workflow", "validate config", "chapters to use must be at least 1", nil)
	case c.ScenesPerChapter < 1:
		return services.Wrap(services.ErrValidation, "workflow", "validate config", "scenes per chapter must be at least 1", nil)
	case c.PanelsPerScene < 1:
		return services.Wrap(services.ErrValidation, "workflow", "validate config", "panels per scene must be at least 1", nil)
	}
	return nil
}

// gate reports whether the run may enter step without an explicit Advance.
func (c Config) gate(step Step) bool {
	switch step {
	case StepNovelParse:
		return c.AutoParse
	case StepScriptGenerate:
		return c.AutoGenerateScript
	case StepStoryboardGenerate:
		return c.AutoGenerateStoryboard
	default:
		return true
	}
}
