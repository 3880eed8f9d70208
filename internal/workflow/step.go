package workflow

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Step is one stage of the novel-to-video pipeline. Steps are totally ordered.
type Step int

const (
	StepNovelUpload Step = iota
	StepNovelParse
	StepScriptGenerate
	StepStoryboardGenerate
	StepCharacterDesign
	StepSceneRender
	StepAnimation
	StepVoiceover
	StepExport
)

var stepNames = [...]string{
	StepNovelUpload:        "novel-upload",
	StepNovelParse:         "novel-parse",
	StepScriptGenerate:     "script-generate",
	StepStoryboardGenerate: "storyboard-generate",
	StepCharacterDesign:    "character-design",
	StepSceneRender:        "scene-render",
	StepAnimation:          "animation",
	StepVoiceover:          "voiceover",
	StepExport:             "export",
}

// Steps returns the pipeline order.
func Steps() []Step {
	out := make([]Step, len(stepNames))
	for i := range stepNames {
		out[i] = Step(i)
	}
	return out
}

// Valid reports whether s is one of the nine pipeline steps.
func (s Step) Valid() bool {
	return s >= StepNovelUpload && s <= StepExport
}

func (s Step) String() string {
	if !s.Valid() {
		return fmt.Sprintf("step(%d)", int(s))
	}
	return stepNames[s]
}

// Label returns a human-friendly name, e.g. "Storyboard Generate".
func (s Step) Label() string {
	if !s.Valid() {
		return s.String()
	}
	return cases.Title(language.Und).String(strings.ReplaceAll(stepNames[s], "-", " "))
}

// ParseStep converts a step name back to a Step.
func ParseStep(name string) (Step, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, candidate := range stepNames {
		if candidate == name {
			return Step(i), nil
		}
	}
	return 0, fmt.Errorf("unknown workflow step %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s Step) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid workflow step %d", int(s))
	}
	return []byte(stepNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Step) UnmarshalText(text []byte) error {
	parsed, err := ParseStep(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Budget is the slice of the 0-100 progress scale owned by a step. Halt is
// the value reported while a run waits at the step's checkpoint.
type Budget struct {
	Low  int
	High int
	Halt int
}

var budgets = [...]Budget{
	StepNovelUpload:        {Low: 0, High: 5},
	StepNovelParse:         {Low: 10, High: 20, Halt: 15},
	StepScriptGenerate:     {Low: 25, High: 40, Halt: 35},
	StepStoryboardGenerate: {Low: 45, High: 60, Halt: 50},
	StepCharacterDesign:    {Low: 60, High: 70},
	StepSceneRender:        {Low: 75, High: 80},
	StepAnimation:          {Low: 82, High: 88},
	StepVoiceover:          {Low: 90, High: 95},
	StepExport:             {Low: 97, High: 100},
}

// Budget returns the progress range reserved for s.
func (s Step) Budget() Budget {
	if !s.Valid() {
		return Budget{}
	}
	return budgets[s]
}

// At maps done/total sub-items onto the budget. Completion of every item lands
// exactly on High.
func (b Budget) At(done, total int) int {
	if total <= 0 || done >= total {
		return b.High
	}
	if done <= 0 {
		return b.Low
	}
	span := b.High - b.Low
	return b.Low + (span*done+total/2)/total
}
