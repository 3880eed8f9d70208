package workflow

import (
	"errors"
	"testing"

	"dramaflow/internal/drama"
)

func running(step Step, progress int) State {
	return State{RunID: "run", ProjectID: "p", Step: step, Progress: progress, Status: StatusRunning}
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		name    string
		state   State
		change  change
		wantErr bool
		check   func(t *testing.T, s State)
	}{
		{
			name:   "start from idle",
			state:  initialState(),
			change: change{kind: evStart, runID: "r1", projectID: "p1"},
			check: func(t *testing.T, s State) {
				if s.Status != StatusRunning || s.RunID != "r1" || s.Data.ProjectID != "p1" {
					t.Fatalf("unexpected state %+v", s)
				}
			},
		},
		{name: "start from completed", state: State{Status: StatusCompleted}, change: change{kind: evStart}, wantErr: true},
		{name: "start from error", state: State{Status: StatusError}, change: change{kind: evStart}, wantErr: true},
		{name: "resume while idle", state: initialState(), change: change{kind: evResume}, wantErr: true},
		{name: "pause while idle", state: initialState(), change: change{kind: evPause}, wantErr: true},
		{name: "pause while paused", state: State{Status: StatusPaused}, change: change{kind: evPause}, wantErr: true},
		{name: "cancel while completed", state: State{Status: StatusCompleted}, change: change{kind: evCancel}, wantErr: true},
		{name: "enter stage skipping ahead", state: running(StepNovelParse, 20), change: change{kind: evEnterStage, step: StepCharacterDesign}, wantErr: true},
		{name: "enter stage backwards", state: running(StepScriptGenerate, 40), change: change{kind: evEnterStage, step: StepNovelParse}, wantErr: true},
		{name: "enter stage while paused", state: State{Status: StatusPaused, Step: StepNovelParse}, change: change{kind: evEnterStage, step: StepScriptGenerate}, wantErr: true},
		{
			name:   "enter next stage commits low bound",
			state:  running(StepNovelParse, 20),
			change: change{kind: evEnterStage, step: StepScriptGenerate},
			check: func(t *testing.T, s State) {
				if s.Step != StepScriptGenerate || s.Progress != 25 {
					t.Fatalf("unexpected state step=%s progress=%d", s.Step, s.Progress)
				}
			},
		},
		{
			name:   "progress never regresses",
			state:  running(StepStoryboardGenerate, 53),
			change: change{kind: evProgress, progress: 49},
			check: func(t *testing.T, s State) {
				if s.Progress != 53 {
					t.Fatalf("progress regressed to %d", s.Progress)
				}
			},
		},
		{name: "progress 100 reserved", state: running(StepExport, 97), change: change{kind: evProgress, progress: 100}, wantErr: true},
		{
			name:    "stage done with foreign artifact",
			state:   running(StepAnimation, 82),
			change:  change{kind: evStageDone, artifact: AudioArtifact{}},
			wantErr: true,
		},
		{
			name:   "stage done while paused",
			state:  State{Status: StatusPaused, Step: StepSceneRender, Progress: 75},
			change: change{kind: evStageDone, artifact: SceneArtifact{Ref: drama.ArtifactRef{URI: "x"}}, progress: 80},
			check: func(t *testing.T, s State) {
				if s.Data.Scenes == nil || s.Progress != 80 || s.Status != StatusPaused {
					t.Fatalf("unexpected state %+v", s)
				}
			},
		},
		{name: "complete before export", state: running(StepVoiceover, 95), change: change{kind: evComplete}, wantErr: true},
		{
			name:   "complete after export",
			state:  State{Status: StatusRunning, Step: StepExport, Progress: 97, Data: Data{Export: &ExportArtifact{URL: "file:///x"}}},
			change: change{kind: evComplete},
			check: func(t *testing.T, s State) {
				if s.Status != StatusCompleted || s.Progress != 100 {
					t.Fatalf("unexpected state %+v", s)
				}
			},
		},
		{
			name:   "cancel keeps data and step",
			state:  State{Status: StatusRunning, Step: StepScriptGenerate, Progress: 30, Data: Data{Novel: &NovelArtifact{}}},
			change: change{kind: evCancel},
			check: func(t *testing.T, s State) {
				if s.Status != StatusIdle || s.Progress != 0 || s.Step != StepScriptGenerate || s.Data.Novel == nil {
					t.Fatalf("unexpected state %+v", s)
				}
			},
		},
		{
			name:   "fail records message",
			state:  State{Status: StatusPaused, Step: StepNovelParse, Halted: true},
			change: change{kind: evFail, message: "boom"},
			check: func(t *testing.T, s State) {
				if s.Status != StatusError || s.Error != "boom" || s.Halted {
					t.Fatalf("unexpected state %+v", s)
				}
			},
		},
		{
			name:   "checkpoint commits halt value",
			state:  running(StepNovelParse, 20),
			change: change{kind: evCheckpoint, step: StepScriptGenerate},
			check: func(t *testing.T, s State) {
				if !s.Halted || s.Step != StepScriptGenerate || s.Progress != 35 || s.Status != StatusRunning {
					t.Fatalf("unexpected state %+v", s)
				}
			},
		},
		{
			name:   "reset from anywhere",
			state:  State{Status: StatusError, Step: StepAnimation, Progress: 85, Error: "x"},
			change: change{kind: evReset},
			check: func(t *testing.T, s State) {
				if s.Status != StatusIdle || s.Step != StepNovelUpload || s.Progress != 0 || s.Error != "" {
					t.Fatalf("unexpected state %+v", s)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := transition(tt.state, tt.change)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Fatalf("expected ErrInvalidTransition, got %v", err)
				}
				if next.Status != tt.state.Status || next.Step != tt.state.Step || next.Progress != tt.state.Progress {
					t.Fatalf("rejected transition changed state: %+v", next)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.check != nil {
				tt.check(t, next)
			}
		})
	}
}

func TestTransitionDoesNotMutateInput(t *testing.T) {
	before := running(StepSceneRender, 75)
	_, err := transition(before, change{kind: evStageDone, artifact: SceneArtifact{Ref: drama.ArtifactRef{URI: "x"}}, progress: 80})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if before.Data.Scenes != nil || before.Progress != 75 {
		t.Fatal("transition mutated its input")
	}
}
