package workflow_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dramaflow/internal/drama"
	"dramaflow/internal/events"
	"dramaflow/internal/workflow"
)

const manuscript = "Chapter 1\nLin Yue leaves the mountain.\n\nChapter 2\nShe reaches the capital."

type stubParser struct {
	err   error
	hook  func(ctx context.Context) error
	calls atomic.Int32
	opts  drama.ParseOptions
}

func (p *stubParser) Parse(ctx context.Context, content string, opts drama.ParseOptions) (drama.NovelParseResult, error) {
	p.calls.Add(1)
	p.opts = opts
	if p.hook != nil {
		if err := p.hook(ctx); err != nil {
			return drama.NovelParseResult{}, err
		}
	}
	if p.err != nil {
		return drama.NovelParseResult{}, p.err
	}
	return drama.NovelParseResult{
		Title: "Mountain Road",
		Chapters: []drama.Chapter{
			{Index: 1, Title: "Departure", Summary: "Lin Yue leaves the mountain."},
			{Index: 2, Title: "Capital", Summary: "She reaches the capital."},
		},
		Characters: []drama.CharacterProfile{
			{Name: "Lin Yue", Description: "a young swordswoman"},
			{Name: "Old Zhao", Description: "her teacher"},
		},
	}, nil
}

type stubScripts struct {
	calls atomic.Int32
}

func (s *stubScripts) GenerateScript(ctx context.Context, novel drama.NovelParseResult, opts drama.ScriptOptions) (drama.Script, error) {
	s.calls.Add(1)
	script := drama.Script{Title: novel.Title}
	for c := 0; c < opts.ChaptersToUse; c++ {
		for n := 0; n < opts.ScenesPerChapter; n++ {
			script.Scenes = append(script.Scenes, drama.ScriptScene{
				ID:           fmt.Sprintf("scene-%d-%d", c+1, n+1),
				ChapterIndex: c + 1,
				Title:        fmt.Sprintf("Scene %d.%d", c+1, n+1),
				Description:  "a scene",
				Characters:   []string{"Lin Yue"},
			})
		}
	}
	return script, nil
}

type stubStoryboards struct {
	hook  func(ctx context.Context, call int) error
	calls atomic.Int32
}

func (s *stubStoryboards) GenerateStoryboard(ctx context.Context, scene drama.ScriptScene, opts drama.StoryboardOptions) ([]drama.StoryboardPanel, error) {
	call := int(s.calls.Add(1))
	if s.hook != nil {
		if err := s.hook(ctx, call); err != nil {
			return nil, err
		}
	}
	panels := make([]drama.StoryboardPanel, opts.PanelsPerScene)
	for i := range panels {
		panels[i] = drama.StoryboardPanel{SceneID: scene.ID, Index: i + 1, Description: "panel"}
	}
	return panels, nil
}

type fixture struct {
	parser      *stubParser
	scripts     *stubScripts
	storyboards *stubStoryboards
	runners     workflow.Runners
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{parser: &stubParser{}, scripts: &stubScripts{}, storyboards: &stubStoryboards{}}
	f.runners = workflow.DefaultRunners(workflow.Collaborators{
		Parser:      f.parser,
		Scripts:     f.scripts,
		Storyboards: f.storyboards,
	})
	for _, step := range []workflow.Step{workflow.StepSceneRender, workflow.StepAnimation, workflow.StepVoiceover, workflow.StepExport} {
		runner, err := workflow.NewOperationRunner(step, refOperation(step))
		if err != nil {
			t.Fatalf("NewOperationRunner(%s): %v", step, err)
		}
		f.runners[step] = runner
	}
	return f
}

func refOperation(step workflow.Step) workflow.OperationFunc {
	return func(ctx context.Context, in workflow.Input) (drama.ArtifactRef, error) {
		if err := ctx.Err(); err != nil {
			return drama.ArtifactRef{}, err
		}
		return drama.ArtifactRef{Kind: step.String(), URI: "memory://" + in.ProjectID + "/" + step.String(), Count: 1}, nil
	}
}

func (f *fixture) engine(t *testing.T) (*workflow.Engine, *recorder) {
	t.Helper()
	bus := events.NewBus(nil)
	t.Cleanup(func() { _ = bus.Close(context.Background()) })
	engine := workflow.New(f.runners, workflow.WithBus(bus))
	rec := &recorder{}
	engine.Subscribe(rec)
	return engine, rec
}

func testConfig() workflow.Config {
	cfg := workflow.DefaultConfig()
	cfg.AutoParse = true
	cfg.AutoGenerateScript = true
	cfg.AutoGenerateStoryboard = true
	cfg.ChaptersToUse = 3
	cfg.ScenesPerChapter = 2
	cfg.PanelsPerScene = 2
	return cfg
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Notify(evt events.Event) {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

func (r *recorder) kinds(kind events.Kind) []events.Event {
	var out []events.Event
	for _, evt := range r.snapshot() {
		if evt.Kind == kind {
			out = append(out, evt)
		}
	}
	return out
}

func syncBus(t *testing.T, engine *workflow.Engine) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := engine.Bus().Sync(ctx); err != nil {
		t.Fatalf("bus sync: %v", err)
	}
}

func waitForState(t *testing.T, engine *workflow.Engine, cond func(workflow.State) bool) workflow.State {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		state := engine.State()
		if cond(state) {
			return state
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for state, last: step=%s status=%s progress=%d", state.Step, state.Status, state.Progress)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func startAsync(engine *workflow.Engine, ctx context.Context, cfg workflow.Config) <-chan error {
	done := make(chan error, 1)
	go func() { done <- engine.Start(ctx, "proj-1", manuscript, cfg) }()
	return done
}

func waitErr(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Start to return")
		return nil
	}
}
