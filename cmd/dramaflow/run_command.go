package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"dramaflow/internal/events"
	"dramaflow/internal/workflow"
)

type runOptions struct {
	project      string
	noParse      bool
	noScript     bool
	noStoryboard bool
	autoContinue bool
	chapters     int
	scenes       int
	panels       int
	provider     string
	model        string
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run <novel-file>",
		Short: "Run the novel-to-drama workflow for a manuscript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkflow(cmd, ctx, args[0], opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.project, "project", "p", "", "Project ID (defaults to the file name)")
	flags.BoolVar(&opts.noParse, "no-auto-parse", false, "Stop before parsing the manuscript")
	flags.BoolVar(&opts.noScript, "no-auto-script", false, "Stop after parsing, before script generation")
	flags.BoolVar(&opts.noStoryboard, "no-auto-storyboard", false, "Stop after scripting, before storyboards")
	flags.BoolVar(&opts.autoContinue, "continue", false, "Continue through checkpoints without prompting")
	flags.IntVar(&opts.chapters, "chapters", 0, "Chapters to use for the script (overrides workflow.chapters_to_use)")
	flags.IntVar(&opts.scenes, "scenes", 0, "Scenes per chapter (overrides workflow.scenes_per_chapter)")
	flags.IntVar(&opts.panels, "panels", 0, "Storyboard panels per scene (overrides workflow.panels_per_scene)")
	flags.StringVar(&opts.provider, "provider", "", "Provider name recorded for each stage")
	flags.StringVar(&opts.model, "model", "", "Model override for LLM stages")
	return cmd
}

func (o runOptions) apply(cfg workflow.Config) workflow.Config {
	if o.noParse {
		cfg.AutoParse = false
	}
	if o.noScript {
		cfg.AutoGenerateScript = false
	}
	if o.noStoryboard {
		cfg.AutoGenerateStoryboard = false
	}
	if o.chapters > 0 {
		cfg.ChaptersToUse = o.chapters
	}
	if o.scenes > 0 {
		cfg.ScenesPerChapter = o.scenes
	}
	if o.panels > 0 {
		cfg.PanelsPerScene = o.panels
	}
	if p := strings.TrimSpace(o.provider); p != "" {
		cfg.Provider = p
	}
	if m := strings.TrimSpace(o.model); m != "" {
		cfg.Model = m
	}
	return cfg
}

func runWorkflow(cmd *cobra.Command, ctx *commandContext, path string, opts runOptions) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read manuscript: %w", err)
	}
	projectID := strings.TrimSpace(opts.project)
	if projectID == "" {
		projectID = projectFromPath(path)
	}

	lock, err := acquireProjectLock(cfg, projectID)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	bus := events.NewBus(logger)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = bus.Close(closeCtx)
	}()
	engine, err := buildEngine(cfg, logger, bus)
	if err != nil {
		return err
	}
	notifySub := attachNotifications(cfg, logger, bus)
	defer notifySub.Close()

	printer := newProgressPrinter(cmd.ErrOrStderr(), isTerminal(cmd.ErrOrStderr()))
	if !ctx.jsonOutput() {
		sub := engine.Subscribe(printer)
		defer sub.Close()
	}

	signalCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runCfg := opts.apply(workflow.ConfigFromSettings(cfg.Workflow))
	runErr := engine.Start(signalCtx, projectID, string(content), runCfg)
	for runErr == nil && halted(engine.State()) {
		_ = bus.Sync(signalCtx)
		printer.finish()
		if !opts.autoContinue && !confirmAdvance(cmd, engine.State()) {
			break
		}
		runErr = engine.Advance(signalCtx)
	}

	syncCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = bus.Sync(syncCtx)
	printer.finish()

	state := engine.State()
	if ctx.jsonOutput() {
		if err := writeJSON(cmd, state); err != nil {
			return err
		}
	} else {
		printRunSummary(cmd.OutOrStdout(), state)
	}
	if errors.Is(runErr, context.Canceled) {
		fprintf(cmd.ErrOrStderr(), "Run cancelled; completed stages are listed above.\n")
	}
	return runErr
}

func halted(state workflow.State) bool {
	return state.Status == workflow.StatusRunning && state.Halted
}

// confirmAdvance asks on an interactive terminal whether to enter the halted
// step.
func confirmAdvance(cmd *cobra.Command, state workflow.State) bool {
	in := cmd.InOrStdin()
	if !isTerminal(in) {
		fprintf(cmd.ErrOrStderr(), "Halted before %s (re-run with --continue to proceed).\n", state.Step.Label())
		return false
	}
	fprintf(cmd.ErrOrStderr(), "Halted before %s. Continue? [y/N] ", state.Step.Label())
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

func printRunSummary(w io.Writer, state workflow.State) {
	rows := make([][]string, 0, len(workflow.Steps()))
	for _, step := range workflow.Steps() {
		rows = append(rows, []string{
			step.Label(),
			stageStatus(state, step),
			artifactSummary(state.Data, step),
		})
	}
	fprintf(w, "%s\n", renderTable([]string{"Stage", "Status", "Output"}, rows, nil))
	fprintf(w, "Project %s: %s (%d%%)", state.Data.ProjectID, state.Status, state.Progress)
	if state.Error != "" {
		fprintf(w, ": %s", state.Error)
	}
	fprintf(w, "\n")
}

func stageStatus(state workflow.State, step workflow.Step) string {
	switch {
	case state.Data.Has(step):
		return "done"
	case step != state.Step:
		return "-"
	case state.Status == workflow.StatusError:
		return "failed"
	case state.Halted:
		return "halted"
	case state.Status == workflow.StatusIdle:
		return "cancelled"
	default:
		return string(state.Status)
	}
}

func artifactSummary(data workflow.Data, step workflow.Step) string {
	switch step {
	case workflow.StepNovelUpload:
		if data.Manuscript != nil {
			return strconv.Itoa(data.Manuscript.Runes) + " characters of text"
		}
	case workflow.StepNovelParse:
		if data.Novel != nil {
			return fmt.Sprintf("%d chapters, %d characters", len(data.Novel.Chapters), len(data.Novel.Characters))
		}
	case workflow.StepScriptGenerate:
		if data.Script != nil {
			return fmt.Sprintf("%d scenes", len(data.Script.Scenes))
		}
	case workflow.StepStoryboardGenerate:
		if data.Storyboards != nil {
			return fmt.Sprintf("%d panels across %d scenes", len(data.Storyboards.Panels), data.Storyboards.Scenes)
		}
	case workflow.StepCharacterDesign:
		if data.Characters != nil {
			return fmt.Sprintf("%d characters", len(data.Characters.Characters))
		}
	case workflow.StepSceneRender:
		if data.Scenes != nil {
			return refSummary(data.Scenes.Ref.Count, data.Scenes.Ref.Kind)
		}
	case workflow.StepAnimation:
		if data.Animations != nil {
			return refSummary(data.Animations.Ref.Count, data.Animations.Ref.Kind)
		}
	case workflow.StepVoiceover:
		if data.Audio != nil {
			return refSummary(data.Audio.Ref.Count, data.Audio.Ref.Kind)
		}
	case workflow.StepExport:
		if data.Export != nil {
			return data.Export.URL
		}
	}
	return ""
}

func refSummary(count int, kind string) string {
	return fmt.Sprintf("%d %s", count, kind)
}
