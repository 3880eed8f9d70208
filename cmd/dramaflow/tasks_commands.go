package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"dramaflow/internal/events"
	"dramaflow/internal/tasks"
	"dramaflow/internal/taskstore"
)

func newTasksCommand(ctx *commandContext) *cobra.Command {
	tasksCmd := &cobra.Command{
		Use:   "tasks",
		Short: "Generate images and videos and inspect task history",
	}
	tasksCmd.AddCommand(newTasksGenerateCommand(ctx))
	tasksCmd.AddCommand(newTasksHistoryCommand(ctx))
	tasksCmd.AddCommand(newTasksShowCommand(ctx))
	tasksCmd.AddCommand(newTasksRemoveCommand(ctx))
	tasksCmd.AddCommand(newTasksPruneCommand(ctx))
	return tasksCmd
}

type generateOptions struct {
	kind      string
	prompt    string
	negative  string
	provider  string
	style     string
	aspect    string
	images    int
	duration  int
	motion    float64
	reference string
	count     int
}

func (o generateOptions) params() (tasks.Type, tasks.Params, error) {
	typ, err := tasks.ParseType(o.kind)
	if err != nil {
		return "", tasks.Params{}, err
	}
	params := tasks.Params{
		Prompt:         o.prompt,
		NegativePrompt: strings.TrimSpace(o.negative),
		Provider:       tasks.Provider(strings.TrimSpace(o.provider)),
		Style:          strings.TrimSpace(o.style),
		AspectRatio:    strings.TrimSpace(o.aspect),
		NumImages:      o.images,
		Duration:       o.duration,
		MotionStrength: o.motion,
		ReferenceImage: strings.TrimSpace(o.reference),
	}.WithDefaults(typ)
	if err := params.Validate(typ); err != nil {
		return "", tasks.Params{}, err
	}
	return typ, params, nil
}

func newTasksGenerateCommand(ctx *commandContext) *cobra.Command {
	var opts generateOptions
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Submit generation tasks and wait for their results",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, ctx, opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.kind, "type", "t", string(tasks.TypeImage), "Task type (image or video)")
	flags.StringVar(&opts.prompt, "prompt", "", "Generation prompt")
	flags.StringVar(&opts.negative, "negative", "", "Negative prompt")
	flags.StringVar(&opts.provider, "provider", "", "Generation provider (defaults per type)")
	flags.StringVar(&opts.style, "style", "", "Visual style")
	flags.StringVar(&opts.aspect, "aspect", "", "Aspect ratio ("+strings.Join(tasks.AspectRatios, ", ")+")")
	flags.IntVar(&opts.images, "images", 0, "Images per task (1-4, image tasks)")
	flags.IntVar(&opts.duration, "duration", 0, "Clip length in seconds (5 or 10, video tasks)")
	flags.Float64Var(&opts.motion, "motion", 0, "Motion strength between 0 and 1 (video tasks)")
	flags.StringVar(&opts.reference, "reference", "", "Reference image URL (video tasks)")
	flags.IntVarP(&opts.count, "count", "n", 1, "Number of tasks to submit")
	_ = cmd.MarkFlagRequired("prompt")
	return cmd
}

func runGenerate(cmd *cobra.Command, ctx *commandContext, opts generateOptions) error {
	if opts.count < 1 {
		return fmt.Errorf("--count must be at least 1")
	}
	typ, params, err := opts.params()
	if err != nil {
		return err
	}
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}

	bus := events.NewBus(logger)
	env, err := buildTracker(cfg, logger, bus)
	if err != nil {
		_ = bus.Close(context.Background())
		return err
	}
	defer env.close()

	if !ctx.jsonOutput() {
		sub := bus.SubscribeFunc(taskStatusPrinter(cmd))
		defer sub.Close()
	}

	signalCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ids := make([]string, 0, opts.count)
	for range opts.count {
		id, err := env.tracker.Submit(typ, params)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}

	group, groupCtx := errgroup.WithContext(signalCtx)
	for _, id := range ids {
		group.Go(func() error {
			_, err := env.tracker.Wait(groupCtx, id)
			return err
		})
	}
	waitErr := group.Wait()

	// Close cancels whatever is still running so the snapshots below are final.
	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = env.tracker.Close(closeCtx)
	_ = bus.Sync(closeCtx)

	results := make([]tasks.Task, 0, len(ids))
	failed := 0
	for _, id := range ids {
		task, ok := env.tracker.Get(id)
		if !ok {
			continue
		}
		if task.Status != tasks.StatusCompleted {
			failed++
		}
		results = append(results, task)
	}

	if ctx.jsonOutput() {
		if err := writeJSON(cmd, results); err != nil {
			return err
		}
	} else {
		fprintf(cmd.OutOrStdout(), "%s\n", renderTaskTable(results, true))
	}

	if waitErr != nil {
		return waitErr
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d tasks did not complete", failed, len(ids))
	}
	return nil
}

func (e *trackerEnv) close() {
	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if e.tracker != nil {
		_ = e.tracker.Close(closeCtx)
	}
	if e.bus != nil {
		_ = e.bus.Close(closeCtx)
	}
	if e.store != nil {
		_ = e.store.Close()
	}
}

// taskStatusPrinter writes one line per task status change.
func taskStatusPrinter(cmd *cobra.Command) func(events.Event) {
	w := cmd.ErrOrStderr()
	return func(e events.Event) {
		if e.Kind != events.KindTaskStatus {
			return
		}
		line := fmt.Sprintf("%s %s %s", shortID(e.Source), e.Step, e.Status)
		if e.Message != "" {
			line += ": " + e.Message
		}
		fprintf(w, "%s\n", line)
	}
}

func renderTaskTable(list []tasks.Task, withFile bool) string {
	headers := []string{"ID", "Type", "Status", "Progress", "Result", "Duration"}
	if withFile {
		headers = append(headers, "File")
	}
	rows := make([][]string, 0, len(list))
	for _, task := range list {
		result := task.ResultURL
		if task.Error != "" {
			result = task.Error
		}
		if task.Cached {
			result += " (cached)"
		}
		row := []string{
			shortID(task.ID),
			string(task.Type),
			string(task.Status),
			strconv.Itoa(task.Progress) + "%",
			result,
			task.Duration().Round(100 * time.Millisecond).String(),
		}
		if withFile {
			file := ""
			if task.Status == tasks.StatusCompleted {
				file = tasks.DownloadName(task)
			}
			row = append(row, file)
		}
		rows = append(rows, row)
	}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft}
	return renderTable(headers, rows, aligns)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func openHistory(ctx *commandContext) (*taskstore.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := taskstore.Open(cfg.TaskHistoryPath())
	if err != nil {
		return nil, fmt.Errorf("open task history: %w", err)
	}
	return store, nil
}

func newTasksHistoryCommand(ctx *commandContext) *cobra.Command {
	var kind, status string
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List finished generation tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter taskstore.Filter
			if kind != "" {
				typ, err := tasks.ParseType(kind)
				if err != nil {
					return err
				}
				filter.Type = typ
			}
			if status != "" {
				st, err := tasks.ParseStatus(status)
				if err != nil {
					return err
				}
				filter.Status = st
			}
			filter.Limit = limit

			store, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			list, err := store.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, list)
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fprintf(out, "No task history\n")
				return nil
			}
			fprintf(out, "%s\n", renderTaskTable(list, false))
			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fprintf(out, "Totals: %d completed, %d failed, %d cancelled\n",
				stats[tasks.StatusCompleted], stats[tasks.StatusFailed], stats[tasks.StatusCancelled])
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "type", "", "Only show tasks of this type")
	cmd.Flags().StringVar(&status, "status", "", "Only show tasks with this status")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum rows to show (0 for all)")
	return cmd
}

func newTasksShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one archived task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			task, err := store.Get(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, task)
			}
			out := cmd.OutOrStdout()
			fprintf(out, "ID:        %s\n", task.ID)
			fprintf(out, "Type:      %s\n", task.Type)
			fprintf(out, "Status:    %s\n", task.Status)
			fprintf(out, "Prompt:    %s\n", task.Prompt)
			fprintf(out, "Provider:  %s\n", task.Params.Provider)
			fprintf(out, "Created:   %s\n", task.CreatedAt.Local().Format(time.DateTime))
			fprintf(out, "Duration:  %s\n", task.Duration().Round(100*time.Millisecond))
			if task.ResultURL != "" {
				fprintf(out, "Result:    %s\n", task.ResultURL)
				fprintf(out, "File:      %s\n", tasks.DownloadName(task))
			}
			if task.Error != "" {
				fprintf(out, "Error:     %s\n", task.Error)
			}
			if task.RetryOf != "" {
				fprintf(out, "Retry of:  %s\n", task.RetryOf)
			}
			return nil
		},
	}
}

func newTasksRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete an archived task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			id := strings.TrimSpace(args[0])
			removed, err := store.Delete(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("%w: %s", taskstore.ErrNotFound, id)
			}
			fprintf(cmd.OutOrStdout(), "Removed task %s\n", id)
			return nil
		},
	}
}

func newTasksPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete archived tasks older than a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan < 0 {
				return errors.New("--older-than must not be negative")
			}
			store, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.Prune(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fprintf(cmd.OutOrStdout(), "Pruned %d task(s)\n", removed)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 720*time.Hour, "Remove tasks last updated before now minus this duration")
	return cmd
}
