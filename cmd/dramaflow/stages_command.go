package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dramaflow/internal/events"
	"dramaflow/internal/logging"
	"dramaflow/internal/stage"
	"dramaflow/internal/workflow"
)

type stageRow struct {
	Step       string `json:"step"`
	Label      string `json:"label"`
	Low        int    `json:"progress_low"`
	High       int    `json:"progress_high"`
	Checkpoint string `json:"checkpoint,omitempty"`
	Ready      bool   `json:"ready"`
	Detail     string `json:"detail,omitempty"`
}

func newStagesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stages",
		Short: "List workflow stages, their progress budgets and readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := logging.NewNop()
			bus := events.NewBus(logger)
			defer func() { _ = bus.Close(cmd.Context()) }()
			engine, err := buildEngine(cfg, logger, bus)
			if err != nil {
				return err
			}

			settings := workflow.ConfigFromSettings(cfg.Workflow)
			health := engine.Health(cmd.Context())
			rows := make([]stageRow, 0, len(health))
			for i, step := range workflow.Steps() {
				budget := step.Budget()
				rows = append(rows, stageRow{
					Step:       step.String(),
					Label:      step.Label(),
					Low:        budget.Low,
					High:       budget.High,
					Checkpoint: checkpointLabel(settings, step),
					Ready:      health[i].Ready,
					Detail:     health[i].Detail,
				})
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, rows)
			}

			table := make([][]string, 0, len(rows))
			for _, row := range rows {
				table = append(table, []string{
					row.Label,
					fmt.Sprintf("%d-%d%%", row.Low, row.High),
					row.Checkpoint,
					yesNo(row.Ready),
					row.Detail,
				})
			}
			out := cmd.OutOrStdout()
			fprintf(out, "%s\n", renderTable(
				[]string{"Stage", "Progress", "Checkpoint", "Ready", "Detail"},
				table,
				[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
			))
			if ok, _ := stage.AllReady(health); !ok {
				for _, h := range health {
					if !h.Ready {
						fprintf(out, "Not ready: %s\n", h)
					}
				}
			}
			return nil
		},
	}
}

// checkpointLabel describes the auto-advance toggle guarding step, if any.
func checkpointLabel(cfg workflow.Config, step workflow.Step) string {
	var auto bool
	switch step {
	case workflow.StepNovelParse:
		auto = cfg.AutoParse
	case workflow.StepScriptGenerate:
		auto = cfg.AutoGenerateScript
	case workflow.StepStoryboardGenerate:
		auto = cfg.AutoGenerateStoryboard
	default:
		return ""
	}
	if auto {
		return "auto"
	}
	return fmt.Sprintf("halt at %d%%", step.Budget().Halt)
}
