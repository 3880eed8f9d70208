package main

import (
	"fmt"
	"log/slog"
	"maps"
	"time"

	"dramaflow/internal/config"
	"dramaflow/internal/events"
	"dramaflow/internal/media"
	"dramaflow/internal/notifications"
	"dramaflow/internal/novel"
	"dramaflow/internal/services/llm"
	"dramaflow/internal/tasks"
	"dramaflow/internal/taskstore"
	"dramaflow/internal/workflow"
)

func newLLMClient(cfg *config.Config) *llm.Client {
	return llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Referer:        cfg.LLM.Referer,
		Title:          cfg.LLM.Title,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})
}

// buildEngine wires the LLM-backed text stages and the media stages into a
// workflow engine publishing on bus.
func buildEngine(cfg *config.Config, logger *slog.Logger, bus *events.Bus) (*workflow.Engine, error) {
	svc := novel.NewService(newLLMClient(cfg), logger)
	runners := workflow.DefaultRunners(workflow.Collaborators{
		Parser:      svc,
		Scripts:     svc,
		Storyboards: svc,
	})
	delay := time.Duration(cfg.Workflow.PlaceholderStageDelayMS) * time.Millisecond
	mediaRunners, err := media.Runners(delay, media.NewExportManifest(cfg.Paths.ExportDir))
	if err != nil {
		return nil, err
	}
	maps.Copy(runners, mediaRunners)
	return workflow.New(runners, workflow.WithLogger(logger), workflow.WithBus(bus)), nil
}

// attachNotifications forwards terminal events on bus to ntfy.
func attachNotifications(cfg *config.Config, logger *slog.Logger, bus *events.Bus) *events.Subscription {
	return notifications.NewForwarder(notifications.NewService(cfg), logger).Attach(bus)
}

// trackerEnv bundles a tracker with the resources it holds open.
type trackerEnv struct {
	tracker *tasks.Tracker
	store   *taskstore.Store
	bus     *events.Bus
}

func buildTracker(cfg *config.Config, logger *slog.Logger, bus *events.Bus) (*trackerEnv, error) {
	backend, err := tasks.NewBackend(cfg.Tasks, logger)
	if err != nil {
		return nil, err
	}
	opts := append(tasks.ConfigOptions(cfg.Tasks), tasks.WithLogger(logger), tasks.WithBus(bus))
	env := &trackerEnv{bus: bus}
	if cfg.Tasks.History {
		store, err := taskstore.Open(cfg.TaskHistoryPath())
		if err != nil {
			return nil, fmt.Errorf("open task history: %w", err)
		}
		env.store = store
		opts = append(opts, tasks.WithArchive(store))
	}
	tracker, err := tasks.NewTracker(backend, opts...)
	if err != nil {
		_ = env.store.Close()
		return nil, err
	}
	env.tracker = tracker
	return env, nil
}
