package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateTasks(); err != nil {
		return err
	}
	if c.Notifications.RequestTimeout < 0 {
		return errors.New("notifications.request_timeout must be non-negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (want console or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.ChaptersToUse < 1 {
		return errors.New("workflow.chapters_to_use must be at least 1")
	}
	if c.Workflow.ScenesPerChapter < 1 {
		return errors.New("workflow.scenes_per_chapter must be at least 1")
	}
	if c.Workflow.PanelsPerScene < 1 {
		return errors.New("workflow.panels_per_scene must be at least 1")
	}
	if c.Workflow.PlaceholderStageDelayMS < 0 {
		return errors.New("workflow.placeholder_stage_delay_ms must be non-negative")
	}
	return nil
}

func (c *Config) validateTasks() error {
	if c.Tasks.MaxConcurrent < 1 {
		return errors.New("tasks.max_concurrent must be at least 1")
	}
	if c.Tasks.DispatchPerSecond <= 0 {
		return errors.New("tasks.dispatch_per_second must be positive")
	}
	if c.Tasks.DispatchBurst < 1 {
		return errors.New("tasks.dispatch_burst must be at least 1")
	}
	if c.Tasks.ResultCacheTTLSeconds < 0 {
		return errors.New("tasks.result_cache_ttl_seconds must be non-negative")
	}
	switch c.Tasks.Backend {
	case BackendSimulated:
	case BackendHTTP:
		if c.Tasks.BackendURL == "" {
			return errors.New("tasks.backend_url must be set when tasks.backend is \"http\"")
		}
	default:
		return fmt.Errorf("tasks.backend: unsupported value %q (want %s or %s)", c.Tasks.Backend, BackendSimulated, BackendHTTP)
	}
	return nil
}
