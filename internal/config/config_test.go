package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dramaflow/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("DRAMAFLOW_LLM_API_KEY", "env-key")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if resolved != filepath.Join(tempHome, ".config", "dramaflow", "config.toml") {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if want := filepath.Join(tempHome, ".local", "share", "dramaflow"); cfg.Paths.DataDir != want {
		t.Fatalf("data dir = %q, want %q", cfg.Paths.DataDir, want)
	}
	if cfg.LLM.APIKey != "env-key" {
		t.Fatalf("expected LLM key from env, got %q", cfg.LLM.APIKey)
	}
	if !cfg.Workflow.AutoParse || !cfg.Workflow.AutoGenerateScript || !cfg.Workflow.AutoGenerateStoryboard {
		t.Fatal("expected auto-advance enabled by default")
	}
	if cfg.Tasks.Backend != config.BackendSimulated {
		t.Fatalf("unexpected default backend %q", cfg.Tasks.Backend)
	}
	if cfg.TaskHistoryPath() != filepath.Join(cfg.Paths.DataDir, "tasks.db") {
		t.Fatalf("unexpected task history path %q", cfg.TaskHistoryPath())
	}
}

func TestLoadCustomConfigOverridesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "dramaflow.toml")
	content := `
[paths]
data_dir = "` + filepath.ToSlash(filepath.Join(dir, "data")) + `"

[workflow]
auto_generate_script = false
chapters_to_use = 5
model = "  claude  "

[tasks]
backend = "HTTP"
backend_url = "http://127.0.0.1:9000"
max_concurrent = 8
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config at %q to exist, got %q exists=%v", path, resolved, exists)
	}
	if cfg.Workflow.AutoGenerateScript {
		t.Fatal("expected auto_generate_script override")
	}
	if !cfg.Workflow.AutoParse {
		t.Fatal("expected auto_parse default retained")
	}
	if cfg.Workflow.ChaptersToUse != 5 || cfg.Workflow.Model != "claude" {
		t.Fatalf("unexpected workflow section %+v", cfg.Workflow)
	}
	if cfg.Tasks.Backend != config.BackendHTTP || cfg.Tasks.MaxConcurrent != 8 {
		t.Fatalf("unexpected tasks section %+v", cfg.Tasks)
	}
	if cfg.Paths.DataDir != filepath.Join(dir, "data") {
		t.Fatalf("unexpected data dir %q", cfg.Paths.DataDir)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"chapters", func(c *config.Config) { c.Workflow.ChaptersToUse = 0 }, "workflow.chapters_to_use"},
		{"scenes", func(c *config.Config) { c.Workflow.ScenesPerChapter = -1 }, "workflow.scenes_per_chapter"},
		{"panels", func(c *config.Config) { c.Workflow.PanelsPerScene = 0 }, "workflow.panels_per_scene"},
		{"concurrency", func(c *config.Config) { c.Tasks.MaxConcurrent = 0 }, "tasks.max_concurrent"},
		{"rate", func(c *config.Config) { c.Tasks.DispatchPerSecond = 0 }, "tasks.dispatch_per_second"},
		{"http backend url", func(c *config.Config) { c.Tasks.Backend = config.BackendHTTP }, "tasks.backend_url"},
		{"unknown backend", func(c *config.Config) { c.Tasks.Backend = "grpc" }, "tasks.backend"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q in error, got %v", tt.want, err)
			}
		})
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config failed to load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Workflow.PanelsPerScene != 4 {
		t.Fatalf("unexpected panels per scene %d", cfg.Workflow.PanelsPerScene)
	}
}

func TestMarshalMasksSecrets(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.APIKey = "secret-value"
	out, err := cfg.Marshal()
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	if strings.Contains(string(out), "secret-value") {
		t.Fatalf("expected api key to be masked: %s", out)
	}
	if !strings.Contains(string(out), "chapters_to_use = 3") {
		t.Fatalf("expected workflow defaults in output: %s", out)
	}
}
