package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	LogDir    string `toml:"log_dir"`
	ExportDir string `toml:"export_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Workflow contains the default per-run workflow settings. Command-line flags
// override individual values for a single run.
type Workflow struct {
	AutoParse               bool   `toml:"auto_parse"`
	AutoGenerateScript      bool   `toml:"auto_generate_script"`
	AutoGenerateStoryboard  bool   `toml:"auto_generate_storyboard"`
	ChaptersToUse           int    `toml:"chapters_to_use"`
	ScenesPerChapter        int    `toml:"scenes_per_chapter"`
	PanelsPerScene          int    `toml:"panels_per_scene"`
	Provider                string `toml:"provider"`
	Model                   string `toml:"model"`
	PlaceholderStageDelayMS int    `toml:"placeholder_stage_delay_ms"`
}

// LLM contains the chat-completions connection used by the novel services.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Tasks contains configuration for the image/video generation task tracker.
type Tasks struct {
	MaxConcurrent         int     `toml:"max_concurrent"`
	DispatchPerSecond     float64 `toml:"dispatch_per_second"`
	DispatchBurst         int     `toml:"dispatch_burst"`
	Backend               string  `toml:"backend"`
	BackendURL            string  `toml:"backend_url"`
	BackendAPIKey         string  `toml:"backend_api_key"`
	PollIntervalMS        int     `toml:"poll_interval_ms"`
	ResultCacheTTLSeconds int     `toml:"result_cache_ttl_seconds"`
	History               bool    `toml:"history"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Workflow       bool   `toml:"workflow"`
	Tasks          bool   `toml:"tasks"`
	Errors         bool   `toml:"errors"`
}

// Config encapsulates all configuration values for dramaflow.
//
// Configuration sections by subsystem:
//   - Paths: data, log, and export directories
//   - Logging: log format and level
//   - Workflow: default toggles and knobs for novel-to-video runs
//   - LLM: chat-completions endpoint for parsing, scripting, and storyboards
//   - Tasks: generation task concurrency, rate limits, backend, and history
//   - Notifications: ntfy push notification settings
type Config struct {
	Paths         Paths         `toml:"paths"`
	Logging       Logging       `toml:"logging"`
	Workflow      Workflow      `toml:"workflow"`
	LLM           LLM           `toml:"llm"`
	Tasks         Tasks         `toml:"tasks"`
	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := toml.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("dramaflow.toml")
	if err != nil {
		return "", false, err
	}
	for _, candidate := range []string{defaultPath, projectPath} {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true, nil
		}
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the data, log, and export directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.ExportDir, c.LockDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockDir is where per-project run locks are created.
func (c *Config) LockDir() string {
	return filepath.Join(c.Paths.DataDir, "locks")
}

// TaskHistoryPath is the sqlite database archiving finished generation tasks.
func (c *Config) TaskHistoryPath() string {
	return filepath.Join(c.Paths.DataDir, "tasks.db")
}

// Marshal renders the effective configuration as TOML. Secrets are masked.
func (c *Config) Marshal() ([]byte, error) {
	clone := *c
	clone.LLM.APIKey = mask(clone.LLM.APIKey)
	clone.Tasks.BackendAPIKey = mask(clone.Tasks.BackendAPIKey)
	return toml.Marshal(clone)
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
