package config

const (
	defaultConfigPath              = "~/.config/dramaflow/config.toml"
	defaultDataDir                 = "~/.local/share/dramaflow"
	defaultLogDir                  = "~/.local/share/dramaflow/logs"
	defaultExportDir               = "~/dramaflow/exports"
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultChaptersToUse           = 3
	defaultScenesPerChapter        = 2
	defaultPanelsPerScene          = 4
	defaultProvider                = "openrouter"
	defaultPlaceholderDelayMS      = 1000
	defaultLLMBaseURL              = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel                = "google/gemini-3-flash-preview"
	defaultLLMTitle                = "dramaflow"
	defaultLLMTimeoutSeconds       = 120
	defaultTasksMaxConcurrent      = 3
	defaultTasksDispatchPerSecond  = 2.0
	defaultTasksDispatchBurst      = 2
	defaultTasksBackend            = BackendSimulated
	defaultTasksPollIntervalMS     = 2000
	defaultTasksResultCacheTTL     = 600
	defaultNotifyRequestTimeout    = 10
	defaultNotifyWorkflowEnabled   = true
	defaultNotifyTasksEnabled      = false
	defaultNotifyErrorsEnabled     = true
	defaultTasksHistoryEnabled     = true
	defaultWorkflowAutoAdvanceFlag = true
)

// Task backend identifiers accepted by tasks.backend.
const (
	BackendSimulated = "simulated"
	BackendHTTP      = "http"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
			ExportDir: defaultExportDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Workflow: Workflow{
			AutoParse:               defaultWorkflowAutoAdvanceFlag,
			AutoGenerateScript:      defaultWorkflowAutoAdvanceFlag,
			AutoGenerateStoryboard:  defaultWorkflowAutoAdvanceFlag,
			ChaptersToUse:           defaultChaptersToUse,
			ScenesPerChapter:        defaultScenesPerChapter,
			PanelsPerScene:          defaultPanelsPerScene,
			Provider:                defaultProvider,
			PlaceholderStageDelayMS: defaultPlaceholderDelayMS,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Tasks: Tasks{
			MaxConcurrent:         defaultTasksMaxConcurrent,
			DispatchPerSecond:     defaultTasksDispatchPerSecond,
			DispatchBurst:         defaultTasksDispatchBurst,
			Backend:               defaultTasksBackend,
			PollIntervalMS:        defaultTasksPollIntervalMS,
			ResultCacheTTLSeconds: defaultTasksResultCacheTTL,
			History:               defaultTasksHistoryEnabled,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Workflow:       defaultNotifyWorkflowEnabled,
			Tasks:          defaultNotifyTasksEnabled,
			Errors:         defaultNotifyErrorsEnabled,
		},
	}
}
