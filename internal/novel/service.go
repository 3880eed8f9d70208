package novel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"dramaflow/internal/drama"
	"dramaflow/internal/logging"
	"dramaflow/internal/services"
	"dramaflow/internal/services/llm"
	"dramaflow/internal/stage"
)

const (
	defaultMaxManuscriptRunes = 60000
	parseTemperature          = 0.2
	generateTemperature       = 0.7
)

// Completer is the subset of llm.Client used by the service.
type Completer interface {
	CompleteJSON(ctx context.Context, req llm.Request) (string, error)
}

// Service implements drama.NovelParser, drama.ScriptGenerator and
// drama.StoryboardGenerator.
type Service struct {
	client   Completer
	logger   *slog.Logger
	maxRunes int
}

// Option customizes the service.
type Option func(*Service)

// WithMaxManuscriptRunes caps how much of the manuscript is sent to the model.
func WithMaxManuscriptRunes(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxRunes = n
		}
	}
}

// NewService constructs a service over client.
func NewService(client Completer, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		client:   client,
		logger:   logging.NewComponentLogger(logger, "novel"),
		maxRunes: defaultMaxManuscriptRunes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type parseResponse struct {
	Title    string `json:"title"`
	Chapters []struct {
		Index   int    `json:"index"`
		Title   string `json:"title"`
		Summary string `json:"summary"`
	} `json:"chapters"`
	Characters []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Role        string `json:"role"`
	} `json:"characters"`
}

// Parse implements drama.NovelParser.
func (s *Service) Parse(ctx context.Context, content string, opts drama.ParseOptions) (drama.NovelParseResult, error) {
	const stageName, op = "novel-parse", "parse manuscript"
	content = strings.TrimSpace(content)
	if content == "" {
		return drama.NovelParseResult{}, services.Wrap(services.ErrValidation, stageName, op, "manuscript is empty", nil)
	}
	text, truncated := truncateRunes(content, s.maxRunes)
	if truncated {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "manuscript truncated for parsing", "manuscript_truncated",
			logging.Int("runes", utf8.RuneCountInString(content)),
			logging.Int("limit", s.maxRunes),
			logging.String(logging.FieldImpact, "chapters beyond the limit are not parsed"),
			logging.String(logging.FieldErrorHint, "split very long manuscripts into volumes"),
		)
	}

	user := fmt.Sprintf("Return at most %d chapters.\n\nManuscript:\n%s", max(opts.MaxChapters, 1), text)
	var resp parseResponse
	if err := s.complete(ctx, stageName, op, ParsePrompt, user, opts.Model, parseTemperature, &resp); err != nil {
		return drama.NovelParseResult{}, err
	}

	result := drama.NovelParseResult{Title: strings.TrimSpace(resp.Title)}
	for _, ch := range resp.Chapters {
		summary := strings.TrimSpace(ch.Summary)
		title := strings.TrimSpace(ch.Title)
		if summary == "" && title == "" {
			continue
		}
		result.Chapters = append(result.Chapters, drama.Chapter{Title: title, Summary: summary})
	}
	if len(result.Chapters) == 0 {
		return drama.NovelParseResult{}, services.Wrap(services.ErrValidation, stageName, op, "model returned no chapters", nil)
	}
	if opts.MaxChapters > 0 && len(result.Chapters) > opts.MaxChapters {
		result.Chapters = result.Chapters[:opts.MaxChapters]
	}
	for i := range result.Chapters {
		result.Chapters[i].Index = i + 1
	}

	seen := make(map[string]bool)
	for _, c := range resp.Characters {
		name := strings.TrimSpace(c.Name)
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			continue
		}
		seen[key] = true
		result.Characters = append(result.Characters, drama.CharacterProfile{
			Name:        name,
			Description: strings.TrimSpace(c.Description),
			Role:        strings.ToLower(strings.TrimSpace(c.Role)),
		})
	}
	return result, nil
}

type scriptResponse struct {
	Title  string `json:"title"`
	Scenes []struct {
		ChapterIndex int                  `json:"chapter_index"`
		Title        string               `json:"title"`
		Location     string               `json:"location"`
		Description  string               `json:"description"`
		Characters   []string             `json:"characters"`
		Dialogue     []drama.DialogueLine `json:"dialogue"`
	} `json:"scenes"`
}

// GenerateScript implements drama.ScriptGenerator.
func (s *Service) GenerateScript(ctx context.Context, novel drama.NovelParseResult, opts drama.ScriptOptions) (drama.Script, error) {
	const stageName, op = "script-generate", "generate script"
	chapters := novel.Chapters
	if opts.ChaptersToUse > 0 && len(chapters) > opts.ChaptersToUse {
		chapters = chapters[:opts.ChaptersToUse]
	}
	if len(chapters) == 0 {
		return drama.Script{}, services.Wrap(services.ErrValidation, stageName, op, "no chapters to adapt", nil)
	}
	perChapter := max(opts.ScenesPerChapter, 1)

	var b strings.Builder
	fmt.Fprintf(&b, "Write %d scenes per chapter.\n", perChapter)
	if novel.Title != "" {
		fmt.Fprintf(&b, "Novel: %s\n", novel.Title)
	}
	b.WriteString("\nCharacters:\n")
	for _, c := range novel.Characters {
		fmt.Fprintf(&b, "- %s: %s\n", c.Name, c.Description)
	}
	b.WriteString("\nChapters:\n")
	for _, ch := range chapters {
		fmt.Fprintf(&b, "%d. %s: %s\n", ch.Index, ch.Title, ch.Summary)
	}

	var resp scriptResponse
	if err := s.complete(ctx, stageName, op, ScriptPrompt, b.String(), opts.Model, generateTemperature, &resp); err != nil {
		return drama.Script{}, err
	}

	script := drama.Script{Title: strings.TrimSpace(resp.Title)}
	if script.Title == "" {
		script.Title = novel.Title
	}
	limit := len(chapters) * perChapter
	for _, sc := range resp.Scenes {
		if len(script.Scenes) == limit {
			break
		}
		description := strings.TrimSpace(sc.Description)
		if description == "" {
			continue
		}
		script.Scenes = append(script.Scenes, drama.ScriptScene{
			ID:           fmt.Sprintf("scene-%02d", len(script.Scenes)+1),
			ChapterIndex: sc.ChapterIndex,
			Title:        strings.TrimSpace(sc.Title),
			Location:     strings.TrimSpace(sc.Location),
			Description:  description,
			Characters:   cleanNames(sc.Characters),
			Dialogue:     cleanDialogue(sc.Dialogue),
		})
	}
	if len(script.Scenes) == 0 {
		return drama.Script{}, services.Wrap(services.ErrValidation, stageName, op, "model returned no scenes", nil)
	}
	return script, nil
}

type storyboardResponse struct {
	Panels []struct {
		ShotType    string   `json:"shot_type"`
		Description string   `json:"description"`
		Dialogue    string   `json:"dialogue"`
		Characters  []string `json:"characters"`
	} `json:"panels"`
}

// GenerateStoryboard implements drama.StoryboardGenerator.
func (s *Service) GenerateStoryboard(ctx context.Context, scene drama.ScriptScene, opts drama.StoryboardOptions) ([]drama.StoryboardPanel, error) {
	const stageName, op = "storyboard-generate", "generate storyboard"
	count := max(opts.PanelsPerScene, 1)

	var b strings.Builder
	fmt.Fprintf(&b, "Panels: %d\n\nScene: %s\n", count, scene.Title)
	if scene.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", scene.Location)
	}
	fmt.Fprintf(&b, "Action: %s\n", scene.Description)
	if len(scene.Characters) > 0 {
		fmt.Fprintf(&b, "Characters: %s\n", strings.Join(scene.Characters, ", "))
	}
	for _, line := range scene.Dialogue {
		fmt.Fprintf(&b, "%s: %s\n", line.Character, line.Line)
	}

	var resp storyboardResponse
	if err := s.complete(ctx, stageName, op, StoryboardPrompt, b.String(), opts.Model, generateTemperature, &resp); err != nil {
		return nil, err
	}

	panels := make([]drama.StoryboardPanel, 0, count)
	for _, p := range resp.Panels {
		if len(panels) == count {
			break
		}
		description := strings.TrimSpace(p.Description)
		if description == "" {
			continue
		}
		panels = append(panels, drama.StoryboardPanel{
			SceneID:     scene.ID,
			Index:       len(panels) + 1,
			ShotType:    strings.ToLower(strings.TrimSpace(p.ShotType)),
			Description: description,
			Dialogue:    strings.TrimSpace(p.Dialogue),
			Characters:  cleanNames(p.Characters),
		})
	}
	if len(panels) == 0 {
		return nil, services.Wrap(services.ErrValidation, stageName, op, fmt.Sprintf("model returned no panels for %s", scene.ID), nil)
	}
	return panels, nil
}

// HealthCheck implements stage.HealthChecker.
func (s *Service) HealthCheck(ctx context.Context) stage.Health {
	if s.client == nil {
		return stage.Unhealthy("novel", "llm client not configured")
	}
	if c, ok := s.client.(interface{ Configured() bool }); ok && !c.Configured() {
		return stage.Unhealthy("novel", "llm api key required")
	}
	return stage.Healthy("novel")
}

func (s *Service) complete(ctx context.Context, stageName, op, system, user, model string, temperature float64, target any) error {
	if s.client == nil {
		return services.Wrap(services.ErrConfiguration, stageName, op, "llm client not configured", nil)
	}
	logger := logging.WithContext(ctx, s.logger)
	logger.Debug("llm request", logging.String("operation", op), logging.Int("prompt_runes", utf8.RuneCountInString(user)))

	content, err := s.client.CompleteJSON(ctx, llm.Request{System: system, User: user, Model: model, Temperature: temperature})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, llm.ErrNotConfigured) {
			return services.Wrap(services.ErrConfiguration, stageName, op, "llm api key required", err)
		}
		return services.Wrap(services.ErrProvider, stageName, op, "llm request failed", err)
	}
	if err := llm.DecodeJSON(content, target); err != nil {
		return services.Wrap(services.ErrValidation, stageName, op, "malformed model response", err)
	}
	return nil
}

func truncateRunes(s string, limit int) (string, bool) {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s, false
	}
	runes := []rune(s)
	return string(runes[:limit]), true
}

func cleanNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func cleanDialogue(lines []drama.DialogueLine) []drama.DialogueLine {
	out := make([]drama.DialogueLine, 0, len(lines))
	for _, l := range lines {
		l.Character = strings.TrimSpace(l.Character)
		l.Line = strings.TrimSpace(l.Line)
		l.Emotion = strings.TrimSpace(l.Emotion)
		if l.Line == "" {
			continue
		}
		out = append(out, l)
	}
	return out
}
