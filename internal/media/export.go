package media

import (
	"context"
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dramaflow/internal/drama"
	"dramaflow/internal/fileutil"
	"dramaflow/internal/logging"
	"dramaflow/internal/services"
	"dramaflow/internal/stage"
	"dramaflow/internal/workflow"
)

// ManifestFile is the file name written under <dir>/<project>/.
const ManifestFile = "manifest.json"

// Manifest is the export document.
type Manifest struct {
	ProjectID   string              `json:"project_id"`
	Title       string              `json:"title,omitempty"`
	GeneratedAt time.Time           `json:"generated_at"`
	Chapters    int                 `json:"chapters"`
	Scenes      int                 `json:"scenes"`
	Panels      int                 `json:"panels"`
	Characters  []ManifestCharacter `json:"characters"`
	Media       []drama.ArtifactRef `json:"media"`
}

// ManifestCharacter is the export view of a character.
type ManifestCharacter struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ExportManifest writes the manifest for the export step.
type ExportManifest struct {
	Dir string
	Now func() time.Time
}

// NewExportManifest writes manifests under dir.
func NewExportManifest(dir string) *ExportManifest {
	return &ExportManifest{Dir: dir, Now: time.Now}
}

// Execute implements workflow.Operation.
func (e *ExportManifest) Execute(ctx context.Context, in workflow.Input) (drama.ArtifactRef, error) {
	if err := ctx.Err(); err != nil {
		return drama.ArtifactRef{}, err
	}
	if strings.TrimSpace(e.Dir) == "" {
		return drama.ArtifactRef{}, services.Wrap(services.ErrConfiguration, workflow.StepExport.String(), "write manifest", "export directory not configured", nil)
	}
	manifest := buildManifest(in.ProjectID, in.Data, e.now())
	encoded, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return drama.ArtifactRef{}, services.Wrap(services.ErrValidation, workflow.StepExport.String(), "encode manifest", "", err)
	}
	path := filepath.Join(e.Dir, safeSegment(in.ProjectID), ManifestFile)
	sum, err := fileutil.WriteFileAtomic(path, append(encoded, '\n'), 0o644)
	if err != nil {
		return drama.ArtifactRef{}, services.Wrap(services.ErrTransient, workflow.StepExport.String(), "write manifest", path, err)
	}
	if in.Logger != nil {
		in.Logger.Info("export manifest written", logging.String("path", path), logging.String("sha256", sum))
	}
	return drama.ArtifactRef{Kind: "manifest", URI: fileURI(path), Count: len(manifest.Media)}, nil
}

// HealthCheck reports whether the export directory can be created.
func (e *ExportManifest) HealthCheck(ctx context.Context) stage.Health {
	name := workflow.StepExport.String()
	if strings.TrimSpace(e.Dir) == "" {
		return stage.Unhealthy(name, "export directory not configured")
	}
	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return stage.Unhealthy(name, err.Error())
	}
	return stage.Healthy(name)
}

func (e *ExportManifest) now() time.Time {
	if e.Now == nil {
		return time.Now().UTC()
	}
	return e.Now().UTC()
}

func buildManifest(projectID string, data workflow.Data, now time.Time) Manifest {
	m := Manifest{ProjectID: projectID, GeneratedAt: now, Characters: []ManifestCharacter{}, Media: []drama.ArtifactRef{}}
	if data.Novel != nil {
		m.Title = data.Novel.Title
		m.Chapters = len(data.Novel.Chapters)
	}
	if data.Script != nil {
		if data.Script.Title != "" {
			m.Title = data.Script.Title
		}
		m.Scenes = len(data.Script.Scenes)
	}
	if data.Storyboards != nil {
		m.Panels = len(data.Storyboards.Panels)
	}
	if data.Characters != nil {
		for _, c := range data.Characters.Characters {
			m.Characters = append(m.Characters, ManifestCharacter{ID: c.ID, Name: c.Name})
		}
	}
	if data.Scenes != nil {
		m.Media = append(m.Media, data.Scenes.Ref)
	}
	if data.Animations != nil {
		m.Media = append(m.Media, data.Animations.Ref)
	}
	if data.Audio != nil {
		m.Media = append(m.Media, data.Audio.Ref)
	}
	return m
}

func safeSegment(id string) string {
	id = strings.TrimSpace(id)
	replacer := strings.NewReplacer("/", "_", "\\", "_", "..", "_", ":", "_")
	id = replacer.Replace(id)
	if id == "" {
		return "project"
	}
	return id
}

func fileURI(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}
