package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"dramaflow/internal/novel"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
	exportDir  string
	dataDir    string
}

// setupCLITestEnv writes a config rooted in a temp directory. llmURL may be
// empty, which leaves the LLM without an API key.
func setupCLITestEnv(t *testing.T, llmURL string, extra string) *cliTestEnv {
	t.Helper()
	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("DRAMAFLOW_LLM_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")
	env := &cliTestEnv{
		baseDir:    base,
		configPath: filepath.Join(base, "config.toml"),
		exportDir:  filepath.Join(base, "exports"),
		dataDir:    filepath.Join(base, "data"),
	}
	writeTestConfig(t, env, llmURL, extra)
	return env
}

func writeTestConfig(t *testing.T, env *cliTestEnv, llmURL string, extra string) {
	t.Helper()
	var b strings.Builder
	fmt.Fprintf(&b, "[paths]\ndata_dir = %q\nlog_dir = %q\nexport_dir = %q\n\n",
		env.dataDir, filepath.Join(env.baseDir, "logs"), env.exportDir)
	b.WriteString("[logging]\nlevel = \"error\"\n\n")
	b.WriteString("[workflow]\nplaceholder_stage_delay_ms = 0\nchapters_to_use = 2\nscenes_per_chapter = 1\npanels_per_scene = 2\n\n")
	if llmURL != "" {
		fmt.Fprintf(&b, "[llm]\napi_key = \"test\"\nbase_url = %q\nmodel = \"demo-model\"\n\n", llmURL)
	}
	b.WriteString("[tasks]\ndispatch_per_second = 50.0\ndispatch_burst = 5\nresult_cache_ttl_seconds = 0\n\n")
	b.WriteString(extra)
	if err := os.WriteFile(env.configPath, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(""))
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

// newFakeLLM answers chat completions by recognising the system prompt of
// each novel stage.
func newFakeLLM(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		var system string
		for _, m := range req.Messages {
			if m.Role == "system" {
				system = m.Content
			}
		}
		var content string
		switch system {
		case novel.ParsePrompt:
			content = `{"title":"Mountain Road","chapters":[{"index":1,"title":"Departure","summary":"Lin leaves home."},{"index":2,"title":"Capital","summary":"Lin arrives."}],"characters":[{"name":"Lin","description":"a swordswoman","role":"protagonist"}]}`
		case novel.ScriptPrompt:
			content = `{"title":"Mountain Road","scenes":[{"chapter_index":1,"title":"Farewell","location":"village gate","description":"Lin waves goodbye.","characters":["Lin"],"dialogue":[{"character":"Lin","line":"I will return.","emotion":"resolute"}]},{"chapter_index":2,"title":"Arrival","location":"city gate","description":"Lin looks up at the walls.","characters":["Lin"],"dialogue":[]}]}`
		case novel.StoryboardPrompt:
			content = `{"panels":[{"shot_type":"wide","description":"A gate at dawn.","dialogue":"","characters":["Lin"]},{"shot_type":"close-up","description":"Lin's face.","dialogue":"I will return.","characters":["Lin"]}]}`
		default:
			content = `{"ok":true}`
		}
		payload := map[string]any{"choices": []any{map[string]any{"message": map[string]any{"content": content}}}}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func writeManuscript(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("Chapter 1\nLin left the village at dawn.\n\nChapter 2\nThe capital rose before her."), 0o644); err != nil {
		t.Fatalf("write manuscript: %v", err)
	}
	return path
}

func newHeldLock(t *testing.T, path string) *flock.Flock {
	t.Helper()
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil || !ok {
		t.Fatalf("hold lock %s: ok=%v err=%v", path, ok, err)
	}
	return lock
}
