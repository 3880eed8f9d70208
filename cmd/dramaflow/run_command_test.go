package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"dramaflow/internal/media"
	"dramaflow/internal/workflow"
)

func TestRunHaltsBeforeParse(t *testing.T) {
	env := setupCLITestEnv(t, "", "")
	manuscript := writeManuscript(t, env.baseDir, "Mountain Road.txt")

	out, stderr, err := runCLI(t, []string{"run", manuscript, "--no-auto-parse"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v (stderr %s)", err, stderr)
	}
	requireContains(t, stderr, "Halted before Novel Parse")
	requireContains(t, out, "halted")
	requireContains(t, out, "Project mountain-road: running (15%)")
}

func TestRunCompletesWithFakeLLM(t *testing.T) {
	server := newFakeLLM(t)
	env := setupCLITestEnv(t, server.URL, "")
	manuscript := writeManuscript(t, env.baseDir, "road.txt")

	out, stderr, err := runCLI(t, []string{"run", manuscript, "--project", "demo"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v (stderr %s)", err, stderr)
	}
	requireContains(t, out, "2 chapters, 1 characters")
	requireContains(t, out, "2 scenes")
	requireContains(t, out, "4 panels across 2 scenes")
	requireContains(t, out, "Project demo: completed (100%)")
	requireContains(t, stderr, "Completed")

	manifest := filepath.Join(env.exportDir, "demo", media.ManifestFile)
	if _, err := os.Stat(manifest); err != nil {
		t.Fatalf("expected manifest at %s: %v", manifest, err)
	}
}

func TestRunContinuePassesCheckpoints(t *testing.T) {
	server := newFakeLLM(t)
	env := setupCLITestEnv(t, server.URL, "")
	manuscript := writeManuscript(t, env.baseDir, "road.txt")

	out, stderr, err := runCLI(t, []string{"--json", "run", manuscript, "--no-auto-script", "--no-auto-storyboard", "--continue"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v (stderr %s)", err, stderr)
	}
	var state workflow.State
	if err := json.Unmarshal([]byte(out), &state); err != nil {
		t.Fatalf("decode state: %v\n%s", err, out)
	}
	if state.Status != workflow.StatusCompleted || state.Progress != 100 {
		t.Fatalf("expected completed run, got %s at %d", state.Status, state.Progress)
	}
	if state.Data.Export == nil || state.Data.Export.URL == "" {
		t.Fatalf("expected export artifact, got %+v", state.Data.Export)
	}
}

func TestRunFailsWithoutAPIKey(t *testing.T) {
	env := setupCLITestEnv(t, "", "")
	manuscript := writeManuscript(t, env.baseDir, "road.txt")

	out, _, err := runCLI(t, []string{"run", manuscript}, env.configPath)
	if err == nil {
		t.Fatal("expected run to fail without an llm api key")
	}
	requireContains(t, err.Error(), "novel-parse")
	requireContains(t, out, "failed")
}

func TestRunRejectsConcurrentProject(t *testing.T) {
	env := setupCLITestEnv(t, "", "")
	manuscript := writeManuscript(t, env.baseDir, "road.txt")

	cfgOut, _, err := runCLI(t, []string{"--json", "config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, cfgOut, env.dataDir)

	if err := os.MkdirAll(filepath.Join(env.dataDir, "locks"), 0o755); err != nil {
		t.Fatalf("mkdir locks: %v", err)
	}
	held := newHeldLock(t, filepath.Join(env.dataDir, "locks", "road.lock"))
	defer held.Unlock()

	_, _, err = runCLI(t, []string{"run", manuscript, "--no-auto-parse"}, env.configPath)
	if err == nil {
		t.Fatal("expected lock conflict")
	}
	requireContains(t, err.Error(), "already running")
}

func TestProjectSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Mountain Road", want: "mountain-road"},
		{in: "  --  ", want: "project"},
		{in: "山路 Vol.2", want: "山路-vol-2"},
		{in: "a//b", want: "a-b"},
	}
	for _, tt := range tests {
		if got := projectSlug(tt.in); got != tt.want {
			t.Fatalf("projectSlug(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := projectFromPath("/tmp/My Novel.txt"); got != "my-novel" {
		t.Fatalf("projectFromPath = %q", got)
	}
}
