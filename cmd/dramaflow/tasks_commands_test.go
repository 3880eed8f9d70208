package main

import (
	"encoding/json"
	"strings"
	"testing"

	"dramaflow/internal/tasks"
)

func TestTasksGenerateArchivesHistory(t *testing.T) {
	env := setupCLITestEnv(t, "", "")

	out, stderr, err := runCLI(t, []string{"tasks", "generate", "--prompt", "a mountain gate at dawn", "--count", "2"}, env.configPath)
	if err != nil {
		t.Fatalf("tasks generate: %v (stderr %s)", err, stderr)
	}
	requireContains(t, out, "completed")
	requireContains(t, out, "memory://generated/image/")
	requireContains(t, out, ".png")
	requireContains(t, stderr, "generating")

	out, _, err = runCLI(t, []string{"--json", "tasks", "history", "--type", "image"}, env.configPath)
	if err != nil {
		t.Fatalf("tasks history: %v", err)
	}
	var history []tasks.Task
	if err := json.Unmarshal([]byte(out), &history); err != nil {
		t.Fatalf("decode history: %v\n%s", err, out)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 archived tasks, got %d", len(history))
	}
	for _, task := range history {
		if task.Status != tasks.StatusCompleted || task.Progress != 100 || task.Prompt != "a mountain gate at dawn" {
			t.Fatalf("unexpected archived task %+v", task)
		}
	}

	out, _, err = runCLI(t, []string{"tasks", "history"}, env.configPath)
	if err != nil {
		t.Fatalf("tasks history table: %v", err)
	}
	requireContains(t, out, "Totals: 2 completed, 0 failed, 0 cancelled")

	id := history[0].ID
	out, _, err = runCLI(t, []string{"tasks", "show", id}, env.configPath)
	if err != nil {
		t.Fatalf("tasks show: %v", err)
	}
	requireContains(t, out, "Provider:  "+string(tasks.ProviderSeedream))
	requireContains(t, out, tasks.DownloadName(history[0]))

	out, _, err = runCLI(t, []string{"tasks", "remove", id}, env.configPath)
	if err != nil {
		t.Fatalf("tasks remove: %v", err)
	}
	requireContains(t, out, "Removed task "+id)

	if _, _, err := runCLI(t, []string{"tasks", "show", id}, env.configPath); err == nil || !tasks.IsNotFound(err) {
		t.Fatalf("expected not found after remove, got %v", err)
	}

	out, _, err = runCLI(t, []string{"tasks", "prune", "--older-than", "0s"}, env.configPath)
	if err != nil {
		t.Fatalf("tasks prune: %v", err)
	}
	requireContains(t, out, "Pruned 1 task(s)")
}

func TestTasksGenerateRejectsInvalidParams(t *testing.T) {
	env := setupCLITestEnv(t, "", "")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "duration", args: []string{"--type", "video", "--prompt", "x", "--duration", "7"}, want: "duration"},
		{name: "provider", args: []string{"--type", "image", "--prompt", "x", "--provider", "vidu"}, want: "does not generate"},
		{name: "type", args: []string{"--type", "audio", "--prompt", "x"}, want: "audio"},
		{name: "count", args: []string{"--prompt", "x", "--count", "0"}, want: "--count"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCLI(t, append([]string{"tasks", "generate"}, tt.args...), env.configPath)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestTasksHistoryEmpty(t *testing.T) {
	env := setupCLITestEnv(t, "", "")
	out, _, err := runCLI(t, []string{"tasks", "history", "--status", "failed"}, env.configPath)
	if err != nil {
		t.Fatalf("tasks history: %v", err)
	}
	requireContains(t, out, "No task history")
}
