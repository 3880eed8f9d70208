package workflow_test

import (
	"testing"

	"dramaflow/internal/workflow"
)

func TestStepNamesRoundTrip(t *testing.T) {
	for _, step := range workflow.Steps() {
		text, err := step.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%d): %v", step, err)
		}
		var parsed workflow.Step
		if err := parsed.UnmarshalText(text); err != nil || parsed != step {
			t.Fatalf("round trip of %s gave %s (%v)", step, parsed, err)
		}
	}
	if _, err := workflow.ParseStep("render"); err == nil {
		t.Fatal("expected error for unknown step")
	}
	if got := workflow.StepStoryboardGenerate.Label(); got != "Storyboard Generate" {
		t.Fatalf("unexpected label %q", got)
	}
}

func TestBudgetsAreMonotonic(t *testing.T) {
	prevHigh := 0
	for _, step := range workflow.Steps() {
		b := step.Budget()
		if b.Low < prevHigh || b.High < b.Low {
			t.Fatalf("%s budget %+v overlaps previous high %d", step, b, prevHigh)
		}
		if b.Halt != 0 && (b.Halt < prevHigh || b.Halt > b.High) {
			t.Fatalf("%s halt value %d outside [%d, %d]", step, b.Halt, prevHigh, b.High)
		}
		prevHigh = b.High
	}
	if prevHigh != 100 {
		t.Fatalf("last budget must end at 100, got %d", prevHigh)
	}
}

func TestBudgetAt(t *testing.T) {
	b := workflow.StepStoryboardGenerate.Budget()
	tests := []struct {
		done, total, want int
	}{
		{0, 3, 45},
		{1, 3, 50},
		{2, 3, 55},
		{3, 3, 60},
		{1, 6, 48},
		{5, 0, 60},
		{9, 3, 60},
	}
	for _, tt := range tests {
		if got := b.At(tt.done, tt.total); got != tt.want {
			t.Fatalf("At(%d, %d) = %d, want %d", tt.done, tt.total, got, tt.want)
		}
	}
}
