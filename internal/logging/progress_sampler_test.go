package logging

import "testing"

func TestNewProgressSamplerDefaultsBucket(t *testing.T) {
	tests := []struct {
		name       string
		bucketSize float64
		wantSize   float64
	}{
		{"zero", 0, 5},
		{"negative", -1, 5},
		{"custom", 10, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if s := NewProgressSampler(tt.bucketSize); s.bucketSize != tt.wantSize {
				t.Errorf("bucketSize = %v, want %v", s.bucketSize, tt.wantSize)
			}
		})
	}
}

func TestProgressSamplerNilAlwaysLogs(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog("k", 50, "stage") {
		t.Error("ShouldLog on nil sampler should always return true")
	}
	s.Forget("k")
}

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(10)
	steps := []struct {
		percent float64
		stage   string
		want    bool
	}{
		{0, "script-generate", true},
		{5, "script-generate", false},
		{10, "script-generate", true},
		{19, "script-generate", false},
		{35, "script-generate", true},
		{36, "storyboard-generate", true},
		{38, "storyboard-generate", false},
		{150, "", true},
		{100, "", false},
	}
	for i, step := range steps {
		if got := s.ShouldLog("run", step.percent, step.stage); got != step.want {
			t.Fatalf("step %d (%v%% %q): got %v want %v", i, step.percent, step.stage, got, step.want)
		}
	}
}

func TestProgressSamplerTracksKeysIndependently(t *testing.T) {
	s := NewProgressSampler(5)
	if !s.ShouldLog("a", 10, "") {
		t.Fatal("first sample for a should log")
	}
	if !s.ShouldLog("b", 10, "") {
		t.Fatal("first sample for b should log")
	}
	if s.ShouldLog("a", 12, "") {
		t.Fatal("same bucket for a should not log")
	}
	s.Forget("a")
	if !s.ShouldLog("a", 12, "") {
		t.Fatal("forgotten key should log again")
	}
	if s.ShouldLog("b", -1, "") {
		t.Fatal("unknown percent without stage change should not log")
	}
}
