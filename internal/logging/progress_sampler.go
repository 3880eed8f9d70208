package logging

import (
	"strings"
	"sync"
)

// ProgressSampler suppresses repetitive progress logs while preserving signal
// when the stage changes or the percentage crosses a bucket boundary. It is
// safe for concurrent use and tracks each key (task ID, run ID) separately.
type ProgressSampler struct {
	bucketSize float64
	mu         sync.Mutex
	last       map[string]sample
}

type sample struct {
	stage  string
	bucket int
}

// NewProgressSampler constructs a sampler that emits when the percent crosses
// bucket boundaries (default 5%) or when the stage changes.
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 5
	}
	return &ProgressSampler{bucketSize: bucketSize, last: make(map[string]sample)}
}

// ShouldLog reports whether a progress event for key should be logged.
// Negative percent means unknown and only stage changes emit.
func (s *ProgressSampler) ShouldLog(key string, percent float64, stage string) bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, seen := s.last[key]
	if !seen {
		prev = sample{bucket: -1}
	}
	emit := false
	if stage = strings.TrimSpace(stage); stage != "" && stage != prev.stage {
		prev.stage = stage
		prev.bucket = -1
		emit = true
	}
	if percent >= 0 {
		if percent > 100 {
			percent = 100
		}
		if bucket := int(percent / s.bucketSize); bucket > prev.bucket {
			prev.bucket = bucket
			emit = true
		}
	}
	s.last[key] = prev
	return emit
}

// Forget drops the state for key (e.g. when a task finishes).
func (s *ProgressSampler) Forget(key string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	delete(s.last, key)
	s.mu.Unlock()
}
