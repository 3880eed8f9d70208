package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"dramaflow/internal/events"
	"dramaflow/internal/workflow"
)

// progressPrinter renders workflow events. On a terminal it redraws one
// status line; otherwise it prints a line per step and status change.
type progressPrinter struct {
	w    io.Writer
	live bool

	mu      sync.Mutex
	lastLen int
	step    string
}

func newProgressPrinter(w io.Writer, live bool) *progressPrinter {
	return &progressPrinter{w: w, live: live}
}

func (p *progressPrinter) Notify(e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e.Kind {
	case events.KindStepChange:
		p.step = stepLabel(e.Step)
		if p.live {
			p.redraw(e.Progress)
			return
		}
		fprintf(p.w, "[%3d%%] %s\n", e.Progress, p.step)
	case events.KindProgress:
		if p.live {
			p.redraw(e.Progress)
		}
	case events.KindStatusChange:
		if p.live {
			p.redraw(e.Progress)
			return
		}
		if e.Status != string(workflow.StatusCompleted) && e.Status != string(workflow.StatusError) {
			fprintf(p.w, "[%3d%%] status %s -> %s\n", e.Progress, e.PreviousStatus, e.Status)
		}
	case events.KindError:
		p.endLine()
		fprintf(p.w, "✗ %s failed: %s\n", stepLabel(e.Step), e.Message)
	case events.KindComplete:
		p.endLine()
		fprintf(p.w, "✓ Completed: %s\n", e.Message)
	}
}

func (p *progressPrinter) redraw(progress int) {
	line := fmt.Sprintf("[%3d%%] %s", progress, p.step)
	pad := ""
	if n := p.lastLen - len(line); n > 0 {
		pad = strings.Repeat(" ", n)
	}
	fprintf(p.w, "\r%s%s", line, pad)
	p.lastLen = len(line)
}

func (p *progressPrinter) endLine() {
	if p.live && p.lastLen > 0 {
		fprintf(p.w, "\n")
		p.lastLen = 0
	}
}

// finish terminates a live line left open by a halt or cancellation.
func (p *progressPrinter) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endLine()
}

func stepLabel(name string) string {
	step, err := workflow.ParseStep(name)
	if err != nil {
		return name
	}
	return step.Label()
}
