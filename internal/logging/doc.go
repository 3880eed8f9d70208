// Package logging assembles structured slog loggers and formatting helpers used
// across dramaflow.
//
// It owns the console/JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so stage runners and generation tasks can
// tag log lines with project IDs, task IDs, stages, and correlation IDs. The
// package also provides a no-op logger for tests and a progress sampler that
// keeps per-percent progress updates from flooding the log.
package logging
