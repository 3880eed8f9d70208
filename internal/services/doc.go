// Package services defines shared utilities consumed by the workflow stage
// runners, the generation task tracker, and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp project IDs, task IDs, stage names, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap and Details helpers that keep
//     failure classification (input, provider, validation, timeout) uniform
//     between the workflow engine, the task tracker, and notifications.
//
// Use these helpers when wiring new stage logic so operational behaviour stays
// consistent across the pipeline.
package services
