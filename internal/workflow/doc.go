// Package workflow drives a manuscript through the nine drama production
// steps: upload, parse, script, storyboard, character design, scene render,
// animation, voiceover and export.
//
// The Engine owns a single run at a time. Every change to its State goes
// through one transition function that rejects invalid (status, event)
// pairs, and each committed change is published to an events.Bus in commit
// order. Stages run strictly in sequence; each one receives a snapshot of the
// accumulated Data and returns exactly one Artifact, which is committed only
// when the stage succeeds. Progress is drawn from a fixed per-step Budget and
// reaches 100 only on completion.
//
// Pause is cooperative and takes effect at the next stage boundary. Cancel
// aborts the in-flight stage through its context. When an auto-advance toggle
// is off the run halts at that step with status running; Advance continues
// it.
package workflow
