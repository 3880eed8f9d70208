// Package notifications pushes workflow and generation-task milestones to
// ntfy.
//
// NewService returns an ntfy-backed Service when a topic is configured and a
// no-op otherwise. The [notifications] flags gate categories: workflow
// completions, task completions, and failures of either kind. A Forwarder
// subscribes to an events.Bus and turns terminal workflow and task events
// into Publish calls, so the engine and tracker never import this package.
package notifications
