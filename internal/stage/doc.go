// Package stage holds the small shared contracts used by workflow stage
// runners and generation backends: health reporting and context-aware waits.
package stage
