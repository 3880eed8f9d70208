// Package novel implements the text stages of the drama workflow on top of a
// JSON-mode chat-completions client: manuscript parsing, script adaptation
// and per-scene storyboarding.
//
// Model output is decoded leniently (code fences and surrounding prose are
// tolerated) but validated strictly: an empty chapter, scene or panel list is
// an ErrValidation failure, and lists longer than requested are truncated.
package novel
