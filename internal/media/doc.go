// Package media provides the operations behind the scene render, animation,
// voiceover and export steps.
//
// Rendering, compositing and voice synthesis happen in external services;
// Placeholder stands in for them with a cancellable delay and a reference
// describing what the real operation would have produced. ExportManifest
// writes a JSON manifest of the accumulated artifacts under the export
// directory and returns its file:// URI.
package media
