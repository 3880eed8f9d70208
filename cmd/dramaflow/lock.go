package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/gofrs/flock"

	"dramaflow/internal/config"
)

// acquireProjectLock prevents two runs of the same project from writing the
// same export directory at once.
func acquireProjectLock(cfg *config.Config, projectID string) (*flock.Flock, error) {
	path := filepath.Join(cfg.LockDir(), projectSlug(projectID)+".lock")
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire project lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("project %q is already running (lock %s)", projectID, path)
	}
	return lock, nil
}

// projectFromPath derives a project ID from a manuscript file name.
func projectFromPath(path string) string {
	base := filepath.Base(path)
	return projectSlug(strings.TrimSuffix(base, filepath.Ext(base)))
}

// projectSlug reduces free text to lowercase letters, digits and dashes.
func projectSlug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimRight(b.String(), "-")
	if slug == "" {
		return "project"
	}
	return slug
}
