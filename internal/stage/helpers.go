package stage

import (
	"context"
	"time"
)

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// AllReady reports whether every record is ready, returning the names of the
// ones that are not.
func AllReady(records []Health) (bool, []string) {
	var failing []string
	for _, h := range records {
		if !h.Ready {
			failing = append(failing, h.Name)
		}
	}
	return len(failing) == 0, failing
}
