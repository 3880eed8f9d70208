package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type retryPolicy struct {
	attempts int
	base     time.Duration
	max      time.Duration
}

func (p retryPolicy) budget() int {
	if p.attempts <= 0 {
		return 1
	}
	return p.attempts
}

// delay reports how long to wait before the next attempt and whether one
// should be made at all.
func (p retryPolicy) delay(ctx context.Context, err error, attempt int) (time.Duration, bool) {
	if err == nil || attempt >= p.budget() || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var emptyErr *emptyContentError
	if errors.As(err, &emptyErr) {
		return p.backoff(attempt), true
	}

	var status *statusError
	if errors.As(err, &status) {
		switch {
		case status.StatusCode == http.StatusRequestTimeout,
			status.StatusCode == http.StatusTooManyRequests,
			status.StatusCode >= http.StatusInternalServerError:
			if status.RetryAfter > 0 {
				return p.clamp(status.RetryAfter), true
			}
			return p.backoff(attempt), true
		default:
			return 0, false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return p.backoff(attempt), true
	}
	return 0, false
}

// backoff doubles from base for each prior attempt: base, 2*base, 4*base...
func (p retryPolicy) backoff(attempt int) time.Duration {
	if p.base <= 0 {
		return 0
	}
	delay := p.base
	for i := 1; i < attempt; i++ {
		if p.max > 0 && delay > p.max/2 {
			return p.max
		}
		delay *= 2
	}
	return p.clamp(delay)
}

func (p retryPolicy) clamp(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if p.max > 0 && delay > p.max {
		return p.max
	}
	return delay
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		if delay := time.Until(when); delay > 0 {
			return delay, true
		}
	}
	return 0, false
}
