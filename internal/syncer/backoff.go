package syncer

import (
	"context"
	"time"
)

// backoffDelay doubles base for every consecutive failure after the first,
// capped at max.
func backoffDelay(base time.Duration, failures int, max time.Duration) time.Duration {
	if base <= 0 {
		base = MinPollInterval
	}
	if failures <= 0 {
		return base
	}

	delay := base
	for attempt := 1; attempt < failures; attempt++ {
		delay *= 2
		if max > 0 && delay >= max {
			return max
		}
	}
	if max > 0 && delay > max {
		return max
	}
	return delay
}

// sleep waits for d unless ctx or stop ends first. It reports whether the
// full delay elapsed.
func sleep(ctx context.Context, stop <-chan struct{}, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return false
		case <-stop:
			return false
		default:
			return true
		}
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-stop:
		return false
	case <-timer.C:
		return true
	}
}
