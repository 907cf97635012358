package services

import (
	"context"
	"time"
)

// Clock abstracts the monotonic time source so cycle pacing, sensor settling
// delays and actuator patterns can run against a fake clock in tests.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is cancelled, whichever comes first.
	Sleep(ctx context.Context, d time.Duration)
}

type systemClock struct{}

// SystemClock returns the wall/monotonic clock used in production.
func SystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) Sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
