package hal

import (
	"context"
	"time"
)

// spinThreshold is the longest delay served by busy-waiting. The scheduler
// cannot wake a sleeping goroutine with microsecond accuracy.
const spinThreshold = time.Millisecond

// preciseDelay waits for d, spinning for short delays.
func preciseDelay(d time.Duration) {
	if d <= 0 {
		return
	}
	if d >= spinThreshold {
		time.Sleep(d)
		return
	}
	start := time.Now()
	for time.Since(start) < d {
	}
}

// sleepKicking waits for d, calling kick every period until the alarm fires.
func sleepKicking(ctx context.Context, d, period time.Duration, kick func()) error {
	if d <= 0 {
		return ctx.Err()
	}
	alarm := time.NewTimer(d)
	defer alarm.Stop()

	if period <= 0 || period > d {
		period = d
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-alarm.C:
			kick()
			return nil
		case <-ticker.C:
			kick()
		}
	}
}
