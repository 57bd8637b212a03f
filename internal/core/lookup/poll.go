package lookup

import (
	"context"
	"time"
)

// Poll evaluates cond immediately and then every interval until it returns
// true or timeout elapses. The last evaluation happens at the deadline.
func Poll(ctx context.Context, interval, timeout time.Duration, cond func() bool) error {
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrTimeout
		}
		wait := interval
		if wait > remaining {
			wait = remaining
		}
		if err := pause(ctx, wait); err != nil {
			return err
		}
	}
}

// pause sleeps for d unless ctx ends first.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
