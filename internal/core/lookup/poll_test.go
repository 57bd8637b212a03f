package lookup

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPollImmediateSuccess(t *testing.T) {
	calls := 0
	err := Poll(context.Background(), time.Hour, time.Hour, func() bool {
		calls++
		return true
	})
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single evaluation, got %d", calls)
	}
}

func TestPollEventualSuccess(t *testing.T) {
	calls := 0
	err := Poll(context.Background(), time.Millisecond, time.Second, func() bool {
		calls++
		return calls == 4
	})
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if calls != 4 {
		t.Fatalf("expected 4 evaluations, got %d", calls)
	}
}

func TestPollTimeout(t *testing.T) {
	calls := 0
	start := time.Now()
	err := Poll(context.Background(), 10*time.Millisecond, 50*time.Millisecond, func() bool {
		calls++
		return false
	})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("Poll returned before the timeout: %v", elapsed)
	}
	if calls < 2 {
		t.Fatalf("expected repeated evaluations, got %d", calls)
	}
}

func TestPollZeroTimeoutEvaluatesOnce(t *testing.T) {
	calls := 0
	err := Poll(context.Background(), time.Millisecond, 0, func() bool {
		calls++
		return false
	})
	if !errors.Is(err, ErrTimeout) || calls != 1 {
		t.Fatalf("expected one evaluation then ErrTimeout, got calls=%d err=%v", calls, err)
	}
}

func TestPollContextCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := Poll(ctx, 5*time.Millisecond, time.Minute, func() bool { return false })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline, got %v", err)
	}
}
