package utils

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func quietLogger() *Logger {
	l := NewLogger()
	l.SetOutput(io.Discard)
	return l
}

func recordingRetry(b Backoff, waits *[]time.Duration) *RetryConfig {
	r := NewRetryConfig(b, quietLogger())
	r.sleep = func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
	return r
}

func TestBackoffDelay(t *testing.T) {
	b := Backoff{MinWait: 2 * time.Second, MaxWait: 5 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 2 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 5 * time.Second},
		{10, 5 * time.Second},
	}

	for _, tt := range tests {
		if got := b.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v; want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	var waits []time.Duration
	r := recordingRetry(Backoff{MinWait: time.Second, MaxWait: 8 * time.Second, MaxAttempts: 5}, &waits)

	calls := 0
	err := r.Do(context.Background(), "op", nil, func() error {
		calls++
		if calls < 3 {
			return errors.New("boom")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls: got %d, want 3", calls)
	}
	if len(waits) != 2 || waits[0] != time.Second || waits[1] != 2*time.Second {
		t.Errorf("waits: got %v, want [1s 2s]", waits)
	}
}

func TestRetryGivesUpAtMaxAttempts(t *testing.T) {
	var waits []time.Duration
	r := recordingRetry(Backoff{MinWait: time.Millisecond, MaxWait: time.Millisecond, MaxAttempts: 3}, &waits)

	sentinel := errors.New("unreachable")
	calls := 0
	err := r.Do(context.Background(), "fetch", nil, func() error {
		calls++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped sentinel, got %v", err)
	}
	if calls != 3 {
		t.Errorf("calls: got %d, want 3", calls)
	}
	if !strings.Contains(err.Error(), "after 3 attempts") {
		t.Errorf("error message: got %q", err.Error())
	}
}

func TestRetryStopsWhenNotRetryable(t *testing.T) {
	var waits []time.Duration
	r := recordingRetry(Backoff{MinWait: time.Millisecond, MaxAttempts: 5}, &waits)

	calls := 0
	err := r.Do(context.Background(), "op", func(error) bool { return false }, func() error {
		calls++
		return errors.New("fatal")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
	if len(waits) != 0 {
		t.Errorf("expected no waits, got %v", waits)
	}
}

func TestRetryHonoursCancelledContext(t *testing.T) {
	r := NewRetryConfig(Backoff{MinWait: time.Hour, MaxAttempts: 5}, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := r.Do(ctx, "op", nil, func() error {
		calls++
		return errors.New("boom")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
}
