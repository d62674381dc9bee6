package utils

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestURLSetNoDuplicates(t *testing.T) {
	s := NewURLSet()

	added := s.Add("https://www.otodom.pl/pl/oferta/1")
	if !added {
		t.Error("first Add should return true")
	}

	added = s.Add("https://www.otodom.pl/pl/oferta/1")
	if added {
		t.Error("second Add of same URL should return false")
	}

	if s.Size() != 1 {
		t.Errorf("size: got %d, want 1", s.Size())
	}
}

func TestURLSetConcurrency(t *testing.T) {
	s := NewURLSet()
	var added int64

	pool := NewWorkerPool(context.Background(), 10, nil)
	for i := 0; i < 100; i++ {
		url := "https://www.otodom.pl/pl/oferta/same"
		pool.Submit(func(context.Context) error {
			if s.Add(url) {
				atomic.AddInt64(&added, 1)
			}
			return nil
		})
	}
	if err := pool.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if added != 1 {
		t.Errorf("expected exactly 1 successful add, got %d", added)
	}
}

func TestWorkerPoolRateLimit(t *testing.T) {
	interval := 100 * time.Millisecond
	pool := NewWorkerPool(context.Background(), 1, NewLimiter(interval))

	var mu sync.Mutex
	var timestamps []time.Time

	for i := 0; i < 3; i++ {
		pool.Submit(func(context.Context) error {
			mu.Lock()
			timestamps = append(timestamps, time.Now())
			mu.Unlock()
			return nil
		})
	}
	if err := pool.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Allow for timer granularity.
	min := interval - 10*time.Millisecond
	for i := 1; i < len(timestamps); i++ {
		gap := timestamps[i].Sub(timestamps[i-1])
		if gap < min {
			t.Errorf("gap between job %d and %d: %v < minimum %v", i-1, i, gap, min)
		}
	}
}

func TestWorkerPoolsShareLimiter(t *testing.T) {
	interval := 80 * time.Millisecond
	limiter := NewLimiter(interval)

	var mu sync.Mutex
	var timestamps []time.Time
	record := func(context.Context) error {
		mu.Lock()
		timestamps = append(timestamps, time.Now())
		mu.Unlock()
		return nil
	}

	// One job per pool, as with single-listing pages.
	for i := 0; i < 3; i++ {
		pool := NewWorkerPool(context.Background(), 4, limiter)
		pool.Submit(record)
		if err := pool.Wait(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	min := interval - 10*time.Millisecond
	for i := 1; i < len(timestamps); i++ {
		if gap := timestamps[i].Sub(timestamps[i-1]); gap < min {
			t.Errorf("gap between pool %d and %d: %v < minimum %v", i-1, i, gap, min)
		}
	}
}

func TestWorkerPoolReturnsFirstError(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 2, nil)
	sentinel := errors.New("fetch failed")

	pool.Submit(func(context.Context) error { return sentinel })
	pool.Submit(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	if err := pool.Wait(); !errors.Is(err, sentinel) {
		t.Errorf("Wait: got %v, want %v", err, sentinel)
	}
}
