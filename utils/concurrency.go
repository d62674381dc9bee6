package utils

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// WorkerPool runs jobs on a bounded number of goroutines. Job starts wait
// on a rate limiter that may be shared with other pools, and the first
// failing job cancels the context handed to the remaining ones.
type WorkerPool struct {
	group   *errgroup.Group
	ctx     context.Context
	limiter *rate.Limiter
}

// NewLimiter returns a limiter that lets one event through every interval.
// The first event passes immediately; zero interval disables the limit.
func NewLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// NewWorkerPool creates a WorkerPool with the given concurrency. A nil
// limiter means job starts are not spaced.
func NewWorkerPool(ctx context.Context, maxWorkers int, limiter *rate.Limiter) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(maxWorkers)

	if limiter == nil {
		limiter = NewLimiter(0)
	}

	return &WorkerPool{
		group:   group,
		ctx:     gctx,
		limiter: limiter,
	}
}

// Submit enqueues a job for execution in the pool. It blocks while all
// workers are busy.
func (wp *WorkerPool) Submit(job func(ctx context.Context) error) {
	wp.group.Go(func() error {
		if err := wp.limiter.Wait(wp.ctx); err != nil {
			return err
		}
		return job(wp.ctx)
	})
}

// Wait blocks until all submitted jobs have completed and returns the first
// job error, if any.
func (wp *WorkerPool) Wait() error {
	return wp.group.Wait()
}

// URLSet is a thread-safe set for tracking visited URLs.
type URLSet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewURLSet creates an empty URLSet.
func NewURLSet() *URLSet {
	return &URLSet{seen: make(map[string]struct{})}
}

// Add returns true if the URL was newly added, false if already present.
func (s *URLSet) Add(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[url]; exists {
		return false
	}
	s.seen[url] = struct{}{}
	return true
}

// Size returns the number of unique URLs tracked.
func (s *URLSet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}
