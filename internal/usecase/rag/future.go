package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"thesearch/internal/domain"
)

// Future is the eventual result of a task submitted to a Pool.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Wait blocks until the task finishes, ctx ends, or timeout elapses.
// A non-positive timeout waits for the task or ctx only.
func (f *Future[T]) Wait(ctx context.Context, timeout time.Duration) (T, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	var zero T
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-expired:
		return zero, fmt.Errorf("%w: waited %s", domain.ErrTimeout, timeout)
	}
}

// Done is closed when the task has finished.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Pool runs background tasks with bounded parallelism. Submitting never
// blocks: each task waits for a slot in its own goroutine.
type Pool struct {
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	logger *slog.Logger
}

// NewPool creates a pool running at most size tasks at once.
func NewPool(size int, logger *slog.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), logger: logger}
}

// Submit schedules fn on p. The task observes ctx both while waiting for a
// slot and while running. A panic in fn is recovered and reported as the
// future's error.
func Submit[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(f.done)

		if err := p.sem.Acquire(ctx, 1); err != nil {
			f.err = err
			return
		}
		defer p.sem.Release(1)

		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("background task panicked", "panic", r)
				f.err = errors.New("background task panicked")
			}
		}()
		f.val, f.err = fn(ctx)
	}()
	return f
}

// Drain waits for every submitted task to finish or ctx to end.
func (p *Pool) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
