package supplier

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// IntervalGate coordinates request spacing across processes. Implemented by
// the Redis client; nil means single-process enforcement only.
type IntervalGate interface {
	ReserveInterval(ctx context.Context, scope string, interval time.Duration) (bool, error)
}

// IntervalLimiter blocks callers until at least the configured interval has
// elapsed since the previous turn. One instance must be shared by every
// outbound supplier call in the process.
type IntervalLimiter struct {
	limiter  *rate.Limiter
	gate     IntervalGate
	scope    string
	interval time.Duration
}

// NewIntervalLimiter builds a limiter spacing turns by interval. gate may be
// nil when no shared store is configured.
func NewIntervalLimiter(interval time.Duration, gate IntervalGate, scope string) *IntervalLimiter {
	if interval <= 0 {
		interval = time.Second
	}
	return &IntervalLimiter{
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		gate:     gate,
		scope:    scope,
		interval: interval,
	}
}

// AwaitTurn blocks until the caller may issue the next request.
func (l *IntervalLimiter) AwaitTurn(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}
	if l.gate == nil {
		return nil
	}
	// Other processes may hold the slot; poll until the reservation wins.
	for {
		ok, err := l.gate.ReserveInterval(ctx, l.scope, l.interval)
		if err != nil {
			// A flaky shared store must not stall extraction; local
			// spacing already applied above.
			return nil
		}
		if ok {
			return nil
		}
		wait := l.interval / 4
		if wait < 50*time.Millisecond {
			wait = 50 * time.Millisecond
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Interval returns the configured spacing.
func (l *IntervalLimiter) Interval() time.Duration {
	return l.interval
}

// Outcome carries a queued task's result to its submitter.
type Outcome struct {
	Value any
	Err   error
}

type queuedTask struct {
	ctx    context.Context
	run    func(context.Context) (any, error)
	result chan Outcome
}

// RequestQueue runs submitted tasks one at a time in FIFO order, spaced by
// the shared limiter. A task's failure reaches only its own submitter.
type RequestQueue struct {
	limiter *IntervalLimiter
	tasks   chan *queuedTask

	mu      sync.RWMutex
	closed  bool
	drained sync.WaitGroup
}

var errQueueClosed = errors.New("request queue is closed")

// NewRequestQueue starts the single worker goroutine. Close releases it.
func NewRequestQueue(limiter *IntervalLimiter, buffer int) *RequestQueue {
	if buffer <= 0 {
		buffer = 64
	}
	q := &RequestQueue{
		limiter: limiter,
		tasks:   make(chan *queuedTask, buffer),
	}
	q.drained.Add(1)
	go q.worker()
	return q
}

func (q *RequestQueue) worker() {
	defer q.drained.Done()
	for task := range q.tasks {
		if err := task.ctx.Err(); err != nil {
			task.result <- Outcome{Err: err}
			continue
		}
		if err := q.limiter.AwaitTurn(task.ctx); err != nil {
			task.result <- Outcome{Err: err}
			continue
		}
		value, err := task.run(task.ctx)
		task.result <- Outcome{Value: value, Err: err}
	}
}

// Enqueue submits work and returns a channel that receives exactly one
// Outcome. Submission order is execution order.
func (q *RequestQueue) Enqueue(ctx context.Context, fn func(context.Context) (any, error)) <-chan Outcome {
	result := make(chan Outcome, 1)
	task := &queuedTask{ctx: ctx, run: fn, result: result}
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		result <- Outcome{Err: errQueueClosed}
		return result
	}
	q.tasks <- task
	q.mu.RUnlock()
	return result
}

// Do submits work and blocks until it completes or ctx is cancelled.
func (q *RequestQueue) Do(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	select {
	case outcome := <-q.Enqueue(ctx, fn):
		return outcome.Value, outcome.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting work and waits for queued tasks to finish.
func (q *RequestQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()
	q.drained.Wait()
}
