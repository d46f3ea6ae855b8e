// Package requestqueue serializes outbound calls to the upstream API.
// All fetches funnel through a single drain loop that enforces a minimum
// spacing between dispatched tasks, so the outbound call rate stays capped
// no matter how many goroutines enqueue concurrently.
package requestqueue

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/nftmetrics/floor-tracker/internal/metrics"
)

type Priority int

const (
	PriorityNormal Priority = iota
	PriorityHigh
)

// Task is one unit of work, typically "fetch one page of data". The queue
// knows nothing about what a task does; errors go back to that task's
// caller only.
type Task func(ctx context.Context) error

type item struct {
	ctx  context.Context
	task Task
	done chan error
}

type Queue struct {
	limiter *rate.Limiter

	mu       sync.Mutex
	high     []*item
	normal   []*item
	draining bool
}

// New creates a queue that leaves at least minSpacing between dispatched
// tasks
func New(minSpacing time.Duration) *Queue {
	return &Queue{
		limiter: rate.NewLimiter(rate.Every(minSpacing), 1),
	}
}

// Do enqueues the task and blocks until it has run. High-priority tasks are
// drained before normal ones. A task's error is returned to its caller and
// never stops the drain loop or affects sibling tasks. There is no
// mid-flight cancellation: once dispatched, a task runs to completion, so
// tasks should carry their own timeout in ctx.
func (q *Queue) Do(ctx context.Context, priority Priority, task Task) error {
	it := &item{ctx: ctx, task: task, done: make(chan error, 1)}

	q.mu.Lock()
	if priority == PriorityHigh {
		q.high = append(q.high, it)
	} else {
		q.normal = append(q.normal, it)
	}
	metrics.RequestQueueDepth.Set(float64(len(q.high) + len(q.normal)))
	startDrain := !q.draining
	if startDrain {
		q.draining = true
	}
	q.mu.Unlock()

	if startDrain {
		go q.drain()
	}

	return <-it.done
}

// Len returns the number of tasks waiting to be dispatched
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.high) + len(q.normal)
}

// next pops the highest-priority waiting item, or nil and stops the drain
// loop when the queue is empty
func (q *Queue) next() *item {
	q.mu.Lock()
	defer q.mu.Unlock()

	var it *item
	switch {
	case len(q.high) > 0:
		it = q.high[0]
		q.high = q.high[1:]
	case len(q.normal) > 0:
		it = q.normal[0]
		q.normal = q.normal[1:]
	default:
		q.draining = false
		return nil
	}
	metrics.RequestQueueDepth.Set(float64(len(q.high) + len(q.normal)))
	return it
}

func (q *Queue) drain() {
	for {
		it := q.next()
		if it == nil {
			return
		}

		// The caller may have given up while the task sat in the queue
		if err := it.ctx.Err(); err != nil {
			it.done <- err
			continue
		}

		if err := q.limiter.Wait(it.ctx); err != nil {
			it.done <- err
			continue
		}

		metrics.RequestQueueDispatched.Inc()
		it.done <- runTask(it)
	}
}

// runTask executes one task, converting a panic into an error for that
// task's caller so the drain loop survives
func runTask(it *item) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Request queue: task panicked: %v", r)
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return it.task(it.ctx)
}
