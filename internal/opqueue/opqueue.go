// Package opqueue serializes the operations issued against a single HAP
// device connection (IP or BLE) into a strict FIFO, since a device's
// session key and BLE GATT link tolerate only one request in flight at a
// time. One queue is created per client connection; a second instance
// backs the pairing sub-state-machine, which must also run its messages
// strictly in order even though it is driven from the same client.
package opqueue

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/hapctl/hapctl/internal/groutine"
)

// job is one enqueued unit of work plus the channel its result is
// delivered on.
type job struct {
	fn     func(ctx context.Context) (interface{}, error)
	result chan result
}

type result struct {
	value interface{}
	err   error
}

// Queue runs submitted functions one at a time, in submission order, on
// a single background goroutine.
type Queue struct {
	logger *logrus.Logger
	jobs   chan job

	closeOnce sync.Once
	done      chan struct{}
}

// New starts a Queue's worker goroutine. If logger is nil, a default
// logrus.Logger is used.
func New(ctx context.Context, name string, logger *logrus.Logger) *Queue {
	if logger == nil {
		logger = logrus.New()
	}
	q := &Queue{
		logger: logger,
		jobs:   make(chan job, 32),
		done:   make(chan struct{}),
	}
	groutine.Go(ctx, name, q.run)
	return q
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.done)
	for {
		select {
		case <-ctx.Done():
			q.drain(ctx.Err())
			return
		case j := <-q.jobs:
			v, err := j.fn(ctx)
			j.result <- result{value: v, err: err}
		}
	}
}

// drain fails every job still queued once the queue is shutting down, so
// no caller blocks forever waiting on a result that will never arrive.
func (q *Queue) drain(cause error) {
	for {
		select {
		case j := <-q.jobs:
			j.result <- result{err: cause}
		default:
			return
		}
	}
}

// Submit enqueues fn and blocks until it has run (or the queue/ctx is
// closed first). The queue guarantees fn runs strictly after every job
// submitted before it and strictly before every job submitted after it.
func (q *Queue) Submit(ctx context.Context, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	j := job{fn: fn, result: make(chan result, 1)}
	select {
	case q.jobs <- j:
	case <-q.done:
		return nil, context.Canceled
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-j.result:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-q.done:
		return nil, context.Canceled
	}
}

// Close waits for the worker goroutine started in New to exit. The
// caller's ctx (passed to New) must already be canceled, or this blocks
// forever; connection Close methods cancel their context before calling
// this.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		<-q.done
	})
}
