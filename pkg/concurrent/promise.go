package concurrent

import (
	"context"
	"sync"
)

// Promise memoizes one asynchronous computation. The first Get starts it; every caller,
// concurrent or later, observes the same result until Reset.
type Promise[T any] struct {
	mu   sync.Mutex
	task func(ctx context.Context) (T, error)
	call *promiseCall[T]
}

type promiseCall[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func NewPromise[T any](task func(ctx context.Context) (T, error)) *Promise[T] {
	return &Promise[T]{task: task}
}

// Get waits for the memoized result, starting the computation if none is in flight.
// The computation runs with the context of the caller that started it, detached from its
// cancellation so that an abandoned waiter does not fail every other waiter. A caller whose
// ctx is done stops waiting and gets ctx.Err().
func (p *Promise[T]) Get(ctx context.Context) (T, error) {
	p.mu.Lock()
	call := p.call
	if call == nil {
		call = &promiseCall[T]{done: make(chan struct{})}
		p.call = call
		go p.run(detach(ctx), call)
	}
	p.mu.Unlock()

	select {
	case <-call.done:
		return call.value, call.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (p *Promise[T]) run(ctx context.Context, call *promiseCall[T]) {
	defer close(call.done)
	call.value, call.err = p.task(ctx)
}

// Started reports whether a computation is in flight or memoized.
func (p *Promise[T]) Started() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.call != nil
}

// Reset forgets the memoized computation. Waiters of the old one still get its result.
func (p *Promise[T]) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.call = nil
}

// ResetFailed forgets the memoized computation when it finished with an error, so the next
// Get runs it again. A computation in flight or succeeded is kept.
func (p *Promise[T]) ResetFailed() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.call == nil {
		return
	}
	select {
	case <-p.call.done:
		if p.call.err != nil {
			p.call = nil
		}
	default:
	}
}
