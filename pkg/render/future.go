package render

import (
	"context"
	"sync"
	"time"
)

// Future is an asynchronous value a render can wait on. Done is closed once
// the value settles; Result returns ErrPending before that.
type Future interface {
	Done() <-chan struct{}
	Result() (any, error)
}

// completer is implemented by futures that can run callbacks on settlement
// without a watcher goroutine.
type completer interface {
	OnComplete(fn func())
}

// Promise is the Future implementation used by engines and tests. The zero
// value is not usable; call NewPromise.
type Promise struct {
	mu        sync.Mutex
	done      chan struct{}
	settled   bool
	value     any
	err       error
	callbacks []func()
}

var _ Future = (*Promise)(nil)

// NewPromise returns an unsettled promise.
func NewPromise() *Promise {
	return &Promise{done: make(chan struct{})}
}

// Resolved returns a promise already settled with v.
func Resolved(v any) *Promise {
	p := NewPromise()
	p.Resolve(v)
	return p
}

// Rejected returns a promise already settled with err.
func Rejected(err error) *Promise {
	p := NewPromise()
	p.Reject(err)
	return p
}

// Go runs fn on a new goroutine and settles the returned promise with its
// result.
func Go(ctx context.Context, fn func(ctx context.Context) (any, error)) *Promise {
	p := NewPromise()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.Reject(panicError(r))
			}
		}()
		v, err := fn(ctx)
		if err != nil {
			p.Reject(err)
			return
		}
		p.Resolve(v)
	}()
	return p
}

// Resolve settles the promise with v. It reports false if the promise had
// already settled.
func (p *Promise) Resolve(v any) bool {
	return p.settle(v, nil)
}

// Reject settles the promise with err.
func (p *Promise) Reject(err error) bool {
	return p.settle(nil, err)
}

func (p *Promise) settle(v any, err error) bool {
	p.mu.Lock()
	if p.settled {
		p.mu.Unlock()
		return false
	}
	p.settled = true
	p.value = v
	p.err = err
	callbacks := p.callbacks
	p.callbacks = nil
	close(p.done)
	p.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
	return true
}

// Done implements Future.
func (p *Promise) Done() <-chan struct{} {
	return p.done
}

// Result implements Future.
func (p *Promise) Result() (any, error) {
	select {
	case <-p.done:
		return p.value, p.err
	default:
		return nil, ErrPending
	}
}

// OnComplete registers fn to run once the promise settles. Callbacks run on
// the settling goroutine, or immediately if the promise already settled.
func (p *Promise) OnComplete(fn func()) {
	if fn == nil {
		return
	}
	p.mu.Lock()
	if p.settled {
		p.mu.Unlock()
		fn()
		return
	}
	p.callbacks = append(p.callbacks, fn)
	p.mu.Unlock()
}

// IsResolved reports whether f has settled, successfully or not.
func IsResolved(f Future) bool {
	if f == nil {
		return false
	}
	select {
	case <-f.Done():
		return true
	default:
		return false
	}
}

// OnComplete runs fn once f settles. Futures that support callbacks are used
// directly; others get a watcher goroutine.
func OnComplete(f Future, fn func()) {
	if f == nil || fn == nil {
		return
	}
	if c, ok := f.(completer); ok {
		c.OnComplete(fn)
		return
	}
	go func() {
		<-f.Done()
		fn()
	}()
}

// Await blocks until f settles, ctx is done or timeout elapses (timeout <= 0
// waits without a deadline). It returns the future's result.
func Await(ctx context.Context, f Future, timeout time.Duration) (any, error) {
	if f == nil {
		return nil, ErrNullHandle
	}
	if IsResolved(f) {
		return f.Result()
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-f.Done():
		return f.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-expired:
		return nil, ErrWaitTimeout
	}
}
