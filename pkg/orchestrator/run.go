package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/goliatone/go-views/pkg/render"
	"github.com/goliatone/go-views/pkg/render/template"
)

// run is the state of one render. Its steps are chained: each step either
// loops synchronously, or hands off to a callback and returns, so the machine
// is only ever touched by one goroutine at a time.
type run struct {
	o        *Orchestrator
	ctx      context.Context
	view     string
	m        *render.Machine
	renderer template.Renderer

	deliver func(Result)
	stream  *Stream

	started time.Time
	flushed int
}

func (r *run) begin() {
	r.started = time.Now()
	r.o.metrics.RenderStarted(r.view)

	cont, err := r.first()
	if err != nil {
		r.fail(err)
		return
	}
	r.drive(cont)
}

func (r *run) first() (cont render.Continuation, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			cont = nil
			err = render.NewFault("render", r.view, fmt.Errorf("%w: %v", render.ErrPanic, rec))
		}
	}()

	cont, err = r.renderer.RenderInto(r.ctx, r.m)
	if err != nil {
		return nil, render.NewFault("render", r.view, err)
	}
	if cont == nil {
		return nil, render.NewFault("render", r.view, fmt.Errorf("%w: engine returned nil continuation", render.ErrInvalidArgument))
	}
	return cont, nil
}

// drive advances cont and keeps resuming until the render finishes, fails or
// detaches on a pending value.
func (r *run) drive(cont render.Continuation) {
	for {
		if err := r.ctx.Err(); err != nil {
			r.fail(render.NewFault("render", r.view, err))
			return
		}

		tr, err := r.m.Advance(r.ctx, cont)
		if err != nil {
			r.fail(err)
			return
		}
		r.o.metrics.Signal(r.view, tr.Signal)

		switch tr.Signal {
		case render.SignalDone:
			r.complete()
			return

		case render.SignalDetach:
			r.detach(cont)
			return

		case render.SignalLimited:
			if r.stream != nil {
				if err := r.flush(); err != nil {
					r.fail(err)
					return
				}
			}
			// FLUSH -> READY
			if _, err := r.m.Advance(r.ctx, cont); err != nil {
				r.fail(err)
				return
			}

		default:
			r.fail(render.NewFault("render", r.view, fmt.Errorf("%w: unrecognized signal %s", render.ErrInvalidArgument, tr.Signal)))
			return
		}

		next, err := r.m.Resume(r.ctx)
		if err != nil {
			r.fail(err)
			return
		}
		cont = next
	}
}

// detach parks the render until the machine's blocker settles, the wait
// timeout elapses or the context is done, whichever comes first.
func (r *run) detach(cont render.Continuation) {
	w := &waiter{}
	fire := func(cause error) {
		w.once.Do(func() {
			w.release()
			r.o.executor(func() { r.wake(cont, cause) })
		})
	}

	w.mu.Lock()
	w.timer = time.AfterFunc(r.o.waitTimeout, func() { fire(render.ErrWaitTimeout) })
	w.stopCtx = context.AfterFunc(r.ctx, func() { fire(r.ctx.Err()) })
	w.mu.Unlock()

	render.OnComplete(r.m.Blocker(), func() { fire(nil) })
}

func (r *run) wake(cont render.Continuation, cause error) {
	if cause != nil {
		r.fail(render.NewFault("detach", r.view, cause))
		return
	}
	// WAITING -> READY; a rejected value faults here.
	if _, err := r.m.Advance(r.ctx, cont); err != nil {
		r.fail(err)
		return
	}
	next, err := r.m.Resume(r.ctx)
	if err != nil {
		r.fail(err)
		return
	}
	r.drive(next)
}

// flush hands everything buffered so far to the stream consumer, blocking
// until it is taken.
func (r *run) flush() error {
	c, err := r.m.Export()
	if err != nil {
		return err
	}
	if c.Len() == 0 {
		c.Release()
		return nil
	}
	n := c.Len()
	select {
	case r.stream.chunks <- c:
		r.flushed += n
		return nil
	case <-r.ctx.Done():
		c.Release()
		return render.NewFault("flush", r.view, r.ctx.Err())
	}
}

func (r *run) complete() {
	if r.stream != nil {
		if err := r.flush(); err != nil {
			r.fail(err)
			return
		}
		r.closeMachine()
		r.report(r.flushed, nil)
		r.stream.finish(nil)
		return
	}

	r.report(r.m.Buffered(), nil)
	r.deliver(Result{Output: newOutput(r.view, r.m)})
}

func (r *run) fail(err error) {
	r.closeMachine()
	r.report(r.flushed, err)

	if r.stream != nil {
		r.stream.finish(err)
		return
	}
	r.deliver(Result{Err: err})
}

// closeMachine releases the machine, logging anything but a repeated close.
func (r *run) closeMachine() {
	if err := r.m.Close(); err != nil && !errors.Is(err, render.ErrClosedBuffer) {
		r.o.logger.Warn("close render", slog.String("view", r.view), slog.Any("error", err))
	}
}

func (r *run) report(size int, err error) {
	elapsed := time.Since(r.started)
	r.o.metrics.RenderFinished(r.view, elapsed, size, err)

	if err != nil {
		r.o.logger.LogAttrs(r.ctx, slog.LevelError, "render failed",
			slog.String("view", r.view),
			slog.Duration("duration", elapsed),
			slog.Any("error", err),
		)
		return
	}
	r.o.logger.LogAttrs(r.ctx, slog.LevelDebug, "render complete",
		slog.String("view", r.view),
		slog.Duration("duration", elapsed),
		slog.Int("bytes", size),
		slog.Bool("streaming", r.stream != nil),
	)
}

type waiter struct {
	once    sync.Once
	mu      sync.Mutex
	timer   *time.Timer
	stopCtx func() bool
}

func (w *waiter) release() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	if w.stopCtx != nil {
		w.stopCtx()
	}
}
