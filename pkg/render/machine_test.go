package render

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestMachine_StartsReady(t *testing.T) {
	m := NewMachine()
	if m.State() != StateReady {
		t.Fatalf("initial state = %s, want READY", m.State())
	}
	if m.Blocker() != nil {
		t.Fatalf("expected no blocker on a new machine")
	}
}

func TestMachine_DoneIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMachine()
	done := Finished()

	for i := 0; i < 3; i++ {
		tr, err := m.Advance(ctx, done)
		if err != nil {
			t.Fatalf("advance %d: %v", i, err)
		}
		if tr.To != StateDone {
			t.Fatalf("advance %d: state = %s, want DONE", i, tr.To)
		}
		if i > 0 && tr.Changed() {
			t.Fatalf("advance %d: repeated DONE changed state: %s", i, tr)
		}
	}
	if m.Blocker() != nil || m.Buffered() != 0 {
		t.Fatalf("repeated DONE had side effects")
	}
}

func TestMachine_DoneWhileWaitingClearsBlocker(t *testing.T) {
	ctx := context.Background()
	m := NewMachine()

	if _, err := m.Advance(ctx, Detached(NewPromise(), nil)); err != nil {
		t.Fatalf("detach: %v", err)
	}
	if m.State() != StateWaiting || m.Blocker() == nil {
		t.Fatalf("expected WAITING with a blocker, got %s blocker=%v", m.State(), m.Blocker())
	}

	tr, err := m.Advance(ctx, Finished())
	if err != nil {
		t.Fatalf("done: %v", err)
	}
	if tr.From != StateWaiting || tr.To != StateDone {
		t.Fatalf("unexpected transition %s", tr)
	}
	if m.Blocker() != nil {
		t.Fatalf("blocker kept after leaving WAITING")
	}
}

func TestMachine_LimitedPingPong(t *testing.T) {
	ctx := context.Background()
	for _, runs := range []int{2, 4, 10} {
		m := NewMachine()
		limited := Limited(nil)

		var got []State
		for i := 0; i < runs; i++ {
			tr, err := m.Advance(ctx, limited)
			if err != nil {
				t.Fatalf("advance: %v", err)
			}
			got = append(got, tr.To)
		}

		want := make([]State, 0, runs)
		for i := 0; i < runs; i++ {
			if i%2 == 0 {
				want = append(want, StateFlush)
			} else {
				want = append(want, StateReady)
			}
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("%d LIMITED signals (-want +got):\n%s", runs, diff)
		}
		if m.State() != StateReady {
			t.Fatalf("even run of LIMITED should end READY, got %s", m.State())
		}
	}
}

func TestMachine_DetachResolvedToggles(t *testing.T) {
	ctx := context.Background()
	m := NewMachine()
	value := NewPromise()
	detach := Detached(value, nil)

	tr, err := m.Advance(ctx, detach)
	if err != nil {
		t.Fatalf("first detach: %v", err)
	}
	if tr.From != StateReady || tr.To != StateWaiting {
		t.Fatalf("first detach transition = %s, want READY->WAITING", tr)
	}
	if m.Blocker() != value {
		t.Fatalf("expected pending value recorded as blocker")
	}

	value.Resolve("42")

	tr, err = m.Advance(ctx, detach)
	if err != nil {
		t.Fatalf("second detach: %v", err)
	}
	if tr.From != StateWaiting || tr.To != StateReady {
		t.Fatalf("second detach transition = %s, want WAITING->READY", tr)
	}
	if m.Blocker() != nil {
		t.Fatalf("expected blocker cleared")
	}
}

func TestMachine_DetachBlocksUntilResolved(t *testing.T) {
	ctx := context.Background()
	m := NewMachine(WithWaitTimeout(2 * time.Second))
	value := NewPromise()
	detach := Detached(value, nil)

	if _, err := m.Advance(ctx, detach); err != nil {
		t.Fatalf("first detach: %v", err)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		value.Resolve("late")
	}()

	tr, err := m.Advance(ctx, detach)
	if err != nil {
		t.Fatalf("second detach: %v", err)
	}
	if tr.To != StateReady {
		t.Fatalf("state = %s, want READY", tr.To)
	}
}

func TestMachine_DetachTimeoutFaults(t *testing.T) {
	ctx := context.Background()
	m := NewMachine(WithWaitTimeout(10*time.Millisecond), WithView("slow"))
	detach := Detached(NewPromise(), nil)

	if _, err := m.Advance(ctx, detach); err != nil {
		t.Fatalf("first detach: %v", err)
	}
	_, err := m.Advance(ctx, detach)
	if !IsFault(err) {
		t.Fatalf("expected fault, got %v", err)
	}
	if !errors.Is(err, ErrWaitTimeout) {
		t.Fatalf("expected wait timeout cause, got %v", err)
	}
	var fault *Fault
	if errors.As(err, &fault) && fault.View != "slow" {
		t.Fatalf("fault view = %q, want %q", fault.View, "slow")
	}
}

func TestMachine_DetachFailedValueFaults(t *testing.T) {
	ctx := context.Background()
	m := NewMachine()
	cause := errors.New("upstream down")
	detach := Detached(Rejected(cause), nil)

	if _, err := m.Advance(ctx, detach); err != nil {
		t.Fatalf("first detach: %v", err)
	}
	_, err := m.Advance(ctx, detach)
	if !IsFault(err) || !errors.Is(err, cause) {
		t.Fatalf("expected fault wrapping cause, got %v", err)
	}
}

func TestMachine_DetachCancelledFaults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewMachine()
	detach := Detached(NewPromise(), nil)

	if _, err := m.Advance(ctx, detach); err != nil {
		t.Fatalf("first detach: %v", err)
	}
	cancel()
	_, err := m.Advance(ctx, detach)
	if !IsFault(err) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected fault wrapping context.Canceled, got %v", err)
	}
}

func TestMachine_DetachWithoutValueIsNullHandle(t *testing.T) {
	ctx := context.Background()
	m := NewMachine()

	tr, err := m.Advance(ctx, &Step{Sig: SignalDetach})
	if !errors.Is(err, ErrNullHandle) {
		t.Fatalf("expected ErrNullHandle, got %v", err)
	}
	if tr.Changed() || m.State() != StateReady {
		t.Fatalf("expected no transition, got %s", tr)
	}
}

func TestMachine_UnrecognizedSignalKeepsState(t *testing.T) {
	ctx := context.Background()
	m := NewMachine()
	if _, err := m.Advance(ctx, Limited(nil)); err != nil {
		t.Fatalf("limited: %v", err)
	}

	tr, err := m.Advance(ctx, &Step{Sig: Signal(99)})
	if err != nil {
		t.Fatalf("unknown signal: %v", err)
	}
	if tr.Changed() || m.State() != StateFlush {
		t.Fatalf("unknown signal changed state: %s", tr)
	}
}

func TestMachine_PanicFromContinuationIsFault(t *testing.T) {
	ctx := context.Background()
	m := NewMachine()
	if _, err := m.Advance(ctx, panicking{}); !IsFault(err) || !errors.Is(err, ErrPanic) {
		t.Fatalf("expected panic fault from advance, got %v", err)
	}

	m = NewMachine()
	step := &Step{Sig: SignalLimited, Next: func(context.Context) (Continuation, error) {
		panic("template exploded")
	}}
	if _, err := m.Advance(ctx, step); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if _, err := m.Advance(ctx, step); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if _, err := m.Resume(ctx); !IsFault(err) || !errors.Is(err, ErrPanic) {
		t.Fatalf("expected panic fault from resume, got %v", err)
	}
}

func TestMachine_ResumeMovesContinuation(t *testing.T) {
	ctx := context.Background()
	m := NewMachine()
	calls := 0
	step := Limited(func(context.Context) (Continuation, error) {
		calls++
		return Finished(), nil
	})

	if _, err := m.Advance(ctx, step); err != nil {
		t.Fatalf("advance: %v", err)
	}
	next, err := m.Resume(ctx)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if next.Signal() != SignalDone {
		t.Fatalf("next signal = %s, want DONE", next.Signal())
	}
	if m.Continuation() != nil {
		t.Fatalf("expected continuation moved out of the machine")
	}
	if _, err := m.Resume(ctx); !errors.Is(err, ErrNoContinuation) {
		t.Fatalf("second resume: got %v, want ErrNoContinuation", err)
	}
	if calls != 1 {
		t.Fatalf("continuation ran %d times, want 1", calls)
	}
}

func TestMachine_ResumeWhileWaitingIsBlocked(t *testing.T) {
	ctx := context.Background()
	m := NewMachine()
	if _, err := m.Advance(ctx, Detached(NewPromise(), nil)); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if _, err := m.Resume(ctx); !errors.Is(err, ErrBlocked) {
		t.Fatalf("got %v, want ErrBlocked", err)
	}
}

func TestMachine_ResumeEngineErrorIsFault(t *testing.T) {
	ctx := context.Background()
	m := NewMachine(WithView("broken"))
	cause := errors.New("undefined variable")
	step := Limited(func(context.Context) (Continuation, error) {
		return nil, cause
	})
	if _, err := m.Advance(ctx, step); err != nil {
		t.Fatalf("advance: %v", err)
	}
	_, err := m.Resume(ctx)
	if !IsFault(err) || !errors.Is(err, cause) {
		t.Fatalf("expected fault wrapping engine error, got %v", err)
	}
}

func TestMachine_ClosedRejectsEverything(t *testing.T) {
	ctx := context.Background()
	m := NewMachine()
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := m.Advance(ctx, Finished()); !errors.Is(err, ErrClosedBuffer) {
		t.Fatalf("advance after close: got %v", err)
	}
	if _, err := m.Write([]byte("x")); !errors.Is(err, ErrClosedBuffer) {
		t.Fatalf("write after close: got %v", err)
	}
	if _, err := m.WriteString("x"); !errors.Is(err, ErrClosedBuffer) {
		t.Fatalf("write string after close: got %v", err)
	}
	if _, err := m.Export(); !errors.Is(err, ErrClosedBuffer) {
		t.Fatalf("export after close: got %v", err)
	}
	if _, err := m.Resume(ctx); !errors.Is(err, ErrClosedBuffer) {
		t.Fatalf("resume after close: got %v", err)
	}
	if err := m.Close(); !errors.Is(err, ErrClosedBuffer) {
		t.Fatalf("second close: got %v", err)
	}
	if m.State() != StateClosed {
		t.Fatalf("state = %s, want CLOSED", m.State())
	}
}

func TestMachine_CloseWhileWaitingAbandonsValue(t *testing.T) {
	ctx := context.Background()
	m := NewMachine()
	value := NewPromise()
	if _, err := m.Advance(ctx, Detached(value, nil)); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("close while waiting: %v", err)
	}
	if m.Blocker() != nil {
		t.Fatalf("expected blocker dropped on close")
	}
	value.Resolve("ignored")
}

func TestMachine_WriteToExportsAndCloses(t *testing.T) {
	m := NewMachine()
	if _, err := m.WriteString("Hello, World!"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := m.Advance(context.Background(), Finished()); err != nil {
		t.Fatalf("advance: %v", err)
	}

	var out bytes.Buffer
	n, err := m.WriteTo(&out)
	if err != nil {
		t.Fatalf("write to: %v", err)
	}
	if n != int64(len("Hello, World!")) || out.String() != "Hello, World!" {
		t.Fatalf("write to = %d %q", n, out.String())
	}
	if m.State() != StateClosed {
		t.Fatalf("expected machine closed after WriteTo, got %s", m.State())
	}
}

func TestMachine_SoftLimitFromBuffer(t *testing.T) {
	m := NewMachine()
	if m.SoftLimitReached() {
		t.Fatalf("empty machine reports soft limit")
	}
	m.Write(bytes.Repeat([]byte("a"), 2<<10))
	if !m.SoftLimitReached() {
		t.Fatalf("expected soft limit at default watermark")
	}
}

type panicking struct{}

func (panicking) Signal() Signal { panic("bad token") }

func (panicking) Pending() Future { return nil }

func (panicking) Continue(context.Context) (Continuation, error) { return nil, nil }
