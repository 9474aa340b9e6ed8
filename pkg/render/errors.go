package render

import (
	"errors"
	"fmt"

	"github.com/goliatone/go-views/pkg/chunk"
)

var (
	// ErrClosedBuffer is returned by any operation on a machine (or its
	// buffer) after Close.
	ErrClosedBuffer = chunk.ErrClosed
	// ErrInvalidArgument reports malformed input such as an empty view name.
	ErrInvalidArgument = errors.New("render: invalid argument")
	// ErrNullHandle reports a DETACH resume with no pending value recorded.
	ErrNullHandle = errors.New("render: no pending value to resume")
	// ErrWaitTimeout reports a pending value that did not resolve in time.
	ErrWaitTimeout = errors.New("render: timed out waiting on pending value")
	// ErrPending is returned by Future.Result before the future settles.
	ErrPending = errors.New("render: future is not resolved")
	// ErrNoContinuation reports a Resume without a continuation to move out,
	// which happens when a continuation is resumed twice.
	ErrNoContinuation = errors.New("render: no continuation to resume")
	// ErrBlocked reports a Resume while the render still waits on a value.
	ErrBlocked = errors.New("render: render is blocked on a pending value")
	// ErrPanic wraps a panic raised by the template engine.
	ErrPanic = errors.New("render: template engine panic")
)

// Fault is the single error type a render surfaces for failures while
// interpreting or resuming a continuation: failed, timed out or cancelled
// pending values, and faults raised by the template engine. A fault is fatal
// to the render that produced it.
type Fault struct {
	Op   string
	View string
	Err  error
}

// NewFault wraps err for operation op. Faults are not wrapped twice.
func NewFault(op, view string, err error) error {
	if err == nil {
		return nil
	}
	var existing *Fault
	if errors.As(err, &existing) {
		return err
	}
	return &Fault{Op: op, View: view, Err: err}
}

func (f *Fault) Error() string {
	if f.View == "" {
		return fmt.Sprintf("render: %s: %v", f.Op, f.Err)
	}
	return fmt.Sprintf("render: %s %q: %v", f.Op, f.View, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// IsFault reports whether err is (or wraps) a *Fault.
func IsFault(err error) bool {
	var f *Fault
	return errors.As(err, &f)
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("%w: %w", ErrPanic, err)
	}
	return fmt.Errorf("%w: %v", ErrPanic, r)
}
