package render

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/goliatone/go-views/internal/logging"
	"github.com/goliatone/go-views/pkg/chunk"
)

// DefaultWaitTimeout bounds the synchronous wait on a pending value when a
// DETACH resume finds it unresolved.
const DefaultWaitTimeout = 60 * time.Second

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithWaitTimeout overrides DefaultWaitTimeout. Non-positive values keep the
// default.
func WithWaitTimeout(d time.Duration) MachineOption {
	return func(m *Machine) {
		if d > 0 {
			m.waitTimeout = d
		}
	}
}

// WithLogger sets the logger used for transition tracing.
func WithLogger(logger *slog.Logger) MachineOption {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithView records the view name for logs and faults.
func WithView(name string) MachineOption {
	return func(m *Machine) {
		m.view = name
	}
}

// WithBuffer hands an existing buffer to the machine, which takes ownership.
func WithBuffer(buf *chunk.Buffer) MachineOption {
	return func(m *Machine) {
		if buf != nil {
			m.buf = buf
		}
	}
}

// Machine drives one render invocation. It owns the output buffer and at most
// one pending value, and interprets each continuation token the engine
// returns. A Machine is used by one render at a time and is not safe for
// concurrent use.
type Machine struct {
	state       State
	blocker     Future
	cont        Continuation
	buf         *chunk.Buffer
	view        string
	waitTimeout time.Duration
	logger      *slog.Logger
}

// NewMachine returns a machine in StateReady with an empty buffer.
func NewMachine(options ...MachineOption) *Machine {
	m := &Machine{
		state:       StateReady,
		waitTimeout: DefaultWaitTimeout,
		logger:      logging.NewNop(),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(m)
	}
	if m.buf == nil {
		m.buf = chunk.New()
	}
	return m
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Blocker returns the pending value, non-nil only in StateWaiting.
func (m *Machine) Blocker() Future { return m.blocker }

// Continuation returns the token recorded by the last Advance, or nil once
// Resume moved it out.
func (m *Machine) Continuation() Continuation { return m.cont }

// View returns the view name given through WithView.
func (m *Machine) View() string { return m.view }

// Buffered returns the number of unexported bytes.
func (m *Machine) Buffered() int {
	if m.state == StateClosed {
		return 0
	}
	return m.buf.Len()
}

// Advance interprets cont and moves the machine to its next state.
//
// LIMITED alternates FLUSH and READY, so a second buffer-full signal means
// "resume". DETACH alternates WAITING and READY the same way: the first one
// records the pending value, the second one means the value should be ready,
// waiting up to the configured timeout if it is not.
func (m *Machine) Advance(ctx context.Context, cont Continuation) (tr Transition, err error) {
	tr = Transition{From: m.state, To: m.state}
	if m.state == StateClosed {
		return tr, ErrClosedBuffer
	}
	if cont == nil {
		return tr, NewFault("advance", m.view, fmt.Errorf("%w: nil continuation", ErrInvalidArgument))
	}

	defer func() {
		if r := recover(); r != nil {
			err = NewFault("advance", m.view, panicError(r))
		}
		tr.To = m.state
	}()

	m.cont = cont
	tr.Signal = cont.Signal()

	switch tr.Signal {
	case SignalDone:
		m.blocker = nil
		m.state = StateDone

	case SignalLimited:
		if m.state == StateFlush {
			m.state = StateReady
		} else {
			m.state = StateFlush
		}

	case SignalDetach:
		if m.state == StateWaiting {
			if m.blocker == nil {
				return tr, NewFault("advance", m.view, ErrNullHandle)
			}
			if !IsResolved(m.blocker) {
				m.logger.Debug("pending value not resolved, blocking", "view", m.view, "timeout", m.waitTimeout)
			}
			if _, err := Await(ctx, m.blocker, m.waitTimeout); err != nil {
				return tr, NewFault("advance", m.view, err)
			}
			m.blocker = nil
			m.state = StateReady
		} else {
			pending := cont.Pending()
			if pending == nil {
				return tr, NewFault("advance", m.view, ErrNullHandle)
			}
			m.blocker = pending
			m.state = StateWaiting
		}

	default:
		m.logger.Warn("unhandled render signal", "view", m.view, "signal", tr.Signal.String())
	}

	m.logger.Debug("render transition",
		slog.String("view", m.view),
		slog.String("signal", tr.Signal.String()),
		slog.String("from", tr.From.String()),
		slog.String("to", m.state.String()),
	)
	return tr, nil
}

// Resume moves the recorded continuation out of the machine and runs the
// next render step. Each token can be resumed once; the returned token must be
// passed back through Advance.
func (m *Machine) Resume(ctx context.Context) (next Continuation, err error) {
	switch m.state {
	case StateClosed:
		return nil, ErrClosedBuffer
	case StateWaiting:
		return nil, ErrBlocked
	}

	cont := m.cont
	if cont == nil {
		return nil, ErrNoContinuation
	}
	m.cont = nil

	defer func() {
		if r := recover(); r != nil {
			next = nil
			err = NewFault("resume", m.view, panicError(r))
		}
	}()

	next, err = cont.Continue(ctx)
	if err != nil {
		return nil, NewFault("resume", m.view, err)
	}
	if next == nil {
		return nil, NewFault("resume", m.view, fmt.Errorf("%w: engine returned nil continuation", ErrInvalidArgument))
	}
	return next, nil
}

// Write implements io.Writer so engines can render into the machine.
func (m *Machine) Write(p []byte) (int, error) {
	if m.state == StateClosed {
		return 0, ErrClosedBuffer
	}
	return m.buf.Write(p)
}

// WriteString implements io.StringWriter.
func (m *Machine) WriteString(s string) (int, error) {
	if m.state == StateClosed {
		return 0, ErrClosedBuffer
	}
	return m.buf.WriteString(s)
}

// SoftLimitReached reports the buffer's advisory backpressure signal.
func (m *Machine) SoftLimitReached() bool {
	if m.state == StateClosed {
		return false
	}
	limit := m.buf.SoftLimitReached()
	if limit {
		m.logger.Debug("soft limit reached", "view", m.view, "buffered", m.buf.Len())
	}
	return limit
}

// Export removes and returns everything buffered so far.
func (m *Machine) Export() (*chunk.Chunk, error) {
	if m.state == StateClosed {
		return nil, ErrClosedBuffer
	}
	return m.buf.Export()
}

// ExportMax removes and returns up to maxSize buffered bytes.
func (m *Machine) ExportMax(maxSize int) (*chunk.Chunk, error) {
	if m.state == StateClosed {
		return nil, ErrClosedBuffer
	}
	return m.buf.ExportMax(maxSize)
}

// WriteTo exports the buffered output to w, then closes the machine.
func (m *Machine) WriteTo(w io.Writer) (int64, error) {
	c, err := m.Export()
	if err != nil {
		return 0, err
	}
	n, werr := c.WriteTo(w)
	c.Release()
	if cerr := m.Close(); werr == nil {
		werr = cerr
	}
	return n, werr
}

// Close releases the buffer and moves to StateClosed. A pending value is
// abandoned, not cancelled. Closing twice returns ErrClosedBuffer.
func (m *Machine) Close() error {
	if m.state == StateClosed {
		return ErrClosedBuffer
	}
	m.logger.Debug("closing render", "view", m.view, "from", m.state.String())
	m.state = StateClosed
	m.blocker = nil
	m.cont = nil
	return m.buf.Close()
}
