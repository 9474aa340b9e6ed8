package render

import "fmt"

// State is the lifecycle position of a Machine.
type State int

const (
	// StateReady accepts the next advance; machines start here.
	StateReady State = iota
	// StateFlush is entered on a buffer-full signal, pending a drain.
	StateFlush
	// StateWaiting is blocked on a pending asynchronous value.
	StateWaiting
	// StateDone means the render finished; output is still readable.
	StateDone
	// StateClosed is terminal. The buffer has been released.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "READY"
	case StateFlush:
		return "FLUSH"
	case StateWaiting:
		return "WAITING"
	case StateDone:
		return "DONE"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Signal is the outcome a template engine reports for one render step.
type Signal int

const (
	// SignalDone reports the render finished.
	SignalDone Signal = iota + 1
	// SignalLimited reports the output target hit its soft limit.
	SignalLimited
	// SignalDetach reports the render paused on a pending value.
	SignalDetach
)

func (s Signal) String() string {
	switch s {
	case SignalDone:
		return "DONE"
	case SignalLimited:
		return "LIMITED"
	case SignalDetach:
		return "DETACH"
	default:
		return fmt.Sprintf("Signal(%d)", int(s))
	}
}

// Transition records what one Advance call did.
type Transition struct {
	From   State
	To     State
	Signal Signal
}

// Changed reports whether the machine moved to a different state.
func (t Transition) Changed() bool {
	return t.From != t.To
}

func (t Transition) String() string {
	return fmt.Sprintf("%s --%s--> %s", t.From, t.Signal, t.To)
}
