package render

import "context"

// Continuation is the token a template engine returns from each render step.
// Pending is only set for SignalDetach. Continue runs the next step; it must be
// called at most once per token.
type Continuation interface {
	Signal() Signal
	Pending() Future
	Continue(ctx context.Context) (Continuation, error)
}

// Step is a Continuation assembled from plain values, for engines that
// describe each step as data plus a closure.
type Step struct {
	Sig   Signal
	Value Future
	Next  func(ctx context.Context) (Continuation, error)
}

var _ Continuation = (*Step)(nil)

// Signal implements Continuation.
func (s *Step) Signal() Signal { return s.Sig }

// Pending implements Continuation.
func (s *Step) Pending() Future { return s.Value }

// Continue implements Continuation. A step without Next is finished and
// returns itself.
func (s *Step) Continue(ctx context.Context) (Continuation, error) {
	if s.Next == nil {
		return s, nil
	}
	return s.Next(ctx)
}

// Finished returns a continuation that reports SignalDone.
func Finished() Continuation {
	return &Step{Sig: SignalDone}
}

// Detached returns a continuation paused on pending; next runs once the value
// is available.
func Detached(pending Future, next func(ctx context.Context) (Continuation, error)) Continuation {
	return &Step{Sig: SignalDetach, Value: pending, Next: next}
}

// Limited returns a continuation paused because the target is full.
func Limited(next func(ctx context.Context) (Continuation, error)) Continuation {
	return &Step{Sig: SignalLimited, Next: next}
}
