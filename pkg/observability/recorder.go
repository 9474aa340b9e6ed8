package observability

import (
	"time"

	"github.com/goliatone/go-views/pkg/orchestrator"
	"github.com/goliatone/go-views/pkg/render"
)

// Recorder reports orchestrator render events to the package metrics.
type Recorder struct{}

var _ orchestrator.Metrics = Recorder{}

// RenderStarted implements orchestrator.Metrics.
func (Recorder) RenderStarted(string) {
	RendersActive.Inc()
}

// Signal implements orchestrator.Metrics.
func (Recorder) Signal(_ string, sig render.Signal) {
	RenderSignalsTotal.WithLabelValues(sig.String()).Inc()
}

// RenderFinished implements orchestrator.Metrics.
func (Recorder) RenderFinished(view string, elapsed time.Duration, size int, err error) {
	RendersActive.Dec()
	RenderDuration.WithLabelValues(view).Observe(elapsed.Seconds())
	RendersTotal.WithLabelValues(view, Outcome(err)).Inc()
	if err == nil && size > 0 {
		RenderBytesTotal.WithLabelValues(view).Add(float64(size))
	}
}

// Outcome classifies a render error for the outcome label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case render.IsFault(err):
		return "fault"
	default:
		return "error"
	}
}
