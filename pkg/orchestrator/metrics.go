package orchestrator

import (
	"time"

	"github.com/goliatone/go-views/pkg/render"
)

// Metrics receives render lifecycle events. Implementations must be safe for
// concurrent use.
type Metrics interface {
	RenderStarted(view string)
	Signal(view string, sig render.Signal)
	RenderFinished(view string, elapsed time.Duration, size int, err error)
}

type nopMetrics struct{}

func (nopMetrics) RenderStarted(string)                             {}
func (nopMetrics) Signal(string, render.Signal)                     {}
func (nopMetrics) RenderFinished(string, time.Duration, int, error) {}
