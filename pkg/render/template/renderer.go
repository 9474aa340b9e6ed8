package template

import (
	"context"
	"errors"
	"io"

	"github.com/goliatone/go-views/pkg/render"
)

// ErrTemplateNotFound is returned by NewRenderer for names the compiled set
// does not contain.
var ErrTemplateNotFound = errors.New("template: not found")

// Target is what a Renderer writes into. SoftLimitReached is the advisory
// signal engines use to pause with render.SignalLimited.
type Target interface {
	io.Writer
	io.StringWriter
	SoftLimitReached() bool
}

// CompiledTemplates is a compiled, read-only template set shared by all
// renders.
type CompiledTemplates interface {
	Has(name string) bool
	Names() []string
	NewRenderer(name string, params map[string]any) (Renderer, error)
}

// Renderer is configured for a single render, then started with RenderInto.
// The returned continuation is fed to a render.Machine; engines that finish in
// one step return render.Finished().
type Renderer interface {
	SetData(data map[string]any) Renderer
	SetInjectedData(ij map[string]any) Renderer
	SetRenameMaps(css, id RenamingMap) Renderer
	SetFuncs(funcs map[string]any) Renderer
	RenderInto(ctx context.Context, target Target) (render.Continuation, error)
}
