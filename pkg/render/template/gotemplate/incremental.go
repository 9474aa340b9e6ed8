package gotemplate

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"
	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-views/pkg/render"
	"github.com/goliatone/go-views/pkg/render/template"
)

// Context keys reserved by the renderer.
const (
	InjectedKey = "ij"
	CSSFuncKey  = "css"
	IDFuncKey   = "xid"
)

type renderer struct {
	set    *TemplateSet
	name   string
	tmpl   *pongo2.Template
	params map[string]any
	data   map[string]any
	ij     map[string]any
	css    template.RenamingMap
	ids    template.RenamingMap
	funcs  map[string]any
}

var _ template.Renderer = (*renderer)(nil)

func (r *renderer) SetData(data map[string]any) template.Renderer {
	r.data = data
	return r
}

func (r *renderer) SetInjectedData(ij map[string]any) template.Renderer {
	r.ij = ij
	return r
}

func (r *renderer) SetRenameMaps(css, id template.RenamingMap) template.Renderer {
	r.css = css
	r.ids = id
	return r
}

func (r *renderer) SetFuncs(funcs map[string]any) template.Renderer {
	r.funcs = funcs
	return r
}

// RenderInto renders in three phases. Future values found in the data detach
// the render until they resolve; the template then executes into a staging
// buffer; finally staged bytes are copied into target in drain-size slices,
// pausing with SignalLimited whenever the target reports its soft limit.
func (r *renderer) RenderInto(ctx context.Context, target template.Target) (render.Continuation, error) {
	if target == nil {
		return nil, fmt.Errorf("gotemplate: render %q: nil target", r.name)
	}
	job := &renderJob{r: r, target: target}
	return job.resolve(ctx)
}

type renderJob struct {
	r      *renderer
	target template.Target
	staged []byte
	off    int
}

func (j *renderJob) resolve(ctx context.Context) (render.Continuation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, pending, err := resolveValue(j.r.data)
	if err != nil {
		return nil, fmt.Errorf("gotemplate: render %q: %w", j.r.name, err)
	}
	if pending != nil {
		return render.Detached(pending, j.resolve), nil
	}

	resolved, _ := data.(map[string]any)
	out, err := j.r.set.execute(j.r.tmpl, j.r.context(resolved))
	if err != nil {
		return nil, fmt.Errorf("gotemplate: render %q: %w", j.r.name, err)
	}
	j.staged = out
	return j.drain(ctx)
}

func (j *renderJob) drain(ctx context.Context) (render.Continuation, error) {
	size := j.r.set.drainSize
	for j.off < len(j.staged) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(j.off+size, len(j.staged))
		if _, err := j.target.Write(j.staged[j.off:end]); err != nil {
			return nil, fmt.Errorf("gotemplate: render %q: %w", j.r.name, err)
		}
		j.off = end
		if j.off < len(j.staged) && j.target.SoftLimitReached() {
			return render.Limited(j.drain), nil
		}
	}
	j.staged = nil
	return render.Finished(), nil
}

// context builds the pongo2 context: params first, data overriding them,
// then helper functions and the injected values under "ij".
func (r *renderer) context(data map[string]any) pongo2.Context {
	ctx := make(pongo2.Context, len(r.params)+len(data)+len(r.funcs)+3)
	for k, v := range r.params {
		ctx[k] = v
	}
	for k, v := range data {
		ctx[k] = v
	}
	for k, v := range r.funcs {
		ctx[k] = v
	}

	ij := r.ij
	if ij == nil {
		ij = map[string]any{}
	}
	ctx[InjectedKey] = ij

	css, ids := r.css, r.ids
	ctx[CSSFuncKey] = func(names string) string {
		return renameFields(css, names)
	}
	ctx[IDFuncKey] = func(name string) string {
		return template.Rename(ids, strings.TrimSpace(name))
	}
	return ctx
}

func renameFields(m template.RenamingMap, names string) string {
	fields := strings.Fields(names)
	for i, f := range fields {
		fields[i] = template.Rename(m, f)
	}
	return strings.Join(fields, " ")
}

// resolveValue returns v with every settled future replaced by its value,
// descending into maps and slices. The first unsettled future stops the walk.
// Futures held in struct fields are not visited.
func resolveValue(v any) (any, render.Future, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil, nil
	case render.Future:
		if !render.IsResolved(val) {
			return nil, val, nil
		}
		out, err := val.Result()
		if err != nil {
			return nil, nil, err
		}
		return resolveValue(out)
	case map[string]any:
		return resolveMap(val)
	case pongo2.Context:
		return resolveMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			resolved, pending, err := resolveValue(item)
			if err != nil || pending != nil {
				return nil, pending, err
			}
			out[i] = resolved
		}
		return out, nil, nil
	default:
		return v, nil, nil
	}
}

func resolveMap(m map[string]any) (any, render.Future, error) {
	out := make(map[string]any, len(m))
	for k, item := range m {
		resolved, pending, err := resolveValue(item)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", k, err)
		}
		if pending != nil {
			return nil, pending, nil
		}
		out[k] = resolved
	}
	return out, nil, nil
}

var (
	sanitizerOnce   sync.Once
	sanitizerPolicy *bluemonday.Policy
)

func sanitizer() *bluemonday.Policy {
	sanitizerOnce.Do(func() {
		sanitizerPolicy = bluemonday.UGCPolicy()
	})
	return sanitizerPolicy
}

func filterSanitize(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	if in.Len() <= 0 {
		return pongo2.AsValue(""), nil
	}
	return pongo2.AsSafeValue(sanitizer().Sanitize(in.String())), nil
}
