package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	theme "github.com/goliatone/go-theme"
	"github.com/mitchellh/mapstructure"

	"github.com/goliatone/go-views/internal/logging"
	"github.com/goliatone/go-views/pkg/chunk"
	"github.com/goliatone/go-views/pkg/render"
	"github.com/goliatone/go-views/pkg/render/template"
	"github.com/goliatone/go-views/pkg/views"
)

// ErrViewNotFound is returned for views the template set does not contain.
var ErrViewNotFound = errors.New("orchestrator: view not found")

// Injected overlay keys set by the orchestrator.
const (
	NonceKey  = "csp_nonce"
	ThemeKey  = "theme"
	LocaleKey = "locale"
)

// Executor runs a scheduled render step. Steps of one render never run
// concurrently; each is scheduled only after the previous one returned.
type Executor func(task func())

// GoExecutor runs every task on a new goroutine.
func GoExecutor(task func()) {
	go task()
}

// Option customises the orchestrator configuration.
type Option func(*Orchestrator)

// WithLogger sets the logger used for render outcomes and machine traces.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithExecutor replaces the executor resumed render steps run on.
func WithExecutor(exec Executor) Option {
	return func(o *Orchestrator) {
		if exec != nil {
			o.executor = exec
		}
	}
}

// WithWaitTimeout bounds how long a render waits on a pending value.
func WithWaitTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.waitTimeout = d
		}
	}
}

// WithSoftLimit sets the per-render buffer watermark.
func WithSoftLimit(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.softLimit = n
		}
	}
}

// WithNamingMapProvider sets the default CSS/ID renaming maps.
func WithNamingMapProvider(provider template.NamingMapProvider) Option {
	return func(o *Orchestrator) {
		o.namingMaps = provider
	}
}

// WithRenaming toggles CSS/ID renaming.
func WithRenaming(enabled bool) Option {
	return func(o *Orchestrator) {
		o.renaming = enabled
	}
}

// WithNonceInjection exposes Request.Nonce to templates as ij.csp_nonce.
func WithNonceInjection(enabled bool) Option {
	return func(o *Orchestrator) {
		o.nonce = enabled
	}
}

// WithThemeSelector resolves a go-theme selection for every render and
// exposes it to templates as ij.theme.
func WithThemeSelector(selector theme.ThemeSelector) Option {
	return func(o *Orchestrator) {
		o.themeSelector = selector
	}
}

// WithThemeDefaults sets the theme and variant used when a request names none.
func WithThemeDefaults(name, variant string) Option {
	return func(o *Orchestrator) {
		o.themeName = strings.TrimSpace(name)
		o.themeVariant = strings.TrimSpace(variant)
	}
}

// WithTranslator installs translation helpers backed by t for every render.
// A request catalog from views.Context takes precedence.
func WithTranslator(t render.Translator, defaultLocale string) Option {
	return func(o *Orchestrator) {
		o.translator = t
		o.locale = strings.TrimSpace(defaultLocale)
	}
}

// WithDefaultParams seeds template parameters; request data overrides them.
func WithDefaultParams(params map[string]any) Option {
	return func(o *Orchestrator) {
		if len(params) == 0 {
			return
		}
		if o.params == nil {
			o.params = make(map[string]any, len(params))
		}
		maps.Copy(o.params, params)
	}
}

// WithMetrics reports render outcomes to m.
func WithMetrics(m Metrics) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// Orchestrator renders views from a compiled template set. It is safe for
// concurrent use; every render gets its own render.Machine.
type Orchestrator struct {
	templates     template.CompiledTemplates
	logger        *slog.Logger
	executor      Executor
	waitTimeout   time.Duration
	softLimit     int
	namingMaps    template.NamingMapProvider
	renaming      bool
	nonce         bool
	themeSelector theme.ThemeSelector
	themeName     string
	themeVariant  string
	translator    render.Translator
	locale        string
	params        map[string]any
	metrics       Metrics
}

// New constructs an Orchestrator over templates applying any provided
// options.
func New(templates template.CompiledTemplates, options ...Option) *Orchestrator {
	o := &Orchestrator{
		templates:   templates,
		logger:      logging.NewNop(),
		executor:    GoExecutor,
		waitTimeout: render.DefaultWaitTimeout,
		softLimit:   chunk.DefaultSoftLimit,
		metrics:     nopMetrics{},
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(o)
	}
	return o
}

// Request describes a single render.
type Request struct {
	// View names the template to render.
	View string
	// Model is the template data: a map, a struct (decoded with
	// mapstructure), a *views.Context, or nil.
	Model any
	// Context carries request-scoped values. A *views.Context Model is used
	// when Context is nil.
	Context *views.Context
	// Nonce is the request's CSP nonce.
	Nonce string
	// ThemeName and ThemeVariant override the configured theme defaults.
	ThemeName    string
	ThemeVariant string
}

// Result is the single value a Render channel yields.
type Result struct {
	Output *Output
	Err    error
}

// Exists reports whether view is in the template set.
func (o *Orchestrator) Exists(view string) bool {
	if o == nil || o.templates == nil {
		return false
	}
	return o.templates.Has(view)
}

// Views lists the template names.
func (o *Orchestrator) Views() []string {
	if o == nil || o.templates == nil {
		return nil
	}
	return o.templates.Names()
}

// Render starts a buffered render. The channel yields exactly one Result and
// is then closed. A successful Output owns the rendered bytes and must be
// consumed or closed.
func (o *Orchestrator) Render(ctx context.Context, req Request) <-chan Result {
	results := make(chan Result, 1)
	deliver := func(res Result) {
		results <- res
		close(results)
	}

	r, err := o.prepare(ctx, req)
	if err != nil {
		deliver(Result{Err: err})
		return results
	}
	r.deliver = deliver
	o.executor(r.begin)
	return results
}

// RenderStream starts a streaming render. Chunks are handed over as the
// buffer fills; the render pauses until each chunk is taken.
func (o *Orchestrator) RenderStream(ctx context.Context, req Request) *Stream {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	s := newStream(req.View, cancel)

	r, err := o.prepare(ctx, req)
	if err != nil {
		s.finish(err)
		return s
	}
	r.stream = s
	o.executor(r.begin)
	return s
}

// Wait blocks until results yields or ctx is done. When ctx wins, the late
// output is closed in the background.
func Wait(ctx context.Context, results <-chan Result) (*Output, error) {
	select {
	case res := <-results:
		return res.Output, res.Err
	case <-ctx.Done():
		go func() {
			if res := <-results; res.Output != nil {
				_ = res.Output.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

func (o *Orchestrator) prepare(ctx context.Context, req Request) (*run, error) {
	if ctx == nil {
		return nil, errors.New("orchestrator: context is required")
	}
	view := strings.TrimSpace(req.View)
	if view == "" {
		return nil, fmt.Errorf("%w: view name is required", render.ErrInvalidArgument)
	}
	if o.templates == nil {
		return nil, errors.New("orchestrator: template set is nil")
	}
	if !o.templates.Has(view) {
		return nil, fmt.Errorf("%w: %q", ErrViewNotFound, view)
	}

	vc := req.Context
	data := map[string]any{}
	switch model := req.Model.(type) {
	case *views.Context:
		if vc == nil {
			vc = model
		}
	default:
		converted, err := modelData(model)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: model for %q: %w", view, err)
		}
		data = converted
	}
	props := views.Properties(vc)
	merged := make(map[string]any, len(props)+len(data))
	maps.Copy(merged, props)
	maps.Copy(merged, data)

	renderer, err := o.templates.NewRenderer(view, o.params)
	if err != nil {
		if errors.Is(err, template.ErrTemplateNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrViewNotFound, view)
		}
		return nil, fmt.Errorf("orchestrator: prepare %q: %w", view, err)
	}

	framework, err := o.frameworkValues(req, vc)
	if err != nil {
		return nil, err
	}
	renderer.SetData(merged).SetInjectedData(views.InjectedProperties(vc, framework))

	if o.renaming {
		provider := o.namingMaps
		if override, ok := views.NamingMapOverride(vc); ok {
			provider = override
		}
		if provider != nil {
			renderer.SetRenameMaps(provider.CSSRenamingMap(), provider.IDRenamingMap())
		}
	}

	funcs, err := o.translationFuncs(vc)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: messages for %q: %w", view, err)
	}
	if funcs != nil {
		renderer.SetFuncs(funcs)
	}

	m := render.NewMachine(
		render.WithView(view),
		render.WithLogger(o.logger),
		render.WithWaitTimeout(o.waitTimeout),
		render.WithBuffer(chunk.New(chunk.WithSoftLimit(o.softLimit))),
	)
	return &run{
		o:        o,
		ctx:      ctx,
		view:     view,
		m:        m,
		renderer: renderer,
	}, nil
}

// frameworkValues builds the framework half of the injected overlay.
func (o *Orchestrator) frameworkValues(req Request, vc *views.Context) (map[string]any, error) {
	values := map[string]any{}
	if o.nonce && req.Nonce != "" {
		values[NonceKey] = req.Nonce
	}
	if locale := o.requestLocale(vc); locale != "" {
		values[LocaleKey] = locale
	}
	if o.themeSelector != nil {
		data, err := o.themeData(req)
		if err != nil {
			return nil, err
		}
		if data != nil {
			values[ThemeKey] = data
		}
	}
	return values, nil
}

func (o *Orchestrator) requestLocale(vc *views.Context) string {
	if locale := views.Locale(vc); locale != "" {
		return locale
	}
	return o.locale
}

func (o *Orchestrator) translationFuncs(vc *views.Context) (map[string]any, error) {
	catalog, err := views.Catalog(vc)
	if err != nil {
		return nil, err
	}
	if catalog == nil {
		catalog = o.translator
	}
	if catalog == nil && !views.TranslateEnabled(vc) {
		return nil, nil
	}
	return render.TemplateI18nFuncs(catalog, render.TemplateI18nConfig{
		LocaleKey:     LocaleKey,
		DefaultLocale: o.locale,
	}), nil
}

// modelData converts a request model into template data.
func modelData(model any) (map[string]any, error) {
	switch m := model.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return m, nil
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out, nil
	}
	out := map[string]any{}
	if err := mapstructure.Decode(model, &out); err != nil {
		return nil, err
	}
	return out, nil
}
