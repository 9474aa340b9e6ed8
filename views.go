// Package views wires the go-views packages into a ready-to-use engine:
// a compiled template set, the render orchestrator and the HTTP view
// renderer, built from options or from a config.Config.
package views

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/goliatone/go-views/internal/logging"
	"github.com/goliatone/go-views/pkg/config"
	"github.com/goliatone/go-views/pkg/observability"
	"github.com/goliatone/go-views/pkg/orchestrator"
	"github.com/goliatone/go-views/pkg/render"
	"github.com/goliatone/go-views/pkg/render/template"
	"github.com/goliatone/go-views/pkg/render/template/gotemplate"
	transporthttp "github.com/goliatone/go-views/pkg/transport/http"
	pkgviews "github.com/goliatone/go-views/pkg/views"
)

// Context aliases the request-scoped render input.
type Context = pkgviews.Context

// Request aliases orchestrator.Request for callers of Engine.Orchestrator.
type Request = orchestrator.Request

// Option configures New.
type Option func(*settings)

type settings struct {
	templates template.CompiledTemplates
	editable  templateAdder
	compile   []gotemplate.Option
	orch      []orchestrator.Option
	http      []transporthttp.Option
}

// WithTemplates uses an already compiled template set.
func WithTemplates(templates template.CompiledTemplates) Option {
	return func(s *settings) {
		s.templates = templates
	}
}

// WithTemplateDir compiles templates from dir.
func WithTemplateDir(dir string) Option {
	return func(s *settings) {
		s.compile = append(s.compile, gotemplate.WithBaseDir(dir))
	}
}

// WithTemplateFS compiles templates from fsys.
func WithTemplateFS(fsys fs.FS) Option {
	return func(s *settings) {
		s.compile = append(s.compile, gotemplate.WithFS(fsys))
	}
}

// WithTemplateOptions passes extra options to gotemplate.Compile.
func WithTemplateOptions(opts ...gotemplate.Option) Option {
	return func(s *settings) {
		s.compile = append(s.compile, opts...)
	}
}

// WithOrchestratorOptions configures the render orchestrator.
func WithOrchestratorOptions(opts ...orchestrator.Option) Option {
	return func(s *settings) {
		s.orch = append(s.orch, opts...)
	}
}

// WithHTTPOptions configures the HTTP view renderer.
func WithHTTPOptions(opts ...transporthttp.Option) Option {
	return func(s *settings) {
		s.http = append(s.http, opts...)
	}
}

type templateAdder interface {
	AddTemplate(name, source string) error
}

// ErrReadOnlyTemplates is returned by Engine.AddTemplate when the template
// set cannot take new sources.
var ErrReadOnlyTemplates = errors.New("views: template set does not accept new templates")

// Engine bundles a template set with the orchestrator and HTTP renderer
// built over it.
type Engine struct {
	templates template.CompiledTemplates
	editable  templateAdder
	orch      *orchestrator.Orchestrator
	renderer  *transporthttp.ViewRenderer
}

// New builds an Engine. A set given with WithTemplates is used as is;
// otherwise one is compiled from the template options.
func New(opts ...Option) (*Engine, error) {
	s := &settings{}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	templates := s.templates
	if templates == nil {
		if len(s.compile) == 0 {
			return nil, errors.New("views: templates or template sources are required")
		}
		set, err := gotemplate.Compile(s.compile...)
		if err != nil {
			return nil, err
		}
		templates = set
	}

	editable := s.editable
	if editable == nil {
		editable, _ = templates.(templateAdder)
	}

	orch := orchestrator.New(templates, s.orch...)
	return &Engine{
		templates: templates,
		editable:  editable,
		orch:      orch,
		renderer:  transporthttp.NewViewRenderer(orch, s.http...),
	}, nil
}

// FromConfig builds an Engine from cfg. Template override directories are
// layered over templates.dir in a template.Registry; renaming maps, message
// catalogs and theme manifests named by cfg are loaded eagerly.
func FromConfig(cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("views: config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	templates, app, err := compileLayers(cfg)
	if err != nil {
		return nil, err
	}

	orchOpts := []orchestrator.Option{
		orchestrator.WithLogger(logger),
		orchestrator.WithSoftLimit(cfg.Render.SoftLimit),
		orchestrator.WithWaitTimeout(cfg.Render.WaitTimeout),
		orchestrator.WithNonceInjection(cfg.CSP.NonceEnabled),
	}
	if cfg.Metrics.Enabled {
		orchOpts = append(orchOpts, orchestrator.WithMetrics(observability.Recorder{}))
	}
	if cfg.Renaming.Enabled {
		orchOpts = append(orchOpts, orchestrator.WithRenaming(true))
		if cfg.Renaming.MapFile != "" {
			maps, err := template.LoadNamingMaps(cfg.Renaming.MapFile)
			if err != nil {
				return nil, fmt.Errorf("views: renaming maps: %w", err)
			}
			orchOpts = append(orchOpts, orchestrator.WithNamingMapProvider(maps))
		}
	}
	if cfg.I18n.MessagesFile != "" {
		catalog, err := render.LoadMessages(cfg.I18n.MessagesFile)
		if err != nil {
			return nil, fmt.Errorf("views: messages: %w", err)
		}
		orchOpts = append(orchOpts, orchestrator.WithTranslator(catalog, cfg.I18n.Locale))
	}
	if cfg.Theme.Manifest != "" {
		manifest, err := orchestrator.LoadManifest(cfg.Theme.Manifest)
		if err != nil {
			return nil, fmt.Errorf("views: theme: %w", err)
		}
		selector, err := orchestrator.NewManifestSelector(manifest)
		if err != nil {
			return nil, fmt.Errorf("views: theme: %w", err)
		}
		orchOpts = append(orchOpts,
			orchestrator.WithThemeSelector(selector),
			orchestrator.WithThemeDefaults(cfg.Theme.Name, cfg.Theme.Variant),
		)
	}

	return New(
		WithTemplates(templates),
		func(s *settings) { s.editable = app },
		WithOrchestratorOptions(orchOpts...),
		WithHTTPOptions(
			transporthttp.WithLogger(logger),
			transporthttp.WithStreaming(cfg.Render.Streaming),
			transporthttp.WithETags(cfg.ETags.Enabled, cfg.ETags.Strong),
		),
	)
}

// compileLayers compiles each override directory and the main template
// directory into a registry searched in that order. The main set is returned
// too so templates added later land in it.
func compileLayers(cfg *config.Config) (*template.Registry, *gotemplate.TemplateSet, error) {
	base := []gotemplate.Option{
		gotemplate.WithExtension(cfg.Templates.Extension),
		gotemplate.WithDrainSize(cfg.Render.DrainSize),
	}
	compile := func(dir string) (*gotemplate.TemplateSet, error) {
		set, err := gotemplate.Compile(append(base, gotemplate.WithBaseDir(dir))...)
		if err != nil {
			return nil, fmt.Errorf("views: templates %s: %w", dir, err)
		}
		return set, nil
	}

	reg := template.NewRegistry()
	for i, dir := range cfg.Templates.Overrides {
		set, err := compile(dir)
		if err != nil {
			return nil, nil, err
		}
		if err := reg.Register(fmt.Sprintf("override%d", i), set); err != nil {
			return nil, nil, err
		}
	}
	app, err := compile(cfg.Templates.Dir)
	if err != nil {
		return nil, nil, err
	}
	if err := reg.Register("app", app); err != nil {
		return nil, nil, err
	}
	return reg, app, nil
}

// Templates returns the template set.
func (e *Engine) Templates() template.CompiledTemplates { return e.templates }

// Orchestrator returns the render orchestrator.
func (e *Engine) Orchestrator() *orchestrator.Orchestrator { return e.orch }

// ViewRenderer returns the HTTP view renderer.
func (e *Engine) ViewRenderer() *transporthttp.ViewRenderer { return e.renderer }

// Exists reports whether view can be rendered.
func (e *Engine) Exists(view string) bool { return e.orch.Exists(view) }

// Views lists the renderable view names.
func (e *Engine) Views() []string { return e.orch.Views() }

// AddTemplate compiles source into the engine's template set under name.
// Override layers still win over a template added this way.
func (e *Engine) AddTemplate(name, source string) error {
	if e.editable == nil {
		return ErrReadOnlyTemplates
	}
	return e.editable.AddTemplate(name, source)
}

// Render renders view into memory.
func (e *Engine) Render(ctx context.Context, view string, model any) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := e.RenderTo(ctx, &buf, view, model); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderTo streams view into w chunk by chunk.
func (e *Engine) RenderTo(ctx context.Context, w io.Writer, view string, model any) (int64, error) {
	s := e.orch.RenderStream(ctx, orchestrator.Request{View: view, Model: model})
	defer s.Close()
	return s.WriteTo(w)
}

// Handler returns a chi router serving the engine's views.
func (e *Engine) Handler(rc transporthttp.RouterConfig) http.Handler {
	return transporthttp.NewRouter(e.renderer, rc)
}

// RouterConfig derives router settings from cfg.
func RouterConfig(cfg *config.Config, logger *slog.Logger) transporthttp.RouterConfig {
	rc := transporthttp.RouterConfig{
		Prefix:    cfg.Server.Prefix,
		Nonce:     cfg.CSP.NonceEnabled,
		CSPPolicy: cfg.CSP.Policy,
		Logger:    logger,
	}
	if cfg.Metrics.Enabled {
		rc.MetricsPath = cfg.Metrics.Path
	}
	return rc
}
