package gotemplate

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"reflect"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/flosch/pongo2/v6"

	"github.com/goliatone/go-views/pkg/render/template"
)

// DefaultDrainSize is the slice size rendered output is copied into the
// target with; the soft limit is checked after every slice.
const DefaultDrainSize = 512

// Option configures the template set before compilation.
type Option func(*config)

type config struct {
	baseDir    string
	templates  fs.FS
	extension  string
	sources    map[string]string
	templateFn map[string]any
	globalData map[string]any
	drainSize  int
}

// WithBaseDir loads templates from a base directory on disk.
func WithBaseDir(dir string) Option {
	return func(cfg *config) {
		cfg.baseDir = strings.TrimSpace(dir)
	}
}

// WithFS loads templates from an fs.FS.
func WithFS(files fs.FS) Option {
	return func(cfg *config) {
		cfg.templates = files
	}
}

// WithExtension overrides the default template extension (".tpl").
func WithExtension(ext string) Option {
	return func(cfg *config) {
		trimmed := strings.TrimSpace(ext)
		if trimmed == "" {
			return
		}
		if !strings.HasPrefix(trimmed, ".") {
			trimmed = "." + trimmed
		}
		cfg.extension = trimmed
	}
}

// WithTemplateString registers an in-memory template under name. In-memory
// templates can include and extend each other and those loaded from disk.
func WithTemplateString(name, source string) Option {
	return func(cfg *config) {
		name = normalizeName(name, "")
		if name == "" {
			return
		}
		if cfg.sources == nil {
			cfg.sources = make(map[string]string)
		}
		cfg.sources[name] = source
	}
}

// WithTemplateFunc registers helper functions or filters when the set loads.
func WithTemplateFunc(funcs map[string]any) Option {
	return func(cfg *config) {
		if len(funcs) == 0 {
			return
		}
		if cfg.templateFn == nil {
			cfg.templateFn = make(map[string]any, len(funcs))
		}
		for name, fn := range funcs {
			cfg.templateFn[strings.TrimSpace(name)] = fn
		}
	}
}

// WithGlobalData seeds global context values available to every template.
func WithGlobalData(data map[string]any) Option {
	return func(cfg *config) {
		if len(data) == 0 {
			return
		}
		if cfg.globalData == nil {
			cfg.globalData = make(map[string]any, len(data))
		}
		for key, value := range data {
			cfg.globalData[strings.TrimSpace(key)] = value
		}
	}
}

// WithDrainSize sets how many bytes are copied into the target between soft
// limit checks.
func WithDrainSize(n int) Option {
	return func(cfg *config) {
		if n > 0 {
			cfg.drainSize = n
		}
	}
}

// TemplateSet is a pongo2 template set compiled up front. It satisfies
// template.CompiledTemplates; lookups never touch the loaders.
type TemplateSet struct {
	mu sync.RWMutex

	set       *pongo2.TemplateSet
	memory    *memoryLoader
	templates map[string]*pongo2.Template
	names     []string
	tplExt    string
	drainSize int
}

var _ template.CompiledTemplates = (*TemplateSet)(nil)

// Compile loads and compiles every template reachable from the configured
// sources.
func Compile(options ...Option) (*TemplateSet, error) {
	cfg := &config{
		extension: ".tpl",
		drainSize: DefaultDrainSize,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(cfg)
	}

	if cfg.baseDir == "" && cfg.templates == nil && len(cfg.sources) == 0 {
		return nil, errors.New("gotemplate: need to provide a base dir, an fs.FS or template sources")
	}

	memory := newMemoryLoader(cfg.sources, cfg.extension)
	loaders := []pongo2.TemplateLoader{memory}
	paths := memory.paths()

	if cfg.baseDir != "" {
		loader, err := pongo2.NewLocalFileSystemLoader(cfg.baseDir)
		if err != nil {
			return nil, fmt.Errorf("gotemplate: create local loader: %w", err)
		}
		loaders = append(loaders, loader)
		found, err := templatePaths(os.DirFS(cfg.baseDir), cfg.extension)
		if err != nil {
			return nil, fmt.Errorf("gotemplate: scan %s: %w", cfg.baseDir, err)
		}
		paths = append(paths, found...)
	}
	if cfg.templates != nil {
		loaders = append(loaders, pongo2.NewFSLoader(cfg.templates))
		found, err := templatePaths(cfg.templates, cfg.extension)
		if err != nil {
			return nil, fmt.Errorf("gotemplate: scan fs: %w", err)
		}
		paths = append(paths, found...)
	}

	ts := &TemplateSet{
		set:       pongo2.NewSet("views", loaders...),
		memory:    memory,
		templates: make(map[string]*pongo2.Template, len(paths)),
		tplExt:    cfg.extension,
		drainSize: cfg.drainSize,
	}
	registerDefaultFilters()

	if err := ts.GlobalContext(cfg.globalData); err != nil {
		return nil, fmt.Errorf("gotemplate: apply global data: %w", err)
	}
	for name, fn := range cfg.templateFn {
		if err := ts.registerTemplateFunc(name, fn); err != nil {
			return nil, fmt.Errorf("gotemplate: register template func %q: %w", name, err)
		}
	}

	for _, p := range paths {
		name := normalizeName(p, cfg.extension)
		if _, exists := ts.templates[name]; exists {
			continue
		}
		tmpl, err := ts.set.FromFile(p)
		if err != nil {
			return nil, fmt.Errorf("gotemplate: compile template %q: %w", p, err)
		}
		ts.templates[name] = tmpl
		ts.names = append(ts.names, name)
	}
	sort.Strings(ts.names)

	return ts, nil
}

// Has reports whether the set contains a template for name. Names are slash
// paths without extension; dotted names ("pages.home") and names carrying the
// extension are accepted too.
func (ts *TemplateSet) Has(name string) bool {
	_, ok := ts.lookup(name)
	return ok
}

// Names lists the compiled template names in sorted order.
func (ts *TemplateSet) Names() []string {
	if ts == nil {
		return nil
	}
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return append([]string(nil), ts.names...)
}

// NewRenderer prepares a single render of name. params are the declared
// template parameters; SetData values override them.
func (ts *TemplateSet) NewRenderer(name string, params map[string]any) (template.Renderer, error) {
	tmpl, ok := ts.lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", template.ErrTemplateNotFound, name)
	}
	return &renderer{
		set:    ts,
		name:   normalizeName(name, ts.tplExt),
		tmpl:   tmpl,
		params: params,
	}, nil
}

// AddTemplate compiles source and adds it to the set under name, replacing
// any template already registered with that name.
func (ts *TemplateSet) AddTemplate(name, source string) error {
	key := normalizeName(name, ts.tplExt)
	if key == "" {
		return errors.New("gotemplate: template name required")
	}
	p := key + ts.tplExt
	ts.memory.add(p, source)

	ts.mu.Lock()
	defer ts.mu.Unlock()

	tmpl, err := ts.set.FromFile(p)
	if err != nil {
		return fmt.Errorf("gotemplate: compile template %q: %w", name, err)
	}
	if _, exists := ts.templates[key]; !exists {
		ts.names = append(ts.names, key)
		sort.Strings(ts.names)
	}
	ts.templates[key] = tmpl
	return nil
}

// RegisterFilter registers a template filter.
func (ts *TemplateSet) RegisterFilter(name string, fn func(input any, param any) (any, error)) error {
	if strings.TrimSpace(name) == "" || fn == nil {
		return errors.New("gotemplate: filter name and function required")
	}

	filter := func(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
		var paramVal any
		if param != nil {
			paramVal = param.Interface()
		}
		result, err := fn(in.Interface(), paramVal)
		if err != nil {
			return nil, &pongo2.Error{Sender: "custom_filter", OrigError: err}
		}
		return pongo2.AsValue(result), nil
	}

	if pongo2.FilterExists(name) {
		return fmt.Errorf("gotemplate: filter %q already exists", name)
	}
	return pongo2.RegisterFilter(name, filter)
}

// GlobalContext seeds global data shared by every render.
func (ts *TemplateSet) GlobalContext(data map[string]any) error {
	if ts == nil || ts.set == nil {
		return errors.New("gotemplate: template set is nil")
	}
	if len(data) == 0 {
		return nil
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.set.Globals == nil {
		ts.set.Globals = make(pongo2.Context)
	}
	ts.set.Globals.Update(pongo2.Context(data))
	return nil
}

func (ts *TemplateSet) registerTemplateFunc(name string, fn any) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || fn == nil {
		return nil
	}

	if filter, ok := fn.(pongo2.FilterFunction); ok {
		if pongo2.FilterExists(trimmed) {
			return nil
		}
		return pongo2.RegisterFilter(trimmed, filter)
	}

	if !isCallable(fn) {
		return nil
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.set.Globals == nil {
		ts.set.Globals = make(pongo2.Context)
	}
	ts.set.Globals[trimmed] = fn
	return nil
}

func (ts *TemplateSet) lookup(name string) (*pongo2.Template, bool) {
	if ts == nil {
		return nil, false
	}
	key := normalizeName(name, ts.tplExt)
	if key == "" {
		return nil, false
	}

	ts.mu.RLock()
	defer ts.mu.RUnlock()

	if tmpl, ok := ts.templates[key]; ok {
		return tmpl, true
	}
	if strings.Contains(key, ".") {
		tmpl, ok := ts.templates[strings.ReplaceAll(key, ".", "/")]
		return tmpl, ok
	}
	return nil, false
}

func (ts *TemplateSet) execute(tmpl *pongo2.Template, ctx pongo2.Context) ([]byte, error) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return tmpl.ExecuteBytes(ctx)
}

func normalizeName(name, ext string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	if ext != "" {
		name = strings.TrimSuffix(name, ext)
	}
	return name
}

func templatePaths(fsys fs.FS, ext string) ([]string, error) {
	var out []string
	err := fs.WalkDir(fsys, ".", func(p string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !strings.HasSuffix(p, ext) {
			return nil
		}
		out = append(out, p)
		return nil
	})
	return out, err
}

// memoryLoader serves WithTemplateString sources to pongo2 so in-memory
// templates can take part in include/extends resolution. Paths resolve
// relative to the including template, like pongo2's FSLoader.
type memoryLoader struct {
	mu    sync.RWMutex
	files map[string]string
}

func newMemoryLoader(sources map[string]string, ext string) *memoryLoader {
	files := make(map[string]string, len(sources))
	for name, src := range sources {
		files[name+ext] = src
	}
	return &memoryLoader{files: files}
}

func (l *memoryLoader) add(p, src string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.files[p] = src
}

func (l *memoryLoader) paths() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.files))
	for p := range l.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Abs implements pongo2.TemplateLoader.
func (l *memoryLoader) Abs(base, name string) string {
	return strings.TrimPrefix(path.Join("/", path.Dir(base), name), "/")
}

// Get implements pongo2.TemplateLoader.
func (l *memoryLoader) Get(p string) (io.Reader, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	src, ok := l.files[p]
	if !ok {
		return nil, fmt.Errorf("gotemplate: %s: %w", p, fs.ErrNotExist)
	}
	return strings.NewReader(src), nil
}

func isCallable(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	return rv.IsValid() && rv.Kind() == reflect.Func
}

func registerDefaultFilters() {
	if !pongo2.FilterExists("trim") {
		_ = pongo2.RegisterFilter("trim", filterTrim)
	}
	if !pongo2.FilterExists("lowerfirst") {
		_ = pongo2.RegisterFilter("lowerfirst", filterLowerFirst)
	}
	if !pongo2.FilterExists("sanitize") {
		_ = pongo2.RegisterFilter("sanitize", filterSanitize)
	}
}

func filterTrim(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	if in.Len() <= 0 {
		return pongo2.AsValue(""), nil
	}
	return pongo2.AsValue(strings.TrimSpace(in.String())), nil
}

func filterLowerFirst(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	if in.Len() <= 0 {
		return pongo2.AsValue(""), nil
	}
	t := in.String()

	var (
		firstNonWhitespaceIndex int
		firstRune               rune
		firstRuneSize           int
	)

	for i, r := range t {
		if !strings.ContainsRune(" \t\n\r", r) {
			firstNonWhitespaceIndex = i
			firstRune = r
			firstRuneSize = utf8.RuneLen(r)
			break
		}
	}

	if firstRune == 0 {
		return pongo2.AsValue(t), nil
	}

	prefix := t[:firstNonWhitespaceIndex]
	loweredRune := strings.ToLower(string(firstRune))
	rest := t[firstNonWhitespaceIndex+firstRuneSize:]

	return pongo2.AsValue(prefix + loweredRune + rest), nil
}
