package template_test

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goliatone/go-views/pkg/chunk"
	"github.com/goliatone/go-views/pkg/render"
	"github.com/goliatone/go-views/pkg/render/template"
	"github.com/goliatone/go-views/pkg/render/template/gotemplate"
	"github.com/goliatone/go-views/pkg/testsupport"
)

//go:embed testdata/templates
var embeddedTemplates embed.FS

func TestTemplateSet_RenderTemplate(t *testing.T) {
	set := newSet(t)

	r, err := set.NewRenderer("hello", nil)
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	got, trace := testsupport.CaptureRender(t, r.SetData(map[string]any{"name": "Ada"}))

	testsupport.Golden(t, filepath.Join("testdata", "hello.golden"), got)
	if len(trace.Signals) != 1 || trace.Signals[0] != render.SignalDone {
		t.Fatalf("expected a single DONE step, got %v", trace.Signals)
	}
}

func TestTemplateSet_GlobalContext(t *testing.T) {
	set := newSet(t)
	if err := set.GlobalContext(map[string]any{
		"settings": map[string]any{"env": "staging"},
	}); err != nil {
		t.Fatalf("global context: %v", err)
	}

	got := mustRender(t, set, "use-global", nil, nil)
	if got != "env=staging" {
		t.Fatalf("global context not applied: %q", got)
	}
}

func TestTemplateSet_RegisterFilter(t *testing.T) {
	set := newSet(t)
	err := set.RegisterFilter("shout", func(input any, _ any) (any, error) {
		if input == nil {
			return "", nil
		}
		return fmt.Sprintf("%s!", strings.ToUpper(fmt.Sprint(input))), nil
	})
	if err != nil {
		t.Fatalf("register filter: %v", err)
	}
	if err := set.AddTemplate("use-filter", "{{ name|shout }}"); err != nil {
		t.Fatalf("add template: %v", err)
	}
	if !set.Has("use-filter") {
		t.Fatalf("added template should be visible")
	}

	got := mustRender(t, set, "use-filter", nil, map[string]any{"name": "Ada"})
	if got != "ADA!" {
		t.Fatalf("filter output: %q", got)
	}
}

func TestTemplateSet_Lookup(t *testing.T) {
	set := newSet(t)

	want := []string{"hello", "layout/base", "pages/home", "use-global"}
	if diff := testsupport.CompareGolden(want, set.Names()); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}

	for _, name := range []string{"hello", "hello.tpl", "/pages/home", "pages.home"} {
		if !set.Has(name) {
			t.Fatalf("expected %q to exist", name)
		}
	}
	for _, name := range []string{"missing.template", "", "pages"} {
		if set.Has(name) {
			t.Fatalf("expected %q to be missing", name)
		}
	}

	if _, err := set.NewRenderer("missing.template", nil); !errors.Is(err, template.ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestTemplateSet_Extends(t *testing.T) {
	set := newSet(t)
	got := mustRender(t, set, "pages.home", nil, map[string]any{"title": "home"})
	if got != "<main>home</main>" {
		t.Fatalf("extends output: %q", got)
	}
}

func TestTemplateSet_DataOverridesParams(t *testing.T) {
	set := compile(t, gotemplate.WithTemplateString("greet", "{{ greeting }}, {{ name }}"))

	got := mustRender(t, set, "greet",
		map[string]any{"greeting": "Hi", "name": "nobody"},
		map[string]any{"name": "Ada"},
	)
	if got != "Hi, Ada" {
		t.Fatalf("got %q", got)
	}
}

func TestTemplateSet_InjectedDataAndRenaming(t *testing.T) {
	set := compile(t, gotemplate.WithTemplateString("page",
		`<script nonce="{{ ij.csp_nonce }}"></script><div class="{{ css("btn btn-primary") }}" id="{{ xid("header") }}"></div>`,
	))

	r, err := set.NewRenderer("page", nil)
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	r.SetInjectedData(map[string]any{"csp_nonce": "abc"}).
		SetRenameMaps(
			template.MapRenaming{"btn": "a", "primary": "b"},
			template.MapRenaming{"header": "h"},
		)

	got, _ := testsupport.CaptureRender(t, r)
	want := `<script nonce="abc"></script><div class="a a-b" id="h"></div>`
	if got != want {
		t.Fatalf("render mismatch\nwant: %q\n got: %q", want, got)
	}
}

func TestTemplateSet_RenamingWithoutMaps(t *testing.T) {
	set := compile(t, gotemplate.WithTemplateString("page", `{{ css("btn") }}#{{ xid("main") }}`))
	if got := mustRender(t, set, "page", nil, nil); got != "btn#main" {
		t.Fatalf("got %q", got)
	}
}

func TestTemplateSet_DefaultFilters(t *testing.T) {
	set := compile(t,
		gotemplate.WithTemplateString("trim", `{{ value|trim|lowerfirst }}`),
		gotemplate.WithTemplateString("clean", `{{ body|sanitize }}`),
	)

	if got := mustRender(t, set, "trim", nil, map[string]any{"value": "  Hello World "}); got != "hello World" {
		t.Fatalf("trim|lowerfirst: %q", got)
	}
	got := mustRender(t, set, "clean", nil, map[string]any{"body": `<b>ok</b><script>alert(1)</script>`})
	if got != "<b>ok</b>" {
		t.Fatalf("sanitize: %q", got)
	}
}

func TestTemplateSet_DetachesOnPendingValue(t *testing.T) {
	set := compile(t, gotemplate.WithTemplateString("answer", `{{ answer }}`))
	r, err := set.NewRenderer("answer", nil)
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}

	p := render.NewPromise()
	buf := chunk.New()
	defer buf.Close()

	ctx := context.Background()
	cont, err := r.SetData(map[string]any{"answer": p}).RenderInto(ctx, buf)
	if err != nil {
		t.Fatalf("render into: %v", err)
	}
	if cont.Signal() != render.SignalDetach || cont.Pending() != render.Future(p) {
		t.Fatalf("expected DETACH on the pending value, got %s", cont.Signal())
	}
	if buf.Len() != 0 {
		t.Fatalf("nothing should be written while detached")
	}

	p.Resolve(42)
	cont, err = cont.Continue(ctx)
	if err != nil {
		t.Fatalf("continue: %v", err)
	}
	if cont.Signal() != render.SignalDone {
		t.Fatalf("expected DONE, got %s", cont.Signal())
	}
	out, _ := buf.Export()
	defer out.Release()
	if out.String() != "42" {
		t.Fatalf("got %q", out.String())
	}
}

func TestTemplateSet_NestedFutures(t *testing.T) {
	set := compile(t, gotemplate.WithTemplateString("list", `{% for u in users %}{{ u.name }};{% endfor %}`))
	r, err := set.NewRenderer("list", nil)
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}

	r.SetData(map[string]any{
		"users": []any{
			map[string]any{"name": render.Resolved("ada")},
			render.Resolved(map[string]any{"name": "bob"}),
		},
	})
	got, trace := testsupport.CaptureRender(t, r)
	if got != "ada;bob;" {
		t.Fatalf("got %q", got)
	}
	if trace.Count(render.SignalDetach) != 0 {
		t.Fatalf("settled futures should not detach")
	}
}

func TestTemplateSet_RejectedFutureFails(t *testing.T) {
	set := compile(t, gotemplate.WithTemplateString("answer", `{{ answer }}`))
	r, err := set.NewRenderer("answer", nil)
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	boom := errors.New("boom")

	buf := chunk.New()
	defer buf.Close()
	_, err = r.SetData(map[string]any{"answer": render.Rejected(boom)}).RenderInto(context.Background(), buf)
	if !errors.Is(err, boom) {
		t.Fatalf("expected rejected value error, got %v", err)
	}
}

func TestTemplateSet_PausesAtSoftLimit(t *testing.T) {
	set := compile(t,
		gotemplate.WithTemplateString("big", `{% for i in items %}x{% endfor %}`),
		gotemplate.WithDrainSize(64),
	)
	r, err := set.NewRenderer("big", nil)
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	r.SetData(map[string]any{"items": make([]int, 5000)})

	got, trace := testsupport.CaptureRender(t, r, chunk.WithSoftLimit(256))
	if len(got) != 5000 || strings.Trim(got, "x") != "" {
		t.Fatalf("unexpected output of %d bytes", len(got))
	}
	if trace.Count(render.SignalLimited) == 0 {
		t.Fatalf("expected LIMITED pauses, got %v", trace.Signals)
	}
	if last := trace.Signals[len(trace.Signals)-1]; last != render.SignalDone {
		t.Fatalf("trace should end with DONE, got %s", last)
	}
}

func TestTemplateSet_CancelledContext(t *testing.T) {
	set := compile(t, gotemplate.WithTemplateString("hello", `hi`))
	r, err := set.NewRenderer("hello", nil)
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	buf := chunk.New()
	defer buf.Close()
	if _, err := r.RenderInto(ctx, buf); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestCompile_RequiresSource(t *testing.T) {
	if _, err := gotemplate.Compile(); err == nil {
		t.Fatalf("expected error without template sources")
	}
}

func TestRename(t *testing.T) {
	m := template.MapRenaming{"btn": "a", "primary": "b"}
	cases := map[string]string{
		"btn":         "a",
		"btn-primary": "a-b",
		"btn-other":   "btn-other",
		"plain":       "plain",
		"":            "",
	}
	for in, want := range cases {
		if got := template.Rename(m, in); got != want {
			t.Fatalf("Rename(%q) = %q, want %q", in, got, want)
		}
	}
	if got := template.Rename(nil, "btn"); got != "btn" {
		t.Fatalf("nil map should leave names unchanged, got %q", got)
	}
}

func TestParseNamingMaps(t *testing.T) {
	maps, err := template.ParseNamingMaps([]byte("css:\n  btn: a\nid:\n  header: h\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := maps.CSSRenamingMap().Get("btn"); got != "a" {
		t.Fatalf("css map: %q", got)
	}
	if got := maps.IDRenamingMap().Get("header"); got != "h" {
		t.Fatalf("id map: %q", got)
	}

	empty, err := template.ParseNamingMaps([]byte("{}"))
	if err != nil {
		t.Fatalf("parse empty: %v", err)
	}
	if empty.CSSRenamingMap() != nil || empty.IDRenamingMap() != nil {
		t.Fatalf("empty document should yield nil maps")
	}
}

func newSet(t *testing.T) *gotemplate.TemplateSet {
	t.Helper()

	templatesFS, err := fs.Sub(embeddedTemplates, "testdata/templates")
	if err != nil {
		t.Fatalf("sub fs: %v", err)
	}
	return compile(t, gotemplate.WithFS(templatesFS))
}

func compile(t *testing.T, options ...gotemplate.Option) *gotemplate.TemplateSet {
	t.Helper()

	set, err := gotemplate.Compile(options...)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return set
}

func mustRender(t *testing.T, set *gotemplate.TemplateSet, name string, params, data map[string]any) string {
	t.Helper()

	r, err := set.NewRenderer(name, params)
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	got, _ := testsupport.CaptureRender(t, r.SetData(data))
	return got
}
