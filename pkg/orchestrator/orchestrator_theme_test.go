package orchestrator

import (
	"context"
	"strings"
	"testing"

	theme "github.com/goliatone/go-theme"
	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-views/pkg/render/template/gotemplate"
)

func TestOrchestrator_ExposesThemeToTemplates(t *testing.T) {
	manifest := &theme.Manifest{
		Name:    "acme",
		Version: "1.0.0",
		Tokens: map[string]string{
			"brand": "#123456",
		},
	}
	selection := &theme.Selection{
		Theme:    "acme",
		Variant:  "custom-variant",
		Manifest: manifest,
	}
	selector := &stubThemeSelector{selection: selection}

	set, err := gotemplate.Compile(gotemplate.WithTemplateString("page",
		`{{ ij.theme.name }}/{{ ij.theme.variant }}|{{ ij.theme.tokens.brand }}|{{ ij.theme.css_vars_style }}`))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	orch := New(set, WithThemeSelector(selector), WithThemeDefaults("default-theme", "light"))

	out, err := Wait(context.Background(), orch.Render(context.Background(), Request{
		View:         "page",
		ThemeName:    "custom-theme",
		ThemeVariant: "custom-variant",
	}))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	body, err := out.Bytes()
	if err != nil {
		t.Fatalf("bytes: %v", err)
	}
	if got := string(body); got != "acme/custom-variant|#123456|--brand: #123456;" {
		t.Fatalf("unexpected theme output %q", got)
	}

	if len(selector.calls) != 1 {
		t.Fatalf("expected selector called once, got %d", len(selector.calls))
	}
	if selector.calls[0].name != "custom-theme" || selector.calls[0].variant != "custom-variant" {
		t.Fatalf("unexpected selector args: %+v", selector.calls[0])
	}

	if _, err := Wait(context.Background(), orch.Render(context.Background(), Request{View: "page"})); err != nil {
		t.Fatalf("render with defaults: %v", err)
	}
	if selector.calls[1].name != "default-theme" || selector.calls[1].variant != "light" {
		t.Fatalf("defaults not applied: %+v", selector.calls[1])
	}
}

func TestOrchestrator_ThemeSelectionErrorFailsRender(t *testing.T) {
	selector, err := NewManifestSelector(&theme.Manifest{Name: "acme"})
	if err != nil {
		t.Fatalf("selector: %v", err)
	}
	set, err := gotemplate.Compile(gotemplate.WithTemplateString("page", "x"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	orch := New(set, WithThemeSelector(selector))

	_, err = Wait(context.Background(), orch.Render(context.Background(), Request{View: "page", ThemeName: "other"}))
	if err == nil || !strings.Contains(err.Error(), `theme "other"`) {
		t.Fatalf("expected selection error, got %v", err)
	}
}

func TestRendererConfig_MergesVariant(t *testing.T) {
	manifest := &theme.Manifest{
		Name:      "acme",
		Tokens:    map[string]string{"brand": "#111", "radius": "4px"},
		Templates: map[string]string{"layout": "themes/acme/layout"},
		Assets: theme.Assets{
			Prefix: "/static/acme",
			Files:  map[string]string{"logo": "logo.svg", "cdn": "https://cdn.example.com/x.css"},
		},
		Variants: map[string]theme.Variant{
			"dark": {
				Tokens:    map[string]string{"brand": "#000"},
				Templates: map[string]string{"layout": "themes/acme/dark"},
				Assets:    theme.Assets{Prefix: "/static/acme-dark", Files: map[string]string{"logo": "logo-dark.svg"}},
			},
		},
	}

	base := RendererConfig(&theme.Selection{Theme: "acme", Manifest: manifest})
	if got := base.AssetURL("logo"); got != "/static/acme/logo.svg" {
		t.Fatalf("base asset = %q", got)
	}
	if got := base.AssetURL("cdn"); got != "https://cdn.example.com/x.css" {
		t.Fatalf("absolute asset = %q", got)
	}
	if got := base.AssetURL("missing"); got != "" {
		t.Fatalf("missing asset = %q", got)
	}

	dark := RendererConfig(&theme.Selection{Theme: "acme", Variant: "dark", Manifest: manifest})
	wantTokens := map[string]string{"brand": "#000", "radius": "4px"}
	if diff := cmp.Diff(wantTokens, dark.Tokens); diff != "" {
		t.Fatalf("tokens mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]string{"--brand": "#000", "--radius": "4px"}, dark.CSSVars); diff != "" {
		t.Fatalf("css vars mismatch (-want +got):\n%s", diff)
	}
	if dark.Partials["layout"] != "themes/acme/dark" {
		t.Fatalf("variant partial not applied: %v", dark.Partials)
	}
	if got := dark.AssetURL("logo"); got != "/static/acme-dark/logo-dark.svg" {
		t.Fatalf("variant asset = %q", got)
	}
	if got := cssVarsStyle(dark.CSSVars); got != "--brand: #000; --radius: 4px;" {
		t.Fatalf("css vars style = %q", got)
	}

	if RendererConfig(nil) != nil {
		t.Fatalf("nil selection should yield nil config")
	}
}

func TestManifestSelector(t *testing.T) {
	doc := `
name: acme
version: 1.2.0
tokens:
  brand: "#123456"
assets:
  prefix: /static
  files:
    logo: logo.svg
variants:
  dark:
    tokens:
      brand: "#000000"
`
	manifest, err := ParseManifest([]byte(doc))
	if err != nil {
		t.Fatalf("parse manifest: %v", err)
	}
	if manifest.Version != "1.2.0" || manifest.Variants["dark"].Tokens["brand"] != "#000000" {
		t.Fatalf("unexpected manifest: %+v", manifest)
	}

	selector, err := NewManifestSelector(manifest)
	if err != nil {
		t.Fatalf("selector: %v", err)
	}
	sel, err := selector.Select("", "dark")
	if err != nil {
		t.Fatalf("select only theme: %v", err)
	}
	if sel.Theme != "acme" || sel.Variant != "dark" || sel.Manifest != manifest {
		t.Fatalf("unexpected selection: %+v", sel)
	}
	if _, err := selector.Select("acme", "neon"); err == nil {
		t.Fatalf("expected unknown variant error")
	}
	if err := selector.Register(manifest); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
	if _, err := ParseManifest([]byte("version: 1")); err == nil {
		t.Fatalf("expected missing name error")
	}
}

type selectorCall struct {
	name    string
	variant string
}

type stubThemeSelector struct {
	selection *theme.Selection
	calls     []selectorCall
}

func (s *stubThemeSelector) Select(name, variant string, _ ...theme.QueryOption) (*theme.Selection, error) {
	s.calls = append(s.calls, selectorCall{name: name, variant: variant})
	return s.selection, nil
}
