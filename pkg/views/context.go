package views

import (
	"context"
	"maps"

	"github.com/goliatone/go-views/pkg/render/template"
)

// Defaults applies to every Context field left unset.
var Defaults = Flags{
	ETags:       false,
	StrongETags: false,
	Translate:   false,
}

// Flags are the boolean switches a Context can override.
type Flags struct {
	ETags       bool
	StrongETags bool
	Translate   bool
}

// Context is the request-scoped input to a render.
type Context struct {
	// Properties become the template data.
	Properties map[string]any
	// Injected values are exposed to templates under "ij". They take
	// precedence over framework values with the same key.
	Injected map[string]any
	// NamingMap overrides the orchestrator's renaming maps for this request.
	NamingMap template.NamingMapProvider
	// I18n selects the message catalog and locale.
	I18n *I18n

	// ETags, StrongETags and Translate override Defaults when non-nil.
	ETags       *bool
	StrongETags *bool
	Translate   *bool
}

// New returns a Context carrying props.
func New(props map[string]any) *Context {
	return &Context{Properties: props}
}

// Bool returns a pointer to v, for the optional flag fields.
func Bool(v bool) *bool {
	return &v
}

// WithInjected returns a copy of c with values merged into Injected.
func (c *Context) WithInjected(values map[string]any) *Context {
	out := c.clone()
	merged := make(map[string]any, len(out.Injected)+len(values))
	maps.Copy(merged, out.Injected)
	maps.Copy(merged, values)
	out.Injected = merged
	return out
}

func (c *Context) clone() *Context {
	if c == nil {
		return &Context{}
	}
	out := *c
	return &out
}

// Properties returns the template data; never nil.
func Properties(c *Context) map[string]any {
	if c == nil || c.Properties == nil {
		return map[string]any{}
	}
	return c.Properties
}

// InjectedProperties merges framework values with the request's injected
// values into a new map. Request values win on key conflicts.
func InjectedProperties(c *Context, framework map[string]any) map[string]any {
	var injected map[string]any
	if c != nil {
		injected = c.Injected
	}
	merged := make(map[string]any, len(framework)+len(injected))
	maps.Copy(merged, framework)
	maps.Copy(merged, injected)
	return merged
}

// NamingMapOverride returns the request's renaming provider, if any.
func NamingMapOverride(c *Context) (template.NamingMapProvider, bool) {
	if c == nil || c.NamingMap == nil {
		return nil, false
	}
	return c.NamingMap, true
}

// ETagsEnabled reports whether the response should carry an ETag.
func ETagsEnabled(c *Context) bool {
	if c == nil || c.ETags == nil {
		return Defaults.ETags
	}
	return *c.ETags
}

// StrongETags reports whether ETags are strong rather than weak.
func StrongETags(c *Context) bool {
	if c == nil || c.StrongETags == nil {
		return Defaults.StrongETags
	}
	return *c.StrongETags
}

// TranslateEnabled reports whether templates get translation helpers.
func TranslateEnabled(c *Context) bool {
	if c == nil || c.Translate == nil {
		return Defaults.Translate
	}
	return *c.Translate
}

type contextKey struct{}

// WithContext attaches vc to ctx.
func WithContext(ctx context.Context, vc *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, vc)
}

// FromContext returns the Context attached to ctx, or nil.
func FromContext(ctx context.Context) *Context {
	if ctx == nil {
		return nil
	}
	vc, _ := ctx.Value(contextKey{}).(*Context)
	return vc
}
