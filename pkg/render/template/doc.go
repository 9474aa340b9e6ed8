// Package template defines the seam between the render orchestrator and a
// template engine: a compiled template set hands out per-request renderers
// that render incrementally into a Target and report progress as
// render.Continuation tokens.
package template
