// Package orchestrator drives a render from view name to output: it prepares
// the template renderer (data, injected overlay, renaming maps, translation
// helpers), feeds every continuation the engine returns through a
// render.Machine, and hands the result back as a buffered Output or a chunk
// Stream.
package orchestrator
