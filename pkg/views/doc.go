// Package views holds the request-scoped render context: template properties,
// injected values, renaming overrides, message catalogs and response flags.
// Values are read through package functions that apply the Defaults table when
// a field is unset, so a nil *Context is valid everywhere.
package views
