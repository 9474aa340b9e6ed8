// Package http adapts the orchestrator to net/http: a ViewRenderer that
// writes buffered or streamed renders to a ResponseWriter, CSP nonce and
// logging middleware, ETag finalisation, and a chi router with graceful
// shutdown for serving views.
package http
