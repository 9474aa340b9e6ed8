package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/goliatone/go-views/internal/logging"
	"github.com/goliatone/go-views/pkg/orchestrator"
	"github.com/goliatone/go-views/pkg/views"
)

// DefaultContentType is used when the handler has not set one.
const DefaultContentType = "text/html; charset=utf-8"

// Option configures a ViewRenderer.
type Option func(*ViewRenderer)

// WithLogger sets the logger for render outcomes.
func WithLogger(logger *slog.Logger) Option {
	return func(v *ViewRenderer) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithStreaming writes renders chunk by chunk, flushing after each one.
// Responses that carry an ETag are always buffered.
func WithStreaming(enabled bool) Option {
	return func(v *ViewRenderer) {
		v.streaming = enabled
	}
}

// WithETags sets the ETag behaviour for requests whose views.Context does
// not decide it.
func WithETags(enabled, strong bool) Option {
	return func(v *ViewRenderer) {
		v.etags = views.Bool(enabled)
		v.strongETags = views.Bool(strong)
	}
}

// WithContentType overrides DefaultContentType.
func WithContentType(contentType string) Option {
	return func(v *ViewRenderer) {
		if contentType != "" {
			v.contentType = contentType
		}
	}
}

// ViewRenderer renders views into HTTP responses.
type ViewRenderer struct {
	orch        *orchestrator.Orchestrator
	logger      *slog.Logger
	streaming   bool
	etags       *bool
	strongETags *bool
	contentType string
}

// NewViewRenderer returns a ViewRenderer backed by orch.
func NewViewRenderer(orch *orchestrator.Orchestrator, opts ...Option) *ViewRenderer {
	v := &ViewRenderer{
		orch:        orch,
		logger:      logging.NewNop(),
		contentType: DefaultContentType,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

// Exists reports whether view can be rendered.
func (v *ViewRenderer) Exists(view string) bool {
	return v.orch.Exists(view)
}

// Render renders view with model and writes the response. Request-scoped
// values come from the views.Context attached to the request context, or
// from model when it is a *views.Context; the CSP nonce comes from
// NonceMiddleware.
//
// Errors before the first byte is written produce an error response and are
// returned. Errors after it abort the response, are logged and returned.
func (v *ViewRenderer) Render(w http.ResponseWriter, r *http.Request, view string, model any) error {
	ctx := r.Context()
	start := time.Now()

	vc := views.FromContext(ctx)
	if m, ok := model.(*views.Context); ok {
		vc, model = m, nil
	}
	vc = v.withDefaults(vc)

	req := orchestrator.Request{
		View:    view,
		Model:   model,
		Context: vc,
		Nonce:   NonceFromContext(ctx),
	}

	var (
		status int
		size   int
		err    error
	)
	if v.streaming && !views.ETagsEnabled(vc) {
		status, size, err = v.stream(ctx, w, req)
	} else {
		status, size, err = v.buffered(ctx, w, r, req, vc)
	}

	attrs := []slog.Attr{
		slog.String("view", view),
		slog.Int("status", status),
		slog.Int("bytes", size),
		slog.Duration("duration", time.Since(start)),
	}
	switch {
	case err != nil && status >= http.StatusInternalServerError:
		v.logger.LogAttrs(ctx, slog.LevelError, "render failed", append(attrs, slog.String("error", err.Error()))...)
	case err != nil:
		v.logger.LogAttrs(ctx, slog.LevelWarn, "render rejected", append(attrs, slog.String("error", err.Error()))...)
	default:
		v.logger.LogAttrs(ctx, slog.LevelInfo, "render completed", attrs...)
	}
	return err
}

func (v *ViewRenderer) buffered(ctx context.Context, w http.ResponseWriter, r *http.Request, req orchestrator.Request, vc *views.Context) (int, int, error) {
	out, err := orchestrator.Wait(ctx, v.orch.Render(ctx, req))
	if err != nil {
		return WriteError(w, err), 0, err
	}
	body, err := out.Bytes()
	if err != nil {
		return WriteError(w, err), 0, err
	}

	h := w.Header()
	if h.Get("Content-Type") == "" {
		h.Set("Content-Type", v.contentType)
	}
	if views.ETagsEnabled(vc) {
		tag := views.ETag(body, views.StrongETags(vc))
		h.Set("ETag", tag)
		if views.MatchETag(r.Header.Get("If-None-Match"), tag) {
			w.WriteHeader(http.StatusNotModified)
			return http.StatusNotModified, 0, nil
		}
	}
	h.Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	n, err := w.Write(body)
	return http.StatusOK, n, err
}

func (v *ViewRenderer) stream(ctx context.Context, w http.ResponseWriter, req orchestrator.Request) (int, int, error) {
	s := v.orch.RenderStream(ctx, req)
	defer s.Close()

	first, err := s.Next(ctx)
	if err != nil && !errors.Is(err, io.EOF) {
		return WriteError(w, err), 0, err
	}

	h := w.Header()
	if h.Get("Content-Type") == "" {
		h.Set("Content-Type", v.contentType)
	}
	w.WriteHeader(http.StatusOK)
	if first == nil {
		return http.StatusOK, 0, nil
	}

	rc := http.NewResponseController(w)
	size := 0
	for c := first; ; {
		n, err := c.WriteTo(w)
		c.Release()
		size += int(n)
		if err != nil {
			return http.StatusOK, size, err
		}
		_ = rc.Flush()

		c, err = s.Next(ctx)
		if errors.Is(err, io.EOF) {
			return http.StatusOK, size, nil
		}
		if err != nil {
			return http.StatusInternalServerError, size, err
		}
	}
}

// withDefaults fills the ETag flags the request left unset.
func (v *ViewRenderer) withDefaults(vc *views.Context) *views.Context {
	if v.etags == nil {
		return vc
	}
	var out views.Context
	if vc != nil {
		out = *vc
	}
	if out.ETags == nil {
		out.ETags = v.etags
	}
	if out.StrongETags == nil {
		out.StrongETags = v.strongETags
	}
	return &out
}
