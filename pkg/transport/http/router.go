package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goliatone/go-views/pkg/observability"
)

// RouterConfig configures NewRouter.
type RouterConfig struct {
	// Prefix is where views are mounted; "/views" when empty.
	Prefix string
	// MetricsPath serves Prometheus metrics when non-empty.
	MetricsPath string
	// Nonce enables NonceMiddleware with CSPPolicy.
	Nonce     bool
	CSPPolicy string
	Logger    *slog.Logger
}

// NewRouter mounts renderer under cfg.Prefix. GET {prefix}/{view...} renders
// the view with the query parameters as model; repeated parameters become
// lists.
func NewRouter(renderer *ViewRenderer, cfg RouterConfig) http.Handler {
	prefix := "/" + strings.Trim(cfg.Prefix, "/")
	if prefix == "/" {
		prefix = "/views"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(Recovery(logger))
	r.Use(Logging(logger))
	r.Use(observability.MetricsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	if cfg.MetricsPath != "" {
		r.Handle(cfg.MetricsPath, promhttp.Handler())
	}

	r.Group(func(r chi.Router) {
		if cfg.Nonce {
			policy := cfg.CSPPolicy
			if policy == "" {
				policy = DefaultCSPPolicy
			}
			r.Use(Nonce(policy))
		}
		r.Get(prefix+"/*", ServeView(renderer))
	})
	return r
}

// ServeView renders the view named by the wildcard URL segment.
func ServeView(renderer *ViewRenderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view := strings.Trim(chi.URLParam(r, "*"), "/")
		if !renderer.Exists(view) {
			http.NotFound(w, r)
			return
		}
		_ = renderer.Render(w, r, view, QueryModel(r))
	}
}

// QueryModel converts the request query into a template model.
func QueryModel(r *http.Request) map[string]any {
	query := r.URL.Query()
	model := make(map[string]any, len(query))
	for key, values := range query {
		switch len(values) {
		case 0:
		case 1:
			model[key] = values[0]
		default:
			list := make([]any, len(values))
			for i, v := range values {
				list[i] = v
			}
			model[key] = list
		}
	}
	return model
}
