package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/goliatone/go-views/pkg/orchestrator"
	"github.com/goliatone/go-views/pkg/render"
	"github.com/goliatone/go-views/pkg/render/template/gotemplate"
)

func TestMetricsRegistered(t *testing.T) {
	RendersTotal.WithLabelValues("seed", "ok").Inc()
	RenderDuration.WithLabelValues("seed").Observe(0.01)
	RenderBytesTotal.WithLabelValues("seed").Add(1)
	RenderSignalsTotal.WithLabelValues("DONE").Inc()
	RequestsTotal.WithLabelValues("GET", "2xx", "seed").Inc()
	RequestDuration.WithLabelValues("GET", "seed").Observe(0.01)

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("unexpected gather error: %v", err)
	}

	expected := map[string]bool{
		"views_renders_total":                 false,
		"views_render_duration_seconds":       false,
		"views_render_bytes_total":            false,
		"views_render_signals_total":          false,
		"views_renders_active":                false,
		"views_http_requests_total":           false,
		"views_http_request_duration_seconds": false,
		"views_http_requests_in_flight":       false,
	}
	for _, mf := range families {
		if _, ok := expected[mf.GetName()]; ok {
			expected[mf.GetName()] = true
		}
	}
	for name, found := range expected {
		if !found {
			t.Errorf("metric %q not found in default registry", name)
		}
	}
}

func TestRecorder_CountsRenders(t *testing.T) {
	set, err := gotemplate.Compile(gotemplate.WithTemplateString("metrics/hello", "Hello, {{ name }}!"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	o := orchestrator.New(set, orchestrator.WithMetrics(Recorder{}))

	okBefore := counterValue(t, RendersTotal, "metrics/hello", "ok")
	bytesBefore := counterValue(t, RenderBytesTotal, "metrics/hello")
	doneBefore := counterValue(t, RenderSignalsTotal, "DONE")
	durBefore := histogramCount(t, RenderDuration, "metrics/hello")
	active := gaugeValue(t, RendersActive)

	out, err := orchestrator.Wait(context.Background(), o.Render(context.Background(), orchestrator.Request{
		View:  "metrics/hello",
		Model: map[string]any{"name": "World"},
	}))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	_ = out.Close()

	if delta := counterValue(t, RendersTotal, "metrics/hello", "ok") - okBefore; delta != 1 {
		t.Errorf("expected one ok render, got delta=%f", delta)
	}
	if delta := counterValue(t, RenderBytesTotal, "metrics/hello") - bytesBefore; delta != float64(len("Hello, World!")) {
		t.Errorf("unexpected byte delta %f", delta)
	}
	if delta := counterValue(t, RenderSignalsTotal, "DONE") - doneBefore; delta < 1 {
		t.Errorf("expected a DONE signal, got delta=%f", delta)
	}
	if delta := histogramCount(t, RenderDuration, "metrics/hello") - durBefore; delta != 1 {
		t.Errorf("expected one duration sample, got delta=%d", delta)
	}
	if got := gaugeValue(t, RendersActive); got != active {
		t.Errorf("active renders should return to %f, got %f", active, got)
	}
}

func TestOutcome(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{render.NewFault("detach", "v", render.ErrWaitTimeout), "fault"},
		{errors.New("other"), "error"},
	}
	for _, tc := range cases {
		if got := Outcome(tc.err); got != tc.want {
			t.Errorf("Outcome(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	before := counterValue(t, RequestsTotal, "GET", "2xx", "/views/{name}")
	durBefore := histogramCount(t, RequestDuration, "GET", "/views/{name}")

	r := chi.NewRouter()
	r.Use(MetricsMiddleware)
	r.Get("/views/{name}", func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/views/home", nil))

	if delta := counterValue(t, RequestsTotal, "GET", "2xx", "/views/{name}") - before; delta != 1 {
		t.Errorf("expected request count to increase by 1, got delta=%f", delta)
	}
	if delta := histogramCount(t, RequestDuration, "GET", "/views/{name}") - durBefore; delta != 1 {
		t.Errorf("expected one duration sample, got delta=%d", delta)
	}
}

func TestMiddlewareCapturesStatusCode(t *testing.T) {
	before := counterValue(t, RequestsTotal, "POST", "4xx", "unknown")

	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))

	if delta := counterValue(t, RequestsTotal, "POST", "4xx", "unknown") - before; delta != 1 {
		t.Errorf("expected 4xx count to increase by 1, got delta=%f", delta)
	}
}

func TestMiddlewareInFlightGauge(t *testing.T) {
	baseline := gaugeValue(t, RequestsInFlight)

	inHandler := make(chan float64, 1)
	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inHandler <- gaugeValue(t, RequestsInFlight)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if during := <-inHandler; during != baseline+1 {
		t.Errorf("expected gauge=%f during request, got %f", baseline+1, during)
	}
	if after := gaugeValue(t, RequestsInFlight); after != baseline {
		t.Errorf("expected gauge=%f after request, got %f", baseline, after)
	}
}

func TestStatusWriterFlush(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rec, status: http.StatusOK}

	sw.Flush()

	if !rec.Flushed {
		t.Error("expected underlying writer to be flushed")
	}
	if sw.Unwrap() != rec {
		t.Error("expected Unwrap to return the wrapped writer")
	}
}

func counterValue(t *testing.T, cv *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	m := &dto.Metric{}
	c, err := cv.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("getting counter metric: %v", err)
	}
	if err := c.(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("writing counter metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func histogramCount(t *testing.T, hv *prometheus.HistogramVec, labels ...string) uint64 {
	t.Helper()
	m := &dto.Metric{}
	obs, err := hv.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("getting histogram metric: %v", err)
	}
	if err := obs.(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("writing histogram metric: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		t.Fatalf("writing gauge metric: %v", err)
	}
	return m.GetGauge().GetValue()
}
