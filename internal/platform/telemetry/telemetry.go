// Package telemetry wires OpenTelemetry tracing and Prometheus metrics into
// the HTTP server.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/visitmgr/visitmgr/pkg/errors"
)

const instrumentationName = "github.com/visitmgr/visitmgr"

// Config holds all configuration for the telemetry provider.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// OTLPEndpoint is the gRPC collector address. Spans are recorded but not
	// exported when it is empty.
	OTLPEndpoint string
	OTLPInsecure bool
	// SampleRate is the parent-based trace ratio, 0.0 to 1.0.
	SampleRate float64
	// SpanExporter overrides the OTLP exporter. Spans are exported
	// synchronously, which tests rely on.
	SpanExporter sdktrace.SpanExporter
}

func (c *Config) applyDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "visitmgr-server"
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = "0.0.0"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.SampleRate <= 0 || c.SampleRate > 1 {
		c.SampleRate = 1.0
	}
}

// Billing finalization outcomes reported by ObserveBillingFinalization.
const (
	ResultCreated  = "created"
	ResultConflict = "conflict"
	ResultInvalid  = "invalid"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

// Provider owns the tracer provider and the metrics registry.
type Provider struct {
	cfg            Config
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	registry       *prometheus.Registry

	requestsTotal        *prometheus.CounterVec
	requestDuration      *prometheus.HistogramVec
	activeRequests       prometheus.Gauge
	billingFinalizations *prometheus.CounterVec
}

// NewProvider builds the tracer provider and registers it globally together
// with the W3C trace-context propagator.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	cfg.applyDefaults()

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironment(cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
	}
	switch {
	case cfg.SpanExporter != nil:
		opts = append(opts, sdktrace.WithSyncer(cfg.SpanExporter))
	case cfg.OTLPEndpoint != "":
		exOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.OTLPInsecure {
			exOpts = append(exOpts, otlptracegrpc.WithInsecure())
		}
		exporter, err := otlptracegrpc.New(ctx, exOpts...)
		if err != nil {
			return nil, fmt.Errorf("otlp exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	p := &Provider{
		cfg:            cfg,
		tracerProvider: tp,
		tracer:         tp.Tracer(instrumentationName),
		registry:       prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status_code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
		activeRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_active_requests",
			Help: "Number of in-flight HTTP requests",
		}),
		billingFinalizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "visitmgr_billing_finalizations_total",
			Help: "Billing attempts by outcome",
		}, []string{"result"}),
	}

	p.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.requestsTotal,
		p.requestDuration,
		p.activeRequests,
		p.billingFinalizations,
	)
	return p, nil
}

// Tracer returns the application tracer.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Registry exposes the metrics registry so other components can add
// collectors.
func (p *Provider) Registry() *prometheus.Registry {
	return p.registry
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.tracerProvider.Shutdown(ctx)
}

// ObserveBillingFinalization counts one billing attempt by outcome.
func (p *Provider) ObserveBillingFinalization(result string) {
	p.billingFinalizations.WithLabelValues(result).Inc()
}

// PoolGauges registers gauges that read connection pool counters at scrape
// time.
func (p *Provider) PoolGauges(total, idle, acquired func() float64) {
	p.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: "db_pool_total_connections", Help: "Open pool connections"}, total),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: "db_pool_idle_connections", Help: "Idle pool connections"}, idle),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: "db_pool_acquired_connections", Help: "Acquired pool connections"}, acquired),
	)
}

// HTTPHandler wraps h so every inbound request gets a server span, with the
// parent taken from the traceparent header.
func (p *Provider) HTTPHandler(h http.Handler) http.Handler {
	return otelhttp.NewHandler(h, p.cfg.ServiceName,
		otelhttp.WithTracerProvider(p.tracerProvider),
		otelhttp.WithPropagators(otel.GetTextMapPropagator()),
	)
}

// TracingMiddleware names the active server span after the matched echo
// route and records the final status on it.
func (p *Provider) TracingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)

			span := trace.SpanFromContext(c.Request().Context())
			if !span.IsRecording() {
				return err
			}

			route := routeOf(c)
			status := statusOf(c, err)
			span.SetName("HTTP " + c.Request().Method + " " + route)
			span.SetAttributes(
				semconv.HTTPRoute(route),
				attribute.Int("http.response.status_code", status),
			)
			if rid, ok := c.Get("request_id").(string); ok && rid != "" {
				span.SetAttributes(attribute.String("request.id", rid))
			}
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}
			return err
		}
	}
}

// MetricsMiddleware records request count, latency and in-flight requests.
func (p *Provider) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			p.activeRequests.Inc()
			start := time.Now()
			panicked := true

			// Recorded even when next panics; the panic keeps unwinding to
			// the recovery middleware, which answers 500.
			defer func() {
				p.activeRequests.Dec()
				status := http.StatusInternalServerError
				if !panicked {
					status = statusOf(c, err)
				}
				route := routeOf(c)
				method := c.Request().Method
				p.requestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
				p.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			}()

			err = next(c)
			panicked = false
			return err
		}
	}
}

// Handler serves the registry in the Prometheus text format.
func (p *Provider) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{}))
}

func routeOf(c echo.Context) string {
	if route := c.Path(); route != "" {
		return route
	}
	return "unmatched"
}

// statusOf reports the status the client will see. When err is non-nil the
// response has usually not been written yet.
func statusOf(c echo.Context, err error) int {
	if err == nil || c.Response().Committed {
		return c.Response().Status
	}
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code
	}
	return apperrors.HTTPStatus(err)
}
