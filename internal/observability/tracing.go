package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/signalsfoundry/loiter-planner/internal/logging"
)

// Exporter names a span sink.
type Exporter string

const (
	ExporterStdout Exporter = "stdout"
	ExporterOTLP   Exporter = "otlp"
)

const (
	defaultServiceName  = "loiterplan"
	defaultOTLPEndpoint = "localhost:4317"
	shutdownTimeout     = 5 * time.Second
)

// ParseExporter accepts the names used in LOITER_TRACING_EXPORTER.
func ParseExporter(s string) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "stdout":
		return ExporterStdout, nil
	case "otlp", "otlpgrpc":
		return ExporterOTLP, nil
	default:
		return "", fmt.Errorf("unsupported tracing exporter: %s", s)
	}
}

// TracingConfig selects where planner and run spans go.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Exporter    Exporter
	Endpoint    string // OTLP collector, host:port
	SampleRatio float64

	// Writer receives stdout spans. Defaults to os.Stderr so span dumps
	// stay out of command output.
	Writer io.Writer
}

// TracingConfigFromEnv reads the LOITER_TRACING_* and LOITER_OTLP_ENDPOINT
// variables. Unparseable values fall back to defaults; an unknown exporter
// is kept verbatim so InitTracing can report it.
func TracingConfigFromEnv() TracingConfig {
	cfg := TracingConfig{
		Enabled:     strings.EqualFold(os.Getenv("LOITER_TRACING_ENABLED"), "true"),
		ServiceName: envOr("LOITER_TRACING_SERVICE_NAME", defaultServiceName),
		Endpoint:    os.Getenv("LOITER_OTLP_ENDPOINT"),
		SampleRatio: 1,
	}
	raw := os.Getenv("LOITER_TRACING_EXPORTER")
	if exp, err := ParseExporter(raw); err == nil {
		cfg.Exporter = exp
	} else {
		cfg.Exporter = Exporter(raw)
	}
	if r, err := strconv.ParseFloat(os.Getenv("LOITER_TRACING_SAMPLE_RATIO"), 64); err == nil && r >= 0 && r <= 1 {
		cfg.SampleRatio = r
	}
	return cfg
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// InitTracing installs a global tracer provider for cfg and returns it for
// core.WithTracerProvider together with a flush-and-close function. When
// tracing is disabled the provider is a no-op.
func InitTracing(ctx context.Context, cfg TracingConfig, log logging.Logger) (trace.TracerProvider, func(context.Context) error, error) {
	if log == nil {
		log = logging.Noop()
	}
	if !cfg.Enabled {
		tp := noop.NewTracerProvider()
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.TraceContext{})
		log.Debug(ctx, "tracing disabled")
		return tp, func(context.Context) error { return nil }, nil
	}

	kind, err := ParseExporter(string(cfg.Exporter))
	if err != nil {
		return nil, nil, err
	}
	exp, err := newExporter(ctx, kind, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s exporter: %w", kind, err)
	}
	service := cfg.ServiceName
	if service == "" {
		service = defaultServiceName
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(service),
		semconv.ServiceNamespace("loiter"),
	))
	if err != nil {
		return nil, nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info(ctx, "tracing enabled",
		logging.String("exporter", string(kind)),
		logging.String("service_name", service),
		logging.Float("sample_ratio", cfg.SampleRatio),
	)
	return tp, tp.Shutdown, nil
}

func newExporter(ctx context.Context, kind Exporter, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	if kind == ExporterOTLP {
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = defaultOTLPEndpoint
		}
		return otlptrace.New(ctx, otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		))
	}
	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}
	return stdouttrace.New(
		stdouttrace.WithWriter(w),
		stdouttrace.WithPrettyPrint(),
		stdouttrace.WithoutTimestamps(),
	)
}

// ShutdownWithTimeout flushes spans, bounding the wait and logging rather
// than returning a failure.
func ShutdownWithTimeout(ctx context.Context, shutdown func(context.Context) error, log logging.Logger) {
	if shutdown == nil {
		return
	}
	if log == nil {
		log = logging.Noop()
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Warn(ctx, "tracing shutdown failed", logging.Err(err))
	}
}
