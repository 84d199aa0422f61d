package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/zatekoja/facility-import/backend"

// Record outcomes used as the "outcome" attribute of the import counter
const (
	OutcomeInserted = "inserted"
	OutcomeUpdated  = "updated"
	OutcomeSkipped  = "skipped"
)

// Metrics holds all pipeline metrics
type Metrics struct {
	ImportRecords     metric.Int64Counter
	ImportDuration    metric.Float64Histogram
	UpstreamFailovers metric.Int64Counter
	DedupRemoved      metric.Int64Counter
	RequestCount      metric.Int64Counter
	RequestDuration   metric.Float64Histogram
}

// Setup initializes OpenTelemetry tracing and metrics export plus runtime instrumentation
func Setup(ctx context.Context, serviceName, serviceVersion, endpoint string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		_ = tracerProvider.Shutdown(ctx)
		return nil, err
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(30*time.Second))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)

	if err := runtime.Start(runtime.WithMeterProvider(meterProvider)); err != nil {
		_ = tracerProvider.Shutdown(ctx)
		_ = meterProvider.Shutdown(ctx)
		return nil, err
	}

	shutdown := func(ctx context.Context) error {
		return errors.Join(tracerProvider.Shutdown(ctx), meterProvider.Shutdown(ctx))
	}

	return shutdown, nil
}

// InitMetrics initializes pipeline metrics on the global meter provider
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	importRecords, err := meter.Int64Counter(
		"facility.import.records",
		metric.WithDescription("Number of imported elements by outcome"),
	)
	if err != nil {
		return nil, err
	}

	importDuration, err := meter.Float64Histogram(
		"facility.import.duration",
		metric.WithDescription("Import run duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	upstreamFailovers, err := meter.Int64Counter(
		"overpass.failover.count",
		metric.WithDescription("Number of upstream endpoint rotations"),
	)
	if err != nil {
		return nil, err
	}

	dedupRemoved, err := meter.Int64Counter(
		"facility.dedup.removed",
		metric.WithDescription("Number of duplicate facilities removed by the sweeper"),
	)
	if err != nil {
		return nil, err
	}

	requestCount, err := meter.Int64Counter(
		"http.server.request.count",
		metric.WithDescription("Number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		ImportRecords:     importRecords,
		ImportDuration:    importDuration,
		UpstreamFailovers: upstreamFailovers,
		DedupRemoved:      dedupRemoved,
		RequestCount:      requestCount,
		RequestDuration:   requestDuration,
	}, nil
}

// StartSpan starts a new trace span
func StartSpan(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer(instrumentationName)
	return tracer.Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// RecordError records an error in the span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
}

// RecordImportOutcome counts one processed element. A nil Metrics is a no-op.
func RecordImportOutcome(ctx context.Context, metrics *Metrics, outcome string) {
	if metrics == nil {
		return
	}
	metrics.ImportRecords.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordImportDuration records how long one import call took
func RecordImportDuration(ctx context.Context, metrics *Metrics, scope string, duration time.Duration) {
	if metrics == nil {
		return
	}
	metrics.ImportDuration.Record(ctx, float64(duration.Milliseconds()),
		metric.WithAttributes(attribute.String("import.scope", scope)))
}

// RecordFailover counts one rotation away from a failing endpoint
func RecordFailover(ctx context.Context, metrics *Metrics, endpoint string, statusCode int) {
	if metrics == nil {
		return
	}
	metrics.UpstreamFailovers.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.Int("http.status_code", statusCode),
	))
}

// RecordDedupRemoved counts records removed by a sweep
func RecordDedupRemoved(ctx context.Context, metrics *Metrics, removed int) {
	if metrics == nil || removed == 0 {
		return
	}
	metrics.DedupRemoved.Add(ctx, int64(removed))
}

// RecordRequestMetric records an HTTP request metric
func RecordRequestMetric(ctx context.Context, metrics *Metrics, method, path string, statusCode int, duration time.Duration) {
	if metrics == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.route", path),
		attribute.Int("http.status_code", statusCode),
	}

	metrics.RequestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	metrics.RequestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}
