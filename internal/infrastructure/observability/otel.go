package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/erboard/backend"

// Metrics holds all application metrics
type Metrics struct {
	RequestCount      metric.Int64Counter
	RequestDuration   metric.Float64Histogram
	DBQueryDuration   metric.Float64Histogram
	CacheHitCount     metric.Int64Counter
	CacheMissCount    metric.Int64Counter
	SyncCycleDuration metric.Float64Histogram
	IngestedRows      metric.Int64Counter
	UpstreamFailures  metric.Int64Counter
}

// Telemetry is the result of Setup.
type Telemetry struct {
	// LogHook forwards zerolog events to the OTLP log pipeline.
	LogHook  *LogHook
	Shutdown func(context.Context) error
}

// Setup initializes OpenTelemetry tracing, metrics and logs exported over OTLP/gRPC.
func Setup(ctx context.Context, serviceName, serviceVersion, endpoint string) (*Telemetry, error) {
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
		return nil, err
	}
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(15*time.Second))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)

	if err := runtime.Start(runtime.WithMinimumReadMemStatsInterval(time.Second)); err != nil {
		return nil, err
	}

	logExporter, err := otlploggrpc.New(ctx,
		otlploggrpc.WithEndpoint(endpoint),
		otlploggrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}
	loggerProvider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
		sdklog.WithResource(res),
	)

	shutdown := func(ctx context.Context) error {
		return errors.Join(
			tracerProvider.Shutdown(ctx),
			meterProvider.Shutdown(ctx),
			loggerProvider.Shutdown(ctx),
		)
	}

	return &Telemetry{
		LogHook:  NewLogHook(loggerProvider.Logger(instrumentationName)),
		Shutdown: shutdown,
	}, nil
}

// InitMetrics initializes application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

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

	dbQueryDuration, err := meter.Float64Histogram(
		"db.query.duration",
		metric.WithDescription("Database query duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	cacheHitCount, err := meter.Int64Counter(
		"cache.hit.count",
		metric.WithDescription("Number of cache hits"),
	)
	if err != nil {
		return nil, err
	}

	cacheMissCount, err := meter.Int64Counter(
		"cache.miss.count",
		metric.WithDescription("Number of cache misses"),
	)
	if err != nil {
		return nil, err
	}

	syncCycleDuration, err := meter.Float64Histogram(
		"er.sync.cycle.duration",
		metric.WithDescription("Ingestion cycle duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	ingestedRows, err := meter.Int64Counter(
		"er.sync.rows",
		metric.WithDescription("Rows handled per ingestion stage"),
	)
	if err != nil {
		return nil, err
	}

	upstreamFailures, err := meter.Int64Counter(
		"er.upstream.failures",
		metric.WithDescription("Failed calls to the ER information API"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCount:      requestCount,
		RequestDuration:   requestDuration,
		DBQueryDuration:   dbQueryDuration,
		CacheHitCount:     cacheHitCount,
		CacheMissCount:    cacheMissCount,
		SyncCycleDuration: syncCycleDuration,
		IngestedRows:      ingestedRows,
		UpstreamFailures:  upstreamFailures,
	}, nil
}

// StartSpan starts a new trace span
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, spanName)
}

// RecordError records an error in the current span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
}

// RecordRequestMetric records an HTTP request
func RecordRequestMetric(ctx context.Context, metrics *Metrics, method, path string, statusCode int, duration time.Duration) {
	if metrics == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", path),
		attribute.Int("http.status_code", statusCode),
	)
	metrics.RequestCount.Add(ctx, 1, attrs)
	metrics.RequestDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordDBMetric records a database operation metric
func RecordDBMetric(ctx context.Context, metrics *Metrics, operation string, duration time.Duration) {
	if metrics == nil {
		return
	}
	metrics.DBQueryDuration.Record(ctx, float64(duration.Milliseconds()),
		metric.WithAttributes(attribute.String("db.operation", operation)))
}

// RecordCacheLookup records a cache hit or miss for a key family
func RecordCacheLookup(ctx context.Context, metrics *Metrics, family string, hit bool) {
	if metrics == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("cache.family", family))
	if hit {
		metrics.CacheHitCount.Add(ctx, 1, attrs)
		return
	}
	metrics.CacheMissCount.Add(ctx, 1, attrs)
}

// RecordSyncStage records rows handled by one ingestion stage
func RecordSyncStage(ctx context.Context, metrics *Metrics, stage string, rows int) {
	if metrics == nil {
		return
	}
	metrics.IngestedRows.Add(ctx, int64(rows), metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordSyncCycle records the duration and outcome of an ingestion cycle
func RecordSyncCycle(ctx context.Context, metrics *Metrics, duration time.Duration, err error) {
	if metrics == nil {
		return
	}
	metrics.SyncCycleDuration.Record(ctx, float64(duration.Milliseconds()),
		metric.WithAttributes(attribute.Bool("success", err == nil)))
}

// RecordUpstreamFailure counts a failed upstream call per endpoint
func RecordUpstreamFailure(ctx context.Context, metrics *Metrics, endpoint string) {
	if metrics == nil {
		return
	}
	metrics.UpstreamFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("endpoint", endpoint)))
}
